package objfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
)

const (
	FileTypeRelocatable uint16 = 1
	FileTypeExecutable  uint16 = 2

	TargetMachineEMU32 uint16 = 1
)

var (
	// ErrMultipleDefinition is returned by AddSymbol when two non-WEAK
	// definitions share the same mangled name (spec.md §4.5, §8.8).
	ErrMultipleDefinition = errors.New("objfile: multiple definition")
	ErrBadMagic            = errors.New("objfile: bad object magic")
	ErrTruncated           = errors.New("objfile: truncated object file")
)

// Object is the in-memory object file: header fields, the deduplicated
// string table, the symbol table and its name index, every section
// that has been touched, and the three relocation tables (one per
// writable section).
type Object struct {
	FileType      uint16
	TargetMachine uint16
	Flags         uint16

	Strings *StringTable

	Symbols   []Symbol
	symByName map[uint32]int

	sections map[SectionType]*Section

	RelText []Relocation
	RelData []Relocation
	RelBSS  []Relocation
}

func New(fileType uint16) *Object {
	return &Object{
		FileType:      fileType,
		TargetMachine: TargetMachineEMU32,
		Strings:       NewStringTable(),
		symByName:     make(map[uint32]int),
		sections:      make(map[SectionType]*Section),
	}
}

// AddString is a thin pass-through to the string table kept here so
// callers only need to hold onto the Object.
func (o *Object) AddString(s string) uint32 { return o.Strings.Add(s) }

// Section returns the section of the given type, creating it (empty)
// on first access. name is only used the first time.
func (o *Object) Section(t SectionType, name string) *Section {
	if s, ok := o.sections[t]; ok {
		return s
	}
	entrySize := uint32(0)
	switch t {
	case SectionSymtab:
		entrySize = symbolEntrySize
	case SectionRelText, SectionRelData, SectionRelBSS:
		entrySize = relocEntrySize
	}
	s := &Section{Name: name, Type: t, EntrySize: entrySize}
	o.sections[t] = s
	return s
}

// HasSection reports whether t has been touched.
func (o *Object) HasSection(t SectionType) bool {
	_, ok := o.sections[t]
	return ok
}

// AppendBytes appends raw bytes to section t's data and grows its
// logical Size to match, returning the offset the bytes were written
// at. BSS never grows its Data (spec.md §4.6: no bytes materialised),
// only its Size.
func (o *Object) AppendBytes(t SectionType, name string, data []byte) uint32 {
	s := o.Section(t, name)
	offset := s.Size
	if t != SectionBSS {
		s.Data = append(s.Data, data...)
	}
	s.Size += uint32(len(data))
	return offset
}

// GrowBSS advances the BSS cursor by n bytes without materialising
// them, returning the offset before growth.
func (o *Object) GrowBSS(n uint32) uint32 {
	s := o.Section(SectionBSS, "bss")
	offset := s.Size
	s.Size += n
	return offset
}

// AddSymbol inserts name/value/binding/section if name is new.
// Otherwise it applies spec.md §4.5's merge rule: a non-WEAK binding
// upgrades an existing WEAK placeholder; two non-WEAK definitions of
// the same (already-mangled) name is a fatal multiple-definition
// error; a WEAK reference to an already-resolved name is a no-op.
func (o *Object) AddSymbol(name string, value uint32, binding Binding, section int32) (uint32, error) {
	nameIdx := o.Strings.Add(name)

	if existingIdx, ok := o.symByName[nameIdx]; ok {
		existing := &o.Symbols[existingIdx]
		switch {
		case existing.Binding == BindingWeak && binding != BindingWeak:
			*existing = Symbol{Name: nameIdx, Value: value, Binding: binding, Section: section}
		case existing.Binding != BindingWeak && binding == BindingWeak:
			// already resolved; incoming weak reference is satisfied.
		case existing.Binding != BindingWeak && binding != BindingWeak:
			return 0, fmt.Errorf("%w: %q", ErrMultipleDefinition, name)
		}
		return uint32(existingIdx), nil
	}

	idx := uint32(len(o.Symbols))
	o.Symbols = append(o.Symbols, Symbol{Name: nameIdx, Value: value, Binding: binding, Section: section})
	o.symByName[nameIdx] = int(idx)
	return idx, nil
}

// FindSymbol looks up a symbol by its exact (already-mangled if
// applicable) name.
func (o *Object) FindSymbol(name string) (uint32, bool) {
	nameIdx, ok := o.Strings.index[name]
	if !ok {
		return 0, false
	}
	idx, ok := o.symByName[nameIdx]
	return uint32(idx), ok
}

// SymbolName resolves a symbol table index back to its string.
func (o *Object) SymbolName(symIdx uint32) string {
	if int(symIdx) >= len(o.Symbols) {
		return ""
	}
	s, _ := o.Strings.Get(o.Symbols[symIdx].Name)
	return s
}

// AddRelocation files r under the relocation table matching section t
// (TEXT/DATA/BSS only — the other section types never carry code or
// data that needs patching).
func (o *Object) AddRelocation(t SectionType, r Relocation) {
	switch t {
	case SectionText:
		o.RelText = append(o.RelText, r)
	case SectionData:
		o.RelData = append(o.RelData, r)
	case SectionBSS:
		o.RelBSS = append(o.RelBSS, r)
	}
}

const (
	headerSize      = 24
	sectionHdrSize  = 36
	symbolEntrySize = 26
	relocEntrySize  = 28
)

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getU16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
func getU32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }

// orderedSections returns the present sections in the canonical write
// order spec.md §4.5 mandates, synthesising SYMTAB/REL_*/STRTAB bodies
// from the object's in-memory state.
func (o *Object) orderedSections() []*Section {
	var out []*Section
	for _, t := range canonicalOrder {
		switch t {
		case SectionSymtab:
			if len(o.Symbols) > 0 {
				out = append(out, o.symtabSection())
			}
		case SectionRelText:
			if len(o.RelText) > 0 {
				out = append(out, o.relocSection(SectionRelText, o.RelText))
			}
		case SectionRelData:
			if len(o.RelData) > 0 {
				out = append(out, o.relocSection(SectionRelData, o.RelData))
			}
		case SectionRelBSS:
			if len(o.RelBSS) > 0 {
				out = append(out, o.relocSection(SectionRelBSS, o.RelBSS))
			}
		case SectionStrtab:
			out = append(out, o.strtabSection())
		default:
			if s, ok := o.sections[t]; ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func (o *Object) symtabSection() *Section {
	buf := make([]byte, 0, len(o.Symbols)*symbolEntrySize)
	for _, sym := range o.Symbols {
		entry := make([]byte, symbolEntrySize)
		putU32(entry[0:4], sym.Name)
		putU32(entry[4:8], sym.Value)
		putU16(entry[8:10], uint16(sym.Binding))
		putU32(entry[10:14], uint32(sym.Section))
		buf = append(buf, entry...)
	}
	return &Section{Name: "symtab", Type: SectionSymtab, Data: buf, EntrySize: symbolEntrySize, Size: uint32(len(buf))}
}

func (o *Object) relocSection(t SectionType, relocs []Relocation) *Section {
	buf := make([]byte, 0, len(relocs)*relocEntrySize)
	for _, r := range relocs {
		entry := make([]byte, relocEntrySize)
		putU32(entry[0:4], r.Offset)
		putU32(entry[4:8], r.Symbol)
		putU32(entry[8:12], uint32(r.Kind))
		putU32(entry[12:16], r.Shift)
		buf = append(buf, entry...)
	}
	return &Section{Name: t.String(), Type: t, Data: buf, EntrySize: relocEntrySize, Size: uint32(len(buf))}
}

func (o *Object) strtabSection() *Section {
	var buf bytes.Buffer
	count := make([]byte, 4)
	putU32(count, uint32(o.Strings.Len()))
	buf.Write(count)
	for _, s := range o.Strings.All() {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return &Section{Name: "strtab", Type: SectionStrtab, Data: buf.Bytes(), Size: uint32(buf.Len())}
}

// Marshal serialises the object file to its binary form (spec.md §6).
func (o *Object) Marshal() ([]byte, error) {
	sections := o.orderedSections()

	header := make([]byte, headerSize)
	putU16(header[0:2], o.FileType)
	putU16(header[2:4], o.TargetMachine)
	putU16(header[4:6], o.Flags)
	putU16(header[6:8], uint16(len(sections)))

	var body bytes.Buffer
	body.Write(header)

	hdrTableOffset := body.Len()
	body.Write(make([]byte, sectionHdrSize*len(sections)))

	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		offsets[i] = uint32(body.Len())
		body.Write(s.Data)
	}

	out := body.Bytes()
	for i, s := range sections {
		hdr := out[hdrTableOffset+i*sectionHdrSize : hdrTableOffset+(i+1)*sectionHdrSize]
		nameIdx := o.Strings.Add(s.Name)
		putU32(hdr[0:4], nameIdx)
		putU32(hdr[4:8], uint32(s.Type))
		putU32(hdr[8:12], offsets[i])
		putU32(hdr[12:16], s.Size)
		putU32(hdr[16:20], s.EntrySize)
	}

	return out, nil
}

// Unmarshal parses data produced by Marshal back into an Object.
func Unmarshal(data []byte) (*Object, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}

	o := New(getU16(data[0:2]))
	o.TargetMachine = getU16(data[2:4])
	o.Flags = getU16(data[4:6])
	nSections := int(getU16(data[6:8]))

	hdrEnd := headerSize + sectionHdrSize*nSections
	if len(data) < hdrEnd {
		return nil, ErrTruncated
	}

	type rawSection struct {
		sec   Section
		start uint32
	}
	raws := make([]rawSection, nSections)
	for i := 0; i < nSections; i++ {
		hdr := data[headerSize+i*sectionHdrSize : headerSize+(i+1)*sectionHdrSize]
		raws[i] = rawSection{
			sec: Section{
				Type:      SectionType(getU32(hdr[4:8])),
				Size:      getU32(hdr[12:16]),
				EntrySize: getU32(hdr[16:20]),
			},
			start: getU32(hdr[8:12]),
		}
		nameIdx := getU32(hdr[0:4])
		_ = nameIdx
	}

	// STRTAB must be parsed first so section/symbol names resolve, but
	// we don't know which raw entry is STRTAB without reading its type,
	// which we already captured above.
	for _, rs := range raws {
		if rs.sec.Type == SectionStrtab {
			end := rs.start + rs.sec.Size
			if uint32(len(data)) < end {
				return nil, ErrTruncated
			}
			strtabBody := data[rs.start:end]
			if err := parseStrtabInto(o.Strings, strtabBody); err != nil {
				return nil, err
			}
		}
	}

	for _, rs := range raws {
		end := rs.start + rs.sec.Size
		if uint32(len(data)) < end && rs.sec.Type != SectionBSS {
			return nil, ErrTruncated
		}

		switch rs.sec.Type {
		case SectionSymtab:
			if err := o.parseSymtab(data[rs.start:end]); err != nil {
				return nil, err
			}
		case SectionRelText:
			o.RelText = parseRelocs(data[rs.start:end])
		case SectionRelData:
			o.RelData = parseRelocs(data[rs.start:end])
		case SectionRelBSS:
			o.RelBSS = parseRelocs(data[rs.start:end])
		case SectionStrtab:
			// already handled above
		case SectionBSS:
			s := o.Section(SectionBSS, "bss")
			s.Size = rs.sec.Size
		default:
			s := o.Section(rs.sec.Type, "")
			if rs.sec.Size > 0 {
				s.Data = append([]byte(nil), data[rs.start:end]...)
			}
			s.Size = rs.sec.Size
			s.EntrySize = rs.sec.EntrySize
		}
	}

	return o, nil
}

func parseStrtabInto(st *StringTable, body []byte) error {
	if len(body) < 4 {
		return ErrTruncated
	}
	count := getU32(body[0:4])
	pos := 4
	// index 0 (empty string) already exists in a fresh StringTable;
	// re-adding it on read is harmless since Add is idempotent.
	for i := uint32(0); i < count; i++ {
		start := pos
		for pos < len(body) && body[pos] != 0 {
			pos++
		}
		if pos >= len(body) {
			return ErrTruncated
		}
		st.Add(string(body[start:pos]))
		pos++
	}
	return nil
}

func (o *Object) parseSymtab(body []byte) error {
	if len(body)%symbolEntrySize != 0 {
		return ErrTruncated
	}
	for off := 0; off < len(body); off += symbolEntrySize {
		entry := body[off : off+symbolEntrySize]
		sym := Symbol{
			Name:    getU32(entry[0:4]),
			Value:   getU32(entry[4:8]),
			Binding: Binding(getU16(entry[8:10])),
			Section: int32(getU32(entry[10:14])),
		}
		o.Symbols = append(o.Symbols, sym)
		o.symByName[sym.Name] = len(o.Symbols) - 1
	}
	return nil
}

func parseRelocs(body []byte) []Relocation {
	var out []Relocation
	for off := 0; off+relocEntrySize <= len(body); off += relocEntrySize {
		entry := body[off : off+relocEntrySize]
		out = append(out, Relocation{
			Offset: getU32(entry[0:4]),
			Symbol: getU32(entry[4:8]),
			Kind:   isa.RelocKind(getU32(entry[8:12])),
			Shift:  getU32(entry[12:16]),
		})
	}
	return out
}
