// Package linker implements the single-object linking step spec.md §4.7
// describes: assign TEXT/DATA/BSS their final load addresses starting
// at a base, patch every relocation recorded in the object file's
// rel_text/rel_data tables against the symbol table, write the
// resulting bytes onto the system bus, and report the translated
// address of _start. Grounded on internal/asm/pass2.go's use of
// isa.PatchWord as the shared bitfield-patch primitive — the linker
// reuses that exact function so a relocation patched here and one
// patched by the assembler's own local fixup pass behave identically.
package linker

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/bus"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/emulog"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
)

var (
	// ErrUndefinedSymbol is returned when a relocation or the entry
	// point names a symbol that never received a non-WEAK definition
	// (spec.md §4.7, §8.8).
	ErrUndefinedSymbol  = errors.New("linker: undefined symbol")
	ErrMissingEntry     = errors.New("linker: missing _start symbol")
	ErrUnrelocatableBSS = errors.New("linker: BSS section carries relocations")
)

// bus writer is the narrow interface into internal/bus the linker
// needs; declared locally to keep this package's public surface small
// and because *bus.Bus already satisfies it directly.
type busWriter interface {
	WriteByte(va uint32, v byte) error
}

var _ busWriter = (*bus.Bus)(nil)

// Link assigns obj's TEXT/DATA/BSS sections contiguous addresses
// starting at start (TEXT first, then DATA, then BSS), patches every
// relocation against the now-known symbol addresses, writes the
// resulting image to b, and returns the translated address of the
// _start symbol.
func Link(obj *objfile.Object, b busWriter, start uint32, log *emulog.Logger) (uint32, error) {
	if log == nil {
		log = emulog.Noop()
	}

	text := obj.Section(objfile.SectionText, "text")
	data := obj.Section(objfile.SectionData, "data")
	bssSec := obj.Section(objfile.SectionBSS, "bss")

	textBase := start
	dataBase := textBase + text.Size
	bssBase := dataBase + data.Size

	resolve := func(symIdx uint32) (uint32, error) {
		if int(symIdx) >= len(obj.Symbols) {
			return 0, fmt.Errorf("%w: symbol index %d out of range", ErrUndefinedSymbol, symIdx)
		}
		sym := obj.Symbols[symIdx]
		if sym.Section == objfile.SectionNone {
			return 0, fmt.Errorf("%w: %s", ErrUndefinedSymbol, obj.SymbolName(symIdx))
		}
		switch objfile.SectionType(sym.Section) {
		case objfile.SectionText:
			return textBase + sym.Value, nil
		case objfile.SectionData:
			return dataBase + sym.Value, nil
		case objfile.SectionBSS:
			return bssBase + sym.Value, nil
		default:
			return 0, fmt.Errorf("%w: %s", ErrUndefinedSymbol, obj.SymbolName(symIdx))
		}
	}

	patch := func(relocs []objfile.Relocation, sectionData []byte, sectionBase uint32) error {
		for _, r := range relocs {
			symVal, err := resolve(r.Symbol)
			if err != nil {
				return err
			}
			instrAddr := sectionBase + r.Offset
			word := binary.LittleEndian.Uint32(sectionData[r.Offset : r.Offset+4])
			patched := isa.PatchWord(word, r.Kind, symVal+r.Shift, instrAddr)
			binary.LittleEndian.PutUint32(sectionData[r.Offset:r.Offset+4], patched)
		}
		return nil
	}

	if len(obj.RelBSS) > 0 {
		return 0, ErrUnrelocatableBSS
	}

	textImg := append([]byte(nil), text.Data...)
	dataImg := append([]byte(nil), data.Data...)

	if err := patch(obj.RelText, textImg, textBase); err != nil {
		return 0, err
	}
	if err := patch(obj.RelData, dataImg, dataBase); err != nil {
		return 0, err
	}

	for i, v := range textImg {
		if err := b.WriteByte(textBase+uint32(i), v); err != nil {
			return 0, fmt.Errorf("linker: writing text: %w", err)
		}
	}
	for i, v := range dataImg {
		if err := b.WriteByte(dataBase+uint32(i), v); err != nil {
			return 0, fmt.Errorf("linker: writing data: %w", err)
		}
	}
	for i := uint32(0); i < bssSec.Size; i++ {
		if err := b.WriteByte(bssBase+i, 0); err != nil {
			return 0, fmt.Errorf("linker: zeroing bss: %w", err)
		}
	}

	startIdx, ok := obj.FindSymbol("_start")
	if !ok {
		return 0, ErrMissingEntry
	}
	entry, err := resolve(startIdx)
	if err != nil {
		return 0, fmt.Errorf("%w: _start", err)
	}

	log.Infow("linker: linked object", "textBase", textBase, "dataBase", dataBase, "bssBase", bssBase, "entry", entry)
	return entry, nil
}
