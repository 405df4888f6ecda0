// Package objfile is the in-memory object-file model and its binary
// serialisation: sections, the symbol table, the string table and the
// three relocation tables, laid out exactly as spec.md §6 describes.
// It plays the role of the original implementation's ObjectFile.h/.cpp
// and StaticLibrary.h, rebuilt around Go's encoding/binary instead of
// hand-rolled stream operators.
package objfile

// StringTable is an ordered, deduplicated sequence of strings. Index 0
// is always the empty string (spec.md §4.5), matching the convention
// that a symbol/section referencing "no name" points at index 0.
type StringTable struct {
	strings []string
	index   map[string]uint32
}

func NewStringTable() *StringTable {
	st := &StringTable{index: make(map[string]uint32)}
	st.strings = append(st.strings, "")
	st.index[""] = 0
	return st
}

// Add inserts s if not already present and returns its index; repeated
// insertions of the same string are idempotent.
func (st *StringTable) Add(s string) uint32 {
	if idx, ok := st.index[s]; ok {
		return idx
	}
	idx := uint32(len(st.strings))
	st.strings = append(st.strings, s)
	st.index[s] = idx
	return idx
}

// Get returns the string at idx.
func (st *StringTable) Get(idx uint32) (string, bool) {
	if int(idx) >= len(st.strings) {
		return "", false
	}
	return st.strings[idx], true
}

// Len returns the number of distinct strings, including the empty
// string at index 0.
func (st *StringTable) Len() int { return len(st.strings) }

// All returns the strings in index order, for serialisation.
func (st *StringTable) All() []string {
	return st.strings
}
