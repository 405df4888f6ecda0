package objfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
)

func TestStringTableAddIsIdempotent(t *testing.T) {
	st := NewStringTable()
	a := st.Add("foo")
	b := st.Add("foo")
	require.Equal(t, a, b)
	empty, ok := st.Get(0)
	require.True(t, ok)
	require.Equal(t, "", empty)
}

func TestAddSymbolUpgradesWeakPlaceholder(t *testing.T) {
	o := New(FileTypeRelocatable)

	weakIdx, err := o.AddSymbol("foo", 0, BindingWeak, SectionNone)
	require.NoError(t, err)

	resolvedIdx, err := o.AddSymbol("foo", 0x100, BindingGlobal, int32(SectionText))
	require.NoError(t, err)
	require.Equal(t, weakIdx, resolvedIdx)
	require.Equal(t, BindingGlobal, o.Symbols[resolvedIdx].Binding)
	require.Equal(t, uint32(0x100), o.Symbols[resolvedIdx].Value)
}

func TestAddSymbolRejectsMultipleDefinition(t *testing.T) {
	o := New(FileTypeRelocatable)
	_, err := o.AddSymbol("foo", 0, BindingGlobal, int32(SectionText))
	require.NoError(t, err)
	_, err = o.AddSymbol("foo", 4, BindingGlobal, int32(SectionText))
	require.ErrorIs(t, err, ErrMultipleDefinition)
}

func TestAddSymbolWeakReferenceAfterResolutionIsNoop(t *testing.T) {
	o := New(FileTypeRelocatable)
	idx, err := o.AddSymbol("foo", 0x10, BindingGlobal, int32(SectionText))
	require.NoError(t, err)
	idx2, err := o.AddSymbol("foo", 0, BindingWeak, SectionNone)
	require.NoError(t, err)
	require.Equal(t, idx, idx2)
	require.Equal(t, BindingGlobal, o.Symbols[idx].Binding)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	o := New(FileTypeRelocatable)
	o.AppendBytes(SectionText, "text", []byte{0x01, 0x02, 0x03, 0x04})
	o.AppendBytes(SectionData, "data", []byte{0xAA, 0xBB})
	o.GrowBSS(16)

	symIdx, err := o.AddSymbol("_start", 0, BindingGlobal, int32(SectionText))
	require.NoError(t, err)

	o.AddRelocation(SectionText, Relocation{Offset: 0, Symbol: symIdx, Kind: isa.RelocB_OFFSET22, Shift: 0})

	data, err := o.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, o.FileType, got.FileType)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, got.Section(SectionText, "").Data)
	require.Equal(t, []byte{0xAA, 0xBB}, got.Section(SectionData, "").Data)
	require.Equal(t, uint32(16), got.Section(SectionBSS, "").Size)
	require.Equal(t, "_start", got.SymbolName(0))

	// The symbol and relocation tables round-trip byte-for-byte: diff the
	// whole structs rather than asserting one field at a time.
	if diff := cmp.Diff(o.Symbols, got.Symbols); diff != "" {
		t.Fatalf("symbol table mismatch after round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(o.RelText, got.RelText); diff != "" {
		t.Fatalf("rel_text mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestMultipleDefinitionAbortsAssemblyUnit(t *testing.T) {
	// spec.md §8.8: two non-WEAK symbols with the same mangled name in
	// one assembly unit must abort.
	o := New(FileTypeRelocatable)
	_, err := o.AddSymbol("loop::SCOPE:1", 0, BindingLocal, int32(SectionText))
	require.NoError(t, err)
	_, err = o.AddSymbol("loop::SCOPE:1", 4, BindingLocal, int32(SectionText))
	require.ErrorIs(t, err, ErrMultipleDefinition)
}

func TestStaticLibraryRoundTrip(t *testing.T) {
	a := New(FileTypeRelocatable)
	a.AppendBytes(SectionText, "text", []byte{1, 2, 3, 4})
	b := New(FileTypeRelocatable)
	b.AppendBytes(SectionText, "text", []byte{5, 6, 7, 8})

	archive, err := WriteStaticLibrary([]*Object{a, b})
	require.NoError(t, err)

	objs, err := ReadStaticLibrary(archive)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.Equal(t, []byte{1, 2, 3, 4}, objs[0].Section(SectionText, "").Data)
	require.Equal(t, []byte{5, 6, 7, 8}, objs[1].Section(SectionText, "").Data)
}
