package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
)

func words(t *testing.T, data []byte) []uint32 {
	t.Helper()
	require.Zero(t, len(data)%4)
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = bitutil.UnpackWord(data[i*4 : i*4+4])
	}
	return out
}

// S1: a handful of straight-line instructions and no symbol references
// resolve to a clean three-word .text with zero relocations.
func TestAssembleSimpleStraightLineCode(t *testing.T) {
	src := `
.text
_start: mov x0, #5
	add x1, x0, #3
	hlt
`
	obj, err := Assemble(src)
	require.NoError(t, err)

	text := obj.Section(objfile.SectionText, "text")
	require.Equal(t, uint32(12), text.Size)
	require.Empty(t, obj.RelText)

	ws := words(t, text.Data)
	require.Len(t, ws, 3)

	ins0, err := isa.Decode(ws[0])
	require.NoError(t, err)
	require.Equal(t, isa.OpMov, ins0.Op)
	require.Equal(t, uint8(0), ins0.Rd)
	require.True(t, ins0.ImmFlag)
	require.Equal(t, int64(5), ins0.Imm)

	ins2, err := isa.Decode(ws[2])
	require.NoError(t, err)
	require.Equal(t, isa.OpHlt, ins2.Op)

	symIdx, ok := obj.FindSymbol("_start")
	require.True(t, ok)
	require.Equal(t, uint32(0), obj.Symbols[symIdx].Value)
	require.Equal(t, objfile.BindingLocal, obj.Symbols[symIdx].Binding)
}

// S2: a forward branch to a label defined later in the same unit
// records one B_OFFSET22 relocation in pass 1 and gets it patched
// directly into .text by pass 2, leaving no relocation behind.
func TestForwardBranchResolvesWithinUnit(t *testing.T) {
	src := `
.text
	b target
	nop
target: hlt
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	require.Empty(t, obj.RelText)

	text := obj.Section(objfile.SectionText, "text")
	ws := words(t, text.Data)
	require.Len(t, ws, 3)

	ins0, err := isa.Decode(ws[0])
	require.NoError(t, err)
	require.Equal(t, isa.OpB, ins0.Op)
	require.Equal(t, int64(2), ins0.Imm)
}

// A branch to a name that's never defined anywhere in the unit is left
// for the linker (no local scope claims to resolve it), but since
// B_OFFSET22 must be fully resolved locally, this is an error.
func TestBranchToUndefinedLocalIsError(t *testing.T) {
	src := `
.text
	b nowhere
`
	_, err := Assemble(src)
	require.ErrorIs(t, err, ErrUndefinedLocal)
}

func TestScopedLabelsDoNotCollideAcrossScopes(t *testing.T) {
	src := `
.text
.scope
loop: nop
	b loop
.scend
.scope
loop: hlt
	b loop
.scend
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	require.Empty(t, obj.RelText)

	text := obj.Section(objfile.SectionText, "text")
	ws := words(t, text.Data)
	require.Len(t, ws, 4)

	for _, idx := range []int{1, 3} {
		ins, err := isa.Decode(ws[idx])
		require.NoError(t, err)
		require.Equal(t, isa.OpB, ins.Op)
		require.Equal(t, int64(-1), ins.Imm)
	}
}

func TestMultipleDefinitionOfSameGlobalLabelFails(t *testing.T) {
	src := `
.text
.global dup
dup: nop
dup: nop
`
	_, err := Assemble(src)
	require.ErrorIs(t, err, ErrMultipleDefinition)
}

func TestOutOfRangeImmediateIsRejected(t *testing.T) {
	src := `
.text
	mov x0, #1000000
`
	_, err := Assemble(src)
	require.ErrorIs(t, err, ErrOutOfRangeImmediate)
}

func TestInstructionOutsideTextIsRejected(t *testing.T) {
	src := `
.data
	nop
`
	_, err := Assemble(src)
	require.ErrorIs(t, err, ErrInstructionOutsideText)
}

func TestDataDirectivesPackLittleEndianExceptDbyte(t *testing.T) {
	src := `
.data
vals: .word 0x01020304
.dbyte 0x0102
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	data := obj.Section(objfile.SectionData, "data")
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x01, 0x02}, data.Data)
}

func TestExternDeclaresWeakPlaceholder(t *testing.T) {
	src := `
.extern helper
.text
	bl helper
`
	_, err := Assemble(src)
	// helper is never defined in this unit: B_OFFSET22 must resolve
	// locally, so even an .extern declaration isn't enough.
	require.ErrorIs(t, err, ErrUndefinedLocal)
}

func TestLo12RelocationSurvivesToLinker(t *testing.T) {
	src := `
.text
	adrp x0, #:hi20:buf
	add x1, x0, #:lo12:buf
.data
buf: .word 0
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	require.Len(t, obj.RelText, 2)
	require.Equal(t, isa.RelocADRP_HI20, obj.RelText[0].Kind)
	require.Equal(t, isa.RelocO_LO12, obj.RelText[1].Kind)

	symName := obj.SymbolName(obj.RelText[1].Symbol)
	require.Equal(t, "buf", symName)
	require.Equal(t, objfile.BindingLocal, obj.Symbols[obj.RelText[1].Symbol].Binding)
}

func TestCompareAliasSynthesizesXzrDestination(t *testing.T) {
	src := `
.text
	cmp x0, #1
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	text := obj.Section(objfile.SectionText, "text")
	ws := words(t, text.Data)
	ins, err := isa.Decode(ws[0])
	require.NoError(t, err)
	require.Equal(t, isa.OpSub, ins.Op)
	require.True(t, ins.S)
	require.Equal(t, isa.RegZero, ins.Rd)
}

func TestRetAliasExpandsToBxLr(t *testing.T) {
	src := `
.text
	ret
`
	obj, err := Assemble(src)
	require.NoError(t, err)
	text := obj.Section(objfile.SectionText, "text")
	ws := words(t, text.Data)
	ins, err := isa.Decode(ws[0])
	require.NoError(t, err)
	require.Equal(t, isa.OpBx, ins.Op)
	require.Equal(t, isa.RegLR, ins.Rd)
}
