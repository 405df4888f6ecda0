package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeRoundTrip checks spec.md §8.1: decode(encode(f)) == f
// for a representative instruction drawn from every format.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: OpAdd, S: true, Rd: 1, Rn: 0, ImmFlag: true, Imm: 3},
		{Op: OpSub, S: false, Rd: 2, Rn: 3, Rm: 4, Shift: ShiftLSL, ShiftAmt: 2},
		{Op: OpLsl, Rd: 5, Rn: 6, ImmFlag: true, ShiftAmt: 7},
		{Op: OpLsr, Rd: 5, Rn: 6, Rm: 9},
		{Op: OpUmull, S: true, Rd: 1, Rn: 2, Rm: 3, ShiftAmt: 4},
		{Op: OpMov, S: false, Rd: 0, ImmFlag: true, Imm: 5},
		{Op: OpMov, Rd: 0, Rn: 2, ImmFlag: false, Imm: 0x1FFF},
		{Op: OpLdr, Rd: 1, Rn: 30, ImmFlag: true, Imm: -8, AddrMode: AddrOffset},
		{Op: OpStrb, Signed: false, Rd: 2, Rn: 30, Rm: 3, Shift: ShiftLSR, ShiftAmt: 1, AddrMode: AddrPostInc},
		{Op: OpSwp, Rd: 1, Rn: 2, Rm: 3},
		{Op: OpAdrp, Rd: 4, Imm: 0xABCDE},
		{Op: OpB, Cond: CondAL, Imm: 2},
		{Op: OpBl, Cond: CondEQ, Imm: -2},
		{Op: OpSwi, Imm: 1000},
		{Op: OpBx, Cond: CondAL, Rd: 29},
		{Op: OpNop},
		{Op: OpHlt},
		{Op: OpVaddF32},
	}

	for _, want := range cases {
		word, err := Encode(want)
		require.NoError(t, err, "%v", want.Op)
		got, err := Decode(word)
		require.NoError(t, err)
		require.Equal(t, want, got, "mnemonic %s", want.Op.Mnemonic())
	}
}

func TestDecodeUnknownOpcodeIsBadInstr(t *testing.T) {
	// bits 31..26 = 111111 names no opcode in our table.
	_, err := Decode(0xFC000000)
	require.ErrorIs(t, err, ErrBadInstr)
}

func TestCompareFormAliasesDisassembleAsCmpEtc(t *testing.T) {
	subs := Instruction{Op: OpSub, S: true, Rd: RegZero, Rn: 1, ImmFlag: true, Imm: 4}
	require.Equal(t, "cmp x1, #4", Disassemble(subs, 0))

	adds := Instruction{Op: OpAdd, S: true, Rd: RegZero, Rn: 2, Rm: 3}
	require.Equal(t, "cmn x2, x3", Disassemble(adds, 0))

	ands := Instruction{Op: OpAnd, S: true, Rd: RegZero, Rn: 1, ImmFlag: true, Imm: 1}
	require.Equal(t, "tst x1, #1", Disassemble(ands, 0))

	eors := Instruction{Op: OpEor, S: true, Rd: RegZero, Rn: 1, Rm: 2}
	require.Equal(t, "teq x1, x2", Disassemble(eors, 0))

	// S clear must NOT alias, even with an xzr destination.
	sub := Instruction{Op: OpSub, S: false, Rd: RegZero, Rn: 1, ImmFlag: true, Imm: 4}
	require.Equal(t, "sub xzr, x1, #4", Disassemble(sub, 0))
}

func TestBxLrDisassemblesAsRet(t *testing.T) {
	bx := Instruction{Op: OpBx, Cond: CondAL, Rd: RegLR}
	require.Equal(t, "ret", Disassemble(bx, 0))

	bxOther := Instruction{Op: OpBx, Cond: CondAL, Rd: 3}
	require.Equal(t, "bx x3", Disassemble(bxOther, 0))
}

func TestCondEvalTable(t *testing.T) {
	require.True(t, CondEQ.Eval(false, true, false, false))
	require.False(t, CondEQ.Eval(false, false, false, false))
	require.True(t, CondGT.Eval(false, false, false, false))
	require.False(t, CondGT.Eval(false, true, false, false))
	require.True(t, CondAL.Eval(false, false, false, false))
	require.False(t, CondNV.Eval(true, true, true, true))
}

// TestBranchOffsetFormula pins the S2 scenario from spec.md: a forward
// branch from address `o` to address `s` encodes as (s-o)>>2 in the low
// 22 bits, and BranchTarget must invert it exactly.
func TestBranchOffsetFormula(t *testing.T) {
	origin := uint32(0x1000)
	target := uint32(0x1008) // 8 bytes ahead -> offset 2 words

	ins := Instruction{Op: OpB, Cond: CondAL}
	word, err := Encode(ins)
	require.NoError(t, err)

	word = PatchWord(word, RelocB_OFFSET22, target, origin)
	require.Equal(t, target, BranchTarget(word, origin))
}

func TestMovHi13Lo19RoundTripBuildsFullAddress(t *testing.T) {
	addr := uint32(0xDEADBEEF)

	lo, err := Encode(Instruction{Op: OpMov, Rd: 0, ImmFlag: true})
	require.NoError(t, err)
	lo = PatchWord(lo, RelocMOV_LO19, addr, 0)

	hi, err := Encode(Instruction{Op: OpMov, Rd: 1, ImmFlag: false, Rn: 0})
	require.NoError(t, err)
	hi = PatchWord(hi, RelocMOV_HI13, addr, 0)

	decodedLo, err := Decode(lo)
	require.NoError(t, err)
	decodedHi, err := Decode(hi)
	require.NoError(t, err)

	rebuilt := uint32(decodedLo.Imm) | (uint32(decodedHi.Imm) << 19)
	require.Equal(t, addr, rebuilt)
}

func TestLookupMnemonicAndShiftAndCond(t *testing.T) {
	op, ok := LookupMnemonic("add")
	require.True(t, ok)
	require.Equal(t, OpAdd, op)

	_, ok = LookupMnemonic("nonsense")
	require.False(t, ok)

	st, ok := LookupShiftType("ror")
	require.True(t, ok)
	require.Equal(t, ShiftROR, st)

	c, ok := LookupCond("hs")
	require.True(t, ok)
	require.Equal(t, CondCS, c)
}
