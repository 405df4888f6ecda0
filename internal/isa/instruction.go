package isa

import (
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"
)

// Instruction is the decoded form of a 32-bit machine word. Not every
// field is meaningful for every opcode: which ones matter is entirely
// determined by Op.Format(). Keeping one flat struct instead of nine
// per-format types mirrors the teacher's single Instruction{code,
// register, arg} record (vm/compile.go) — generalized from three fields
// to the handful every EMU32 format actually needs.
type Instruction struct {
	Op Opcode

	Cond Cond // B1, B2

	S      bool // O, O2, O3: update NZCV
	Signed bool // M: sign-extend on load

	Rd, Rn, Rm uint8 // register operands; meaning depends on format

	ImmFlag bool // O, O1, O3, M: operand 2 / offset is an immediate, not a register
	Imm     int64

	Shift     ShiftType
	ShiftAmt  uint8
	AddrMode  AddrMode // M
}

// ErrBadInstr is returned by Decode when a word's opcode field names no
// known instruction, and by Encode when the Instruction's fields cannot
// be represented in the target format.
var ErrBadInstr = fmt.Errorf("isa: bad instruction")

func opcodeField(word uint32) Opcode {
	return Opcode(bitutil.FieldU(word, 26, 6))
}

// Decode unpacks a 32-bit machine word into its Instruction form. An
// unrecognised opcode is reported via ErrBadInstr rather than a panic:
// the CPU turns this into a BadInstr fault rather than crashing the
// host process (spec.md §4.11).
func Decode(word uint32) (Instruction, error) {
	op := opcodeField(word)
	if int(op) >= len(opTable) || opTable[op].mnemonic == "" {
		return Instruction{}, ErrBadInstr
	}

	switch op.Format() {
	case FormatO:
		return decodeO(op, word), nil
	case FormatO1:
		return decodeO1(op, word), nil
	case FormatO2:
		return decodeO2(op, word), nil
	case FormatO3:
		return decodeO3(op, word), nil
	case FormatM:
		return decodeM(op, word), nil
	case FormatM1:
		return decodeM1(op, word), nil
	case FormatM2:
		return decodeM2(op, word), nil
	case FormatB1:
		return decodeB1(op, word), nil
	case FormatB2:
		return decodeB2(op, word), nil
	case FormatNone, FormatReservedFP:
		return Instruction{Op: op}, nil
	default:
		return Instruction{}, ErrBadInstr
	}
}

// Encode packs an Instruction back into its 32-bit machine word.
func Encode(ins Instruction) (uint32, error) {
	if int(ins.Op) >= len(opTable) || opTable[ins.Op].mnemonic == "" {
		return 0, ErrBadInstr
	}

	switch ins.Op.Format() {
	case FormatO:
		return encodeO(ins), nil
	case FormatO1:
		return encodeO1(ins), nil
	case FormatO2:
		return encodeO2(ins), nil
	case FormatO3:
		return encodeO3(ins), nil
	case FormatM:
		return encodeM(ins), nil
	case FormatM1:
		return encodeM1(ins), nil
	case FormatM2:
		return encodeM2(ins), nil
	case FormatB1:
		return encodeB1(ins), nil
	case FormatB2:
		return encodeB2(ins), nil
	case FormatNone, FormatReservedFP:
		return uint32(ins.Op) << 26, nil
	default:
		return 0, ErrBadInstr
	}
}

// --- Format O: three-register ALU, optional 14-bit immediate operand 2 ---
//
//	31..26 opcode | 25 S | 24..20 Rd | 19..15 Rn | 14 immFlag |
//	  immFlag=1: 13..0 imm14
//	  immFlag=0: 13..9 Rm | 8..7 shiftType | 6..2 imm5 | 1..0 reserved

func encodeO(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, b2u(ins.S))
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 15, 5, uint32(ins.Rn))
	if ins.ImmFlag {
		w = bitutil.SetBit(w, 14, 1)
		w = bitutil.PutField(w, 0, 14, uint32(ins.Imm))
	} else {
		w = bitutil.PutField(w, 9, 5, uint32(ins.Rm))
		w = bitutil.PutField(w, 7, 2, uint32(ins.Shift))
		w = bitutil.PutField(w, 2, 5, uint32(ins.ShiftAmt))
	}
	return w
}

func decodeO(op Opcode, w uint32) Instruction {
	ins := Instruction{Op: op, S: bitutil.Bit(w, 25) != 0}
	ins.Rd = uint8(bitutil.FieldU(w, 20, 5))
	ins.Rn = uint8(bitutil.FieldU(w, 15, 5))
	ins.ImmFlag = bitutil.Bit(w, 14) != 0
	if ins.ImmFlag {
		ins.Imm = int64(bitutil.FieldU(w, 0, 14))
	} else {
		ins.Rm = uint8(bitutil.FieldU(w, 9, 5))
		ins.Shift = ShiftType(bitutil.FieldU(w, 7, 2))
		ins.ShiftAmt = uint8(bitutil.FieldU(w, 2, 5))
	}
	return ins
}

// --- Format O1: register shifts (lsl/lsr/asr/ror) ---
//
//	31..26 opcode | 25 (1) | 24..20 Rd | 19..15 Rn | 14 immFlag |
//	  immFlag=1: 6..2 imm5 (shift amount)
//	  immFlag=0: 13..9 Rm (shift amount register)

func encodeO1(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, 1)
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 15, 5, uint32(ins.Rn))
	if ins.ImmFlag {
		w = bitutil.SetBit(w, 14, 1)
		w = bitutil.PutField(w, 2, 5, uint32(ins.ShiftAmt))
	} else {
		w = bitutil.PutField(w, 9, 5, uint32(ins.Rm))
	}
	return w
}

func decodeO1(op Opcode, w uint32) Instruction {
	ins := Instruction{Op: op}
	ins.Rd = uint8(bitutil.FieldU(w, 20, 5))
	ins.Rn = uint8(bitutil.FieldU(w, 15, 5))
	ins.ImmFlag = bitutil.Bit(w, 14) != 0
	if ins.ImmFlag {
		ins.ShiftAmt = uint8(bitutil.FieldU(w, 2, 5))
	} else {
		ins.Rm = uint8(bitutil.FieldU(w, 9, 5))
	}
	return ins
}

// --- Format O2: wide multiply (umull/smull), Rd holds the low half,
// Rn the high half of the 64-bit product ---
//
//	31..26 opcode | 25 S | 24..20 Rd(lo) | 19..15 Rn(hi) | 14 (1) |
//	13..9 Rm (first multiplicand) | 8..4 second multiplicand register |
//	3..0 reserved. Instruction has no second Rm field, so the second
//	source register is carried in ShiftAmt.

func encodeO2(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, b2u(ins.S))
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 15, 5, uint32(ins.Rn))
	w = bitutil.SetBit(w, 14, 1)
	w = bitutil.PutField(w, 9, 5, uint32(ins.Rm))
	w = bitutil.PutField(w, 4, 5, uint32(ins.ShiftAmt)) // second multiplicand register
	return w
}

func decodeO2(op Opcode, w uint32) Instruction {
	ins := Instruction{Op: op, S: bitutil.Bit(w, 25) != 0}
	ins.Rd = uint8(bitutil.FieldU(w, 20, 5))
	ins.Rn = uint8(bitutil.FieldU(w, 15, 5))
	ins.Rm = uint8(bitutil.FieldU(w, 9, 5))
	ins.ShiftAmt = uint8(bitutil.FieldU(w, 4, 5)) // second multiplicand register
	return ins
}

// --- Format O3: move / move-not ---
//
//	31..26 opcode | 25 S | 24..20 Rd | 19 immFlag |
//	  immFlag=1: 18..0 imm19
//	  immFlag=0: 18..14 Rn | 13..0 imm14 (only the low 13 bits are
//	    meaningful when used to carry a MOV_HI13 relocation patch)

func encodeO3(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, b2u(ins.S))
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	if ins.ImmFlag {
		w = bitutil.SetBit(w, 19, 1)
		w = bitutil.PutField(w, 0, 19, uint32(ins.Imm))
	} else {
		w = bitutil.PutField(w, 14, 5, uint32(ins.Rn))
		w = bitutil.PutField(w, 0, 14, uint32(ins.Imm))
	}
	return w
}

func decodeO3(op Opcode, w uint32) Instruction {
	ins := Instruction{Op: op, S: bitutil.Bit(w, 25) != 0}
	ins.Rd = uint8(bitutil.FieldU(w, 20, 5))
	ins.ImmFlag = bitutil.Bit(w, 19) != 0
	if ins.ImmFlag {
		ins.Imm = int64(bitutil.FieldU(w, 0, 19))
	} else {
		ins.Rn = uint8(bitutil.FieldU(w, 14, 5))
		ins.Imm = int64(bitutil.FieldU(w, 0, 14))
	}
	return ins
}

// --- Format M: load/store ---
//
//	31..26 opcode | 25 signed | 24..20 Rt | 19..15 Rn | 14 immFlag |
//	  immFlag=1: 13..2 simm12 | 1..0 addrMode
//	  immFlag=0: 13..9 Rm | 8..7 shiftType | 6..2 imm5 | 1..0 addrMode

func encodeM(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, b2u(ins.Signed))
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 15, 5, uint32(ins.Rn))
	if ins.ImmFlag {
		w = bitutil.SetBit(w, 14, 1)
		w = bitutil.PutField(w, 2, 12, uint32(ins.Imm))
	} else {
		w = bitutil.PutField(w, 9, 5, uint32(ins.Rm))
		w = bitutil.PutField(w, 7, 2, uint32(ins.Shift))
		w = bitutil.PutField(w, 2, 5, uint32(ins.ShiftAmt))
	}
	w = bitutil.PutField(w, 0, 2, uint32(ins.AddrMode))
	return w
}

func decodeM(op Opcode, w uint32) Instruction {
	ins := Instruction{Op: op, Signed: bitutil.Bit(w, 25) != 0}
	ins.Rd = uint8(bitutil.FieldU(w, 20, 5))
	ins.Rn = uint8(bitutil.FieldU(w, 15, 5))
	ins.ImmFlag = bitutil.Bit(w, 14) != 0
	if ins.ImmFlag {
		ins.Imm = int64(bitutil.FieldS(w, 2, 12))
	} else {
		ins.Rm = uint8(bitutil.FieldU(w, 9, 5))
		ins.Shift = ShiftType(bitutil.FieldU(w, 7, 2))
		ins.ShiftAmt = uint8(bitutil.FieldU(w, 2, 5))
	}
	ins.AddrMode = AddrMode(bitutil.FieldU(w, 0, 2))
	return ins
}

// --- Format M1: atomic swap (swp/swpb/swph) ---
//
//	31..26 opcode | 25 (1) | 24..20 Rt | 19..15 Rn | 14 (1) | 13..9 Rm

func encodeM1(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.SetBit(w, 25, 1)
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 15, 5, uint32(ins.Rn))
	w = bitutil.SetBit(w, 14, 1)
	w = bitutil.PutField(w, 9, 5, uint32(ins.Rm))
	return w
}

func decodeM1(op Opcode, w uint32) Instruction {
	return Instruction{
		Op: op,
		Rd: uint8(bitutil.FieldU(w, 20, 5)),
		Rn: uint8(bitutil.FieldU(w, 15, 5)),
		Rm: uint8(bitutil.FieldU(w, 9, 5)),
	}
}

// --- Format M2: adrp ---
//
//	31..26 opcode | 25 reserved | 24..20 Rd | 19..0 imm20

func encodeM2(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.PutField(w, 20, 5, uint32(ins.Rd))
	w = bitutil.PutField(w, 0, 20, uint32(ins.Imm))
	return w
}

func decodeM2(op Opcode, w uint32) Instruction {
	return Instruction{
		Op:  op,
		Rd:  uint8(bitutil.FieldU(w, 20, 5)),
		Imm: int64(bitutil.FieldU(w, 0, 20)),
	}
}

// --- Format B1: relative branch (b/bl/swi) ---
//
//	31..26 opcode | 25..22 cond | 21..0 simm22

func encodeB1(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.PutField(w, 22, 4, uint32(ins.Cond))
	w = bitutil.PutField(w, 0, 22, uint32(ins.Imm))
	return w
}

func decodeB1(op Opcode, w uint32) Instruction {
	return Instruction{
		Op:   op,
		Cond: Cond(bitutil.FieldU(w, 22, 4)),
		Imm:  int64(bitutil.FieldS(w, 0, 22)),
	}
}

// --- Format B2: register-indirect branch (bx/blx) ---
//
//	31..26 opcode | 25..22 cond | 21..17 Rd | 16..0 reserved

func encodeB2(ins Instruction) uint32 {
	w := uint32(ins.Op) << 26
	w = bitutil.PutField(w, 22, 4, uint32(ins.Cond))
	w = bitutil.PutField(w, 17, 5, uint32(ins.Rd))
	return w
}

func decodeB2(op Opcode, w uint32) Instruction {
	return Instruction{
		Op:   op,
		Cond: Cond(bitutil.FieldU(w, 22, 4)),
		Rd:   uint8(bitutil.FieldU(w, 17, 5)),
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
