package isa

import "fmt"

// Disassemble renders the instruction at the given address in the
// canonical textual form spec.md §9 settled on: field-aware aliasing of
// subs/adds/ands/eors against xzr back to cmp/cmn/tst/teq, and bx x29
// back to ret. addr is the instruction's own address; b and bl use it
// to print their absolute branch target as the operand.
func Disassemble(ins Instruction, addr uint32) string {
	switch ins.Op.Format() {
	case FormatO:
		return disasmO(ins)
	case FormatO1:
		return disasmO1(ins)
	case FormatO2:
		return disasmO2(ins)
	case FormatO3:
		return disasmO3(ins)
	case FormatM:
		return disasmM(ins)
	case FormatM1:
		// Xt, Xn(swap-in value), Xm(address register) — matches the
		// three-bare-register grammar the assembler's format-M1 handler
		// parses (spec.md §4.11: "swapping with Xn and placing the
		// prior value in Xt", address taken from Xm).
		return fmt.Sprintf("%s %s, %s, %s", ins.Op.Mnemonic(), regName(ins.Rd), regName(ins.Rn), regName(ins.Rm))
	case FormatM2:
		return fmt.Sprintf("adrp x%d, #%#x", ins.Rd, uint32(ins.Imm))
	case FormatB1:
		return disasmB1(ins, addr)
	case FormatB2:
		return disasmB2(ins)
	case FormatNone, FormatReservedFP:
		return ins.Op.Mnemonic()
	default:
		return fmt.Sprintf("<bad %08x>", ins.Op)
	}
}

func regName(r uint8) string {
	switch r {
	case RegZero:
		return "xzr"
	case RegSP:
		return "sp"
	case RegLR:
		return "lr"
	default:
		return fmt.Sprintf("x%d", r)
	}
}

func mnemonicWithS(op Opcode, s bool) string {
	m := op.Mnemonic()
	if s && op.SetsFlagsSuffix() {
		return m + "s"
	}
	return m
}

// aliasForCompareForm reports the spec.md §9 cmp/cmn/tst/teq alias for an
// S-set ALU op whose destination is xzr, and whether it applies.
func aliasForCompareForm(op Opcode, s bool, rd uint8) (string, bool) {
	if !s || rd != RegZero {
		return "", false
	}
	switch op {
	case OpSub:
		return "cmp", true
	case OpAdd:
		return "cmn", true
	case OpAnd:
		return "tst", true
	case OpEor:
		return "teq", true
	default:
		return "", false
	}
}

func disasmO(ins Instruction) string {
	if alias, ok := aliasForCompareForm(ins.Op, ins.S, ins.Rd); ok {
		if ins.ImmFlag {
			return fmt.Sprintf("%s %s, #%d", alias, regName(ins.Rn), ins.Imm)
		}
		return fmt.Sprintf("%s %s, %s%s", alias, regName(ins.Rn), regName(ins.Rm), shiftSuffix(ins))
	}

	mnem := mnemonicWithS(ins.Op, ins.S)
	if ins.ImmFlag {
		return fmt.Sprintf("%s %s, %s, #%d", mnem, regName(ins.Rd), regName(ins.Rn), ins.Imm)
	}
	return fmt.Sprintf("%s %s, %s, %s%s", mnem, regName(ins.Rd), regName(ins.Rn), regName(ins.Rm), shiftSuffix(ins))
}

func shiftSuffix(ins Instruction) string {
	if ins.ShiftAmt == 0 {
		return ""
	}
	return fmt.Sprintf(", %s #%d", ins.Shift, ins.ShiftAmt)
}

func disasmO1(ins Instruction) string {
	if ins.ImmFlag {
		return fmt.Sprintf("%s %s, %s, #%d", ins.Op.Mnemonic(), regName(ins.Rd), regName(ins.Rn), ins.ShiftAmt)
	}
	return fmt.Sprintf("%s %s, %s, %s", ins.Op.Mnemonic(), regName(ins.Rd), regName(ins.Rn), regName(ins.Rm))
}

func disasmO2(ins Instruction) string {
	return fmt.Sprintf("%s x%d, x%d, x%d, x%d", mnemonicWithS(ins.Op, ins.S), ins.Rd, ins.Rn, ins.Rm, ins.ShiftAmt)
}

func disasmO3(ins Instruction) string {
	mnem := mnemonicWithS(ins.Op, ins.S)
	if ins.ImmFlag {
		return fmt.Sprintf("%s %s, #%d", mnem, regName(ins.Rd), ins.Imm)
	}
	return fmt.Sprintf("%s %s, %s", mnem, regName(ins.Rd), regName(ins.Rn))
}

func disasmM(ins Instruction) string {
	mnem := ins.Op.Mnemonic()
	if ins.Signed {
		mnem = "s" + mnem
	}

	var operand string
	if ins.ImmFlag {
		operand = fmt.Sprintf("#%d", ins.Imm)
	} else {
		operand = fmt.Sprintf("%s%s", regName(ins.Rm), shiftSuffix(ins))
	}

	switch ins.AddrMode {
	case AddrPreInc:
		return fmt.Sprintf("%s %s, [%s, %s]!", mnem, regName(ins.Rd), regName(ins.Rn), operand)
	case AddrPostInc:
		return fmt.Sprintf("%s %s, [%s], %s", mnem, regName(ins.Rd), regName(ins.Rn), operand)
	default:
		return fmt.Sprintf("%s %s, [%s, %s]", mnem, regName(ins.Rd), regName(ins.Rn), operand)
	}
}

func disasmB1(ins Instruction, addr uint32) string {
	mnem := ins.Op.Mnemonic()
	if ins.Cond != CondAL && ins.Op != OpSwi {
		mnem += ins.Cond.String()
	}
	if ins.Op == OpSwi {
		return fmt.Sprintf("swi #%d", ins.Imm)
	}
	target := int64(addr) + ins.Imm*4
	return fmt.Sprintf("%s #%#x", mnem, uint32(target))
}

func disasmB2(ins Instruction) string {
	// bx lr is the canonical function-return idiom; alias it to ret the
	// way the spec's field-aware disassembly rule requires.
	if ins.Op == OpBx && ins.Rd == RegLR && ins.Cond == CondAL {
		return "ret"
	}
	mnem := ins.Op.Mnemonic()
	if ins.Cond != CondAL {
		mnem += ins.Cond.String()
	}
	return fmt.Sprintf("%s %s", mnem, regName(ins.Rd))
}
