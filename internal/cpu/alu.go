package cpu

import "github.com/Alientation/32-bit-Emulator-sub001/internal/isa"

// addWithCarry implements spec.md §4.11's shared add/subtract primitive:
// subtraction is addition of the bitwise complement plus a carry-in of
// 1, so every format-O arithmetic opcode funnels through here. C is
// "unsigned overflow" (no borrow for subtraction); V is signed overflow.
func addWithCarry(a, b, carryIn uint32) (result uint32, c, v bool) {
	sum := uint64(a) + uint64(b) + uint64(carryIn)
	result = uint32(sum)
	c = sum > 0xFFFFFFFF
	sa, sb, sr := int32(a) < 0, int32(b) < 0, int32(result) < 0
	v = sa == sb && sr != sa
	return result, c, v
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// applyShift performs one of the four barrel-shift operations. amt is
// reduced modulo 32 by the caller when it came from a register operand;
// immediate shift amounts are already checked at assembly time to be <
// 32 (spec.md §4.11), so the modulo here is a no-op in that case.
func applyShift(val uint32, st isa.ShiftType, amt uint8) uint32 {
	amt %= 32
	switch st {
	case isa.ShiftLSL:
		return val << amt
	case isa.ShiftLSR:
		return val >> amt
	case isa.ShiftASR:
		return uint32(int32(val) >> amt)
	case isa.ShiftROR:
		if amt == 0 {
			return val
		}
		return (val >> amt) | (val << (32 - amt))
	default:
		return val
	}
}

func signExtend(v uint32, bits uint8) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}

// operand2 evaluates format O/M's shared "register, optionally shifted"
// operand form, or decodes the plain immediate when ImmFlag is set.
func (c *CPU) operand2(ins isa.Instruction) uint32 {
	if ins.ImmFlag {
		return uint32(ins.Imm)
	}
	return applyShift(c.ReadReg(ins.Rm), ins.Shift, ins.ShiftAmt)
}

func (c *CPU) updateNZ(result uint32) {
	c.PSTATE.N = int32(result) < 0
	c.PSTATE.Z = result == 0
}

func (c *CPU) updateNZCV(result uint32, carry, overflow bool) {
	c.updateNZ(result)
	c.PSTATE.C = carry
	c.PSTATE.V = overflow
}

func init() {
	registerFormatO()
	registerFormatO1()
	registerFormatO2()
	registerFormatO3()
}

// registerFormatO wires the eleven three-register ALU opcodes
// (add/sub/rsb/adc/sbc/rsc/mul/and/orr/eor/bic). Logical ops and mul
// leave C/V untouched per spec.md §4.11; the arithmetic ones route
// through addWithCarry for consistent carry/overflow computation.
func registerFormatO() {
	arith := func(combine func(a, b, carryIn uint32) (uint32, bool, bool)) execFunc {
		return func(c *CPU, ins isa.Instruction, _ uint32) error {
			a := c.ReadReg(ins.Rn)
			b := c.operand2(ins)
			result, carry, overflow := combine(a, b, boolToU32(c.PSTATE.C))
			c.WriteReg(ins.Rd, result)
			if ins.S {
				c.updateNZCV(result, carry, overflow)
			}
			return nil
		}
	}
	logical := func(combine func(a, b uint32) uint32) execFunc {
		return func(c *CPU, ins isa.Instruction, _ uint32) error {
			a := c.ReadReg(ins.Rn)
			b := c.operand2(ins)
			result := combine(a, b)
			c.WriteReg(ins.Rd, result)
			if ins.S {
				c.updateNZ(result)
			}
			return nil
		}
	}

	register(isa.OpAdd, arith(func(a, b, _ uint32) (uint32, bool, bool) { return addWithCarry(a, b, 0) }))
	register(isa.OpAdc, arith(func(a, b, cin uint32) (uint32, bool, bool) { return addWithCarry(a, b, cin) }))
	register(isa.OpSub, arith(func(a, b, _ uint32) (uint32, bool, bool) { return addWithCarry(a, ^b, 1) }))
	register(isa.OpSbc, arith(func(a, b, cin uint32) (uint32, bool, bool) { return addWithCarry(a, ^b, cin) }))
	register(isa.OpRsb, arith(func(a, b, _ uint32) (uint32, bool, bool) { return addWithCarry(b, ^a, 1) }))
	register(isa.OpRsc, arith(func(a, b, cin uint32) (uint32, bool, bool) { return addWithCarry(b, ^a, cin) }))

	register(isa.OpMul, func(c *CPU, ins isa.Instruction, _ uint32) error {
		a, b := c.ReadReg(ins.Rn), c.operand2(ins)
		result := a * b
		c.WriteReg(ins.Rd, result)
		if ins.S {
			c.updateNZ(result)
		}
		return nil
	})

	register(isa.OpAnd, logical(func(a, b uint32) uint32 { return a & b }))
	register(isa.OpOrr, logical(func(a, b uint32) uint32 { return a | b }))
	register(isa.OpEor, logical(func(a, b uint32) uint32 { return a ^ b }))
	register(isa.OpBic, logical(func(a, b uint32) uint32 { return a &^ b }))
}

// registerFormatO1 wires lsl/lsr/asr/ror. These never touch flags
// (opTable's setsFlagsSuffix is false for all four).
func registerFormatO1() {
	shift := func(st isa.ShiftType) execFunc {
		return func(c *CPU, ins isa.Instruction, _ uint32) error {
			a := c.ReadReg(ins.Rn)
			var amt uint8
			if ins.ImmFlag {
				amt = ins.ShiftAmt
			} else {
				amt = uint8(c.ReadReg(ins.Rm) % 32)
			}
			c.WriteReg(ins.Rd, applyShift(a, st, amt))
			return nil
		}
	}
	register(isa.OpLsl, shift(isa.ShiftLSL))
	register(isa.OpLsr, shift(isa.ShiftLSR))
	register(isa.OpAsr, shift(isa.ShiftASR))
	register(isa.OpRor, shift(isa.ShiftROR))
}

// registerFormatO2 wires umull/smull: Rd receives the low 32 bits and
// Rn the high 32 bits of a 64-bit product; the second multiplicand is
// packed into the ShiftAmt field at decode time (internal/isa's
// instruction.go comment on format O2 explains the layout).
func registerFormatO2() {
	register(isa.OpUmull, func(c *CPU, ins isa.Instruction, _ uint32) error {
		a := uint64(c.ReadReg(ins.Rm))
		b := uint64(c.ReadReg(ins.ShiftAmt))
		product := a * b
		lo, hi := uint32(product), uint32(product>>32)
		c.WriteReg(ins.Rd, lo)
		c.WriteReg(ins.Rn, hi)
		if ins.S {
			c.PSTATE.Z = product == 0
			c.PSTATE.N = int32(hi) < 0
		}
		return nil
	})
	register(isa.OpSmull, func(c *CPU, ins isa.Instruction, _ uint32) error {
		a := int64(int32(c.ReadReg(ins.Rm)))
		b := int64(int32(c.ReadReg(ins.ShiftAmt)))
		product := a * b
		lo, hi := uint32(product), uint32(product>>32)
		c.WriteReg(ins.Rd, lo)
		c.WriteReg(ins.Rn, hi)
		if ins.S {
			c.PSTATE.Z = product == 0
			c.PSTATE.N = product < 0
		}
		return nil
	})
}

// registerFormatO3 wires mov/mvn. With S set, only N/Z update
// (spec.md §4.11).
func registerFormatO3() {
	register(isa.OpMov, func(c *CPU, ins isa.Instruction, _ uint32) error {
		var v uint32
		if ins.ImmFlag {
			v = uint32(ins.Imm)
		} else {
			v = c.ReadReg(ins.Rn)
		}
		c.WriteReg(ins.Rd, v)
		if ins.S {
			c.updateNZ(v)
		}
		return nil
	})
	register(isa.OpMvn, func(c *CPU, ins isa.Instruction, _ uint32) error {
		var v uint32
		if ins.ImmFlag {
			v = uint32(ins.Imm)
		} else {
			v = c.ReadReg(ins.Rn)
		}
		v = ^v
		c.WriteReg(ins.Rd, v)
		if ins.S {
			c.updateNZ(v)
		}
		return nil
	})
}
