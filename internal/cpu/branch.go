package cpu

import "github.com/Alientation/32-bit-Emulator-sub001/internal/isa"

func init() {
	registerFormatB1()
	registerFormatB2()
}

// registerFormatB1 wires b/bl/swi. PC has already been pre-incremented
// by Step before execute runs, so a taken branch simply overwrites it
// with the absolute target instead of separately "subtracting 4 to
// compensate" (spec.md §4.11) — that compensation is exactly what
// replacing the pre-incremented PC with the computed target achieves.
func registerFormatB1() {
	register(isa.OpB, func(c *CPU, ins isa.Instruction, addr uint32) error {
		if !ins.Cond.Eval(c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V) {
			return nil
		}
		c.PC = uint32(int64(addr) + ins.Imm*4)
		return nil
	})
	register(isa.OpBl, func(c *CPU, ins isa.Instruction, addr uint32) error {
		if !ins.Cond.Eval(c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V) {
			return nil
		}
		c.WriteReg(isa.RegLR, c.PC)
		c.PC = uint32(int64(addr) + ins.Imm*4)
		return nil
	})
	register(isa.OpSwi, func(c *CPU, ins isa.Instruction, addr uint32) error {
		if !ins.Cond.Eval(c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V) {
			return nil
		}
		return c.dispatchSyscall(uint32(ins.Imm))
	})
}

// registerFormatB2 wires bx/blx, both register-indirect.
func registerFormatB2() {
	register(isa.OpBx, func(c *CPU, ins isa.Instruction, _ uint32) error {
		if !ins.Cond.Eval(c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V) {
			return nil
		}
		c.PC = c.ReadReg(ins.Rd)
		return nil
	})
	register(isa.OpBlx, func(c *CPU, ins isa.Instruction, _ uint32) error {
		if !ins.Cond.Eval(c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V) {
			return nil
		}
		target := c.ReadReg(ins.Rd)
		c.WriteReg(isa.RegLR, c.PC)
		c.PC = target
		return nil
	})
}
