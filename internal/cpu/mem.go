package cpu

import (
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
)

func init() {
	registerFormatM()
	registerFormatM1()
	registerFormatM2()
}

// effectiveAddress computes format M's addressing-mode EA and the base
// register's post-access value (spec.md §4.11): OFFSET leaves Xn
// untouched, PRE_INC writes Xn before the access and uses the updated
// value as EA, POST_INC uses the old Xn as EA and writes it back after.
func (c *CPU) effectiveAddress(ins isa.Instruction) (ea uint32, writeBack func()) {
	base := c.ReadReg(ins.Rn)
	var offset uint32
	if ins.ImmFlag {
		offset = uint32(ins.Imm)
	} else {
		offset = applyShift(c.ReadReg(ins.Rm), ins.Shift, ins.ShiftAmt)
	}

	switch ins.AddrMode {
	case isa.AddrPreInc:
		updated := base + offset
		return updated, func() { c.WriteReg(ins.Rn, updated) }
	case isa.AddrPostInc:
		return base, func() { c.WriteReg(ins.Rn, base+offset) }
	default:
		return base + offset, func() {}
	}
}

// registerFormatM wires ldr/str/ldrb/strb/ldrh/strh. Loads optionally
// sign-extend per the Signed bit; stores never do (spec.md §4.11).
func registerFormatM() {
	register(isa.OpLdr, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		v, err := c.Bus.ReadWord(ea)
		if err != nil {
			return fmt.Errorf("cpu: ldr at %#x: %w", ea, err)
		}
		c.WriteReg(ins.Rd, v)
		writeBack()
		return nil
	})
	register(isa.OpStr, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		if err := c.Bus.WriteWord(ea, c.ReadReg(ins.Rd)); err != nil {
			return fmt.Errorf("cpu: str at %#x: %w", ea, err)
		}
		writeBack()
		return nil
	})
	register(isa.OpLdrb, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		v, err := c.Bus.ReadByte(ea)
		if err != nil {
			return fmt.Errorf("cpu: ldrb at %#x: %w", ea, err)
		}
		c.WriteReg(ins.Rd, loadValue(uint32(v), 8, ins.Signed))
		writeBack()
		return nil
	})
	register(isa.OpStrb, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		if err := c.Bus.WriteByte(ea, byte(c.ReadReg(ins.Rd))); err != nil {
			return fmt.Errorf("cpu: strb at %#x: %w", ea, err)
		}
		writeBack()
		return nil
	})
	register(isa.OpLdrh, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		v, err := c.Bus.ReadHword(ea)
		if err != nil {
			return fmt.Errorf("cpu: ldrh at %#x: %w", ea, err)
		}
		c.WriteReg(ins.Rd, loadValue(uint32(v), 16, ins.Signed))
		writeBack()
		return nil
	})
	register(isa.OpStrh, func(c *CPU, ins isa.Instruction, _ uint32) error {
		ea, writeBack := c.effectiveAddress(ins)
		if err := c.Bus.WriteHword(ea, uint16(c.ReadReg(ins.Rd))); err != nil {
			return fmt.Errorf("cpu: strh at %#x: %w", ea, err)
		}
		writeBack()
		return nil
	})
}

func loadValue(raw uint32, bits uint8, signed bool) uint32 {
	if !signed {
		return raw
	}
	return uint32(signExtend(raw, bits))
}

// registerFormatM1 wires swp/swpb/swph: an indivisible read-modify-
// write at the address in Rm, writing Rn's value and returning the
// prior contents in Rd. The single-threaded execution model makes this
// trivially indivisible — no other instruction can observe the
// intermediate state between the read and the write (spec.md §4.11,
// §5).
func registerFormatM1() {
	register(isa.OpSwp, func(c *CPU, ins isa.Instruction, _ uint32) error {
		addr := c.ReadReg(ins.Rm)
		prior, err := c.Bus.ReadWord(addr)
		if err != nil {
			return fmt.Errorf("cpu: swp at %#x: %w", addr, err)
		}
		if err := c.Bus.WriteWord(addr, c.ReadReg(ins.Rn)); err != nil {
			return fmt.Errorf("cpu: swp at %#x: %w", addr, err)
		}
		c.WriteReg(ins.Rd, prior)
		return nil
	})
	register(isa.OpSwpb, func(c *CPU, ins isa.Instruction, _ uint32) error {
		addr := c.ReadReg(ins.Rm)
		prior, err := c.Bus.ReadByte(addr)
		if err != nil {
			return fmt.Errorf("cpu: swpb at %#x: %w", addr, err)
		}
		if err := c.Bus.WriteByte(addr, byte(c.ReadReg(ins.Rn))); err != nil {
			return fmt.Errorf("cpu: swpb at %#x: %w", addr, err)
		}
		c.WriteReg(ins.Rd, uint32(prior))
		return nil
	})
	register(isa.OpSwph, func(c *CPU, ins isa.Instruction, _ uint32) error {
		addr := c.ReadReg(ins.Rm)
		prior, err := c.Bus.ReadHword(addr)
		if err != nil {
			return fmt.Errorf("cpu: swph at %#x: %w", addr, err)
		}
		if err := c.Bus.WriteHword(addr, uint16(c.ReadReg(ins.Rn))); err != nil {
			return fmt.Errorf("cpu: swph at %#x: %w", addr, err)
		}
		c.WriteReg(ins.Rd, uint32(prior))
		return nil
	})
}

// registerFormatM2 wires adrp. ADRP_HI20 relocations patch imm20 with
// bits 31..12 of the symbol's absolute address (internal/isa's
// relocation.go), so reconstructing the page address is a plain shift
// with no PC-relative contribution needed — the relocated field already
// names the absolute page.
func registerFormatM2() {
	register(isa.OpAdrp, func(c *CPU, ins isa.Instruction, _ uint32) error {
		page := uint32(ins.Imm&0xFFFFF) << 12
		c.WriteReg(ins.Rd, page)
		return nil
	})
}
