package cpu

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// Syscall numbers spec.md §6 assigns to the closed set of host-side
// intrinsics swi can invoke. Arguments arrive in X0..X5.
const (
	sysEmuPrint   = 1000
	sysEmuPrintR  = 1001
	sysEmuPrintM  = 1002
	sysEmuPrintP  = 1003
	sysEmuAssertR = 1010
	sysEmuAssertM = 1011
	sysEmuAssertP = 1012
)

// AssertionError is returned by the emu_assert* intrinsics when the
// observed value falls outside the caller-supplied [min, max] range.
type AssertionError struct {
	Intrinsic string
	Got       int64
	Min, Max  int64
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("cpu: %s: value %d outside [%d, %d]", e.Intrinsic, e.Got, e.Min, e.Max)
}

// dispatchSyscall implements spec.md §6's intrinsics table. Arguments
// are read from X0..X5 in order; unknown numbers raise BadSyscall.
func (c *CPU) dispatchSyscall(n uint32) error {
	x := func(i int) uint32 { return c.ReadReg(uint8(i)) }

	switch n {
	case sysEmuPrint:
		spew.Fdump(c.Out, c.dumpState())
		return nil
	case sysEmuPrintR:
		reg := x(0)
		fmt.Fprintf(c.Out, "x%d = %#x (%d)\n", reg, c.ReadReg(uint8(reg)), int32(c.ReadReg(uint8(reg))))
		return nil
	case sysEmuPrintM:
		addr, length, littleEndian := x(0), x(1), x(2) != 0
		return c.printMemory(addr, length, littleEndian)
	case sysEmuPrintP:
		fmt.Fprintf(c.Out, "N=%v Z=%v C=%v V=%v\n", c.PSTATE.N, c.PSTATE.Z, c.PSTATE.C, c.PSTATE.V)
		return nil
	case sysEmuAssertR:
		reg, min, max := x(0), int32(x(1)), int32(x(2))
		got := int32(c.ReadReg(uint8(reg)))
		if got < min || got > max {
			return &AssertionError{Intrinsic: "emu_assertr", Got: int64(got), Min: int64(min), Max: int64(max)}
		}
		return nil
	case sysEmuAssertM:
		addr, length, littleEndian, min, max := x(0), x(1), x(2) != 0, int64(int32(x(3))), int64(int32(x(4)))
		return c.assertMemory(addr, length, littleEndian, min, max)
	case sysEmuAssertP:
		flagID, expected := x(0), x(1) != 0
		got, err := c.flagByID(flagID)
		if err != nil {
			return err
		}
		if got != expected {
			return &AssertionError{Intrinsic: "emu_assertp", Got: boolToInt64(got), Min: boolToInt64(expected), Max: boolToInt64(expected)}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrBadSyscall, n)
	}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

type cpuStateDump struct {
	PC     uint32
	PSTATE Flags
	Regs   [32]uint32
}

func (c *CPU) dumpState() cpuStateDump {
	return cpuStateDump{PC: c.PC, PSTATE: c.PSTATE, Regs: c.Regs}
}

func (c *CPU) readMemBytes(addr, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		v, err := c.Bus.ReadByte(addr + i)
		if err != nil {
			return nil, fmt.Errorf("cpu: emu_printm/emu_assertm at %#x: %w", addr+i, err)
		}
		buf[i] = v
	}
	return buf, nil
}

func (c *CPU) printMemory(addr, length uint32, littleEndian bool) error {
	buf, err := c.readMemBytes(addr, length)
	if err != nil {
		return err
	}
	if !littleEndian {
		reverseBytes(buf)
	}
	fmt.Fprintf(c.Out, "mem[%#x:%#x] = % x\n", addr, addr+length, buf)
	return nil
}

func (c *CPU) assertMemory(addr, length uint32, littleEndian bool, min, max int64) error {
	buf, err := c.readMemBytes(addr, length)
	if err != nil {
		return err
	}
	if !littleEndian {
		reverseBytes(buf)
	}
	var v int64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | int64(buf[i])
	}
	if v < min || v > max {
		return &AssertionError{Intrinsic: "emu_assertm", Got: v, Min: min, Max: max}
	}
	return nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// flagByID maps emu_assertp's flag_id (0=N, 1=Z, 2=C, 3=V) to PSTATE.
func (c *CPU) flagByID(id uint32) (bool, error) {
	switch id {
	case 0:
		return c.PSTATE.N, nil
	case 1:
		return c.PSTATE.Z, nil
	case 2:
		return c.PSTATE.C, nil
	case 3:
		return c.PSTATE.V, nil
	default:
		return false, fmt.Errorf("cpu: emu_assertp: unknown flag id %d", id)
	}
}
