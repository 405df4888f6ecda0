package cpu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/asm"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/bus"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/linker"
)

func newTestMachine(t *testing.T, src string) (*CPU, *bus.Bus, uint32) {
	t.Helper()
	obj, err := asm.Assemble(src)
	require.NoError(t, err)

	b := bus.New(nil)
	require.NoError(t, b.Mount(bus.NewRAM("ram", 0, 0x10000), false))

	entry, err := linker.Link(obj, b, 0x1000, nil)
	require.NoError(t, err)

	c := New(b, 64, nil)
	c.PC = entry
	return c, b, entry
}

func TestAddSubFlagsAndHalt(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x0, #5
	add x1, x0, #3
	subs x2, x0, x0
	hlt
`)
	require.NoError(t, c.Run(0, 100))
	require.True(t, c.Halted())
	require.EqualValues(t, 5, c.Regs[0])
	require.EqualValues(t, 8, c.Regs[1])
	require.EqualValues(t, 0, c.Regs[2])
	require.True(t, c.PSTATE.Z)
	require.True(t, c.PSTATE.C, "a-a must report no borrow")
}

func TestBranchLoop(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x0, #0
loop:
	add x0, x0, #1
	cmp x0, #3
	bne loop
	hlt
`)
	require.NoError(t, c.Run(0, 100))
	require.True(t, c.Halted())
	require.EqualValues(t, 3, c.Regs[0])
}

func TestBlSetsLinkRegisterAndRetReturns(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	bl fn
	hlt
fn:
	mov x3, #9
	ret
`)
	require.NoError(t, c.Run(0, 100))
	require.True(t, c.Halted())
	require.EqualValues(t, 9, c.Regs[3])
}

func TestLoadStoreRoundTrip(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x0, #0x2000
	mov x1, #0x7B
	str x1, [x0]
	ldr x2, [x0]
	hlt
`)
	require.NoError(t, c.Run(0, 100))
	require.EqualValues(t, 0x7B, c.Regs[2])
}

func TestPostIncAddressing(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x0, #0x2000
	mov x1, #1
	str x1, [x0], #4
	mov x2, #2
	str x2, [x0], #4
	hlt
`)
	require.NoError(t, c.Run(0, 100))
	require.EqualValues(t, 0x2008, c.Regs[0])

	v1, err := c.Bus.ReadWord(0x2000)
	require.NoError(t, err)
	require.EqualValues(t, 1, v1)
	v2, err := c.Bus.ReadWord(0x2004)
	require.NoError(t, err)
	require.EqualValues(t, 2, v2)
}

func TestAtomicSwap(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x0, #0x2000
	mov x1, #42
	str x1, [x0]
	mov x2, #99
	swp x3, x2, x0
	hlt
`)
	require.NoError(t, c.Run(0, 100))
	require.EqualValues(t, 42, c.Regs[3], "swp must return the prior value")
	v, err := c.Bus.ReadWord(0x2000)
	require.NoError(t, err)
	require.EqualValues(t, 99, v, "swp must write the new value")
}

func TestReservedFloatOpcodeRaisesBadInstr(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	vadd_f32
`)
	err := c.Run(0, 10)
	require.ErrorIs(t, err, isa.ErrBadInstr)
}

func TestSwiPrintRIntrinsic(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	mov x5, #77
	mov x0, #5
	swi #1001
	hlt
`)
	var out bytes.Buffer
	c.Out = &out
	require.NoError(t, c.Run(0, 100))
	require.Contains(t, out.String(), "x5")
}

func TestSwiUnknownNumberIsBadSyscall(t *testing.T) {
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	swi #9999
	hlt
`)
	err := c.Run(0, 100)
	require.ErrorIs(t, err, ErrBadSyscall)
}

func TestAdrpLo12FormsAbsoluteAddress(t *testing.T) {
	// The canonical two-instruction idiom spec.md §3/§4.11/Glossary name:
	// adrp loads the containing page, and a format-O add carrying an
	// O_LO12-relocated immediate folds in the symbol's low 12 bits.
	c, _, _ := newTestMachine(t, `
.global _start
.text
_start:
	adrp x0, #:hi20:value
	add x0, x0, #:lo12:value
	ldr x1, [x0]
	hlt
.data
value:
	.word 0x1234
`)
	require.NoError(t, c.Run(0, 100))
	require.EqualValues(t, 0x1234, c.Regs[1])
}
