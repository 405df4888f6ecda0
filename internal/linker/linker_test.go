package linker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/asm"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/bus"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
)

func TestLinkPatchesBranchAndWritesImage(t *testing.T) {
	src := `
.global _start
.text
_start:
	b target
target:
	mov x0, #5
`
	obj, err := asm.Assemble(src)
	require.NoError(t, err)

	b := bus.New(nil)
	require.NoError(t, b.Mount(bus.NewRAM("ram", 0, 0x10000), false))

	entry, err := Link(obj, b, 0x1000, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0x1000, entry)

	word, err := readWord(b, 0x1000)
	require.NoError(t, err)
	// The assembler's pass 2 resolved the branch; the image carries its
	// offset field pointing 1 instruction (4 bytes) forward.
	require.EqualValues(t, 1, word&0x3FFFFF)
}

func TestLinkMissingStartErrors(t *testing.T) {
	src := `
.text
foo:
	mov x0, #1
`
	obj, err := asm.Assemble(src)
	require.NoError(t, err)

	b := bus.New(nil)
	require.NoError(t, b.Mount(bus.NewRAM("ram", 0, 0x10000), false))

	_, err = Link(obj, b, 0x1000, nil)
	require.ErrorIs(t, err, ErrMissingEntry)
}

func TestLinkUndefinedSymbolErrors(t *testing.T) {
	src := `
.global _start
.text
_start:
	adrp x0, #:hi20:undefined_external
`
	obj, err := asm.Assemble(src)
	require.NoError(t, err)

	b := bus.New(nil)
	require.NoError(t, b.Mount(bus.NewRAM("ram", 0, 0x10000), false))

	_, err = Link(obj, b, 0x1000, nil)
	require.ErrorIs(t, err, ErrUndefinedSymbol)
}

func readWord(b *bus.Bus, va uint32) (uint32, error) {
	var buf [4]byte
	for i := range buf {
		v, err := b.ReadByte(va + uint32(i))
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
