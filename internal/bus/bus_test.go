package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMountRejectsOverlappingDevices(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Mount(NewRAM("ram", 0, 0x1000), false))
	err := b.Mount(NewRAM("ram2", 0x800, 0x1000), false)
	require.ErrorIs(t, err, ErrConflictAddresses)
}

func TestByteWordReadWriteRoundTrip(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Mount(NewRAM("ram", 0, 0x1000), false))

	require.NoError(t, b.WriteWord(0x100, 0xDEADBEEF))
	got, err := b.ReadWord(0x100)
	require.NoError(t, err)
	require.EqualValues(t, 0xDEADBEEF, got)

	require.NoError(t, b.WriteHword(0x200, 0xBEEF))
	gotH, err := b.ReadHword(0x200)
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, gotH)

	require.NoError(t, b.WriteByte(0x300, 0x7A))
	gotB, err := b.ReadByte(0x300)
	require.NoError(t, err)
	require.EqualValues(t, 0x7A, gotB)
}

func TestWriteToROMIsDenied(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Mount(NewROM("rom", 0xF000_0000, make([]byte, 0x100)), false))

	err := b.WriteByte(0xF000_0010, 0x1)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestReadUnmappedAddressErrors(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Mount(NewRAM("ram", 0, 0x100), false))

	_, err := b.ReadByte(0x1000)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

type fakeMMU struct {
	offset uint32
	dirty  []uint32
}

func (f *fakeMMU) MapAddress(va uint32) (uint32, error) { return va + f.offset, nil }
func (f *fakeMMU) MarkDirty(va uint32)                  { f.dirty = append(f.dirty, va) }

func TestMemoryMappedRegionRoutesThroughTranslator(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Mount(NewRAM("ram", 0, 0x2000), true))
	mmu := &fakeMMU{offset: 0x1000}
	b.BindMMU(mmu)

	require.NoError(t, b.WriteByte(0x10, 0x42))
	got, err := b.ReadByte(0x10)
	require.NoError(t, err)
	require.EqualValues(t, 0x42, got)
	require.Contains(t, mmu.dirty, uint32(0x10))
}
