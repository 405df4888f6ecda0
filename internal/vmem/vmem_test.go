package vmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapAddressIdentityWithNoBoundProcess(t *testing.T) {
	m := New(4, 16, nil)
	pa, err := m.MapAddress(0x1234)
	require.NoError(t, err)
	require.EqualValues(t, 0x1234, pa)
}

func TestMapAddressDemandPagesInExactlyOneFrameOnFirstRead(t *testing.T) {
	m := New(4, 16, nil)
	m.BeginProcess(1, 0, 0x10000)
	require.NoError(t, m.SetProcess(1))

	before := m.disk.Free()
	physBefore := m.physFree.Free()
	_, err := m.MapAddress(0x100)
	require.NoError(t, err)
	after := m.disk.Free()

	// The demand-allocated disk page goes back to swap once the page is
	// copied into its frame, so the net disk count is unchanged.
	require.Equal(t, before, after, "the swapped-in page's disk page must be back in swap")
	require.Equal(t, physBefore-1, m.physFree.Free(), "first read of a page must take exactly one physical frame")

	// A second access to the same page must not allocate again.
	_, err = m.MapAddress(0x104)
	require.NoError(t, err)
	require.Equal(t, after, m.disk.Free())
	require.Equal(t, physBefore-1, m.physFree.Free())
}

func TestMapAddressOutsideProcessRangeErrors(t *testing.T) {
	m := New(4, 16, nil)
	m.BeginProcess(1, 0x1000, 0x2000)
	require.NoError(t, m.SetProcess(1))

	_, err := m.MapAddress(0x500)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEndProcessReturnsAllPages(t *testing.T) {
	m := New(4, 16, nil)
	m.BeginProcess(1, 0, 0x10000)
	require.NoError(t, m.SetProcess(1))

	diskBefore := m.disk.Free()
	physBefore := m.physFree.Free()

	// Touch two distinct pages; both end up resident in frames, and their
	// demand-allocated disk pages are already back in swap.
	_, err := m.MapAddress(0x0)
	require.NoError(t, err)
	_, err = m.MapAddress(0x1000)
	require.NoError(t, err)

	require.NoError(t, m.EndProcess(1))

	require.Equal(t, diskBefore, m.disk.Free(), "disk pages must be fully reclaimed")
	require.Equal(t, physBefore, m.physFree.Free(), "physical pages must be fully reclaimed")
}

func TestCLOCKEvictsUnreferencedPageUnderPressure(t *testing.T) {
	// Only one physical frame available, three virtual pages touched:
	// the third touch must evict one of the first two.
	m := New(1, 16, nil)
	m.BindFrames(NewRAMFrames(1))
	m.BeginProcess(1, 0, 0x10000)
	require.NoError(t, m.SetProcess(1))

	_, err := m.MapAddress(0x0)
	require.NoError(t, err)
	require.Len(t, m.clock, 1)

	// Clear the referenced bit the way a later unrelated access would via
	// CLOCK's sweep, so the next fault can evict this frame immediately.
	for p := range m.refd {
		m.refd[p] = false
	}

	_, err = m.MapAddress(0x1000)
	require.NoError(t, err)
	require.Len(t, m.clock, 1, "single-frame system must evict to admit a new page")
}

func TestSetProcessUnknownPidErrors(t *testing.T) {
	m := New(4, 16, nil)
	err := m.SetProcess(99)
	require.ErrorIs(t, err, ErrUnknownProcess)
}

func TestMarkDirtyWritesBackOnEviction(t *testing.T) {
	m := New(1, 16, nil)
	m.BindFrames(NewRAMFrames(1))
	m.BeginProcess(1, 0, 0x10000)
	require.NoError(t, m.SetProcess(1))

	pa, err := m.MapAddress(0x0)
	require.NoError(t, err)
	m.frames.WriteFrame(pa/PageSize, []byte{0xAA})
	m.MarkDirty(0x0)

	for p := range m.refd {
		m.refd[p] = false
	}

	_, err = m.MapAddress(0x1000)
	require.NoError(t, err)

	pte := m.processes[1].table[0]
	require.True(t, pte.ResidentOnDisk)

	pa2, err := m.MapAddress(0x0)
	require.NoError(t, err)
	got := m.frames.ReadFrame(pa2 / PageSize)
	require.Equal(t, byte(0xAA), got[0], "dirty page contents must survive the eviction round trip")
}
