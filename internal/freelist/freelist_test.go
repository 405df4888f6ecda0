package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateThenFullReleaseReconverges(t *testing.T) {
	fl := New(100, 100)

	a, err := fl.Allocate(40)
	require.NoError(t, err)
	require.Equal(t, uint64(100), a)

	b, err := fl.Allocate(40)
	require.NoError(t, err)
	require.Equal(t, uint64(140), b)

	require.NoError(t, fl.Release(a, 40))
	require.NoError(t, fl.Release(b, 40))

	require.True(t, fl.IsFullyFree())
}

func TestReleaseOutOfRange(t *testing.T) {
	fl := New(0, 10)
	require.ErrorIs(t, fl.Release(20, 5), ErrInvalidRange)
}

func TestReleaseDoubleFree(t *testing.T) {
	fl := New(0, 10)
	a, err := fl.Allocate(10)
	require.NoError(t, err)
	require.NoError(t, fl.Release(a, 10))
	// entire domain is free again; releasing part of it overlaps
	err = fl.Release(0, 5)
	require.ErrorIs(t, err, ErrDoubleFree)
}

func TestAllocateNotEnoughSpace(t *testing.T) {
	fl := New(0, 10)
	_, err := fl.Allocate(5)
	require.NoError(t, err)
	_, err = fl.Allocate(6)
	require.ErrorIs(t, err, ErrNotEnoughSpace)
}

func TestCanFit(t *testing.T) {
	fl := New(0, 10)
	require.True(t, fl.CanFit(10))
	_, err := fl.Allocate(5)
	require.NoError(t, err)
	require.True(t, fl.CanFit(5))
	require.False(t, fl.CanFit(6))
}

func TestReleaseAllResets(t *testing.T) {
	fl := New(0, 64)
	_, err := fl.Allocate(64)
	require.NoError(t, err)
	require.False(t, fl.CanFit(1))
	fl.ReleaseAll()
	require.True(t, fl.IsFullyFree())
}
