package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFreePageAllocatesDistinctPages(t *testing.T) {
	d := New(4)
	p0, err := d.GetFreePage()
	require.NoError(t, err)
	p1, err := d.GetFreePage()
	require.NoError(t, err)
	require.NotEqual(t, p0, p1)
	require.EqualValues(t, 2, d.Free())
}

func TestReadWritePageRoundTrip(t *testing.T) {
	d := New(2)
	p, err := d.GetFreePage()
	require.NoError(t, err)

	want := []byte{1, 2, 3, 4}
	require.NoError(t, d.WritePage(p, want))

	got, err := d.ReadPage(p)
	require.NoError(t, err)
	require.Len(t, got, PageSize)
	require.Equal(t, want, got[:len(want)])
	for _, b := range got[len(want):] {
		require.Zero(t, b)
	}
}

func TestReturnPageMakesItAllocatableAgain(t *testing.T) {
	d := New(1)
	p, err := d.GetFreePage()
	require.NoError(t, err)
	require.Zero(t, d.Free())

	require.NoError(t, d.ReturnPage(p))
	require.EqualValues(t, 1, d.Free())

	again, err := d.GetFreePage()
	require.NoError(t, err)
	require.Equal(t, p, again)
}

func TestGetFreePageErrorsWhenExhausted(t *testing.T) {
	d := New(1)
	_, err := d.GetFreePage()
	require.NoError(t, err)

	_, err = d.GetFreePage()
	require.Error(t, err)
}

func TestInvalidPageNumberErrors(t *testing.T) {
	d := New(2)
	_, err := d.ReadPage(5)
	require.ErrorIs(t, err, ErrInvalidPage)

	err = d.WritePage(5, nil)
	require.ErrorIs(t, err, ErrInvalidPage)

	err = d.ReturnPage(5)
	require.ErrorIs(t, err, ErrInvalidPage)
}
