package bitutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldUExtractsField(t *testing.T) {
	x := uint32(0xABCD1234)
	got := FieldU(x, 8, 8)
	require.Equal(t, uint32(0x12), got)
}

func TestFieldSSignExtends(t *testing.T) {
	// 5-bit field with top bit set should sign extend to -1
	require.Equal(t, int32(-1), FieldS(0x1F, 0, 5))
	require.Equal(t, int32(15), FieldS(0x0F, 0, 5))
}

func TestPutFieldThenFieldURoundTrips(t *testing.T) {
	var x uint32
	x = PutField(x, 4, 6, 0x3F)
	require.Equal(t, uint32(0x3F), FieldU(x, 4, 6))
	require.Equal(t, uint32(0), FieldU(x, 0, 4))
}

func TestMaskClear(t *testing.T) {
	x := uint32(0xFFFFFFFF)
	cleared := MaskClear(x, 0, 12)
	require.Equal(t, uint32(0xFFFFF000), cleared)
}

func TestPackWordRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PackWord(0x01020304, buf)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf)
	require.Equal(t, uint32(0x01020304), UnpackWord(buf))
}

func TestSignExtend22ForBranchOffsets(t *testing.T) {
	require.Equal(t, int32(2), SignExtend(2, 22))
	require.Equal(t, int32(-2), SignExtend(0x3FFFFE, 22))
}
