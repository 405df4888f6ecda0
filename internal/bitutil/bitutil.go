// Package bitutil holds the bit/bitfield primitives shared by the
// instruction codec, the assembler and the CPU core. Every caller that
// needs to pack or unpack a machine word goes through here so that the
// encoder and decoder are guaranteed to agree on what a bitfield means.
package bitutil

import (
	"encoding/binary"
)

// Bit returns the value (0 or 1) of bit i in x.
func Bit(x uint32, i uint) uint32 {
	return (x >> i) & 1
}

// SetBit returns x with bit i set to v (0 or 1).
func SetBit(x uint32, i uint, v uint32) uint32 {
	if v&1 != 0 {
		return x | (1 << i)
	}
	return x &^ (1 << i)
}

// FieldU extracts a zero-extended bitfield of the given width starting at
// bit lo.
func FieldU(x uint32, lo, width uint) uint32 {
	if width == 0 {
		return 0
	}
	mask := uint32(1)<<width - 1
	return (x >> lo) & mask
}

// FieldS extracts a sign-extended bitfield of the given width starting at
// bit lo.
func FieldS(x uint32, lo, width uint) int32 {
	u := FieldU(x, lo, width)
	signBit := uint32(1) << (width - 1)
	if u&signBit != 0 {
		u |= ^(uint32(1)<<width - 1)
	}
	return int32(u)
}

// MaskClear returns x with the bitfield [lo, lo+width) cleared to zero.
func MaskClear(x uint32, lo, width uint) uint32 {
	if width == 0 {
		return x
	}
	mask := uint32(1)<<width - 1
	return x &^ (mask << lo)
}

// PutField clears [lo, lo+width) in x and writes the low `width` bits of
// value into that span.
func PutField(x uint32, lo, width uint, value uint32) uint32 {
	mask := uint32(1)<<width - 1
	cleared := MaskClear(x, lo, width)
	return cleared | ((value & mask) << lo)
}

// PackHalf/PackWord and their unpack counterparts centralise the
// little-endian byte order spec.md requires throughout the object file and
// system bus.

func PackWord(v uint32, dst []byte) {
	binary.LittleEndian.PutUint32(dst, v)
}

func UnpackWord(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

func PackHalf(v uint16, dst []byte) {
	binary.LittleEndian.PutUint16(dst, v)
}

func UnpackHalf(src []byte) uint16 {
	return binary.LittleEndian.Uint16(src)
}

// SignExtend sign-extends a `width`-bit value (stored in the low bits of
// u) out to a full int32.
func SignExtend(u uint32, width uint) int32 {
	return FieldS(u, 0, width)
}
