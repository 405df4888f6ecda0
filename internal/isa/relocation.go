package isa

import "github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"

// RelocKind identifies one of the five bitfield patch rules the
// assembler records during pass 1 and either the assembler (pass 2,
// local/locally-scoped symbols) or the linker (everything else)
// resolves once a symbol's final value is known.
type RelocKind uint8

const (
	// RelocO_LO12 patches bits 0..11 of a format-O instruction's imm14
	// operand (the "adrp + O_LO12 add" idiom, spec.md §3/§4.11) with the
	// low 12 bits of the symbol's address.
	RelocO_LO12 RelocKind = iota
	// RelocADRP_HI20 patches the imm20 field of an adrp with bits
	// 31..12 of the symbol's address (its containing 4KiB page).
	RelocADRP_HI20
	// RelocMOV_LO19 patches the imm19 field of a format-O3 mov with
	// the low 19 bits of the symbol's address.
	RelocMOV_LO19
	// RelocMOV_HI13 patches the low 13 bits of a format-O3 mov's imm14
	// field with bits 31..19 of the symbol's address.
	RelocMOV_HI13
	// RelocB_OFFSET22 patches the simm22 field of a format-B1 branch
	// with (target-origin)>>2, a PC-relative word-offset. The
	// assembler resolves and strips these itself during pass 2; a
	// branch whose target is still undefined there is an undefined-local
	// assembler error, so the assembler never leaves one in the object
	// file's relocation table.
	RelocB_OFFSET22
)

func (k RelocKind) String() string {
	switch k {
	case RelocO_LO12:
		return "O_LO12"
	case RelocADRP_HI20:
		return "ADRP_HI20"
	case RelocMOV_LO19:
		return "MOV_LO19"
	case RelocMOV_HI13:
		return "MOV_HI13"
	case RelocB_OFFSET22:
		return "B_OFFSET22"
	default:
		return "?reloc?"
	}
}

// PatchWord applies kind to word, folding symVal (and, for
// RelocB_OFFSET22, the instruction's own address) into the appropriate
// bitfield. It returns the patched word.
func PatchWord(word uint32, kind RelocKind, symVal, instrAddr uint32) uint32 {
	switch kind {
	case RelocO_LO12:
		return bitutil.PutField(word, 0, 12, bitutil.FieldU(symVal, 0, 12))
	case RelocADRP_HI20:
		return bitutil.PutField(word, 0, 20, bitutil.FieldU(symVal, 12, 20))
	case RelocMOV_LO19:
		return bitutil.PutField(word, 0, 19, bitutil.FieldU(symVal, 0, 19))
	case RelocMOV_HI13:
		// Only the low 13 bits of the imm14 subfield are meaningful for
		// this relocation; the top bit of imm14 is left untouched.
		return bitutil.PutField(word, 0, 13, bitutil.FieldU(symVal, 19, 13))
	case RelocB_OFFSET22:
		offset := (int64(symVal) - int64(instrAddr)) / 4
		return bitutil.PutField(word, 0, 22, uint32(offset)&0x3FFFFF)
	default:
		return word
	}
}

// BranchTarget recovers the absolute byte address a resolved
// RelocB_OFFSET22 field points at, given the instruction's own address.
// This is also how the CPU computes branch targets at execution time.
func BranchTarget(word uint32, instrAddr uint32) uint32 {
	offset := bitutil.FieldS(word, 0, 22)
	return uint32(int64(instrAddr) + int64(offset)*4)
}
