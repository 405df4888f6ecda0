package objfile

import "github.com/Alientation/32-bit-Emulator-sub001/internal/isa"

// Relocation is a deferred patch to an instruction word: at offset
// (section-relative bytes) in whichever section it is filed under,
// apply Kind with Symbol's eventual value and Shift as addend.
//
// Token is the token-stream cursor recorded at emission time — the
// key under which pass 1 snapshots the scopes open when the reference
// was parsed, for pass 2 to search (spec.md §4.6, §9). It only matters in memory
// during a single assembler run and is never serialised.
type Relocation struct {
	Offset uint32
	Symbol uint32 // symbol table index
	Kind   isa.RelocKind
	Shift  uint32 // addend
	Token  int
}
