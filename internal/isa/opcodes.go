// Package isa is the canonical EMU32 instruction codec: the single mapping
// between mnemonic+operand forms and 32-bit machine words that the
// assembler, the disassembler and the CPU all share (spec.md §4.3). A
// 64-entry table indexed by the 6-bit primary opcode plays the role the
// teacher gave its strToInstrMap/instrToStrMap pair (vm/bytecode.go), just
// generalized from one flat byte to nine fixed-width instruction formats.
package isa

import "fmt"

// Format identifies one of the spec's nine fixed 32-bit layouts.
type Format uint8

const (
	FormatO Format = iota
	FormatO1
	FormatO2
	FormatO3
	FormatM
	FormatM1
	FormatM2
	FormatB1
	FormatB2
	// FormatNone covers opcodes with no operand fields at all (nop, hlt).
	FormatNone
	// FormatReservedFP covers the floating point opcodes that decode
	// successfully but have no execution semantics (spec.md §9).
	FormatReservedFP
)

func (f Format) String() string {
	switch f {
	case FormatO:
		return "O"
	case FormatO1:
		return "O1"
	case FormatO2:
		return "O2"
	case FormatO3:
		return "O3"
	case FormatM:
		return "M"
	case FormatM1:
		return "M1"
	case FormatM2:
		return "M2"
	case FormatB1:
		return "B1"
	case FormatB2:
		return "B2"
	case FormatNone:
		return "NONE"
	case FormatReservedFP:
		return "FP"
	default:
		return "?"
	}
}

// Opcode is the 6-bit primary opcode (bits 31..26 of every instruction
// word).
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpRsb
	OpAdc
	OpSbc
	OpRsc
	OpMul
	OpAnd
	OpOrr
	OpEor
	OpBic

	OpLsl
	OpLsr
	OpAsr
	OpRor

	OpUmull
	OpSmull

	OpMov
	OpMvn

	OpLdr
	OpStr
	OpLdrb
	OpStrb
	OpLdrh
	OpStrh

	OpSwp
	OpSwpb
	OpSwph

	OpAdrp

	OpB
	OpBl
	OpSwi

	OpBx
	OpBlx

	OpNop
	OpHlt

	OpVaddF32
	OpVsubF32
	OpVmulF32
	OpVdivF32

	opcodeCount
)

const maxOpcodes = 64

func init() {
	if opcodeCount > maxOpcodes {
		panic("isa: opcode table overflowed the 6-bit primary opcode space")
	}
}

// opInfo is the per-opcode metadata: mnemonic text and instruction format.
// This table *is* the dispatch table spec.md §9 calls for — encoder,
// decoder and disassembler all index into it instead of keeping three
// separate parallel maps.
type opInfo struct {
	mnemonic string
	format   Format
	// setsFlagsSuffix is true for opcodes whose "S" bit is exposed in
	// assembly as a trailing 's' on the mnemonic (adds, subs, ands, ...).
	setsFlagsSuffix bool
}

var opTable = [maxOpcodes]opInfo{
	OpAdd:   {"add", FormatO, true},
	OpSub:   {"sub", FormatO, true},
	OpRsb:   {"rsb", FormatO, true},
	OpAdc:   {"adc", FormatO, true},
	OpSbc:   {"sbc", FormatO, true},
	OpRsc:   {"rsc", FormatO, true},
	OpMul:   {"mul", FormatO, true},
	OpAnd:   {"and", FormatO, true},
	OpOrr:   {"orr", FormatO, true},
	OpEor:   {"eor", FormatO, true},
	OpBic:   {"bic", FormatO, true},

	OpLsl: {"lsl", FormatO1, false},
	OpLsr: {"lsr", FormatO1, false},
	OpAsr: {"asr", FormatO1, false},
	OpRor: {"ror", FormatO1, false},

	OpUmull: {"umull", FormatO2, true},
	OpSmull: {"smull", FormatO2, true},

	OpMov: {"mov", FormatO3, true},
	OpMvn: {"mvn", FormatO3, true},

	OpLdr:  {"ldr", FormatM, false},
	OpStr:  {"str", FormatM, false},
	OpLdrb: {"ldrb", FormatM, false},
	OpStrb: {"strb", FormatM, false},
	OpLdrh: {"ldrh", FormatM, false},
	OpStrh: {"strh", FormatM, false},

	OpSwp:  {"swp", FormatM1, false},
	OpSwpb: {"swpb", FormatM1, false},
	OpSwph: {"swph", FormatM1, false},

	OpAdrp: {"adrp", FormatM2, false},

	OpB:   {"b", FormatB1, false},
	OpBl:  {"bl", FormatB1, false},
	OpSwi: {"swi", FormatB1, false},

	OpBx:  {"bx", FormatB2, false},
	OpBlx: {"blx", FormatB2, false},

	OpNop: {"nop", FormatNone, false},
	OpHlt: {"hlt", FormatNone, false},

	OpVaddF32: {"vadd_f32", FormatReservedFP, false},
	OpVsubF32: {"vsub_f32", FormatReservedFP, false},
	OpVmulF32: {"vmul_f32", FormatReservedFP, false},
	OpVdivF32: {"vdiv_f32", FormatReservedFP, false},
}

var mnemonicToOp map[string]Opcode

func init() {
	mnemonicToOp = make(map[string]Opcode, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		info := opTable[op]
		if info.mnemonic == "" {
			continue
		}
		mnemonicToOp[info.mnemonic] = op
	}
}

// Mnemonic returns the base mnemonic for an opcode (without any "s"
// suffix or condition code).
func (op Opcode) Mnemonic() string {
	if int(op) >= len(opTable) {
		return "?unknown?"
	}
	return opTable[op].mnemonic
}

func (op Opcode) Format() Format {
	if int(op) >= len(opTable) {
		return FormatNone
	}
	return opTable[op].format
}

// SetsFlagsSuffix reports whether this opcode's mnemonic gains a trailing
// 's' in assembly text when its S bit is set (add -> adds, and -> ands).
func (op Opcode) SetsFlagsSuffix() bool {
	if int(op) >= len(opTable) {
		return false
	}
	return opTable[op].setsFlagsSuffix
}

// LookupMnemonic resolves a bare mnemonic (no condition suffix, no 's'
// flags suffix) to its Opcode.
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicToOp[name]
	return op, ok
}

func (op Opcode) String() string {
	return op.Mnemonic()
}

// IsFloatReserved reports whether op is one of the decode-only floating
// point opcodes that must raise BadInstr at execution time (spec.md §9).
func (op Opcode) IsFloatReserved() bool {
	return op.Format() == FormatReservedFP
}

// ShiftType selects the barrel-shift operation in formats O and M.
type ShiftType uint8

const (
	ShiftLSL ShiftType = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

func (s ShiftType) String() string {
	switch s {
	case ShiftLSL:
		return "lsl"
	case ShiftLSR:
		return "lsr"
	case ShiftASR:
		return "asr"
	case ShiftROR:
		return "ror"
	default:
		return fmt.Sprintf("?shift%d?", uint8(s))
	}
}

func LookupShiftType(name string) (ShiftType, bool) {
	switch name {
	case "lsl":
		return ShiftLSL, true
	case "lsr":
		return ShiftLSR, true
	case "asr":
		return ShiftASR, true
	case "ror":
		return ShiftROR, true
	default:
		return 0, false
	}
}

// AddrMode selects how a format-M base register is (not) updated by the
// memory access.
type AddrMode uint8

const (
	AddrOffset AddrMode = iota
	AddrPreInc
	AddrPostInc
)

// Cond is one of the 16 EMU32 condition codes (spec.md §4.3).
type Cond uint8

const (
	CondEQ Cond = iota
	CondNE
	CondCS // HS alias
	CondCC // LO alias
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV
)

var condNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "al", "nv",
}

func (c Cond) String() string {
	if int(c) >= len(condNames) {
		return "?cond?"
	}
	return condNames[c]
}

func LookupCond(name string) (Cond, bool) {
	switch name {
	case "eq":
		return CondEQ, true
	case "ne":
		return CondNE, true
	case "cs", "hs":
		return CondCS, true
	case "cc", "lo":
		return CondCC, true
	case "mi":
		return CondMI, true
	case "pl":
		return CondPL, true
	case "vs":
		return CondVS, true
	case "vc":
		return CondVC, true
	case "hi":
		return CondHI, true
	case "ls":
		return CondLS, true
	case "ge":
		return CondGE, true
	case "lt":
		return CondLT, true
	case "gt":
		return CondGT, true
	case "le":
		return CondLE, true
	case "al":
		return CondAL, true
	case "nv":
		return CondNV, true
	default:
		return 0, false
	}
}

// Eval decides whether the condition holds given the current NZCV flags.
func (c Cond) Eval(n, z, cf, v bool) bool {
	switch c {
	case CondEQ:
		return z
	case CondNE:
		return !z
	case CondCS:
		return cf
	case CondCC:
		return !cf
	case CondMI:
		return n
	case CondPL:
		return !n
	case CondVS:
		return v
	case CondVC:
		return !v
	case CondHI:
		return cf && !z
	case CondLS:
		return !cf || z
	case CondGE:
		return n == v
	case CondLT:
		return n != v
	case CondGT:
		return !z && n == v
	case CondLE:
		return z || n != v
	case CondAL:
		return true
	case CondNV:
		return false
	default:
		return false
	}
}

const (
	// RegZero is the always-zero, write-discarded register (xzr / x31).
	RegZero uint8 = 31
	// RegSP is the conventional stack pointer register (x30).
	RegSP uint8 = 30
	// RegLR is the conventional link register used by bl/ret (x29).
	RegLR uint8 = 29
	// NumRegisters is the size of the general-purpose register file.
	NumRegisters = 32
)
