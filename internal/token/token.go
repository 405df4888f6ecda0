// Package token turns EMU32 assembly source text into a flat stream of
// typed tokens for the assembler's two passes. The lexer itself is a
// greedy longest-match scanner in the spirit of the teacher's
// preprocessLine/parseInputLine pair (vm/compile.go, vm/parse.go),
// generalized from whitespace-split opcode lines to a proper character
// scanner that understands EMU32's directives, registers, conditions,
// shifts and comment forms (spec.md §5).
package token

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindEOF Kind = iota
	KindNewline
	KindIdentifier // labels, symbol references
	KindMnemonic   // recognised instruction mnemonic (possibly with s/cond suffix)
	KindRegister   // x0..x31, sp, lr, xzr
	KindCondition  // .eq, .ne, ... suffix already split off a mnemonic
	KindShift      // lsl, lsr, asr, ror
	KindDirective  // .global, .text, .byte, ...
	KindNumber     // integer literal, any base
	KindString     // "..."
	KindChar       // '.'
	KindPunct      // , [ ] ! : # = + -
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindNewline:
		return "NEWLINE"
	case KindIdentifier:
		return "IDENT"
	case KindMnemonic:
		return "MNEMONIC"
	case KindRegister:
		return "REGISTER"
	case KindCondition:
		return "CONDITION"
	case KindShift:
		return "SHIFT"
	case KindDirective:
		return "DIRECTIVE"
	case KindNumber:
		return "NUMBER"
	case KindString:
		return "STRING"
	case KindChar:
		return "CHAR"
	case KindPunct:
		return "PUNCT"
	default:
		return "?"
	}
}

// Token is one lexeme plus its source location, used both by the
// assembler to build diagnostics and by relocation records to remember
// where in the source a fix-up originated.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}

var directives = map[string]bool{
	".global": true, ".extern": true, ".text": true, ".data": true, ".bss": true,
	".byte": true, ".dbyte": true, ".word": true, ".dword": true,
	".sbyte": true, ".sdbyte": true, ".sword": true, ".sdword": true,
	".ascii": true, ".asciz": true, ".align": true, ".advance": true,
	".org": true, ".scope": true, ".scend": true,
}

// IsDirective reports whether text is a recognised assembler directive.
func IsDirective(text string) bool {
	return directives[strings.ToLower(text)]
}

var registerNames = map[string]bool{"sp": true, "lr": true, "xzr": true}

// IsRegister reports whether text names a general-purpose register:
// x0..x31 or one of the sp/lr/xzr aliases.
func IsRegister(text string) bool {
	lower := strings.ToLower(text)
	if registerNames[lower] {
		return true
	}
	if len(lower) < 2 || lower[0] != 'x' {
		return false
	}
	n := 0
	for _, r := range lower[1:] {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n <= 31
}
