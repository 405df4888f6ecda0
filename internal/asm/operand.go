package asm

import (
	"strings"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/token"
)

// RelocRef names a symbol an immediate operand defers to a relocation
// instead of encoding directly — the `#:lo12:NAME` family of source
// forms (spec.md §6).
type RelocRef struct {
	Kind isa.RelocKind
	Name string
	Tok  token.Token
}

var relocHintKind = map[string]isa.RelocKind{
	"lo12": isa.RelocO_LO12,
	"hi20": isa.RelocADRP_HI20,
	"lo19": isa.RelocMOV_LO19,
	"hi13": isa.RelocMOV_HI13,
}

func (p *Parser) parseRegisterOperand() (uint8, error) {
	t := p.cur()
	if t.Kind != token.KindRegister {
		return 0, p.errAt(t.Line, t.Col, ErrUnexpectedToken, "expected register, got %q", t.Text)
	}
	p.advance()
	switch t.Text {
	case "sp":
		return isa.RegSP, nil
	case "lr":
		return isa.RegLR, nil
	case "xzr":
		return isa.RegZero, nil
	default:
		n := 0
		for _, r := range t.Text[1:] {
			n = n*10 + int(r-'0')
		}
		return uint8(n), nil
	}
}

// parseImmediateOperand consumes `#imm` or `#:kind:NAME` and returns
// either a literal value or a RelocRef (mutually exclusive: rel != nil
// means the literal value is meaningless and will be patched in later).
func (p *Parser) parseImmediateOperand() (int64, *RelocRef, error) {
	if err := p.expectPunct("#"); err != nil {
		return 0, nil, err
	}

	if p.cur().Kind == token.KindPunct && p.cur().Text == ":" {
		p.advance()
		kindTok := p.advance()
		kind, ok := relocHintKind[strings.ToLower(kindTok.Text)]
		if !ok {
			return 0, nil, p.errAt(kindTok.Line, kindTok.Col, ErrUnexpectedToken, "unknown relocation hint %q", kindTok.Text)
		}
		if err := p.expectPunct(":"); err != nil {
			return 0, nil, err
		}
		nameTok := p.advance()
		return 0, &RelocRef{Kind: kind, Name: nameTok.Text, Tok: nameTok}, nil
	}

	v, _, err := p.parseIntOperand()
	if err != nil {
		return 0, nil, err
	}
	return v, nil, nil
}

// parseOptionalShift consumes an optional `lsl|lsr|asr|ror #N` suffix,
// defaulting to LSL #0 when absent.
func (p *Parser) parseOptionalShift() (isa.ShiftType, uint8, error) {
	if p.cur().Kind != token.KindShift {
		return isa.ShiftLSL, 0, nil
	}
	shiftTok := p.advance()
	st, _ := isa.LookupShiftType(shiftTok.Text)
	amt, amtTok, err := func() (int64, token.Token, error) {
		if err := p.expectPunct("#"); err != nil {
			return 0, token.Token{}, err
		}
		return p.parseIntOperand()
	}()
	if err != nil {
		return 0, 0, err
	}
	if amt < 0 || amt >= 32 {
		return 0, 0, p.errAt(amtTok.Line, amtTok.Col, ErrOutOfRangeImmediate, "shift amount %d must be < 32", amt)
	}
	return st, uint8(amt), nil
}

// MemOperand is the parsed form of the `[Xn ...]` addressing grammar
// spec.md §4.6 defines for format-M instructions.
type MemOperand struct {
	Rn       uint8
	ImmFlag  bool
	Imm      int64
	Rel      *RelocRef
	Rm       uint8
	Shift    isa.ShiftType
	ShiftAmt uint8
	AddrMode isa.AddrMode
}

func (p *Parser) parseMemOperand() (MemOperand, error) {
	if err := p.expectPunct("["); err != nil {
		return MemOperand{}, err
	}
	rn, err := p.parseRegisterOperand()
	if err != nil {
		return MemOperand{}, err
	}

	if p.cur().Kind == token.KindPunct && p.cur().Text == "]" {
		p.advance()
		if p.cur().Kind == token.KindPunct && p.cur().Text == "," {
			p.advance()
			return p.parsePostIncOperand(rn)
		}
		return MemOperand{Rn: rn, ImmFlag: true, AddrMode: isa.AddrOffset}, nil
	}

	if err := p.expectPunct(","); err != nil {
		return MemOperand{}, err
	}

	op := MemOperand{Rn: rn}
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, rel, err := p.parseImmediateOperand()
		if err != nil {
			return MemOperand{}, err
		}
		op.ImmFlag = true
		op.Imm = imm
		op.Rel = rel
	} else {
		rm, err := p.parseRegisterOperand()
		if err != nil {
			return MemOperand{}, err
		}
		shiftType, shiftAmt, err := p.parseOptionalShift()
		if err != nil {
			return MemOperand{}, err
		}
		op.Rm = rm
		op.Shift = shiftType
		op.ShiftAmt = shiftAmt
	}

	if err := p.expectPunct("]"); err != nil {
		return MemOperand{}, err
	}
	op.AddrMode = isa.AddrOffset
	if p.cur().Kind == token.KindPunct && p.cur().Text == "!" {
		p.advance()
		op.AddrMode = isa.AddrPreInc
	}
	return op, nil
}

func (p *Parser) parsePostIncOperand(rn uint8) (MemOperand, error) {
	op := MemOperand{Rn: rn, AddrMode: isa.AddrPostInc}
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, rel, err := p.parseImmediateOperand()
		if err != nil {
			return MemOperand{}, err
		}
		op.ImmFlag = true
		op.Imm = imm
		op.Rel = rel
		return op, nil
	}
	rm, err := p.parseRegisterOperand()
	if err != nil {
		return MemOperand{}, err
	}
	shiftType, shiftAmt, err := p.parseOptionalShift()
	if err != nil {
		return MemOperand{}, err
	}
	op.Rm = rm
	op.Shift = shiftType
	op.ShiftAmt = shiftAmt
	return op, nil
}
