package asm

import (
	"github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/token"
)

// parseInstruction consumes one KindMnemonic token plus its operands,
// encodes the resulting word and appends it to .text. Any symbolic
// operand (a relocation hint, or a bare label on a branch) is recorded
// as a relocation against a placeholder WEAK symbol; pass 2 resolves
// what it can and leaves the rest for the linker.
func (p *Parser) parseInstruction() error {
	mnemTok := p.advance()
	base, suffix := token.SplitMnemonicSuffix(mnemTok.Text)

	switch base {
	case "cmp", "cmn", "tst", "teq":
		return p.parseCompareAlias(mnemTok, base, suffix)
	case "ret":
		return p.parseRetAlias(mnemTok, suffix)
	}

	op, ok := isa.LookupMnemonic(base)
	if !ok {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%q", mnemTok.Text)
	}

	setFlags, cond, err := p.parseSuffix(mnemTok, op.Format(), suffix)
	if err != nil {
		return err
	}

	switch op.Format() {
	case isa.FormatO:
		return p.parseFormatO(mnemTok, op, setFlags)
	case isa.FormatO1:
		return p.parseFormatO1(mnemTok, op)
	case isa.FormatO2:
		return p.parseFormatO2(mnemTok, op, setFlags)
	case isa.FormatO3:
		return p.parseFormatO3(mnemTok, op, setFlags)
	case isa.FormatM:
		return p.parseFormatM(mnemTok, op)
	case isa.FormatM1:
		return p.parseFormatM1(mnemTok, op)
	case isa.FormatM2:
		return p.parseFormatM2(mnemTok, op)
	case isa.FormatB1:
		return p.parseFormatB1(mnemTok, op, cond)
	case isa.FormatB2:
		return p.parseFormatB2(mnemTok, op, cond)
	case isa.FormatNone, isa.FormatReservedFP:
		return p.emitWord(mnemTok, uint32(op)<<26, isa.RelocKind(0), nil)
	default:
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%q has no known format", mnemTok.Text)
	}
}

// parseSuffix peels the optional set-flags 's' and condition code off a
// mnemonic suffix. Only branch formats (B1/B2) carry a Cond field in
// their word, so a condition letter on any other format is rejected.
func (p *Parser) parseSuffix(at token.Token, format isa.Format, suffix string) (bool, isa.Cond, error) {
	setFlags := false
	rest := suffix
	if len(rest) > 0 && rest[0] == 's' {
		setFlags = true
		rest = rest[1:]
	}

	if format != isa.FormatB1 && format != isa.FormatB2 {
		if rest != "" {
			return false, isa.CondAL, p.errAt(at.Line, at.Col, ErrUnknownMnemonic, "%q: condition suffixes only apply to branches", at.Text)
		}
		return setFlags, isa.CondAL, nil
	}

	if rest == "" {
		return setFlags, isa.CondAL, nil
	}
	cond, ok := isa.LookupCond(rest)
	if !ok {
		return false, isa.CondAL, p.errAt(at.Line, at.Col, ErrUnknownMnemonic, "%q: unknown condition suffix %q", at.Text, rest)
	}
	return setFlags, cond, nil
}

// emitWord appends word to .text and, when rel != nil, records a
// relocation of the given kind against it.
func (p *Parser) emitWord(at token.Token, word uint32, kind isa.RelocKind, rel *RelocRef) error {
	if p.cursor != cursorText {
		return p.errAt(at.Line, at.Col, ErrInstructionOutsideText, "instruction outside .text")
	}
	text := p.obj.Section(objfile.SectionText, "text")
	offset := text.Size
	buf := make([]byte, 4)
	bitutil.PackWord(word, buf)
	p.obj.AppendBytes(objfile.SectionText, "text", buf)

	if rel != nil {
		if err := p.recordRelocation(offset, kind, rel); err != nil {
			return err
		}
	}
	return nil
}

// recordRelocation creates (or reuses) a WEAK placeholder symbol for
// rel.Name and appends a relocation entry, snapshotting the scope stack
// open at this source position so pass 2 can search it innermost-first.
func (p *Parser) recordRelocation(offset uint32, kind isa.RelocKind, rel *RelocRef) error {
	symIdx, err := p.obj.AddSymbol(rel.Name, 0, objfile.BindingWeak, objfile.SectionNone)
	if err != nil {
		return p.errAt(rel.Tok.Line, rel.Tok.Col, ErrMultipleDefinition, "%q", rel.Name)
	}
	tokenCursor := p.pos
	p.obj.AddRelocation(objfile.SectionText, objfile.Relocation{
		Offset: offset,
		Symbol: symIdx,
		Kind:   kind,
		Token:  tokenCursor,
	})
	p.scopeSnapshot[tokenCursor] = append([]int(nil), p.scopeStack...)
	return nil
}

func (p *Parser) expectComma() error { return p.expectPunct(",") }

// --- Format O: add/sub/rsb/adc/sbc/rsc/mul/and/orr/eor/bic ---
// "op Rd, Rn, Rm{, shift #n}" or "op Rd, Rn, #imm14[reloc]"

func (p *Parser) parseFormatO(mnemTok token.Token, op isa.Opcode, setFlags bool) error {
	rd, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rn, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}

	ins := isa.Instruction{Op: op, S: setFlags, Rd: rd, Rn: rn}
	var rel *RelocRef
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, r, err := p.parseImmediateOperand()
		if err != nil {
			return err
		}
		if r == nil && !checkFits(imm, 14, true) && !checkFits(imm, 14, false) {
			return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "%d does not fit in 14 bits", imm)
		}
		ins.ImmFlag = true
		ins.Imm = imm
		rel = r
	} else {
		rm, err := p.parseRegisterOperand()
		if err != nil {
			return err
		}
		shiftType, shiftAmt, err := p.parseOptionalShift()
		if err != nil {
			return err
		}
		ins.Rm = rm
		ins.Shift = shiftType
		ins.ShiftAmt = shiftAmt
	}

	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	kind := isa.RelocKind(0)
	if rel != nil {
		kind = rel.Kind
	}
	return p.emitWord(mnemTok, word, kind, rel)
}

// --- Format O1: lsl/lsr/asr/ror, "op Rd, Rn, #imm5" or "op Rd, Rn, Rm" ---

func (p *Parser) parseFormatO1(mnemTok token.Token, op isa.Opcode) error {
	rd, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rn, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}

	ins := isa.Instruction{Op: op, Rd: rd, Rn: rn}
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, _, err := p.parseImmediateOperand()
		if err != nil {
			return err
		}
		if !checkFits(imm, 5, false) {
			return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "shift amount %d does not fit in 5 bits", imm)
		}
		ins.ImmFlag = true
		ins.ShiftAmt = uint8(imm)
	} else {
		rm, err := p.parseRegisterOperand()
		if err != nil {
			return err
		}
		ins.Rm = rm
	}

	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}

// --- Format O2: umull/smull, "op Rdlo, Rdhi, Rn, Rm" ---

func (p *Parser) parseFormatO2(mnemTok token.Token, op isa.Opcode, setFlags bool) error {
	rdLo, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rdHi, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rn, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rm, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}

	ins := isa.Instruction{Op: op, S: setFlags, Rd: rdLo, Rn: rdHi, Rm: rn, ShiftAmt: rm}
	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}

// --- Format O3: mov/mvn, "op Rd, #imm19[reloc]" or "op Rd, Rn" ---

func (p *Parser) parseFormatO3(mnemTok token.Token, op isa.Opcode, setFlags bool) error {
	rd, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}

	ins := isa.Instruction{Op: op, S: setFlags, Rd: rd}
	var rel *RelocRef
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, r, err := p.parseImmediateOperand()
		if err != nil {
			return err
		}
		if r == nil && !checkFits(imm, 19, true) && !checkFits(imm, 19, false) {
			return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "%d does not fit in 19 bits", imm)
		}
		ins.ImmFlag = true
		ins.Imm = imm
		rel = r
	} else {
		rn, err := p.parseRegisterOperand()
		if err != nil {
			return err
		}
		ins.Rn = rn
	}

	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	kind := isa.RelocKind(0)
	if rel != nil {
		kind = rel.Kind
	}
	return p.emitWord(mnemTok, word, kind, rel)
}

// --- Format M: ldr/str/ldrb/strb/ldrh/strh, "op Rt, [mem]" ---

func (p *Parser) parseFormatM(mnemTok token.Token, op isa.Opcode) error {
	rt, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	mem, err := p.parseMemOperand()
	if err != nil {
		return err
	}

	ins := isa.Instruction{
		Op:       op,
		Rd:       rt,
		Rn:       mem.Rn,
		ImmFlag:  mem.ImmFlag,
		Imm:      mem.Imm,
		Rm:       mem.Rm,
		Shift:    mem.Shift,
		ShiftAmt: mem.ShiftAmt,
		AddrMode: mem.AddrMode,
	}
	if mem.ImmFlag && mem.Rel == nil && !checkFits(mem.Imm, 12, true) {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "%d does not fit in the 12-bit offset", mem.Imm)
	}

	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	kind := isa.RelocKind(0)
	if mem.Rel != nil {
		kind = mem.Rel.Kind
	}
	return p.emitWord(mnemTok, word, kind, mem.Rel)
}

// --- Format M1: swp/swpb/swph, "op Rt, Rn, Rm" ---

func (p *Parser) parseFormatM1(mnemTok token.Token, op isa.Opcode) error {
	rt, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rn, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	rm, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}

	word, err := isa.Encode(isa.Instruction{Op: op, Rd: rt, Rn: rn, Rm: rm})
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}

// --- Format M2: adrp, "adrp Rd, #imm20[:hi20:NAME]" ---

func (p *Parser) parseFormatM2(mnemTok token.Token, op isa.Opcode) error {
	rd, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}
	imm, rel, err := p.parseImmediateOperand()
	if err != nil {
		return err
	}
	if rel == nil && !checkFits(imm, 20, false) {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "%d does not fit in 20 bits", imm)
	}

	word, err := isa.Encode(isa.Instruction{Op: op, Rd: rd, Imm: imm})
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	kind := isa.RelocKind(0)
	if rel != nil {
		kind = rel.Kind
	}
	return p.emitWord(mnemTok, word, kind, rel)
}

// --- Format B1: b/bl/swi ---
// b/bl take a label operand (resolved to a B_OFFSET22 relocation); swi
// takes a plain immediate syscall number.

func (p *Parser) parseFormatB1(mnemTok token.Token, op isa.Opcode, cond isa.Cond) error {
	ins := isa.Instruction{Op: op, Cond: cond}

	if p.cur().Kind == token.KindIdentifier {
		nameTok := p.advance()
		word, err := isa.Encode(ins)
		if err != nil {
			return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
		}
		return p.emitWord(mnemTok, word, isa.RelocB_OFFSET22, &RelocRef{Kind: isa.RelocB_OFFSET22, Name: nameTok.Text, Tok: nameTok})
	}

	imm, _, err := p.parseImmediateOperand()
	if err != nil {
		return err
	}
	if !checkFits(imm, 22, true) {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrOutOfRangeImmediate, "%d does not fit in 22 bits", imm)
	}
	ins.Imm = imm
	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}

// --- Format B2: bx/blx, "op Rd" ---

func (p *Parser) parseFormatB2(mnemTok token.Token, op isa.Opcode, cond isa.Cond) error {
	rd, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	word, err := isa.Encode(isa.Instruction{Op: op, Cond: cond, Rd: rd})
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}

// --- cmp/cmn/tst/teq: synthesise an xzr destination and dispatch to the
// underlying subs/adds/ands/eors encoding. ---

var compareAliasOp = map[string]isa.Opcode{
	"cmp": isa.OpSub,
	"cmn": isa.OpAdd,
	"tst": isa.OpAnd,
	"teq": isa.OpEor,
}

func (p *Parser) parseCompareAlias(mnemTok token.Token, base, suffix string) error {
	op := compareAliasOp[base]
	_, cond, err := p.parseSuffix(mnemTok, isa.FormatO, suffix)
	if err != nil {
		return err
	}
	_ = cond // format O carries no Cond field; parseSuffix already rejected one

	rn, err := p.parseRegisterOperand()
	if err != nil {
		return err
	}
	if err := p.expectComma(); err != nil {
		return err
	}

	ins := isa.Instruction{Op: op, S: true, Rd: isa.RegZero, Rn: rn}
	var rel *RelocRef
	if p.cur().Kind == token.KindPunct && p.cur().Text == "#" {
		imm, r, err := p.parseImmediateOperand()
		if err != nil {
			return err
		}
		ins.ImmFlag = true
		ins.Imm = imm
		rel = r
	} else {
		rm, err := p.parseRegisterOperand()
		if err != nil {
			return err
		}
		shiftType, shiftAmt, err := p.parseOptionalShift()
		if err != nil {
			return err
		}
		ins.Rm = rm
		ins.Shift = shiftType
		ins.ShiftAmt = shiftAmt
	}

	word, err := isa.Encode(ins)
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	kind := isa.RelocKind(0)
	if rel != nil {
		kind = rel.Kind
	}
	return p.emitWord(mnemTok, word, kind, rel)
}

// ret: expands to "bx x29" (spec.md §4.6's link-register convention).

func (p *Parser) parseRetAlias(mnemTok token.Token, suffix string) error {
	_, cond, err := p.parseSuffix(mnemTok, isa.FormatB2, suffix)
	if err != nil {
		return err
	}
	word, err := isa.Encode(isa.Instruction{Op: isa.OpBx, Cond: cond, Rd: isa.RegLR})
	if err != nil {
		return p.errAt(mnemTok.Line, mnemTok.Col, ErrUnknownMnemonic, "%s", err)
	}
	return p.emitWord(mnemTok, word, 0, nil)
}
