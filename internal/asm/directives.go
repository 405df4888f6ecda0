package asm

import (
	"github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/token"
)

func (p *Parser) parseDirective() error {
	dirTok := p.advance()
	switch dirTok.Text {
	case ".global":
		_ = p.advance() // name already captured by prescanGlobals
		return nil
	case ".extern":
		nameTok := p.advance()
		_, err := p.obj.AddSymbol(nameTok.Text, 0, objfile.BindingWeak, objfile.SectionNone)
		return err
	case ".text":
		p.cursor = cursorText
		return nil
	case ".data":
		p.cursor = cursorData
		return nil
	case ".bss":
		p.cursor = cursorBSS
		return nil
	case ".byte":
		return p.parseDataList(dirTok, 1, false, false)
	case ".sbyte":
		return p.parseDataList(dirTok, 1, true, false)
	case ".dbyte":
		return p.parseDataList(dirTok, 2, false, true)
	case ".sdbyte":
		return p.parseDataList(dirTok, 2, true, true)
	case ".word":
		return p.parseDataList(dirTok, 4, false, false)
	case ".sword":
		return p.parseDataList(dirTok, 4, true, false)
	case ".dword":
		return p.parseDataList(dirTok, 8, false, false)
	case ".sdword":
		return p.parseDataList(dirTok, 8, true, false)
	case ".ascii":
		return p.parseAscii(dirTok, false)
	case ".asciz":
		return p.parseAscii(dirTok, true)
	case ".align":
		return p.parseAlign(dirTok)
	case ".advance":
		return p.parseAdvance(dirTok)
	case ".org":
		return p.parseOrg(dirTok)
	case ".scope":
		p.nextScope++
		p.scopeStack = append(p.scopeStack, p.nextScope)
		return nil
	case ".scend":
		if len(p.scopeStack) == 0 {
			return p.errAt(dirTok.Line, dirTok.Col, ErrUnterminatedScope, "scend without matching scope")
		}
		p.scopeStack = p.scopeStack[:len(p.scopeStack)-1]
		return nil
	default:
		return p.errAt(dirTok.Line, dirTok.Col, ErrUnexpectedToken, "unknown directive %q", dirTok.Text)
	}
}

// parseDataList consumes a comma-separated list of integer literals and
// emits each as an elemSize-byte value. bigEndianHalf is true only for
// .dbyte/.sdbyte, whose halfwords spec.md §4.6 specifies as big-endian
// (unlike everything else in the object file, which is little-endian).
func (p *Parser) parseDataList(dirTok token.Token, elemSize int, signed, bigEndianHalf bool) error {
	sect, ok := p.currentSectionType()
	if !ok {
		return p.errAt(dirTok.Line, dirTok.Col, ErrDirectiveOutsideSection, "%s outside .text/.data", dirTok.Text)
	}
	if p.cursor != cursorData {
		return p.errAt(dirTok.Line, dirTok.Col, ErrDirectiveOutsideSection, "%s only legal in .data", dirTok.Text)
	}

	for {
		v, vtok, err := p.parseIntOperand()
		if err != nil {
			return err
		}
		if !signed && (v < 0 || (elemSize < 8 && v >= (int64(1)<<(uint(elemSize)*8)))) {
			return p.errAt(vtok.Line, vtok.Col, ErrOutOfRangeImmediate, "%d does not fit in %d unsigned bytes", v, elemSize)
		}

		buf := make([]byte, elemSize)
		u := uint64(v)
		if bigEndianHalf && elemSize == 2 {
			buf[0] = byte(u >> 8)
			buf[1] = byte(u)
		} else {
			for i := 0; i < elemSize; i++ {
				buf[i] = byte(u >> (8 * i))
			}
		}
		p.obj.AppendBytes(sect, sectionName(sect), buf)

		if p.cur().Kind == token.KindPunct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	return nil
}

func (p *Parser) parseAscii(dirTok token.Token, nulTerminate bool) error {
	sect, ok := p.currentSectionType()
	if !ok || p.cursor != cursorData {
		return p.errAt(dirTok.Line, dirTok.Col, ErrDirectiveOutsideSection, "%s only legal in .data", dirTok.Text)
	}
	strTok := p.advance()
	if strTok.Kind != token.KindString {
		return p.errAt(strTok.Line, strTok.Col, ErrUnexpectedToken, "expected string literal")
	}
	data := []byte(strTok.Text)
	if nulTerminate {
		data = append(data, 0)
	}
	p.obj.AppendBytes(sect, sectionName(sect), data)
	return nil
}

func (p *Parser) parseAlign(dirTok token.Token) error {
	n, _, err := p.parseIntOperand()
	if err != nil {
		return err
	}
	return p.padTo(dirTok, func(cur uint32) uint32 {
		if n <= 0 {
			return cur
		}
		rem := cur % uint32(n)
		if rem == 0 {
			return cur
		}
		return cur + (uint32(n) - rem)
	})
}

func (p *Parser) parseAdvance(dirTok token.Token) error {
	addr, _, err := p.parseIntOperand()
	if err != nil {
		return err
	}
	return p.padTo(dirTok, func(uint32) uint32 { return uint32(addr) })
}

func (p *Parser) parseOrg(dirTok token.Token) error {
	return p.parseAdvance(dirTok)
}

// padTo grows the current section up to target(currentSize), filling
// TEXT/DATA with zero bytes and BSS by advancing its logical size only.
func (p *Parser) padTo(dirTok token.Token, target func(cur uint32) uint32) error {
	switch p.cursor {
	case cursorBSS:
		s := p.obj.Section(objfile.SectionBSS, "bss")
		want := target(s.Size)
		if want > s.Size {
			p.obj.GrowBSS(want - s.Size)
		}
		return nil
	case cursorText, cursorData:
		sect, _ := p.currentSectionType()
		s := p.obj.Section(sect, sectionName(sect))
		want := target(s.Size)
		if want > s.Size {
			p.obj.AppendBytes(sect, sectionName(sect), make([]byte, want-s.Size))
		}
		return nil
	default:
		return p.errAt(dirTok.Line, dirTok.Col, ErrDirectiveOutsideSection, "%s outside any section", dirTok.Text)
	}
}

func sectionName(t objfile.SectionType) string {
	switch t {
	case objfile.SectionText:
		return "text"
	case objfile.SectionData:
		return "data"
	case objfile.SectionBSS:
		return "bss"
	default:
		return ""
	}
}

// parseIntOperand consumes an optional leading '-' and a KindNumber
// token, honouring the signed variants' negative literals.
func (p *Parser) parseIntOperand() (int64, token.Token, error) {
	neg := false
	start := p.cur()
	if p.cur().Kind == token.KindPunct && p.cur().Text == "-" {
		neg = true
		p.advance()
	}
	numTok := p.advance()
	if numTok.Kind != token.KindNumber {
		return 0, numTok, p.errAt(numTok.Line, numTok.Col, ErrUnexpectedToken, "expected integer literal, got %q", numTok.Text)
	}
	v, err := token.ParseIntLiteral(numTok.Text)
	if err != nil {
		return 0, numTok, p.errAt(numTok.Line, numTok.Col, ErrUnexpectedToken, "%s", err)
	}
	if neg {
		v = -v
	}
	return v, start, nil
}

// checkFits reports whether v fits in a signed/unsigned field of the
// given width.
func checkFits(v int64, width uint, signed bool) bool {
	if signed {
		lo := -(int64(1) << (width - 1))
		hi := int64(1)<<(width-1) - 1
		return v >= lo && v <= hi
	}
	if v < 0 {
		return false
	}
	return uint64(v) <= uint64(bitutil.FieldU(^uint32(0), 0, width))
}
