package asm

import (
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/token"
)

// sectionCursor is the {NONE, DATA, BSS, TEXT} state spec.md §4.6
// requires: most directives and every instruction are only legal while
// a particular cursor is active.
type sectionCursor uint8

const (
	cursorNone sectionCursor = iota
	cursorText
	cursorData
	cursorBSS
)

// Parser holds all pass-1 state: the token stream, the object file under
// construction, the scope stack, and the scope snapshots each
// relocation's breadcrumb needs for pass 2.
type Parser struct {
	toks []token.Token
	pos  int

	obj *objfile.Object

	cursor sectionCursor

	scopeStack []int
	nextScope  int

	globalNames map[string]bool

	// scopeSnapshot records, for every relocation created during pass 1,
	// the scope stack that was open at that moment (innermost last).
	// Keyed by the relocation's Token breadcrumb.
	scopeSnapshot map[int][]int
}

// Assemble runs both passes over src and returns the finished
// relocatable object file.
func Assemble(src string) (*objfile.Object, error) {
	toks, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &Parser{
		toks:          toks,
		obj:           objfile.New(objfile.FileTypeRelocatable),
		globalNames:   make(map[string]bool),
		scopeSnapshot: make(map[int][]int),
	}

	p.prescanGlobals()

	if err := p.pass1(); err != nil {
		return nil, err
	}
	if err := p.fixupLocal(); err != nil {
		return nil, err
	}
	return p.obj, nil
}

func (p *Parser) prescanGlobals() {
	for i := 0; i+1 < len(p.toks); i++ {
		if p.toks[i].Kind == token.KindDirective && p.toks[i].Text == ".global" {
			if p.toks[i+1].Kind == token.KindIdentifier {
				p.globalNames[p.toks[i+1].Text] = true
			}
		}
	}
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.KindEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.KindNewline {
		p.advance()
	}
}

func (p *Parser) expectPunct(text string) error {
	t := p.cur()
	if t.Kind != token.KindPunct || t.Text != text {
		return p.errAt(t.Line, t.Col, ErrUnexpectedToken, "expected %q, got %q", text, t.Text)
	}
	p.advance()
	return nil
}

// currentSectionType maps the cursor to the objfile section it writes
// into; cursorNone/cursorBSS have no byte-emitting section of their own
// (BSS only ever grows its logical size).
func (p *Parser) currentSectionType() (objfile.SectionType, bool) {
	switch p.cursor {
	case cursorText:
		return objfile.SectionText, true
	case cursorData:
		return objfile.SectionData, true
	default:
		return 0, false
	}
}

// pass1 walks the whole token stream once, emitting bytes and
// relocations.
func (p *Parser) pass1() error {
	for {
		p.skipNewlines()
		t := p.cur()
		if t.Kind == token.KindEOF {
			break
		}

		switch t.Kind {
		case token.KindDirective:
			if err := p.parseDirective(); err != nil {
				return err
			}
		case token.KindMnemonic:
			if err := p.parseInstruction(); err != nil {
				return err
			}
		case token.KindIdentifier:
			if err := p.parseLabel(); err != nil {
				return err
			}
		default:
			return p.errAt(t.Line, t.Col, ErrUnexpectedToken, "unexpected %s %q", t.Kind, t.Text)
		}
	}

	if len(p.scopeStack) != 0 {
		return p.errAt(0, 0, ErrUnterminatedScope, "file ends with %d scope(s) still open", len(p.scopeStack))
	}
	return nil
}

// parseLabel handles `NAME:` label definitions.
func (p *Parser) parseLabel() error {
	nameTok := p.advance()
	if p.cur().Kind != token.KindPunct || p.cur().Text != ":" {
		return p.errAt(nameTok.Line, nameTok.Col, ErrUnexpectedToken, "expected ':' after label %q", nameTok.Text)
	}
	p.advance() // ':'

	value, sectionIdx, err := p.currentOffsetAndSection(nameTok)
	if err != nil {
		return err
	}

	name := p.mangledName(nameTok.Text)
	binding := objfile.BindingLocal
	if len(p.scopeStack) == 0 && p.globalNames[nameTok.Text] {
		binding = objfile.BindingGlobal
	}

	if _, err := p.obj.AddSymbol(name, value, binding, sectionIdx); err != nil {
		return p.errAt(nameTok.Line, nameTok.Col, ErrMultipleDefinition, "%q", nameTok.Text)
	}
	return nil
}

func (p *Parser) currentOffsetAndSection(at token.Token) (uint32, int32, error) {
	switch p.cursor {
	case cursorText:
		return p.obj.Section(objfile.SectionText, "text").Size, int32(objfile.SectionText), nil
	case cursorData:
		return p.obj.Section(objfile.SectionData, "data").Size, int32(objfile.SectionData), nil
	case cursorBSS:
		return p.obj.Section(objfile.SectionBSS, "bss").Size, int32(objfile.SectionBSS), nil
	default:
		return 0, 0, p.errAt(at.Line, at.Col, ErrDirectiveOutsideSection, "label outside any section")
	}
}

// mangledName rewrites name to NAME::SCOPE:<id> when a scope is open,
// matching the convention spec.md §3 mandates for scoped definitions.
func (p *Parser) mangledName(name string) string {
	if len(p.scopeStack) == 0 {
		return name
	}
	top := p.scopeStack[len(p.scopeStack)-1]
	return fmt.Sprintf("%s::SCOPE:%d", name, top)
}
