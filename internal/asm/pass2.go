package asm

import (
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/bitutil"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/isa"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
)

// fixupLocal is pass 2: resolve every relocation that a scope can
// answer purely from this assembly unit. B_OFFSET22 relocations must
// be fully resolved here (branches never cross a linking boundary) and
// are removed once patched directly into .text; the other four kinds
// are repointed at whatever scoped definition was found but always
// handed on to the linker, since their target may still live in
// another unit.
func (p *Parser) fixupLocal() error {
	var err error
	if p.obj.RelText, err = p.fixupRelocList(p.obj.RelText, true); err != nil {
		return err
	}
	if p.obj.RelData, err = p.fixupRelocList(p.obj.RelData, false); err != nil {
		return err
	}
	if p.obj.RelBSS, err = p.fixupRelocList(p.obj.RelBSS, false); err != nil {
		return err
	}
	return nil
}

func (p *Parser) fixupRelocList(rels []objfile.Relocation, patchable bool) ([]objfile.Relocation, error) {
	kept := rels[:0]
	for _, r := range rels {
		if idx, ok := p.resolveScoped(r); ok {
			r.Symbol = idx
		}

		if r.Kind == isa.RelocB_OFFSET22 {
			sym := p.obj.Symbols[r.Symbol]
			if sym.Binding == objfile.BindingWeak {
				return nil, &Error{Err: fmt.Errorf("%w: %q", ErrUndefinedLocal, p.obj.SymbolName(r.Symbol))}
			}
			if patchable {
				p.patchTextWord(r, sym.Value)
			}
			continue
		}

		kept = append(kept, r)
	}
	return kept, nil
}

// resolveScoped searches, innermost scope first, for a mangled
// definition of the relocation's symbol name among the scopes that
// were open when the relocation was recorded in pass 1.
func (p *Parser) resolveScoped(r objfile.Relocation) (uint32, bool) {
	scopes := p.scopeSnapshot[r.Token]
	if len(scopes) == 0 {
		return 0, false
	}
	name := p.obj.SymbolName(r.Symbol)
	for i := len(scopes) - 1; i >= 0; i-- {
		mangled := fmt.Sprintf("%s::SCOPE:%d", name, scopes[i])
		if idx, ok := p.obj.FindSymbol(mangled); ok {
			return idx, true
		}
	}
	return 0, false
}

func (p *Parser) patchTextWord(r objfile.Relocation, symVal uint32) {
	text := p.obj.Section(objfile.SectionText, "text")
	word := bitutil.UnpackWord(text.Data[r.Offset : r.Offset+4])
	patched := isa.PatchWord(word, r.Kind, symVal, r.Offset)
	bitutil.PackWord(patched, text.Data[r.Offset:r.Offset+4])
}
