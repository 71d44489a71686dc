package parser

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/symtab"
	"github.com/KnightChaser/keccc/internal/types"
)

// parseType consumes a type keyword plus any trailing *s.
func (p *Parser) parseType() ast.Primitive {
	var t ast.Primitive
	switch p.tok.Type {
	case lexer.VOID:
		t = ast.PVoid
	case lexer.CHAR:
		t = ast.PChar
	case lexer.INT:
		t = ast.PInt
	case lexer.LONG:
		t = ast.PLong
	default:
		p.fatalf(diag.Syntax, "expected a type, got %s", p.tok.Type)
	}
	p.scan()

	for p.tok.Type == lexer.STAR {
		t = types.PointerTo(t)
		p.scan()
	}
	return t
}

// NextFunction consumes global declarations until it has a complete function
// to hand to the generator, or nil at end of input. Global variables are
// declared (and their storage emitted) as a side effect.
func (p *Parser) NextFunction() *ast.Node {
	for {
		if p.tok.Type == lexer.EOF {
			return nil
		}

		t := p.parseType()
		name := p.matchIdent()

		if p.tok.Type == lexer.LPAREN {
			return p.functionDeclaration(t, name)
		}
		p.globalDeclaration(t, name)
	}
}

// globalDeclaration finishes a global variable or array declaration whose
// type and name are already consumed.
func (p *Parser) globalDeclaration(t ast.Primitive, name string) {
	if t == ast.PVoid {
		p.fatalf(diag.Semantic, "cannot declare a void variable %s", name)
	}

	if p.tok.Type == lexer.LBRACKET {
		p.scan()
		if p.tok.Type != lexer.INTLIT || p.tok.IntValue <= 0 {
			p.fatalf(diag.Semantic, "array %s needs a positive size", name)
		}
		size := p.tok.IntValue
		p.scan()
		p.match(lexer.RBRACKET, "]")

		slot := p.syms.AddGlobal(name, t, symtab.Array, 0, size)
		p.gen.DeclareGlobal(slot)
	} else {
		slot := p.syms.AddGlobal(name, t, symtab.Variable, 0, 1)
		p.gen.DeclareGlobal(slot)
	}

	p.semicolon()
}

// localDeclaration parses a scalar declaration inside a function body and
// assigns the new symbol a frame offset.
func (p *Parser) localDeclaration() {
	t := p.parseType()
	name := p.matchIdent()

	if t == ast.PVoid {
		p.fatalf(diag.Semantic, "cannot declare a void variable %s", name)
	}
	if p.tok.Type == lexer.LBRACKET {
		p.fatalf(diag.Semantic, "local arrays are not supported")
	}

	offset := p.gen.LocalOffset(t)
	p.syms.AddLocal(name, t, symtab.Variable, 1, offset)
	p.semicolon()
}

// functionDeclaration parses `name ( )` plus the body. The current token is
// the opening parenthesis.
func (p *Parser) functionDeclaration(t ast.Primitive, name string) *ast.Node {
	endLabel := p.gen.NewLabel()
	slot := p.syms.AddGlobal(name, t, symtab.Function, endLabel, 0)
	p.curFunc = slot

	// Each function starts with an empty local scope and a fresh frame.
	p.syms.ResetLocals()
	p.gen.ResetLocalOffset()

	p.lparen()
	p.rparen()

	body := p.compoundStatement()

	return ast.MakeFunction(t, body, slot)
}
