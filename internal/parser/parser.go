package parser

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/symtab"
)

// Emitter is the slice of the code generator the parser drives directly:
// global storage and string literals are emitted at the point of declaration,
// and functions need an end label and frame offsets before their bodies are
// generated.
type Emitter interface {
	DeclareGlobal(sym int)
	DeclareString(value string) int
	NewLabel() int
	LocalOffset(p ast.Primitive) int
	ResetLocalOffset()
}

// Parser consumes the token stream one declaration at a time. Every parsing
// method assumes the first token of its production is current and leaves the
// token after its production current.
type Parser struct {
	s    *lexer.Scanner
	tok  lexer.Token
	syms *symtab.Table
	gen  Emitter

	curFunc int // symbol slot of the function being parsed
}

// New primes the first token and returns a ready parser.
func New(s *lexer.Scanner, syms *symtab.Table, gen Emitter) *Parser {
	p := &Parser{s: s, syms: syms, gen: gen, curFunc: -1}
	p.scan()
	return p
}

func (p *Parser) scan() {
	p.s.Scan(&p.tok)
}

func (p *Parser) fatalf(kind diag.Kind, format string, args ...interface{}) {
	diag.Fatalf(kind, p.s.Line, format, args...)
}

// match consumes the current token if it has the expected type, scanning the
// next one; anything else is a syntax error.
func (p *Parser) match(tokType, what string) {
	if p.tok.Type != tokType {
		p.fatalf(diag.Syntax, "expected %s, got %s", what, p.tok.Type)
	}
	p.scan()
}

func (p *Parser) semicolon() { p.match(lexer.SEMICOLON, ";") }
func (p *Parser) lbrace()    { p.match(lexer.LBRACE, "{") }
func (p *Parser) lparen()    { p.match(lexer.LPAREN, "(") }
func (p *Parser) rparen()    { p.match(lexer.RPAREN, ")") }

// matchIdent consumes an identifier and returns its name.
func (p *Parser) matchIdent() string {
	if p.tok.Type != lexer.IDENT {
		p.fatalf(diag.Syntax, "expected identifier, got %s", p.tok.Type)
	}
	name := p.s.Text
	p.scan()
	return name
}

// isTypeKeyword reports whether a token type begins a declaration.
func isTypeKeyword(tokType string) bool {
	switch tokType {
	case lexer.VOID, lexer.CHAR, lexer.INT, lexer.LONG:
		return true
	}
	return false
}
