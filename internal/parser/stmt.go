package parser

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/types"
)

// isComparison reports whether op is one of the six comparison tags.
func isComparison(op string) bool {
	switch op {
	case ast.Eq, ast.Ne, ast.Lt, ast.Gt, ast.Le, ast.Ge:
		return true
	}
	return false
}

// condExpr parses a parenthesized condition. A condition that is not itself
// a comparison is wrapped in a to-boolean conversion so the generator can
// branch on it.
func (p *Parser) condExpr() *ast.Node {
	cond := p.binexpr(0)
	if !isComparison(cond.Op) {
		cond = ast.MakeUnary(ast.ToBool, cond.Type, cond)
	}
	return cond
}

// compoundStatement parses `{ statement* }`, gluing successive statements
// into a left-leaning chain.
func (p *Parser) compoundStatement() *ast.Node {
	p.lbrace()

	var left *ast.Node
	for {
		if p.tok.Type == lexer.RBRACE {
			p.scan()
			return left
		}

		tree := p.singleStatement()

		// Only these statement forms carry their own trailing semicolon.
		if tree != nil &&
			(tree.Op == ast.Assign || tree.Op == ast.Return || tree.Op == ast.FuncCall) {
			p.semicolon()
		}

		if tree != nil {
			if left == nil {
				left = tree
			} else {
				left = ast.MakeNode(ast.Glue, ast.PNone, left, nil, tree)
			}
		}
	}
}

// singleStatement parses one statement, returning nil for declarations
// (which produce symbols, not code).
func (p *Parser) singleStatement() *ast.Node {
	switch p.tok.Type {
	case lexer.VOID, lexer.CHAR, lexer.INT, lexer.LONG:
		p.localDeclaration()
		return nil
	case lexer.IF:
		return p.ifStatement()
	case lexer.WHILE:
		return p.whileStatement()
	case lexer.FOR:
		return p.forStatement()
	case lexer.RETURN:
		return p.returnStatement()
	default:
		return p.binexpr(0)
	}
}

func (p *Parser) ifStatement() *ast.Node {
	p.match(lexer.IF, "if")
	p.lparen()
	cond := p.condExpr()
	p.rparen()

	then := p.compoundStatement()

	var els *ast.Node
	if p.tok.Type == lexer.ELSE {
		p.scan()
		els = p.compoundStatement()
	}

	return ast.MakeNode(ast.If, ast.PNone, cond, then, els)
}

func (p *Parser) whileStatement() *ast.Node {
	p.match(lexer.WHILE, "while")
	p.lparen()
	cond := p.condExpr()
	p.rparen()

	body := p.compoundStatement()
	return ast.MakeNode(ast.While, ast.PNone, cond, nil, body)
}

// forStatement desugars `for (pre; cond; post) body` into
// GLUE(pre, WHILE(cond, GLUE(body, post))).
func (p *Parser) forStatement() *ast.Node {
	p.match(lexer.FOR, "for")
	p.lparen()

	pre := p.singleStatement()
	p.semicolon()

	cond := p.condExpr()
	p.semicolon()

	post := p.singleStatement()
	p.rparen()

	body := p.compoundStatement()

	tree := ast.MakeNode(ast.Glue, ast.PNone, body, nil, post)
	tree = ast.MakeNode(ast.While, ast.PNone, cond, nil, tree)
	return ast.MakeNode(ast.Glue, ast.PNone, pre, nil, tree)
}

// returnStatement parses `return ( expression )`, coercing the expression to
// the enclosing function's return type.
func (p *Parser) returnStatement() *ast.Node {
	funcType := p.syms.Get(p.curFunc).Type
	if funcType == ast.PVoid {
		p.fatalf(diag.Semantic, "cannot return a value from a void function")
	}

	p.match(lexer.RETURN, "return")
	p.lparen()

	tree := p.binexpr(0)
	tree = types.ModifyType(tree, funcType, ast.Nothing)
	if tree == nil {
		p.fatalf(diag.Semantic, "incompatible return type")
	}

	tree = ast.MakeUnary(ast.Return, ast.PNone, tree)
	p.rparen()
	return tree
}
