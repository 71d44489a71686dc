package parser

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/symtab"
	"github.com/KnightChaser/keccc/internal/types"
)

// Operator precedence, higher binds tighter. Assignment is the only
// right-associative operator. Tokens outside the table act as expression
// terminators (precedence 0).
var opPrec = map[string]int{
	lexer.ASSIGN:    10,
	lexer.OR:        20,
	lexer.AND:       30,
	lexer.PIPE:      40,
	lexer.CARET:     50,
	lexer.AMPERSAND: 60,
	lexer.EQ:        70,
	lexer.NEQ:       70,
	lexer.LT:        80,
	lexer.GT:        80,
	lexer.LTE:       80,
	lexer.GTE:       80,
	lexer.SHL:       90,
	lexer.SHR:       90,
	lexer.PLUS:      100,
	lexer.MINUS:     100,
	lexer.STAR:      110,
	lexer.SLASH:     110,
}

// binOp maps a binary-operator token to its AST tag.
var binOp = map[string]string{
	lexer.ASSIGN:    ast.Assign,
	lexer.OR:        ast.LogOr,
	lexer.AND:       ast.LogAnd,
	lexer.PIPE:      ast.BitOr,
	lexer.CARET:     ast.BitXor,
	lexer.AMPERSAND: ast.BitAnd,
	lexer.EQ:        ast.Eq,
	lexer.NEQ:       ast.Ne,
	lexer.LT:        ast.Lt,
	lexer.GT:        ast.Gt,
	lexer.LTE:       ast.Le,
	lexer.GTE:       ast.Ge,
	lexer.SHL:       ast.Lshift,
	lexer.SHR:       ast.Rshift,
	lexer.PLUS:      ast.Add,
	lexer.MINUS:     ast.Subtract,
	lexer.STAR:      ast.Multiply,
	lexer.SLASH:     ast.Divide,
}

// isTerminator reports whether a token ends an expression.
func isTerminator(tokType string) bool {
	switch tokType {
	case lexer.SEMICOLON, lexer.RPAREN, lexer.RBRACKET, lexer.EOF:
		return true
	}
	return false
}

// binexpr parses an expression using precedence climbing: operators bind
// while their precedence exceeds minPrec, with `=` re-entering at its own
// level for right associativity.
func (p *Parser) binexpr(minPrec int) *ast.Node {
	left := p.prefix()

	tokType := p.tok.Type
	if isTerminator(tokType) {
		left.Rvalue = true
		return left
	}

	for opPrec[tokType] > minPrec ||
		(tokType == lexer.ASSIGN && opPrec[tokType] == minPrec) {
		prec := opPrec[tokType]
		p.scan()

		right := p.binexpr(prec)
		op := binOp[tokType]

		if op == ast.Assign {
			// The value producer becomes the left child so post-order
			// emission computes it before the store; the destination stays
			// an lvalue on the right.
			right.Rvalue = true
			right = types.ModifyType(right, left.Type, ast.Nothing)
			if right == nil {
				p.fatalf(diag.Semantic, "incompatible types in assignment")
			}
			left, right = right, left
			left = ast.MakeNode(ast.Assign, left.Type, left, nil, right)
		} else {
			left.Rvalue = true
			right.Rvalue = true

			// Try coercing each side against the other; one must succeed.
			ltemp := types.ModifyType(left, right.Type, op)
			rtemp := types.ModifyType(right, left.Type, op)
			if ltemp == nil && rtemp == nil {
				p.fatalf(diag.Semantic, "incompatible types in binary expression")
			}
			if ltemp != nil {
				left = ltemp
			}
			if rtemp != nil {
				right = rtemp
			}
			left = ast.MakeNode(op, left.Type, left, nil, right)
		}

		tokType = p.tok.Type
		if isTerminator(tokType) {
			break
		}
		if isTypeKeyword(tokType) {
			p.fatalf(diag.Syntax, "type keyword %s inside an expression", tokType)
		}
	}

	left.Rvalue = true
	return left
}

// prefix handles the unary prefix operators, falling back to a primary
// expression.
func (p *Parser) prefix() *ast.Node {
	switch p.tok.Type {
	case lexer.AMPERSAND:
		p.scan()
		tree := p.prefix()
		if tree.Op != ast.Ident {
			p.fatalf(diag.Semantic, "& must be applied to an identifier")
		}
		tree.Op = ast.AddressOf
		tree.Type = types.PointerTo(tree.Type)
		return tree

	case lexer.STAR:
		p.scan()
		tree := p.prefix()
		if tree.Op != ast.Ident && tree.Op != ast.Deref {
			p.fatalf(diag.Semantic, "* must be applied to an identifier or another *")
		}
		if !types.IsPointer(tree.Type) {
			p.fatalf(diag.Semantic, "cannot dereference non-pointer type %s", tree.Type)
		}
		return ast.MakeUnary(ast.Deref, types.ValueAt(tree.Type), tree)

	case lexer.MINUS:
		p.scan()
		tree := p.prefix()
		tree.Rvalue = true
		// chars are unsigned; widen before negating.
		if tree.Type == ast.PChar {
			tree.Type = ast.PInt
		}
		return ast.MakeUnary(ast.Negate, tree.Type, tree)

	case lexer.TILDE:
		p.scan()
		tree := p.prefix()
		tree.Rvalue = true
		return ast.MakeUnary(ast.Invert, tree.Type, tree)

	case lexer.BANG:
		p.scan()
		tree := p.prefix()
		tree.Rvalue = true
		return ast.MakeUnary(ast.LogNot, tree.Type, tree)

	case lexer.INC:
		p.scan()
		tree := p.prefix()
		if tree.Op != ast.Ident {
			p.fatalf(diag.Semantic, "++ must precede an identifier")
		}
		tree.Op = ast.PreInc
		return tree

	case lexer.DEC:
		p.scan()
		tree := p.prefix()
		if tree.Op != ast.Ident {
			p.fatalf(diag.Semantic, "-- must precede an identifier")
		}
		tree.Op = ast.PreDec
		return tree

	default:
		return p.primary()
	}
}

// primary parses literals, parenthesized subexpressions, and identifiers.
func (p *Parser) primary() *ast.Node {
	switch p.tok.Type {
	case lexer.INTLIT:
		// Literals that fit a byte are char-typed so they assign to chars
		// without an explicit narrowing.
		t := ast.PInt
		if p.tok.IntValue >= 0 && p.tok.IntValue <= 255 {
			t = ast.PChar
		}
		n := ast.MakeIntLeaf(t, p.tok.IntValue)
		p.scan()
		return n

	case lexer.STRLIT:
		label := p.gen.DeclareString(p.s.Text)
		n := ast.MakeStrLeaf(label)
		p.scan()
		return n

	case lexer.LPAREN:
		p.scan()
		n := p.binexpr(0)
		p.rparen()
		return n

	case lexer.IDENT:
		return p.postfix()

	default:
		p.fatalf(diag.Syntax, "unexpected token %s in expression", p.tok.Type)
		return nil // unreachable
	}
}

// postfix parses what may follow an identifier: a call, an array subscript,
// or a post-increment/decrement.
func (p *Parser) postfix() *ast.Node {
	name := p.s.Text
	p.scan()

	if p.tok.Type == lexer.LPAREN {
		return p.funcCall(name)
	}
	if p.tok.Type == lexer.LBRACKET {
		return p.arrayAccess(name)
	}

	slot := p.syms.Find(name)
	if slot == -1 {
		p.fatalf(diag.Semantic, "undeclared identifier %s", name)
	}
	entry := p.syms.Get(slot)

	switch p.tok.Type {
	case lexer.INC:
		p.scan()
		return ast.MakeSymLeaf(ast.PostInc, entry.Type, slot)
	case lexer.DEC:
		p.scan()
		return ast.MakeSymLeaf(ast.PostDec, entry.Type, slot)
	}
	return ast.MakeSymLeaf(ast.Ident, entry.Type, slot)
}

// funcCall parses `name ( expression )`. The core language takes exactly one
// argument.
func (p *Parser) funcCall(name string) *ast.Node {
	slot := p.syms.Find(name)
	if slot == -1 {
		p.fatalf(diag.Semantic, "undeclared function %s", name)
	}
	entry := p.syms.Get(slot)
	if entry.Structural != symtab.Function {
		p.fatalf(diag.Semantic, "%s is a %s, not a function", name, entry.Structural)
	}

	p.lparen()
	arg := p.binexpr(0)
	p.rparen()
	return ast.MakeCall(entry.Type, arg, slot)
}

// arrayAccess parses `name [ expression ]`, producing a scaled add of the
// index to the array base followed by a dereference.
func (p *Parser) arrayAccess(name string) *ast.Node {
	slot := p.syms.Find(name)
	if slot == -1 {
		p.fatalf(diag.Semantic, "undeclared identifier %s", name)
	}
	entry := p.syms.Get(slot)
	if entry.Structural != symtab.Array {
		p.fatalf(diag.Semantic, "%s is a %s, not an array", name, entry.Structural)
	}

	left := ast.MakeSymLeaf(ast.AddressOf, types.PointerTo(entry.Type), slot)

	p.match(lexer.LBRACKET, "[")
	index := p.binexpr(0)
	p.match(lexer.RBRACKET, "]")

	if !types.IsInteger(index.Type) {
		p.fatalf(diag.Semantic, "array index is not an integer")
	}
	index.Rvalue = true
	index = types.ModifyType(index, left.Type, ast.Add)

	left = ast.MakeNode(ast.Add, left.Type, left, nil, index)
	return ast.MakeUnary(ast.Deref, types.ValueAt(left.Type), left)
}
