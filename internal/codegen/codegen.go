package codegen

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/symtab"
)

// NoReg signals that an operation produced no value in a register.
const NoReg = -1

// NoLabel is passed where no jump target is meaningful.
const NoLabel = 0

// Generator walks function ASTs in post-order and drives a Backend. It owns
// the label allocator and tracks the function currently being emitted.
type Generator struct {
	cg      Backend
	syms    *symtab.Table
	labelID int
	curFunc int
}

// New returns a Generator emitting through cg.
func New(cg Backend, syms *symtab.Table) *Generator {
	return &Generator{cg: cg, syms: syms, curFunc: -1}
}

// NewLabel allocates the next label number. Labels start at 1; 0 is NoLabel.
func (g *Generator) NewLabel() int {
	g.labelID++
	return g.labelID
}

// Preamble emits the whole-file preamble.
func (g *Generator) Preamble() { g.cg.Preamble() }

// Postamble emits the whole-file postamble.
func (g *Generator) Postamble() { g.cg.Postamble() }

// DeclareGlobal emits storage for a global symbol as soon as it is declared.
func (g *Generator) DeclareGlobal(sym int) { g.cg.DeclareGlobalSymbol(sym) }

// DeclareString emits a string literal into rodata and returns its label.
func (g *Generator) DeclareString(value string) int {
	label := g.NewLabel()
	g.cg.DeclareGlobalString(label, value)
	return label
}

// ResetLocalOffset restarts local frame-offset assignment for a new function.
func (g *Generator) ResetLocalOffset() { g.cg.ResetLocalOffset() }

// LocalOffset reserves frame space for one local of the given type.
func (g *Generator) LocalOffset(p ast.Primitive) int { return g.cg.LocalOffset(p) }

// Generate emits code for one parsed function tree.
func (g *Generator) Generate(tree *ast.Node) {
	g.genAST(tree, NoLabel, ast.Nothing)
}

// genIf lowers an IF node: condition (jumping to the false label when it does
// not hold), then-branch, optional else-branch.
func (g *Generator) genIf(n *ast.Node) int {
	labelFalse := g.NewLabel()
	labelEnd := NoLabel
	if n.Right != nil {
		labelEnd = g.NewLabel()
	}

	g.genAST(n.Left, labelFalse, n.Op)
	g.cg.ResetRegisters()

	g.genAST(n.Mid, NoLabel, n.Op)
	g.cg.ResetRegisters()

	if n.Right != nil {
		g.cg.Jump(labelEnd)
	}
	g.cg.Label(labelFalse)

	if n.Right != nil {
		g.genAST(n.Right, NoLabel, n.Op)
		g.cg.ResetRegisters()
		g.cg.Label(labelEnd)
	}

	return NoReg
}

// genWhile lowers a WHILE node: start label, condition jumping out when it
// fails, body, jump back.
func (g *Generator) genWhile(n *ast.Node) int {
	labelStart := g.NewLabel()
	labelEnd := g.NewLabel()
	g.cg.Label(labelStart)

	g.genAST(n.Left, labelEnd, n.Op)
	g.cg.ResetRegisters()

	g.genAST(n.Right, NoLabel, n.Op)
	g.cg.ResetRegisters()

	g.cg.Jump(labelStart)
	g.cg.Label(labelEnd)

	return NoReg
}

// genAST emits code for n and returns the register holding its value, or
// NoReg. label is only meaningful for comparisons and boolean conversions
// sitting directly under an IF or WHILE; parentOp tells them so.
func (g *Generator) genAST(n *ast.Node, label int, parentOp string) int {
	if n == nil {
		return NoReg
	}

	switch n.Op {
	case ast.If:
		return g.genIf(n)
	case ast.While:
		return g.genWhile(n)
	case ast.Glue:
		// Each glued statement starts with a fresh register pool.
		g.genAST(n.Left, NoLabel, n.Op)
		g.cg.ResetRegisters()
		g.genAST(n.Right, NoLabel, n.Op)
		g.cg.ResetRegisters()
		return NoReg
	case ast.Function:
		g.curFunc = n.Sym
		g.cg.FunctionPreamble(n.Sym)
		g.genAST(n.Left, NoLabel, n.Op)
		g.cg.FunctionPostamble(n.Sym)
		g.curFunc = -1
		return NoReg
	}

	leftReg, rightReg := NoReg, NoReg
	if n.Left != nil {
		leftReg = g.genAST(n.Left, NoLabel, n.Op)
	}
	if n.Right != nil {
		rightReg = g.genAST(n.Right, NoLabel, n.Op)
	}

	switch n.Op {
	case ast.Add:
		return g.cg.Add(leftReg, rightReg)
	case ast.Subtract:
		return g.cg.Subtract(leftReg, rightReg)
	case ast.Multiply:
		return g.cg.Multiply(leftReg, rightReg)
	case ast.Divide:
		return g.cg.DivideSigned(leftReg, rightReg)
	case ast.Lshift:
		return g.cg.ShiftLeft(leftReg, rightReg)
	case ast.Rshift:
		return g.cg.ShiftRight(leftReg, rightReg)
	case ast.BitAnd:
		return g.cg.BitwiseAnd(leftReg, rightReg)
	case ast.BitOr:
		return g.cg.BitwiseOr(leftReg, rightReg)
	case ast.BitXor:
		return g.cg.BitwiseXor(leftReg, rightReg)
	case ast.LogAnd:
		return g.cg.LogicalAnd(leftReg, rightReg)
	case ast.LogOr:
		return g.cg.LogicalOr(leftReg, rightReg)
	case ast.Negate:
		return g.cg.Negate(leftReg)
	case ast.Invert:
		return g.cg.Invert(leftReg)
	case ast.LogNot:
		return g.cg.LogicalNot(leftReg)
	case ast.ToBool:
		return g.cg.ToBoolean(leftReg, parentOp, label)

	case ast.Eq, ast.Ne, ast.Lt, ast.Gt, ast.Le, ast.Ge:
		// Under a branch parent, comparisons fold into the jump itself.
		if parentOp == ast.If || parentOp == ast.While {
			return g.cg.CompareAndJump(n.Op, leftReg, rightReg, label)
		}
		return g.cg.CompareAndSet(n.Op, leftReg, rightReg)

	case ast.IntLit:
		return g.cg.LoadImmediate(n.IntValue, n.Type)
	case ast.StrLit:
		return g.cg.LoadGlobalString(n.Label)

	case ast.Ident:
		// An array name decays to the address of its first element.
		if g.syms.Get(n.Sym).Structural == symtab.Array {
			return g.cg.AddressOf(n.Sym)
		}
		if n.Rvalue || parentOp == ast.Deref {
			return g.loadSymbol(n.Sym, ast.Nothing)
		}
		return NoReg // lvalue: the store path resolves the symbol itself

	case ast.Assign:
		// Post-order already placed the value producer on the left and the
		// destination on the right.
		switch n.Right.Op {
		case ast.Ident:
			if g.syms.Get(n.Right.Sym).Class == symtab.Local {
				return g.cg.StoreLocal(leftReg, n.Right.Sym)
			}
			return g.cg.StoreGlobal(leftReg, n.Right.Sym)
		case ast.Deref:
			return g.cg.StoreThroughPointer(leftReg, rightReg, n.Right.Type)
		default:
			diag.Fatalf(diag.Internal, 0, "cannot assign through %s node", n.Right.Op)
		}

	case ast.Widen:
		return g.cg.Widen(leftReg, n.Left.Type, n.Type)

	case ast.Scale:
		// Strength-reduce power-of-two scales to shifts.
		switch n.Size {
		case 2:
			return g.cg.ShiftLeftConst(leftReg, 1)
		case 4:
			return g.cg.ShiftLeftConst(leftReg, 2)
		case 8:
			return g.cg.ShiftLeftConst(leftReg, 3)
		default:
			rightReg = g.cg.LoadImmediate(n.Size, ast.PInt)
			return g.cg.Multiply(leftReg, rightReg)
		}

	case ast.Return:
		g.cg.ReturnFromFunction(leftReg, g.curFunc)
		return NoReg

	case ast.FuncCall:
		return g.cg.FunctionCall(leftReg, n.Sym)

	case ast.AddressOf:
		return g.cg.AddressOf(n.Sym)

	case ast.Deref:
		if n.Rvalue {
			return g.cg.Dereference(leftReg, n.Left.Type)
		}
		return leftReg // lvalue: pass the address through

	case ast.PreInc, ast.PreDec, ast.PostInc, ast.PostDec:
		return g.loadSymbol(n.Sym, n.Op)

	default:
		diag.Fatalf(diag.Internal, 0, "unknown AST operator %s", n.Op)
	}
	return NoReg // unreachable
}

// loadSymbol loads a scalar symbol's value, applying a pre/post
// increment/decrement when op says so.
func (g *Generator) loadSymbol(sym int, op string) int {
	if g.syms.Get(sym).Class == symtab.Local {
		return g.cg.LoadLocal(sym, op)
	}
	return g.cg.LoadGlobal(sym, op)
}
