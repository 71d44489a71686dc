package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/symtab"
	"github.com/KnightChaser/keccc/internal/types"
)

// fakeEmitter satisfies Emitter without producing assembly, so parser tests
// can run against the tree alone.
type fakeEmitter struct {
	labels   int
	globals  []int
	strings  []string
	localOff int
}

func (f *fakeEmitter) DeclareGlobal(sym int) { f.globals = append(f.globals, sym) }

func (f *fakeEmitter) DeclareString(value string) int {
	f.strings = append(f.strings, value)
	return f.NewLabel()
}

func (f *fakeEmitter) NewLabel() int {
	f.labels++
	return f.labels
}

func (f *fakeEmitter) LocalOffset(p ast.Primitive) int {
	size := types.Size(p)
	if size < 4 {
		size = 4
	}
	f.localOff += size
	return -f.localOff
}

func (f *fakeEmitter) ResetLocalOffset() { f.localOff = 0 }

// parseProgram parses all functions in src, failing the test on any compile
// error.
func parseProgram(t *testing.T, src string) ([]*ast.Node, *symtab.Table, *fakeEmitter) {
	t.Helper()
	funcs, syms, fake, err := tryParse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return funcs, syms, fake
}

// tryParse runs the parser and converts a raised diagnostic into an error.
func tryParse(src string) (funcs []*ast.Node, syms *symtab.Table, fake *fakeEmitter, err error) {
	defer diag.Intercept(&err)

	syms = symtab.New()
	for _, helper := range []string{"printint", "printchar", "printstring"} {
		syms.AddGlobal(helper, ast.PVoid, symtab.Function, 0, 0)
	}
	fake = &fakeEmitter{}
	p := New(lexer.New(strings.NewReader(src)), syms, fake)
	for {
		tree := p.NextFunction()
		if tree == nil {
			return funcs, syms, fake, nil
		}
		funcs = append(funcs, tree)
	}
}

func parseErrKind(t *testing.T, src string) diag.Kind {
	t.Helper()
	_, _, _, err := tryParse(src)
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected a compile error for %q, got %v", src, err)
	}
	return de.Kind
}

// mainBody parses a program with a single function and returns its body.
func mainBody(t *testing.T, src string) (*ast.Node, *symtab.Table) {
	t.Helper()
	funcs, syms, _ := parseProgram(t, src)
	if len(funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(funcs))
	}
	assert.Equal(t, ast.Function, funcs[0].Op)
	return funcs[0].Left, syms
}

// ---------------------------------------------------------------------------
// Expression shape
// ---------------------------------------------------------------------------

func TestMultiplicationBindsTighterThanAddition(t *testing.T) {
	body, _ := mainBody(t, "int main() { return(3 + 4 * 2); }")

	assert.Equal(t, ast.Return, body.Op)
	add := body.Left
	if add.Op == ast.Widen {
		add = add.Left
	}
	assert.Equal(t, ast.Add, add.Op)
	assert.Equal(t, ast.IntLit, add.Left.Op)
	assert.Equal(t, 3, add.Left.IntValue)
	assert.Equal(t, ast.Multiply, add.Right.Op)
	assert.Equal(t, 4, add.Right.Left.IntValue)
	assert.Equal(t, 2, add.Right.Right.IntValue)
}

func TestEqualPrecedenceIsLeftAssociative(t *testing.T) {
	body, _ := mainBody(t, "int main() { return(10 - 4 - 3); }")

	sub := body.Left
	if sub.Op == ast.Widen {
		sub = sub.Left
	}
	assert.Equal(t, ast.Subtract, sub.Op)
	assert.Equal(t, ast.Subtract, sub.Left.Op) // (10 - 4) first
	assert.Equal(t, 3, sub.Right.IntValue)
	assert.Equal(t, 10, sub.Left.Left.IntValue)
	assert.Equal(t, 4, sub.Left.Right.IntValue)
}

func TestLowerPrecedenceOperatorBindsLast(t *testing.T) {
	// 1 | 2 & 3 must parse as 1 | (2 & 3).
	body, _ := mainBody(t, "int main() { return(1 | 2 & 3); }")

	or := body.Left
	if or.Op == ast.Widen {
		or = or.Left
	}
	assert.Equal(t, ast.BitOr, or.Op)
	assert.Equal(t, ast.BitAnd, or.Right.Op)
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	body, syms := mainBody(t, "int a; int b; int main() { a = b = 9; return(0); }")

	// body = Glue(assign-chain, return)
	assert.Equal(t, ast.Glue, body.Op)
	outer := body.Left
	assert.Equal(t, ast.Assign, outer.Op)

	// Destination of the outer assignment is a, of the inner is b.
	assert.Equal(t, ast.Ident, outer.Right.Op)
	assert.Equal(t, "a", syms.Name(outer.Right.Sym))
	inner := outer.Left
	assert.Equal(t, ast.Assign, inner.Op)
	assert.Equal(t, "b", syms.Name(inner.Right.Sym))
}

func TestAssignmentSwapsValueAndDestination(t *testing.T) {
	body, syms := mainBody(t, "int a; int main() { a = 5; return(0); }")

	assign := body.Left
	assert.Equal(t, ast.Assign, assign.Op)

	// The value producer sits on the left so post-order emits it first; the
	// destination remains an lvalue on the right.
	value := assign.Left
	assert.Equal(t, ast.Widen, value.Op) // literal 5 is char, widened to int
	assert.True(t, value.Left.Rvalue)
	assert.Equal(t, ast.Ident, assign.Right.Op)
	assert.False(t, assign.Right.Rvalue)
	assert.Equal(t, "a", syms.Name(assign.Right.Sym))
}

func TestArrayIndexScalesAndDereferences(t *testing.T) {
	body, _ := mainBody(t, "int arr[5]; int main() { return(arr[2]); }")

	deref := body.Left
	assert.Equal(t, ast.Deref, deref.Op)
	assert.True(t, deref.Rvalue)
	assert.Equal(t, ast.PInt, deref.Type)

	add := deref.Left
	assert.Equal(t, ast.Add, add.Op)
	assert.Equal(t, ast.PIntPtr, add.Type)
	assert.Equal(t, ast.AddressOf, add.Left.Op)
	assert.Equal(t, ast.Scale, add.Right.Op)
	assert.Equal(t, 4, add.Right.Size)
}

func TestCharArrayIndexIsNotScaled(t *testing.T) {
	body, _ := mainBody(t, "char buf[16]; int main() { return(buf[3]); }")

	var deref *ast.Node
	switch body.Left.Op {
	case ast.Widen:
		deref = body.Left.Left
	default:
		deref = body.Left
	}
	assert.Equal(t, ast.Deref, deref.Op)
	add := deref.Left
	assert.Equal(t, ast.IntLit, add.Right.Op) // index passes through unscaled
}

func TestAddressOfYieldsPointerType(t *testing.T) {
	body, syms := mainBody(t, "char *p; char c; int main() { p = &c; return(0); }")

	assign := body.Left
	assert.Equal(t, ast.Assign, assign.Op)
	addr := assign.Left
	assert.Equal(t, ast.AddressOf, addr.Op)
	assert.Equal(t, ast.PCharPtr, addr.Type)
	assert.Equal(t, "c", syms.Name(addr.Sym))
}

func TestDereferenceYieldsPointeeType(t *testing.T) {
	funcs, _, _ := parseProgram(t, "long *p; long get() { return(*p); }")
	deref := funcs[0].Left.Left
	assert.Equal(t, ast.Deref, deref.Op)
	assert.Equal(t, ast.PLong, deref.Type)
	assert.Equal(t, ast.Ident, deref.Left.Op)
}

func TestFunctionCallCarriesReturnTypeAndSymbol(t *testing.T) {
	funcs, syms, _ := parseProgram(t,
		"int dbl() { return(2); } int main() { return(dbl(0)); }")

	call := funcs[1].Left.Left
	assert.Equal(t, ast.FuncCall, call.Op)
	assert.Equal(t, ast.PInt, call.Type)
	assert.Equal(t, "dbl", syms.Name(call.Sym))
}

func TestPrefixOperators(t *testing.T) {
	testData := []struct {
		src    string
		wantOp string
	}{
		{"int x; int main() { return(-x); }", ast.Negate},
		{"int x; int main() { return(~x); }", ast.Invert},
		{"int x; int main() { return(!x); }", ast.LogNot},
	}
	for _, data := range testData {
		body, _ := mainBody(t, data.src)
		node := body.Left
		if node.Op == ast.Widen {
			node = node.Left
		}
		assert.Equal(t, data.wantOp, node.Op, data.src)
	}
}

func TestNegatingACharWidensToInt(t *testing.T) {
	body, _ := mainBody(t, "int main() { return(-7); }")
	neg := body.Left
	if neg.Op == ast.Widen {
		neg = neg.Left
	}
	assert.Equal(t, ast.Negate, neg.Op)
	assert.Equal(t, ast.PInt, neg.Type)
}

func TestIncrementDecrementForms(t *testing.T) {
	body, _ := mainBody(t, "int x; int a; int main() { a = ++x; a = x--; return(0); }")

	first := body.Left.Left // Glue(Glue(a=++x, a=x--), return) -> left.left = a=++x
	assert.Equal(t, ast.Assign, first.Op)
	pre := first.Left
	if pre.Op == ast.Widen {
		pre = pre.Left
	}
	assert.Equal(t, ast.PreInc, pre.Op)

	second := body.Left.Right
	post := second.Left
	if post.Op == ast.Widen {
		post = post.Left
	}
	assert.Equal(t, ast.PostDec, post.Op)
}

func TestStringLiteralEmitsAndYieldsCharPointer(t *testing.T) {
	funcs, _, fake := parseProgram(t, `int main() { printstring("hi"); return(0); }`)
	body := funcs[0].Left

	call := body.Left
	assert.Equal(t, ast.FuncCall, call.Op)
	assert.Equal(t, ast.StrLit, call.Left.Op)
	assert.Equal(t, ast.PCharPtr, call.Left.Type)
	assert.Equal(t, []string{"hi"}, fake.strings)
}

// ---------------------------------------------------------------------------
// Statements and declarations
// ---------------------------------------------------------------------------

func TestIfWrapsNonComparisonCondition(t *testing.T) {
	body, _ := mainBody(t, "int x; int main() { if (x) { x = 1; } return(0); }")

	ifNode := body.Left
	assert.Equal(t, ast.If, ifNode.Op)
	assert.Equal(t, ast.ToBool, ifNode.Left.Op)
}

func TestIfKeepsComparisonCondition(t *testing.T) {
	body, _ := mainBody(t, "int x; int main() { if (x == 1) { x = 2; } else { x = 3; } return(0); }")

	ifNode := body.Left
	assert.Equal(t, ast.If, ifNode.Op)
	assert.Equal(t, ast.Eq, ifNode.Left.Op)
	assert.NotNil(t, ifNode.Mid)   // then branch
	assert.NotNil(t, ifNode.Right) // else branch
}

func TestForDesugarsToWhile(t *testing.T) {
	body, _ := mainBody(t,
		"int main() { int i; int s; s = 0; for (i = 1; i <= 5; i = i + 1) { s = s + i; } return(s); }")

	// body = Glue(Glue(s=0, for-tree), return)
	forTree := body.Left.Right
	assert.Equal(t, ast.Glue, forTree.Op)
	assert.Equal(t, ast.Assign, forTree.Left.Op) // i = 1

	while := forTree.Right
	assert.Equal(t, ast.While, while.Op)
	assert.Equal(t, ast.Le, while.Left.Op)

	// While body is GLUE(loop body, post statement).
	assert.Equal(t, ast.Glue, while.Right.Op)
	assert.Equal(t, ast.Assign, while.Right.Right.Op) // i = i + 1
}

func TestLocalDeclarationsGetDescendingOffsets(t *testing.T) {
	_, syms := mainBody(t, "int main() { int i; int s; i = 0; s = 0; return(0); }")

	i := syms.Find("i")
	s := syms.Find("s")
	assert.NotEqual(t, -1, i)
	assert.NotEqual(t, -1, s)
	assert.Equal(t, -4, syms.Get(i).Offset)
	assert.Equal(t, -8, syms.Get(s).Offset)
	assert.Equal(t, symtab.Local, syms.Get(i).Class)
}

func TestGlobalDeclarationsAreEmitted(t *testing.T) {
	_, syms, fake := parseProgram(t, "int a; char b; long c[4]; int main() { return(0); }")

	assert.Len(t, fake.globals, 3)
	entry := syms.Get(syms.Find("c"))
	assert.Equal(t, symtab.Array, entry.Structural)
	assert.Equal(t, 4, entry.Size)
	assert.Equal(t, ast.PLong, entry.Type)
}

func TestFunctionEndingInIfElseReturns(t *testing.T) {
	// Both branches return, so the function body may end in control flow
	// rather than a literal trailing return statement.
	body, _ := mainBody(t,
		"int f() { if (1 == 1) { return(1); } else { return(0); } }")

	assert.Equal(t, ast.If, body.Op)
	assert.Equal(t, ast.Return, body.Mid.Op)
	assert.Equal(t, ast.Return, body.Right.Op)
}

func TestVoidFunctionWithoutReturn(t *testing.T) {
	funcs, _, _ := parseProgram(t, "int x; void poke() { x = 1; }")
	assert.Equal(t, ast.Function, funcs[0].Op)
	assert.Equal(t, ast.PVoid, funcs[0].Type)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestParseErrors(t *testing.T) {
	testData := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"undeclared identifier", "int main() { return(nope); }", diag.Semantic},
		{"calling a non-function", "int x; int main() { x(1); return(0); }", diag.Semantic},
		{"subscripting a non-array", "int x; int main() { return(x[0]); }", diag.Semantic},
		{"address-of non-identifier", "int main() { return(&3); }", diag.Semantic},
		{"dereferencing non-pointer", "int x; int main() { return(*x); }", diag.Semantic},
		{"return in void function", "void f() { return(1); }", diag.Semantic},
		{"narrowing assignment", "long l; char c; int main() { c = l; return(0); }", diag.Semantic},
		{"void variable", "void v; int main() { return(0); }", diag.Semantic},
		{"array without size", "int a[]; int main() { return(0); }", diag.Semantic},
		{"non-integer array index", "int a[5]; int *p; int main() { return(a[p]); }", diag.Semantic},
		{"missing semicolon", "int a; int main() { a = 1 return(0); }", diag.Syntax},
		{"missing close paren", "int main() { return(1; }", diag.Syntax},
		{"type keyword in expression", "int a; int main() { a = 1 + int; return(0); }", diag.Syntax},
		{"garbage toplevel", "37;", diag.Syntax},
	}
	for _, data := range testData {
		t.Run(data.name, func(t *testing.T) {
			assert.Equal(t, data.kind, parseErrKind(t, data.src), data.src)
		})
	}
}

func TestEveryNodeIsVisitedExactlyOnce(t *testing.T) {
	funcs, _, _ := parseProgram(t,
		"int a; int main() { int i; for (i = 0; i < 5; i = i + 1) { a = a + i; } return(a); }")

	seen := map[*ast.Node]bool{}
	var walk func(n *ast.Node)
	var dup bool
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if seen[n] {
			dup = true
			return
		}
		seen[n] = true
		walk(n.Left)
		walk(n.Mid)
		walk(n.Right)
	}
	walk(funcs[0])
	assert.False(t, dup, "AST nodes must not be shared")
}
