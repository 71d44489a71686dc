package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(table map[int]string) SymName {
	return func(slot int) string { return table[slot] }
}

func TestCompactStringBinaryChain(t *testing.T) {
	// 3 + 4 * 2
	tree := MakeNode(Add, PChar,
		MakeIntLeaf(PChar, 3),
		nil,
		MakeNode(Multiply, PChar, MakeIntLeaf(PChar, 4), nil, MakeIntLeaf(PChar, 2)))

	assert.Equal(t, "(3 + (4 * 2))", CompactString(tree, names(nil)))
}

func TestCompactStringAssignmentShowsSourceOrder(t *testing.T) {
	// a = 5 is stored value-first; the printer restores source order.
	tree := MakeNode(Assign, PInt,
		MakeIntLeaf(PInt, 5),
		nil,
		MakeSymLeaf(Ident, PInt, 0))

	assert.Equal(t, "(a = 5)", CompactString(tree, names(map[int]string{0: "a"})))
}

func TestCompactStringPointerForms(t *testing.T) {
	table := map[int]string{0: "p", 1: "c"}

	addr := MakeSymLeaf(AddressOf, PCharPtr, 1)
	assert.Equal(t, "&c", CompactString(addr, names(table)))

	deref := MakeUnary(Deref, PChar, MakeSymLeaf(Ident, PCharPtr, 0))
	assert.Equal(t, "*p", CompactString(deref, names(table)))
}

func TestCompactStringControlFlow(t *testing.T) {
	table := map[int]string{0: "x"}
	cond := MakeNode(Lt, PInt, MakeSymLeaf(Ident, PInt, 0), nil, MakeIntLeaf(PChar, 3))
	body := MakeNode(Assign, PInt, MakeIntLeaf(PChar, 1), nil, MakeSymLeaf(Ident, PInt, 0))
	tree := MakeNode(While, PNone, cond, nil, body)

	assert.Equal(t, "while ((x < 3)) { (x = 1) }", CompactString(tree, names(table)))
}

func TestDebugStringShape(t *testing.T) {
	table := map[int]string{0: "main"}
	body := MakeUnary(Return, PNone, MakeIntLeaf(PChar, 0))
	fn := MakeFunction(PInt, body, 0)

	out := DebugString(fn, names(table))
	assert.Contains(t, out, "Function main -> int")
	assert.Contains(t, out, "Return 0")
}

func TestPrimitiveStrings(t *testing.T) {
	assert.Equal(t, "char*", PCharPtr.String())
	assert.Equal(t, "void", PVoid.String())
	assert.Equal(t, "none", PNone.String())
}
