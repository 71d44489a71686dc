package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Debug printer — produces a human-readable tree representation
// ---------------------------------------------------------------------------

// SymName resolves a symbol-table slot to its name for dumping.
type SymName func(slot int) string

// DebugString returns a readable multi-line representation of a tree.
func DebugString(n *Node, name SymName) string {
	var b strings.Builder
	debugNode(&b, n, name, 0)
	return b.String()
}

func writeIndent(b *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		b.WriteString("  ")
	}
}

func debugNode(b *strings.Builder, n *Node, name SymName, level int) {
	if n == nil {
		return
	}
	writeIndent(b, level)

	switch n.Op {
	case Glue:
		b.WriteString("Glue\n")
		debugNode(b, n.Left, name, level+1)
		debugNode(b, n.Right, name, level+1)
		return
	case Function:
		fmt.Fprintf(b, "Function %s -> %s\n", name(n.Sym), n.Type)
		debugNode(b, n.Left, name, level+1)
		return
	case If:
		fmt.Fprintf(b, "If (%s)\n", CompactString(n.Left, name))
		debugNode(b, n.Mid, name, level+1)
		if n.Right != nil {
			writeIndent(b, level+1)
			b.WriteString("Else:\n")
			debugNode(b, n.Right, name, level+2)
		}
		return
	case While:
		fmt.Fprintf(b, "While (%s)\n", CompactString(n.Left, name))
		debugNode(b, n.Right, name, level+1)
		return
	case Return:
		fmt.Fprintf(b, "Return %s\n", CompactString(n.Left, name))
		return
	}

	fmt.Fprintf(b, "%s %s\n", describe(n, name), n.Type)
	debugNode(b, n.Left, name, level+1)
	debugNode(b, n.Mid, name, level+1)
	debugNode(b, n.Right, name, level+1)
}

func describe(n *Node, name SymName) string {
	switch n.Op {
	case IntLit:
		return fmt.Sprintf("IntLit %d", n.IntValue)
	case StrLit:
		return fmt.Sprintf("StrLit L%d", n.Label)
	case Ident:
		if n.Rvalue {
			return fmt.Sprintf("Ident rval %s", name(n.Sym))
		}
		return fmt.Sprintf("Ident %s", name(n.Sym))
	case AddressOf:
		return fmt.Sprintf("AddressOf %s", name(n.Sym))
	case FuncCall:
		return fmt.Sprintf("Call %s", name(n.Sym))
	case Scale:
		return fmt.Sprintf("Scale x%d", n.Size)
	case PreInc, PreDec, PostInc, PostDec:
		return fmt.Sprintf("%s %s", n.Op, name(n.Sym))
	default:
		return n.Op
	}
}

// CompactString returns a concise one-line representation of a subtree.
func CompactString(n *Node, name SymName) string {
	if n == nil {
		return "<nil>"
	}
	switch n.Op {
	case IntLit:
		return fmt.Sprintf("%d", n.IntValue)
	case StrLit:
		return fmt.Sprintf("L%d", n.Label)
	case Ident, AddressOf, PreInc, PreDec, PostInc, PostDec:
		prefix := map[string]string{
			AddressOf: "&", PreInc: "++", PreDec: "--",
		}[n.Op]
		suffix := map[string]string{
			PostInc: "++", PostDec: "--",
		}[n.Op]
		return prefix + name(n.Sym) + suffix
	case Deref:
		return "*" + CompactString(n.Left, name)
	case Negate:
		return "-" + CompactString(n.Left, name)
	case Invert:
		return "~" + CompactString(n.Left, name)
	case LogNot:
		return "!" + CompactString(n.Left, name)
	case Widen, ToBool, Scale:
		return CompactString(n.Left, name)
	case FuncCall:
		return fmt.Sprintf("%s(%s)", name(n.Sym), CompactString(n.Left, name))
	case Assign:
		// Post-order layout: value on the left, destination on the right.
		return fmt.Sprintf("(%s = %s)", CompactString(n.Right, name), CompactString(n.Left, name))
	case Glue:
		return fmt.Sprintf("%s; %s", CompactString(n.Left, name), CompactString(n.Right, name))
	case Return:
		return fmt.Sprintf("return(%s)", CompactString(n.Left, name))
	case If:
		s := fmt.Sprintf("if (%s) { %s }", CompactString(n.Left, name), CompactString(n.Mid, name))
		if n.Right != nil {
			s += fmt.Sprintf(" else { %s }", CompactString(n.Right, name))
		}
		return s
	case While:
		return fmt.Sprintf("while (%s) { %s }", CompactString(n.Left, name), CompactString(n.Right, name))
	case Function:
		return fmt.Sprintf("%s() { %s }", name(n.Sym), CompactString(n.Left, name))
	default:
		if sym, ok := binarySymbols[n.Op]; ok {
			return fmt.Sprintf("(%s %s %s)", CompactString(n.Left, name), sym, CompactString(n.Right, name))
		}
		return n.Op
	}
}

var binarySymbols = map[string]string{
	Add: "+", Subtract: "-", Multiply: "*", Divide: "/",
	Eq: "==", Ne: "!=", Lt: "<", Gt: ">", Le: "<=", Ge: ">=",
	Lshift: "<<", Rshift: ">>",
	BitAnd: "&", BitOr: "|", BitXor: "^",
	LogAnd: "&&", LogOr: "||",
}
