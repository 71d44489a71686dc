package types

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
)

// IsInteger reports whether p is one of the integer value types.
func IsInteger(p ast.Primitive) bool {
	return p == ast.PChar || p == ast.PInt || p == ast.PLong
}

// IsPointer reports whether p is a pointer type.
func IsPointer(p ast.Primitive) bool {
	switch p {
	case ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		return true
	}
	return false
}

// PointerTo maps a base type to its pointer form.
func PointerTo(p ast.Primitive) ast.Primitive {
	switch p {
	case ast.PVoid:
		return ast.PVoidPtr
	case ast.PChar:
		return ast.PCharPtr
	case ast.PInt:
		return ast.PIntPtr
	case ast.PLong:
		return ast.PLongPtr
	default:
		diag.Fatalf(diag.Internal, 0, "no pointer form for type %s", p)
		return ast.PNone // unreachable
	}
}

// ValueAt maps a pointer type to the type it points at.
func ValueAt(p ast.Primitive) ast.Primitive {
	switch p {
	case ast.PVoidPtr:
		return ast.PVoid
	case ast.PCharPtr:
		return ast.PChar
	case ast.PIntPtr:
		return ast.PInt
	case ast.PLongPtr:
		return ast.PLong
	default:
		diag.Fatalf(diag.Internal, 0, "no pointee for type %s", p)
		return ast.PNone // unreachable
	}
}

// Size returns the in-memory size of p in bytes. Pointers are always 8.
func Size(p ast.Primitive) int {
	switch p {
	case ast.PChar:
		return 1
	case ast.PInt:
		return 4
	case ast.PLong:
		return 8
	case ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		return 8
	default:
		return 0
	}
}

// ModifyType coerces n so its result is usable against contextType under the
// binary operator op (ast.Nothing when checking an assignment or return).
// It returns the possibly replaced subtree, or nil when the types are
// incompatible. Integer operands may widen but never narrow; an integer
// added to or subtracted from a pointer is scaled by the pointee size.
func ModifyType(n *ast.Node, contextType ast.Primitive, op string) *ast.Node {
	if IsInteger(n.Type) && IsInteger(contextType) {
		if n.Type == contextType {
			return n
		}
		if Size(n.Type) > Size(contextType) {
			// No implicit narrowing.
			return nil
		}
		return ast.MakeUnary(ast.Widen, contextType, n)
	}

	if IsPointer(n.Type) {
		if op == ast.Nothing && n.Type == contextType {
			return n
		}
		return nil
	}

	// An integer index against a pointer is only meaningful for + and -.
	if op == ast.Add || op == ast.Subtract {
		if IsInteger(n.Type) && IsPointer(contextType) {
			size := Size(ValueAt(contextType))
			if size > 1 {
				return ast.MakeScale(contextType, n, size)
			}
			return n // byte-sized pointee, no scaling needed
		}
	}

	return nil
}
