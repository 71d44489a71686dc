package codegen

import (
	"fmt"
	"io"

	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/symtab"
)

// ---------------------------------------------------------------------------
// Target — the assembly flavors the compiler can emit
// ---------------------------------------------------------------------------

// Target identifies a code-generation target.
type Target int

const (
	TargetNASM    Target = iota // x86-64, NASM (Intel) syntax
	TargetAArch64               // AArch64, GNU as syntax
)

func (t Target) String() string {
	switch t {
	case TargetNASM:
		return "nasm"
	case TargetAArch64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// ResolveTarget maps a --target flag value to a Target.
func ResolveTarget(name string) (Target, error) {
	switch name {
	case "nasm":
		return TargetNASM, nil
	case "aarch64":
		return TargetAArch64, nil
	default:
		return 0, fmt.Errorf("unsupported target %q (only nasm and aarch64 are supported)", name)
	}
}

// NewBackend builds the emitter for a target, writing assembly text to w and
// resolving symbol slots through syms.
func NewBackend(t Target, w io.Writer, syms *symtab.Table) Backend {
	switch t {
	case TargetAArch64:
		return newARM64Emitter(w, syms)
	default:
		return newX86_64Emitter(w, syms)
	}
}

// ---------------------------------------------------------------------------
// Backend — the operation table a target must supply
// ---------------------------------------------------------------------------

// Backend is the complete set of operations the generic generator drives.
// The generator has no target-specific knowledge; everything below emits
// target assembly or answers target-layout questions.
//
// Register-index conventions: operations that consume two registers free one
// and return the other; NoReg means "no register carries a value here".
type Backend interface {
	// Register pool
	ResetRegisters()

	// Whole-file preamble / postamble
	Preamble()
	Postamble()

	// Functions
	FunctionPreamble(sym int)
	FunctionPostamble(sym int)
	FunctionCall(reg, sym int) int
	ReturnFromFunction(reg, sym int)

	// Data declarations
	DeclareGlobalSymbol(sym int)
	DeclareGlobalString(label int, value string)

	// Loads and stores
	LoadImmediate(value int, p ast.Primitive) int
	LoadGlobal(sym int, op string) int
	StoreGlobal(reg, sym int) int
	LoadLocal(sym int, op string) int
	StoreLocal(reg, sym int) int
	LoadGlobalString(label int) int

	// Arithmetic and shifts
	Add(r1, r2 int) int
	Subtract(r1, r2 int) int
	Multiply(r1, r2 int) int
	DivideSigned(r1, r2 int) int
	ShiftLeft(r1, r2 int) int
	ShiftRight(r1, r2 int) int
	ShiftLeftConst(reg, amount int) int

	// Bitwise and logical operations
	BitwiseAnd(r1, r2 int) int
	BitwiseOr(r1, r2 int) int
	BitwiseXor(r1, r2 int) int
	Negate(reg int) int
	Invert(reg int) int
	LogicalNot(reg int) int
	LogicalAnd(r1, r2 int) int
	LogicalOr(r1, r2 int) int
	ToBoolean(reg int, parentOp string, label int) int

	// Comparisons
	CompareAndSet(op string, r1, r2 int) int
	CompareAndJump(op string, r1, r2, label int) int

	// Control flow
	Label(label int)
	Jump(label int)

	// Types
	Widen(reg int, from, to ast.Primitive) int
	PrimitiveSize(p ast.Primitive) int

	// Pointers
	AddressOf(sym int) int
	Dereference(reg int, ptrType ast.Primitive) int
	StoreThroughPointer(valueReg, ptrReg int, p ast.Primitive) int

	// Local frame layout
	ResetLocalOffset()
	LocalOffset(p ast.Primitive) int
}
