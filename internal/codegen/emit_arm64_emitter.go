package codegen

import (
	"fmt"
	"io"
	"strings"

	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/symtab"
)

// ---------------------------------------------------------------------------
// AArch64 GNU-as emitter
//
// Eight caller-saved scratch registers x9–x16. x0 doubles as the address
// temporary for global loads and stores, and carries arguments and return
// values per AAPCS64. Assemble the output with:
//   $ as out.s -o out.o
//   $ ld out.o runtime.o -o out
// ---------------------------------------------------------------------------

var (
	arm64XRegs = []string{"x9", "x10", "x11", "x12", "x13", "x14", "x15", "x16"}
	arm64WRegs = []string{"w9", "w10", "w11", "w12", "w13", "w14", "w15", "w16"}
)

type arm64Emitter struct {
	w    io.Writer
	syms *symtab.Table
	regs regPool

	localOffset int
	stackOffset int
}

func newARM64Emitter(w io.Writer, syms *symtab.Table) *arm64Emitter {
	return &arm64Emitter{w: w, syms: syms, regs: newRegPool(len(arm64XRegs))}
}

func (e *arm64Emitter) emitf(format string, args ...interface{}) {
	fmt.Fprintf(e.w, format, args...)
}

func (e *arm64Emitter) ResetRegisters() { e.regs.reset() }

// ---------------------------------------------------------------------------
// Preamble / postamble
// ---------------------------------------------------------------------------

func (e *arm64Emitter) Preamble() {
	e.regs.reset()
	e.emitf("\t.text\n")
	e.emitf("\t.extern\tprintint\n")
	e.emitf("\t.extern\tprintchar\n")
	e.emitf("\t.extern\tprintstring\n")
}

func (e *arm64Emitter) Postamble() {}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (e *arm64Emitter) FunctionPreamble(sym int) {
	name := e.syms.Get(sym).Name
	e.stackOffset = (e.localOffset + 15) &^ 15

	e.emitf("\t.text\n")
	e.emitf("\t.globl\t%s\n", name)
	e.emitf("%s:\n", name)
	e.emitf("\tstp\tx29, x30, [sp, -16]!\n")
	e.emitf("\tmov\tx29, sp\n")
	if e.stackOffset > 0 {
		e.emitf("\tsub\tsp, sp, #%d\n", e.stackOffset)
	}
}

func (e *arm64Emitter) FunctionPostamble(sym int) {
	e.Label(e.syms.Get(sym).EndLabel)
	if e.stackOffset > 0 {
		e.emitf("\tadd\tsp, sp, #%d\n", e.stackOffset)
	}
	e.emitf("\tldp\tx29, x30, [sp], 16\n")
	e.emitf("\tret\n")
}

func (e *arm64Emitter) FunctionCall(reg, sym int) int {
	out := e.regs.allocate()
	if reg != NoReg {
		e.emitf("\tmov\tx0, %s\n", arm64XRegs[reg])
	}
	e.emitf("\tbl\t%s\n", e.syms.Get(sym).Name)
	e.emitf("\tmov\t%s, x0\n", arm64XRegs[out])
	if reg != NoReg {
		e.regs.release(reg)
	}
	return out
}

func (e *arm64Emitter) ReturnFromFunction(reg, sym int) {
	switch e.syms.Get(sym).Type {
	case ast.PChar, ast.PInt:
		e.emitf("\tmov\tw0, %s\n", arm64WRegs[reg])
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tmov\tx0, %s\n", arm64XRegs[reg])
	default:
		diag.Fatalf(diag.Internal, 0, "bad return type %s", e.syms.Get(sym).Type)
	}
	e.Jump(e.syms.Get(sym).EndLabel)
}

// ---------------------------------------------------------------------------
// Data declarations
// ---------------------------------------------------------------------------

// p2AlignFor returns log2 of a power-of-two alignment for .p2align.
func p2AlignFor(alignment int) int {
	switch alignment {
	case 8:
		return 3
	case 4:
		return 2
	case 2:
		return 1
	default:
		return 0
	}
}

func (e *arm64Emitter) DeclareGlobalSymbol(sym int) {
	entry := e.syms.Get(sym)
	elemSize := e.PrimitiveSize(entry.Type)
	if elemSize <= 0 {
		diag.Fatalf(diag.Internal, 0, "bad element size for symbol %s", entry.Name)
	}

	count := 1
	if entry.Structural == symtab.Array {
		count = entry.Size
		if count <= 0 || count > int(^uint(0)>>1)/elemSize {
			diag.Fatalf(diag.Semantic, 0, "bad array size %d for symbol %s", count, entry.Name)
		}
	}

	e.emitf("\t.section\t.bss\n")
	e.emitf("\t.globl\t%s\n", entry.Name)
	e.emitf("\t.p2align\t%d\n", p2AlignFor(alignPow2(elemSize)))
	e.emitf("%s:\n", entry.Name)
	e.emitf("\t.zero\t%d\n", elemSize*count)
}

func (e *arm64Emitter) DeclareGlobalString(label int, value string) {
	e.emitf("\t.section\t.rodata\n")
	e.Label(label)
	e.emitf("%s", gasAscii(value))
	e.emitf("\t.byte\t0\n")
}

// gasAscii renders a string as .ascii directives, switching to .byte for
// bytes with no printable or escaped form.
func gasAscii(s string) string {
	var b strings.Builder
	b.WriteString("\t.ascii\t\"")
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteString(fmt.Sprintf("\"\n\t.byte\t%d\n\t.ascii\t\"", c))
			}
		}
	}
	b.WriteString("\"\n")
	return b.String()
}

func (e *arm64Emitter) LoadGlobalString(label int) int {
	r := e.regs.allocate()
	e.emitf("\tadrp\t%s, L%d\n", arm64XRegs[r], label)
	e.emitf("\tadd\t%s, %s, :lo12:L%d\n", arm64XRegs[r], arm64XRegs[r], label)
	return r
}

// ---------------------------------------------------------------------------
// Loads and stores
// ---------------------------------------------------------------------------

func (e *arm64Emitter) LoadImmediate(value int, p ast.Primitive) int {
	r := e.regs.allocate()
	e.emitf("\tmov\t%s, #%d\n", arm64XRegs[r], value)
	return r
}

// loadGlobalAddress computes a global's address into x0 with a PC-relative
// adrp/add pair.
func (e *arm64Emitter) loadGlobalAddress(name string) {
	e.emitf("\tadrp\tx0, %s\n", name)
	e.emitf("\tadd\tx0, x0, :lo12:%s\n", name)
}

// typedLoad emits the load matching a value type from the given address
// operand into register r.
func (e *arm64Emitter) typedLoad(r int, p ast.Primitive, addr string) {
	switch p {
	case ast.PChar:
		e.emitf("\tldrb\t%s, %s\n", arm64WRegs[r], addr)
	case ast.PInt:
		e.emitf("\tldr\t%s, %s\n", arm64WRegs[r], addr)
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tldr\t%s, %s\n", arm64XRegs[r], addr)
	default:
		diag.Fatalf(diag.Internal, 0, "cannot load type %s", p)
	}
}

// typedStore emits the store matching a value type of register r to the
// given address operand.
func (e *arm64Emitter) typedStore(r int, p ast.Primitive, addr string) {
	switch p {
	case ast.PChar:
		e.emitf("\tstrb\t%s, %s\n", arm64WRegs[r], addr)
	case ast.PInt:
		e.emitf("\tstr\t%s, %s\n", arm64WRegs[r], addr)
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tstr\t%s, %s\n", arm64XRegs[r], addr)
	default:
		diag.Fatalf(diag.Internal, 0, "cannot store type %s", p)
	}
}

// loadWithIncDec loads through addr into a fresh register, applying any
// pre/post increment or decrement by rewriting the stored value.
func (e *arm64Emitter) loadWithIncDec(p ast.Primitive, addr, op string) int {
	r := e.regs.allocate()
	e.typedLoad(r, p, addr)
	if op == ast.Nothing || op == "" {
		return r
	}

	t := e.regs.allocate()
	switch op {
	case ast.PreInc, ast.PostInc:
		e.emitf("\tadd\t%s, %s, #1\n", arm64XRegs[t], arm64XRegs[r])
	case ast.PreDec, ast.PostDec:
		e.emitf("\tsub\t%s, %s, #1\n", arm64XRegs[t], arm64XRegs[r])
	}
	e.typedStore(t, p, addr)
	if op == ast.PreInc || op == ast.PreDec {
		e.emitf("\tmov\t%s, %s\n", arm64XRegs[r], arm64XRegs[t])
	}
	e.regs.release(t)
	return r
}

func (e *arm64Emitter) LoadGlobal(sym int, op string) int {
	entry := e.syms.Get(sym)
	e.loadGlobalAddress(entry.Name)
	return e.loadWithIncDec(entry.Type, "[x0]", op)
}

func (e *arm64Emitter) LoadLocal(sym int, op string) int {
	entry := e.syms.Get(sym)
	return e.loadWithIncDec(entry.Type, fmt.Sprintf("[x29, %d]", entry.Offset), op)
}

func (e *arm64Emitter) StoreGlobal(reg, sym int) int {
	entry := e.syms.Get(sym)
	e.loadGlobalAddress(entry.Name)
	e.typedStore(reg, entry.Type, "[x0]")
	return reg
}

func (e *arm64Emitter) StoreLocal(reg, sym int) int {
	entry := e.syms.Get(sym)
	e.typedStore(reg, entry.Type, fmt.Sprintf("[x29, %d]", entry.Offset))
	return reg
}

// ---------------------------------------------------------------------------
// Arithmetic and shifts
// ---------------------------------------------------------------------------

func (e *arm64Emitter) Add(r1, r2 int) int {
	e.emitf("\tadd\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) Subtract(r1, r2 int) int {
	e.emitf("\tsub\t%s, %s, %s\n", arm64XRegs[r1], arm64XRegs[r1], arm64XRegs[r2])
	e.regs.release(r2)
	return r1
}

func (e *arm64Emitter) Multiply(r1, r2 int) int {
	e.emitf("\tmul\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) DivideSigned(r1, r2 int) int {
	e.emitf("\tsdiv\t%s, %s, %s\n", arm64XRegs[r1], arm64XRegs[r1], arm64XRegs[r2])
	e.regs.release(r2)
	return r1
}

func (e *arm64Emitter) ShiftLeft(r1, r2 int) int {
	e.emitf("\tlsl\t%s, %s, %s\n", arm64XRegs[r1], arm64XRegs[r1], arm64XRegs[r2])
	e.regs.release(r2)
	return r1
}

func (e *arm64Emitter) ShiftRight(r1, r2 int) int {
	e.emitf("\tasr\t%s, %s, %s\n", arm64XRegs[r1], arm64XRegs[r1], arm64XRegs[r2])
	e.regs.release(r2)
	return r1
}

func (e *arm64Emitter) ShiftLeftConst(reg, amount int) int {
	e.emitf("\tlsl\t%s, %s, #%d\n", arm64XRegs[reg], arm64XRegs[reg], amount)
	return reg
}

// ---------------------------------------------------------------------------
// Bitwise and logical operations
// ---------------------------------------------------------------------------

func (e *arm64Emitter) BitwiseAnd(r1, r2 int) int {
	e.emitf("\tand\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) BitwiseOr(r1, r2 int) int {
	e.emitf("\torr\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) BitwiseXor(r1, r2 int) int {
	e.emitf("\teor\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) Negate(reg int) int {
	e.emitf("\tneg\t%s, %s\n", arm64XRegs[reg], arm64XRegs[reg])
	return reg
}

func (e *arm64Emitter) Invert(reg int) int {
	e.emitf("\tmvn\t%s, %s\n", arm64XRegs[reg], arm64XRegs[reg])
	return reg
}

func (e *arm64Emitter) LogicalNot(reg int) int {
	e.emitf("\tcmp\t%s, #0\n", arm64XRegs[reg])
	e.emitf("\tcset\t%s, eq\n", arm64WRegs[reg])
	return reg
}

func (e *arm64Emitter) normalizeBool(reg int) {
	e.emitf("\tcmp\t%s, #0\n", arm64XRegs[reg])
	e.emitf("\tcset\t%s, ne\n", arm64WRegs[reg])
}

func (e *arm64Emitter) LogicalAnd(r1, r2 int) int {
	e.normalizeBool(r1)
	e.normalizeBool(r2)
	e.emitf("\tand\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) LogicalOr(r1, r2 int) int {
	e.normalizeBool(r1)
	e.normalizeBool(r2)
	e.emitf("\torr\t%s, %s, %s\n", arm64XRegs[r2], arm64XRegs[r2], arm64XRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) ToBoolean(reg int, parentOp string, label int) int {
	e.emitf("\tcmp\t%s, #0\n", arm64XRegs[reg])
	if parentOp == ast.If || parentOp == ast.While {
		// The branch is taken when the condition is false (zero).
		e.emitf("\tbeq\tL%d\n", label)
		return reg
	}
	e.emitf("\tcset\t%s, ne\n", arm64WRegs[reg])
	return reg
}

// ---------------------------------------------------------------------------
// Comparisons
// ---------------------------------------------------------------------------

var arm64Cond = map[string]string{
	ast.Eq: "eq", ast.Ne: "ne",
	ast.Lt: "lt", ast.Gt: "gt",
	ast.Le: "le", ast.Ge: "ge",
}

// arm64InvBranch maps a comparison to the branch taken when it is FALSE.
var arm64InvBranch = map[string]string{
	ast.Eq: "bne", ast.Ne: "beq",
	ast.Lt: "bge", ast.Gt: "ble",
	ast.Le: "bgt", ast.Ge: "blt",
}

func (e *arm64Emitter) CompareAndSet(op string, r1, r2 int) int {
	cond, ok := arm64Cond[op]
	if !ok {
		diag.Fatalf(diag.Internal, 0, "bad comparison operator %s", op)
	}
	e.emitf("\tcmp\t%s, %s\n", arm64XRegs[r1], arm64XRegs[r2])
	e.emitf("\tcset\t%s, %s\n", arm64WRegs[r2], cond)
	e.regs.release(r1)
	return r2
}

func (e *arm64Emitter) CompareAndJump(op string, r1, r2, label int) int {
	branch, ok := arm64InvBranch[op]
	if !ok {
		diag.Fatalf(diag.Internal, 0, "bad comparison operator %s", op)
	}
	e.emitf("\tcmp\t%s, %s\n", arm64XRegs[r1], arm64XRegs[r2])
	e.emitf("\t%s\tL%d\n", branch, label)
	e.regs.reset()
	return NoReg
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (e *arm64Emitter) Label(label int) {
	e.emitf("L%d:\n", label)
}

func (e *arm64Emitter) Jump(label int) {
	e.emitf("\tb\tL%d\n", label)
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Widen is a no-op: loads already zero-extend into 64-bit registers.
func (e *arm64Emitter) Widen(reg int, from, to ast.Primitive) int {
	return reg
}

func (e *arm64Emitter) PrimitiveSize(p ast.Primitive) int {
	switch p {
	case ast.PChar:
		return 1
	case ast.PInt:
		return 4
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		return 8
	case ast.PVoid, ast.PNone:
		return 0
	default:
		diag.Fatalf(diag.Internal, 0, "invalid primitive type %d", p)
		return 0 // unreachable
	}
}

// ---------------------------------------------------------------------------
// Pointers
// ---------------------------------------------------------------------------

func (e *arm64Emitter) AddressOf(sym int) int {
	r := e.regs.allocate()
	entry := e.syms.Get(sym)
	if entry.Class == symtab.Local {
		e.emitf("\tsub\t%s, x29, #%d\n", arm64XRegs[r], -entry.Offset)
		return r
	}
	e.emitf("\tadrp\t%s, %s\n", arm64XRegs[r], entry.Name)
	e.emitf("\tadd\t%s, %s, :lo12:%s\n", arm64XRegs[r], arm64XRegs[r], entry.Name)
	return r
}

func (e *arm64Emitter) Dereference(reg int, ptrType ast.Primitive) int {
	addr := fmt.Sprintf("[%s]", arm64XRegs[reg])
	switch ptrType {
	case ast.PCharPtr:
		e.emitf("\tldrb\t%s, %s\n", arm64WRegs[reg], addr)
	case ast.PIntPtr:
		e.emitf("\tldr\t%s, %s\n", arm64WRegs[reg], addr)
	case ast.PVoidPtr, ast.PLongPtr:
		e.emitf("\tldr\t%s, %s\n", arm64XRegs[reg], addr)
	default:
		diag.Fatalf(diag.Internal, 0, "cannot dereference type %s", ptrType)
	}
	return reg
}

func (e *arm64Emitter) StoreThroughPointer(valueReg, ptrReg int, p ast.Primitive) int {
	e.typedStore(valueReg, p, fmt.Sprintf("[%s]", arm64XRegs[ptrReg]))
	return valueReg
}

// ---------------------------------------------------------------------------
// Local frame layout
// ---------------------------------------------------------------------------

func (e *arm64Emitter) ResetLocalOffset() {
	e.localOffset = 0
}

func (e *arm64Emitter) LocalOffset(p ast.Primitive) int {
	size := e.PrimitiveSize(p)
	if size < 4 {
		size = 4
	}
	e.localOffset += size
	return -e.localOffset
}
