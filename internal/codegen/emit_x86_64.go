package codegen

import (
	"fmt"
	"io"

	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/symtab"
)

// ---------------------------------------------------------------------------
// x86-64 NASM (Intel syntax) emitter
//
// Four scratch registers r8–r11, each usable through its 64/32/8-bit names.
// Assemble the output with:
//   $ nasm -f elf64 out.s -o out.o
//   $ ld out.o runtime.o -o out
// ---------------------------------------------------------------------------

var (
	x64QwordRegs = []string{"r8", "r9", "r10", "r11"}
	x64DwordRegs = []string{"r8d", "r9d", "r10d", "r11d"}
	x64ByteRegs  = []string{"r8b", "r9b", "r10b", "r11b"}
)

type x86_64Emitter struct {
	w    io.Writer
	syms *symtab.Table
	regs regPool

	localOffset int // bytes of locals reserved so far in the current function
	stackOffset int // 16-byte-aligned frame reservation, set at preamble time
}

func newX86_64Emitter(w io.Writer, syms *symtab.Table) *x86_64Emitter {
	return &x86_64Emitter{w: w, syms: syms, regs: newRegPool(len(x64QwordRegs))}
}

func (e *x86_64Emitter) emitf(format string, args ...interface{}) {
	fmt.Fprintf(e.w, format, args...)
}

func (e *x86_64Emitter) ResetRegisters() { e.regs.reset() }

// ---------------------------------------------------------------------------
// Preamble / postamble
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) Preamble() {
	e.regs.reset()
	e.emitf("\textern\tprintint\n")
	e.emitf("\textern\tprintchar\n")
	e.emitf("\textern\tprintstring\n")
	e.emitf("\tsection\t.text\n")
}

func (e *x86_64Emitter) Postamble() {}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) FunctionPreamble(sym int) {
	name := e.syms.Get(sym).Name

	// Round the local area up to the 16-byte alignment the ABI requires.
	e.stackOffset = (e.localOffset + 15) &^ 15

	e.emitf("\tsection\t.text\n")
	e.emitf("\tglobal\t%s\n", name)
	e.emitf("%s:\n", name)
	e.emitf("\tpush\trbp\n")
	e.emitf("\tmov\trbp, rsp\n")
	if e.stackOffset > 0 {
		e.emitf("\tadd\trsp, -%d\n", e.stackOffset)
	}
}

func (e *x86_64Emitter) FunctionPostamble(sym int) {
	e.Label(e.syms.Get(sym).EndLabel)
	if e.stackOffset > 0 {
		e.emitf("\tadd\trsp, %d\n", e.stackOffset)
	}
	e.emitf("\tpop\trbp\n")
	e.emitf("\tret\n")
}

func (e *x86_64Emitter) FunctionCall(reg, sym int) int {
	out := e.regs.allocate()
	if reg != NoReg {
		e.emitf("\tmov\trdi, %s\n", x64QwordRegs[reg])
	}
	e.emitf("\tcall\t%s\n", e.syms.Get(sym).Name)
	e.emitf("\tmov\t%s, rax\n", x64QwordRegs[out])
	if reg != NoReg {
		e.regs.release(reg)
	}
	return out
}

func (e *x86_64Emitter) ReturnFromFunction(reg, sym int) {
	// The return value is narrowed to the declared return type in rax.
	switch e.syms.Get(sym).Type {
	case ast.PChar:
		e.emitf("\tmovzx\teax, %s\n", x64ByteRegs[reg])
	case ast.PInt:
		e.emitf("\tmov\teax, %s\n", x64DwordRegs[reg])
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tmov\trax, %s\n", x64QwordRegs[reg])
	default:
		diag.Fatalf(diag.Internal, 0, "bad return type %s", e.syms.Get(sym).Type)
	}
	e.Jump(e.syms.Get(sym).EndLabel)
}

// ---------------------------------------------------------------------------
// Data declarations
// ---------------------------------------------------------------------------

// alignPow2 returns the largest power-of-two alignment <= n, capped at 8.
func alignPow2(n int) int {
	switch {
	case n >= 8:
		return 8
	case n >= 4:
		return 4
	case n >= 2:
		return 2
	default:
		return 1
	}
}

func (e *x86_64Emitter) DeclareGlobalSymbol(sym int) {
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

	e.emitf("\tsection\t.bss\n")
	e.emitf("\talign\t%d\n", alignPow2(elemSize))
	e.emitf("\tglobal\t%s\n", entry.Name)
	e.emitf("%s:\n", entry.Name)

	// One reservation directive matching the element width, with a count.
	switch elemSize {
	case 1:
		e.emitf("\tresb\t%d\n", count)
	case 2:
		e.emitf("\tresw\t%d\n", count)
	case 4:
		e.emitf("\tresd\t%d\n", count)
	case 8:
		e.emitf("\tresq\t%d\n", count)
	default:
		e.emitf("\tresb\t%d\n", elemSize*count)
	}
}

func (e *x86_64Emitter) DeclareGlobalString(label int, value string) {
	e.emitf("\tsection\t.rodata\n")
	e.emitf("L%d:\n", label)
	e.emitf("\tdb\t%s0\n", nasmBytes(value))
}

// nasmBytes renders a string as NASM db operands: printable runs in double
// quotes, everything else as numeric bytes, each followed by a comma.
func nasmBytes(s string) string {
	out := ""
	run := ""
	flush := func() {
		if run != "" {
			out += "\"" + run + "\", "
			run = ""
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 32 && c <= 126 && c != '"' && c != '\\' {
			run += string(c)
			continue
		}
		flush()
		out += fmt.Sprintf("%d, ", c)
	}
	flush()
	return out
}

func (e *x86_64Emitter) LoadGlobalString(label int) int {
	r := e.regs.allocate()
	e.emitf("\tlea\t%s, [rel L%d]\n", x64QwordRegs[r], label)
	return r
}

// ---------------------------------------------------------------------------
// Loads and stores
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) LoadImmediate(value int, p ast.Primitive) int {
	r := e.regs.allocate()
	e.emitf("\tmov\t%s, %d\n", x64QwordRegs[r], value)
	return r
}

// incDecMem emits the increment or decrement half of a ++/-- load against a
// sized memory operand.
func (e *x86_64Emitter) incDecMem(op string, sizeTag, operand string) {
	switch op {
	case ast.PreInc, ast.PostInc:
		e.emitf("\tinc\t%s %s\n", sizeTag, operand)
	case ast.PreDec, ast.PostDec:
		e.emitf("\tdec\t%s %s\n", sizeTag, operand)
	}
}

func sizeTagFor(p ast.Primitive) string {
	switch p {
	case ast.PChar:
		return "byte"
	case ast.PInt:
		return "dword"
	default:
		return "qword"
	}
}

// loadMem loads a sized memory operand into a fresh register, applying any
// pre/post increment or decrement around the load.
func (e *x86_64Emitter) loadMem(p ast.Primitive, operand, op string) int {
	r := e.regs.allocate()
	tag := sizeTagFor(p)

	if op == ast.PreInc || op == ast.PreDec {
		e.incDecMem(op, tag, operand)
	}

	switch p {
	case ast.PChar:
		e.emitf("\tmovzx\t%s, byte %s\n", x64QwordRegs[r], operand)
	case ast.PInt:
		e.emitf("\txor\t%s, %s\n", x64QwordRegs[r], x64QwordRegs[r])
		e.emitf("\tmov\t%s, dword %s\n", x64DwordRegs[r], operand)
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tmov\t%s, %s\n", x64QwordRegs[r], operand)
	default:
		diag.Fatalf(diag.Internal, 0, "cannot load type %s", p)
	}

	if op == ast.PostInc || op == ast.PostDec {
		e.incDecMem(op, tag, operand)
	}
	return r
}

func (e *x86_64Emitter) LoadGlobal(sym int, op string) int {
	entry := e.syms.Get(sym)
	return e.loadMem(entry.Type, fmt.Sprintf("[%s]", entry.Name), op)
}

func (e *x86_64Emitter) LoadLocal(sym int, op string) int {
	entry := e.syms.Get(sym)
	return e.loadMem(entry.Type, fmt.Sprintf("[rbp%+d]", entry.Offset), op)
}

// storeMem stores a register into a sized memory operand.
func (e *x86_64Emitter) storeMem(reg int, p ast.Primitive, operand string) int {
	switch p {
	case ast.PChar:
		e.emitf("\tmov\t%s, %s\n", operand, x64ByteRegs[reg])
	case ast.PInt:
		e.emitf("\tmov\t%s, %s\n", operand, x64DwordRegs[reg])
	case ast.PLong, ast.PVoidPtr, ast.PCharPtr, ast.PIntPtr, ast.PLongPtr:
		e.emitf("\tmov\t%s, %s\n", operand, x64QwordRegs[reg])
	default:
		diag.Fatalf(diag.Internal, 0, "cannot store type %s", p)
	}
	return reg
}

func (e *x86_64Emitter) StoreGlobal(reg, sym int) int {
	entry := e.syms.Get(sym)
	return e.storeMem(reg, entry.Type, fmt.Sprintf("[%s]", entry.Name))
}

func (e *x86_64Emitter) StoreLocal(reg, sym int) int {
	entry := e.syms.Get(sym)
	return e.storeMem(reg, entry.Type, fmt.Sprintf("[rbp%+d]", entry.Offset))
}

// ---------------------------------------------------------------------------
// Arithmetic and shifts
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) Add(r1, r2 int) int {
	e.emitf("\tadd\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) Subtract(r1, r2 int) int {
	e.emitf("\tsub\t%s, %s\n", x64QwordRegs[r1], x64QwordRegs[r2])
	e.regs.release(r2)
	return r1
}

func (e *x86_64Emitter) Multiply(r1, r2 int) int {
	e.emitf("\timul\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) DivideSigned(r1, r2 int) int {
	// Sign-extend the dividend into rdx:rax before idiv.
	e.emitf("\tmov\trax, %s\n", x64QwordRegs[r1])
	e.emitf("\tcqo\n")
	e.emitf("\tidiv\t%s\n", x64QwordRegs[r2])
	e.emitf("\tmov\t%s, rax\n", x64QwordRegs[r1])
	e.regs.release(r2)
	return r1
}

func (e *x86_64Emitter) ShiftLeft(r1, r2 int) int {
	e.emitf("\tmov\trcx, %s\n", x64QwordRegs[r2])
	e.emitf("\tshl\t%s, cl\n", x64QwordRegs[r1])
	e.regs.release(r2)
	return r1
}

func (e *x86_64Emitter) ShiftRight(r1, r2 int) int {
	e.emitf("\tmov\trcx, %s\n", x64QwordRegs[r2])
	e.emitf("\tsar\t%s, cl\n", x64QwordRegs[r1])
	e.regs.release(r2)
	return r1
}

func (e *x86_64Emitter) ShiftLeftConst(reg, amount int) int {
	e.emitf("\tshl\t%s, %d\n", x64QwordRegs[reg], amount)
	return reg
}

// ---------------------------------------------------------------------------
// Bitwise and logical operations
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) BitwiseAnd(r1, r2 int) int {
	e.emitf("\tand\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) BitwiseOr(r1, r2 int) int {
	e.emitf("\tor\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) BitwiseXor(r1, r2 int) int {
	e.emitf("\txor\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) Negate(reg int) int {
	e.emitf("\tneg\t%s\n", x64QwordRegs[reg])
	return reg
}

func (e *x86_64Emitter) Invert(reg int) int {
	e.emitf("\tnot\t%s\n", x64QwordRegs[reg])
	return reg
}

func (e *x86_64Emitter) LogicalNot(reg int) int {
	e.emitf("\ttest\t%s, %s\n", x64QwordRegs[reg], x64QwordRegs[reg])
	e.emitf("\tsete\t%s\n", x64ByteRegs[reg])
	e.emitf("\tmovzx\t%s, %s\n", x64QwordRegs[reg], x64ByteRegs[reg])
	return reg
}

// normalizeBool folds a register to exactly 0 or 1.
func (e *x86_64Emitter) normalizeBool(reg int) {
	e.emitf("\ttest\t%s, %s\n", x64QwordRegs[reg], x64QwordRegs[reg])
	e.emitf("\tsetne\t%s\n", x64ByteRegs[reg])
	e.emitf("\tmovzx\t%s, %s\n", x64QwordRegs[reg], x64ByteRegs[reg])
}

func (e *x86_64Emitter) LogicalAnd(r1, r2 int) int {
	e.normalizeBool(r1)
	e.normalizeBool(r2)
	e.emitf("\tand\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) LogicalOr(r1, r2 int) int {
	e.normalizeBool(r1)
	e.normalizeBool(r2)
	e.emitf("\tor\t%s, %s\n", x64QwordRegs[r2], x64QwordRegs[r1])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) ToBoolean(reg int, parentOp string, label int) int {
	e.emitf("\ttest\t%s, %s\n", x64QwordRegs[reg], x64QwordRegs[reg])
	if parentOp == ast.If || parentOp == ast.While {
		// The branch is taken when the condition is false (zero).
		e.emitf("\tje\tL%d\n", label)
		return reg
	}
	e.emitf("\tsetnz\t%s\n", x64ByteRegs[reg])
	e.emitf("\tmovzx\t%s, %s\n", x64QwordRegs[reg], x64ByteRegs[reg])
	return reg
}

// ---------------------------------------------------------------------------
// Comparisons
// ---------------------------------------------------------------------------

var x64SetInstr = map[string]string{
	ast.Eq: "sete", ast.Ne: "setne",
	ast.Lt: "setl", ast.Gt: "setg",
	ast.Le: "setle", ast.Ge: "setge",
}

// x64InvJump maps a comparison to the jump taken when it is FALSE.
var x64InvJump = map[string]string{
	ast.Eq: "jne", ast.Ne: "je",
	ast.Lt: "jge", ast.Gt: "jle",
	ast.Le: "jg", ast.Ge: "jl",
}

func (e *x86_64Emitter) CompareAndSet(op string, r1, r2 int) int {
	instr, ok := x64SetInstr[op]
	if !ok {
		diag.Fatalf(diag.Internal, 0, "bad comparison operator %s", op)
	}
	e.emitf("\tcmp\t%s, %s\n", x64QwordRegs[r1], x64QwordRegs[r2])
	e.emitf("\t%s\t%s\n", instr, x64ByteRegs[r2])
	e.emitf("\tmovzx\t%s, %s\n", x64QwordRegs[r2], x64ByteRegs[r2])
	e.regs.release(r1)
	return r2
}

func (e *x86_64Emitter) CompareAndJump(op string, r1, r2, label int) int {
	instr, ok := x64InvJump[op]
	if !ok {
		diag.Fatalf(diag.Internal, 0, "bad comparison operator %s", op)
	}
	e.emitf("\tcmp\t%s, %s\n", x64QwordRegs[r1], x64QwordRegs[r2])
	e.emitf("\t%s\tL%d\n", instr, label)
	e.regs.reset()
	return NoReg
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) Label(label int) {
	e.emitf("L%d:\n", label)
}

func (e *x86_64Emitter) Jump(label int) {
	e.emitf("\tjmp\tL%d\n", label)
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Widen is a no-op: every scratch register already holds a 64-bit value.
func (e *x86_64Emitter) Widen(reg int, from, to ast.Primitive) int {
	return reg
}

func (e *x86_64Emitter) PrimitiveSize(p ast.Primitive) int {
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

func (e *x86_64Emitter) AddressOf(sym int) int {
	r := e.regs.allocate()
	entry := e.syms.Get(sym)
	if entry.Class == symtab.Local {
		e.emitf("\tlea\t%s, [rbp%+d]\n", x64QwordRegs[r], entry.Offset)
	} else {
		e.emitf("\tlea\t%s, [rel %s]\n", x64QwordRegs[r], entry.Name)
	}
	return r
}

func (e *x86_64Emitter) Dereference(reg int, ptrType ast.Primitive) int {
	switch ptrType {
	case ast.PCharPtr:
		e.emitf("\tmovzx\t%s, byte [%s]\n", x64QwordRegs[reg], x64QwordRegs[reg])
	case ast.PIntPtr:
		e.emitf("\tmov\t%s, dword [%s]\n", x64DwordRegs[reg], x64QwordRegs[reg])
	case ast.PVoidPtr, ast.PLongPtr:
		e.emitf("\tmov\t%s, qword [%s]\n", x64QwordRegs[reg], x64QwordRegs[reg])
	default:
		diag.Fatalf(diag.Internal, 0, "cannot dereference type %s", ptrType)
	}
	return reg
}

func (e *x86_64Emitter) StoreThroughPointer(valueReg, ptrReg int, p ast.Primitive) int {
	switch p {
	case ast.PChar:
		e.emitf("\tmov\tbyte [%s], %s\n", x64QwordRegs[ptrReg], x64ByteRegs[valueReg])
	case ast.PInt:
		e.emitf("\tmov\tdword [%s], %s\n", x64QwordRegs[ptrReg], x64DwordRegs[valueReg])
	case ast.PLong:
		e.emitf("\tmov\tqword [%s], %s\n", x64QwordRegs[ptrReg], x64QwordRegs[valueReg])
	default:
		diag.Fatalf(diag.Internal, 0, "cannot store type %s through pointer", p)
	}
	return valueReg
}

// ---------------------------------------------------------------------------
// Local frame layout
// ---------------------------------------------------------------------------

func (e *x86_64Emitter) ResetLocalOffset() {
	e.localOffset = 0
}

// LocalOffset reserves a frame slot for one local; slots are at least four
// bytes wide so ints and chars share the same stride.
func (e *x86_64Emitter) LocalOffset(p ast.Primitive) int {
	size := e.PrimitiveSize(p)
	if size < 4 {
		size = 4
	}
	e.localOffset += size
	return -e.localOffset
}
