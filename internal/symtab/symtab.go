package symtab

import (
	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/diag"
)

// NSymbols is the fixed symbol-table capacity.
const NSymbols = 1024

// Structural is a symbol's kind: scalar variable, function, or array.
type Structural int

const (
	Variable Structural = iota
	Function
	Array
)

func (s Structural) String() string {
	switch s {
	case Variable:
		return "variable"
	case Function:
		return "function"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// Class is a symbol's storage class.
type Class int

const (
	Global Class = iota
	Local
)

// Entry is one named entity known to the compiler.
type Entry struct {
	Name       string
	Type       ast.Primitive
	Structural Structural
	Class      Class
	EndLabel   int // functions: the single exit label
	Size       int // arrays: element count
	Offset     int // locals: frame offset from the base pointer
}

// Table is a fixed-capacity symbol table. Global entries grow up from slot 0;
// local entries grow down from the top. Lookup prefers local over global.
type Table struct {
	syms       [NSymbols]Entry
	nextGlobal int
	nextLocal  int
}

// New returns an empty table.
func New() *Table {
	return &Table{nextLocal: NSymbols - 1}
}

// Get returns the entry in the given slot.
func (t *Table) Get(slot int) *Entry {
	if slot < 0 || slot >= NSymbols {
		diag.Fatalf(diag.Internal, 0, "symbol slot %d out of range", slot)
	}
	return &t.syms[slot]
}

// Name returns the name stored in a slot; used by the AST dumper.
func (t *Table) Name(slot int) string {
	return t.Get(slot).Name
}

// FindGlobal returns the slot of a global symbol, or -1.
func (t *Table) FindGlobal(name string) int {
	for i := 0; i < t.nextGlobal; i++ {
		if t.syms[i].Name == name {
			return i
		}
	}
	return -1
}

// FindLocal returns the slot of a local symbol, or -1.
func (t *Table) FindLocal(name string) int {
	for i := t.nextLocal + 1; i < NSymbols; i++ {
		if t.syms[i].Name == name {
			return i
		}
	}
	return -1
}

// Find looks a name up locally first, then globally. Returns -1 if absent.
func (t *Table) Find(name string) int {
	if slot := t.FindLocal(name); slot != -1 {
		return slot
	}
	return t.FindGlobal(name)
}

func (t *Table) newGlobalSlot() int {
	if t.nextGlobal > t.nextLocal {
		diag.Fatalf(diag.Internal, 0, "too many global symbols (limit %d)", NSymbols)
	}
	slot := t.nextGlobal
	t.nextGlobal++
	return slot
}

func (t *Table) newLocalSlot() int {
	if t.nextLocal < t.nextGlobal {
		diag.Fatalf(diag.Internal, 0, "too many local symbols (limit %d)", NSymbols)
	}
	slot := t.nextLocal
	t.nextLocal--
	return slot
}

// AddGlobal inserts a global symbol and returns its slot. Inserting a name
// that already exists returns the existing slot unchanged.
func (t *Table) AddGlobal(name string, p ast.Primitive, structural Structural, endLabel, size int) int {
	if slot := t.FindGlobal(name); slot != -1 {
		return slot
	}
	slot := t.newGlobalSlot()
	t.syms[slot] = Entry{
		Name:       name,
		Type:       p,
		Structural: structural,
		Class:      Global,
		EndLabel:   endLabel,
		Size:       size,
	}
	return slot
}

// AddLocal inserts a local symbol with a precomputed frame offset and returns
// its slot, or the existing slot if the name is already local.
func (t *Table) AddLocal(name string, p ast.Primitive, structural Structural, size, offset int) int {
	if slot := t.FindLocal(name); slot != -1 {
		return slot
	}
	slot := t.newLocalSlot()
	t.syms[slot] = Entry{
		Name:       name,
		Type:       p,
		Structural: structural,
		Class:      Local,
		Size:       size,
		Offset:     offset,
	}
	return slot
}

// ResetLocals drops all local entries; called between function bodies.
func (t *Table) ResetLocals() {
	for i := t.nextLocal + 1; i < NSymbols; i++ {
		t.syms[i] = Entry{}
	}
	t.nextLocal = NSymbols - 1
}
