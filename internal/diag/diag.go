package diag

import "fmt"

// Kind classifies a compile error.
type Kind int

const (
	Lexical  Kind = iota // bad character, unterminated literal, buffer overflow
	Syntax               // token mismatch, unexpected token
	Semantic             // undeclared identifier, type errors, structural misuse
	Internal             // programmer errors: double reject, register double-free, bad tags
	IO                   // file open/close failures
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	case Internal:
		return "internal"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a single fatal compile error. Compilation never continues past the
// first one.
type Error struct {
	Kind Kind
	Msg  string
	Line int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error: %s, line %d", e.Kind, e.Msg, e.Line)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

// Fatalf raises an Error by panicking. A pipeline entry point converts it
// back into an ordinary error with Intercept.
func Fatalf(kind Kind, line int, format string, args ...interface{}) {
	panic(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Line: line})
}

// Intercept recovers a panicking *Error into *err. Any other panic value is
// re-raised. Use as:
//
//	func Compile(...) (err error) {
//		defer diag.Intercept(&err)
//		...
//	}
func Intercept(err *error) {
	switch v := recover().(type) {
	case nil:
	case *Error:
		*err = v
	default:
		panic(v)
	}
}
