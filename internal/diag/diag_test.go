package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: Syntax, Msg: "expected ;, got RBRACE", Line: 12}
	assert.Equal(t, "syntax error: expected ;, got RBRACE, line 12", err.Error())

	err = &Error{Kind: IO, Msg: "cannot open x.c"}
	assert.Equal(t, "io error: cannot open x.c", err.Error())
}

func TestFatalfIsInterceptable(t *testing.T) {
	var err error
	func() {
		defer Intercept(&err)
		Fatalf(Semantic, 3, "undeclared identifier %s", "x")
	}()

	var de *Error
	if assert.True(t, errors.As(err, &de)) {
		assert.Equal(t, Semantic, de.Kind)
		assert.Equal(t, 3, de.Line)
		assert.Equal(t, "undeclared identifier x", de.Msg)
	}
}

func TestInterceptPassesNonDiagnosticPanics(t *testing.T) {
	assert.Panics(t, func() {
		var err error
		defer Intercept(&err)
		panic("unrelated")
	})
}

func TestInterceptNoPanicLeavesErrorNil(t *testing.T) {
	var err error
	func() {
		defer Intercept(&err)
	}()
	assert.NoError(t, err)
}
