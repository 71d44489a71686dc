package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KnightChaser/keccc/internal/codegen"
	"github.com/KnightChaser/keccc/internal/diag"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.c")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileWritesAssemblyFile(t *testing.T) {
	infile := writeSource(t, "int main() { return(3 + 4 * 2); }")
	outfile := filepath.Join(t.TempDir(), "out.s")

	err := compile(infile, outfile, codegen.TargetNASM)
	assert.NoError(t, err)

	out, readErr := os.ReadFile(outfile)
	assert.NoError(t, readErr)
	assert.Contains(t, string(out), "\tglobal\tmain\n")
	assert.Contains(t, string(out), "\tret\n")
}

func TestCompileBothTargetsFromSameSource(t *testing.T) {
	infile := writeSource(t, `int main() { printstring("hi\n"); return(0); }`)

	for _, target := range []codegen.Target{codegen.TargetNASM, codegen.TargetAArch64} {
		outfile := filepath.Join(t.TempDir(), "out.s")
		assert.NoError(t, compile(infile, outfile, target), target.String())

		out, err := os.ReadFile(outfile)
		assert.NoError(t, err)
		assert.NotEmpty(t, out, target.String())
	}
}

func TestCompileMissingInputIsIOError(t *testing.T) {
	err := compile(filepath.Join(t.TempDir(), "absent.c"), filepath.Join(t.TempDir(), "out.s"), codegen.TargetNASM)
	var de *diag.Error
	if assert.True(t, errors.As(err, &de)) {
		assert.Equal(t, diag.IO, de.Kind)
	}
}

func TestCompileSurfacesSyntaxErrors(t *testing.T) {
	infile := writeSource(t, "int main() { return(1 }")
	err := compile(infile, filepath.Join(t.TempDir(), "out.s"), codegen.TargetNASM)

	var de *diag.Error
	if assert.True(t, errors.As(err, &de)) {
		assert.Equal(t, diag.Syntax, de.Kind)
		assert.Equal(t, 1, de.Line)
	}
}

func TestCompileSurfacesSemanticErrors(t *testing.T) {
	infile := writeSource(t, "int main() { return(missing); }")
	err := compile(infile, filepath.Join(t.TempDir(), "out.s"), codegen.TargetNASM)

	var de *diag.Error
	if assert.True(t, errors.As(err, &de)) {
		assert.Equal(t, diag.Semantic, de.Kind)
	}
}
