package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/KnightChaser/keccc/internal/ast"
	"github.com/KnightChaser/keccc/internal/codegen"
	"github.com/KnightChaser/keccc/internal/diag"
	"github.com/KnightChaser/keccc/internal/lexer"
	"github.com/KnightChaser/keccc/internal/parser"
	"github.com/KnightChaser/keccc/internal/symtab"
)

const usageLine = "Usage: keccc [--output|-o OUTFILE] [--target|-t {nasm|aarch64}] [--dump-ast|-a] [--dump-ast-compacted|-A] INFILE"

var options struct {
	Output         string `short:"o" long:"output" default:"out.s" description:"output assembly file"`
	Target         string `short:"t" long:"target" default:"nasm" choice:"nasm" choice:"aarch64" description:"code generation target"`
	DumpAST        bool   `short:"a" long:"dump-ast" description:"print each function's AST"`
	DumpASTCompact bool   `short:"A" long:"dump-ast-compacted" description:"print each function's AST on one line"`

	Args struct {
		Infile string `positional-arg-name:"INFILE" required:"true"`
	} `positional-args:"true"`
}

func main() {
	os.Exit(run())
}

func run() int {
	fp := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := fp.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, usageLine)
		return 1
	}
	if len(rest) != 0 {
		fmt.Fprintln(os.Stderr, usageLine)
		return 1
	}

	target, err := codegen.ResolveTarget(options.Target)
	if err != nil {
		fmt.Fprintln(os.Stderr, usageLine)
		return 1
	}

	if err := compile(options.Args.Infile, options.Output, target); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// compile runs the whole pipeline: scan, parse declaration by declaration,
// and emit each function as soon as it is parsed.
func compile(infile, outfile string, target codegen.Target) (err error) {
	defer diag.Intercept(&err)

	in, err := os.Open(infile)
	if err != nil {
		return &diag.Error{Kind: diag.IO, Msg: fmt.Sprintf("cannot open %s: %v", infile, err)}
	}
	defer in.Close()

	out, err := os.Create(outfile)
	if err != nil {
		return &diag.Error{Kind: diag.IO, Msg: fmt.Sprintf("cannot open %s for writing: %v", outfile, err)}
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = &diag.Error{Kind: diag.IO, Msg: fmt.Sprintf("cannot close %s: %v", outfile, closeErr)}
		}
	}()

	w := bufio.NewWriter(out)

	syms := symtab.New()
	gen := codegen.New(codegen.NewBackend(target, w, syms), syms)

	// The runtime provides these; declare them so calls resolve.
	for _, helper := range []string{"printint", "printchar", "printstring"} {
		syms.AddGlobal(helper, ast.PVoid, symtab.Function, 0, 0)
	}

	p := parser.New(lexer.New(in), syms, gen)

	gen.Preamble()
	for {
		tree := p.NextFunction()
		if tree == nil {
			break
		}
		if options.DumpAST {
			fmt.Print(ast.DebugString(tree, syms.Name))
		}
		if options.DumpASTCompact {
			fmt.Println(ast.CompactString(tree, syms.Name))
		}
		gen.Generate(tree)
	}
	gen.Postamble()

	if err := w.Flush(); err != nil {
		return &diag.Error{Kind: diag.IO, Msg: fmt.Sprintf("cannot write %s: %v", outfile, err)}
	}
	return nil
}
