package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KnightChaser/keccc/internal/diag"
)

// scanAll collects every token type until EOF.
func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	s := New(strings.NewReader(src))
	var tokens []Token
	var tok Token
	for s.Scan(&tok) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// scanErr runs f and returns the *diag.Error it raises, or nil.
func scanErr(f func()) *diag.Error {
	var err error
	func() {
		defer diag.Intercept(&err)
		f()
	}()
	var de *diag.Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}

func tokenTypes(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestScanOperatorAlphabet(t *testing.T) {
	src := "= || && | ^ & == != < > <= >= << >> + - * / ! ~ ++ --"
	want := []string{
		ASSIGN, OR, AND, PIPE, CARET, AMPERSAND,
		EQ, NEQ, LT, GT, LTE, GTE, SHL, SHR,
		PLUS, MINUS, STAR, SLASH, BANG, TILDE, INC, DEC,
	}
	assert.Equal(t, want, tokenTypes(scanAll(t, src)))
}

func TestScanPunctuation(t *testing.T) {
	src := "; { } ( ) [ ]"
	want := []string{SEMICOLON, LBRACE, RBRACE, LPAREN, RPAREN, LBRACKET, RBRACKET}
	assert.Equal(t, want, tokenTypes(scanAll(t, src)))
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	testData := []struct {
		src  string
		want string
	}{
		{"if", IF},
		{"else", ELSE},
		{"while", WHILE},
		{"for", FOR},
		{"return", RETURN},
		{"void", VOID},
		{"char", CHAR},
		{"int", INT},
		{"long", LONG},
		{"iffy", IDENT},
		{"_tmp9", IDENT},
		{"charlie", IDENT},
	}
	for _, data := range testData {
		tokens := scanAll(t, data.src)
		if assert.Len(t, tokens, 1, data.src) {
			assert.Equal(t, data.want, tokens[0].Type, data.src)
		}
	}
}

func TestScanIdentifierTextIsPreserved(t *testing.T) {
	s := New(strings.NewReader("fred x123"))
	var tok Token

	assert.True(t, s.Scan(&tok))
	assert.Equal(t, IDENT, tok.Type)
	assert.Equal(t, "fred", s.Text)

	assert.True(t, s.Scan(&tok))
	assert.Equal(t, "x123", s.Text)
}

func TestScanIntegerLiterals(t *testing.T) {
	tokens := scanAll(t, "0 7 65 1234")
	want := []int{0, 7, 65, 1234}
	if assert.Len(t, tokens, len(want)) {
		for i, v := range want {
			assert.Equal(t, INTLIT, tokens[i].Type)
			assert.Equal(t, v, tokens[i].IntValue)
		}
	}
}

func TestScanIntegerPutsBackTerminator(t *testing.T) {
	// The character after the digits must come back as its own token.
	tokens := scanAll(t, "12+3")
	assert.Equal(t, []string{INTLIT, PLUS, INTLIT}, tokenTypes(tokens))
}

func TestScanCharacterLiterals(t *testing.T) {
	testData := []struct {
		src  string
		want int
	}{
		{`'A'`, 'A'},
		{`'\n'`, '\n'},
		{`'\t'`, '\t'},
		{`'\\'`, '\\'},
		{`'\''`, '\''},
	}
	for _, data := range testData {
		tokens := scanAll(t, data.src)
		if assert.Len(t, tokens, 1, data.src) {
			assert.Equal(t, INTLIT, tokens[0].Type)
			assert.Equal(t, data.want, tokens[0].IntValue, data.src)
		}
	}
}

func TestScanStringLiteral(t *testing.T) {
	s := New(strings.NewReader(`"hi\n"`))
	var tok Token
	assert.True(t, s.Scan(&tok))
	assert.Equal(t, STRLIT, tok.Type)
	assert.Equal(t, "hi\n", s.Text)
}

func TestScanEOF(t *testing.T) {
	s := New(strings.NewReader("x"))
	var tok Token
	assert.True(t, s.Scan(&tok))
	// Exactly one EOF, and Scan keeps reporting it.
	assert.False(t, s.Scan(&tok))
	assert.Equal(t, EOF, tok.Type)
	assert.False(t, s.Scan(&tok))
	assert.Equal(t, EOF, tok.Type)
}

func TestScanLineCounting(t *testing.T) {
	s := New(strings.NewReader("a\nb\n\nc"))
	var tok Token
	for s.Scan(&tok) {
	}
	assert.Equal(t, 4, s.Line)
}

func TestRejectReturnsTokenOnNextScan(t *testing.T) {
	s := New(strings.NewReader("a + b"))
	var tok Token

	s.Scan(&tok)
	assert.Equal(t, IDENT, tok.Type)

	s.Scan(&tok)
	assert.Equal(t, PLUS, tok.Type)
	s.Reject(tok)

	s.Scan(&tok)
	assert.Equal(t, PLUS, tok.Type)

	s.Scan(&tok)
	assert.Equal(t, IDENT, tok.Type)
}

func TestDoubleRejectIsFatal(t *testing.T) {
	err := scanErr(func() {
		s := New(strings.NewReader("a b"))
		var tok Token
		s.Scan(&tok)
		s.Reject(tok)
		s.Reject(tok)
	})
	if assert.NotNil(t, err) {
		assert.Equal(t, diag.Internal, err.Kind)
	}
}

func TestScanFatalErrors(t *testing.T) {
	testData := []struct {
		name string
		src  string
	}{
		{"unrecognized character", "@"},
		{"unterminated character literal", "'ab"},
		{"bad escape", `"\q"`},
		{"identifier overflow", strings.Repeat("a", TextLen+10)},
		{"string overflow", `"` + strings.Repeat("s", TextLen+10) + `"`},
	}
	for _, data := range testData {
		t.Run(data.name, func(t *testing.T) {
			err := scanErr(func() {
				s := New(strings.NewReader(data.src))
				var tok Token
				for s.Scan(&tok) {
				}
			})
			if assert.NotNil(t, err) {
				assert.Equal(t, diag.Lexical, err.Kind)
			}
		})
	}
}

func TestScanSkipsAllWhitespaceForms(t *testing.T) {
	tokens := scanAll(t, " \t\r\n\f 1 ")
	assert.Equal(t, []string{INTLIT}, tokenTypes(tokens))
}
