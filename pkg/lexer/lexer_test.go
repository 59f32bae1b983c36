package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/token"
)

func TestNextTokenBasicPunctuators(t *testing.T) {
	input := `( ) { } [ ] ; , . ... : ? =>`

	want := []token.Kind{
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.LBracket, token.RBracket, token.Semicolon, token.Comma,
		token.Dot, token.Ellipsis, token.Colon, token.Question, token.Arrow,
		token.EOF,
	}

	l := New(input)
	for i, k := range want {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equalf(t, k, tok.Kind, "token %d", i)
	}
}

func TestNextTokenOperators(t *testing.T) {
	input := `+ - * / % ** ++ -- < > <= >= == != === !== && || ! ?? & | ^ ~ << >> >>>`
	want := []token.Kind{
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent, token.Pow,
		token.Inc, token.Dec,
		token.Lt, token.Gt, token.Lte, token.Gte, token.Eq, token.Neq,
		token.StrictEq, token.StrictNeq,
		token.LAnd, token.LOr, token.LNot, token.Nullish,
		token.BitAnd, token.BitOr, token.BitXor, token.BitNot,
		token.Shl, token.Sar, token.Shr,
	}
	l := New(input)
	for i, k := range want {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equalf(t, k, tok.Kind, "token %d (%s)", i, k)
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := `var let const function return if else myVar1 $foo _bar`
	want := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Var, "var"}, {token.Let, "let"}, {token.Const, "const"},
		{token.Function, "function"}, {token.Return, "return"},
		{token.If, "if"}, {token.Else, "else"},
		{token.Identifier, "myVar1"}, {token.Identifier, "$foo"},
		{token.Identifier, "_bar"},
	}
	l := New(input)
	for _, w := range want {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, w.kind, tok.Kind)
		assert.Equal(t, w.lit, tok.Literal)
	}
}

func TestNextTokenNumbers(t *testing.T) {
	cases := []struct {
		input string
		want  float64
	}{
		{"42", 42},
		{"3.14", 3.14},
		{"1e3", 1000},
		{"1.5e-2", 0.015},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
	}
	for _, c := range cases {
		l := New(c.input)
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, token.Number, tok.Kind)
		assert.InDelta(t, c.want, tok.Number, 1e-9, c.input)
	}
}

func TestNextTokenStringEscapes(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`"a\nb"`, "a\nb"},
		{`"\x41"`, "A"},
		{`"A"`, "A"},
		{`"\u{1F600}"`, "\U0001F600"},
	}
	for _, c := range cases {
		l := New(c.input)
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, token.String, tok.Kind)
		assert.Equal(t, c.want, tok.Literal)
	}
}

func TestNextTokenUnterminatedString(t *testing.T) {
	l := New(`"oops`)
	_, err := l.NextToken()
	assert.Error(t, err)
}

func TestNextTokenSkipsComments(t *testing.T) {
	input := "// a comment\nvar /* inline */ x = 1;"
	l := New(input)

	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, token.Var, tok.Kind)
	assert.True(t, tok.HadNewlineBefore)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, token.Identifier, tok.Kind)
	assert.Equal(t, "x", tok.Literal)
}

func TestNextTokenHadNewlineBefore(t *testing.T) {
	input := "a\nb"
	l := New(input)
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.False(t, tok.HadNewlineBefore)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.True(t, tok.HadNewlineBefore)
}
