package lexer

import (
	"testing"

	"github.com/skydb/sky/qip/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token.Token) []token.Kind {
	var ks []token.Kind
	for _, t := range toks {
		ks = append(ks, t.Kind)
	}
	return ks
}

func TestTokenizeClassSkeleton(t *testing.T) {
	src := `class Foo {
  public Int x;
  function bar() {
    return 1;
  }
}`
	toks, err := New([]byte(src)).Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.CLASS, token.IDENT, token.LBRACE,
		token.PUBLIC, token.IDENT, token.IDENT, token.SEMI,
		token.FUNCTION, token.IDENT, token.LPAREN, token.RPAREN, token.LBRACE,
		token.RETURN, token.INT, token.SEMI,
		token.RBRACE,
		token.RBRACE,
		token.EOF,
	}, kinds(toks))
}

// S5 — scenario expression.
func TestTokenizeArithmeticExpression(t *testing.T) {
	toks, err := New([]byte("Int x = 2 + 3 * 4; return x;")).Tokenize()
	require.NoError(t, err)
	kinds := kinds(toks)
	assert.Contains(t, kinds, token.PLUS)
	assert.Contains(t, kinds, token.STAR)
	assert.Contains(t, kinds, token.ASSIGN)
	assert.Equal(t, token.EOF, kinds[len(kinds)-1])
}

// S6 — scenario expression.
func TestTokenizeEqualityExpression(t *testing.T) {
	toks, err := New([]byte("Int x = 1 == true;")).Tokenize()
	require.NoError(t, err)
	assert.Contains(t, kinds(toks), token.EQ)
	assert.Contains(t, kinds(toks), token.TRUE)
}

func TestTokenizeStringLiteral(t *testing.T) {
	toks, err := New([]byte(`String s = "hello\"world";`)).Tokenize()
	require.NoError(t, err)
	var found bool
	for _, tok := range toks {
		if tok.Kind == token.STRING {
			found = true
			assert.Equal(t, `hello\"world`, tok.Text)
		}
	}
	assert.True(t, found)
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := New([]byte(`String s = "oops`)).Tokenize()
	require.Error(t, err)
}

func TestTokenizeFloatVsDotOperator(t *testing.T) {
	toks, err := New([]byte("Float f = 3.14; x.y;")).Tokenize()
	require.NoError(t, err)
	ks := kinds(toks)
	assert.Contains(t, ks, token.FLOAT)
	assert.Contains(t, ks, token.DOT)
}

func TestTokenizePositionsTrackLines(t *testing.T) {
	toks, err := New([]byte("Int x;\nInt y;")).Tokenize()
	require.NoError(t, err)
	// second "Int" keyword is on line 2.
	var secondIntLine int
	count := 0
	for _, tk := range toks {
		if tk.Text == "Int" {
			count++
			if count == 2 {
				secondIntLine = tk.Pos.FirstLine
			}
		}
	}
	assert.Equal(t, 2, secondIntLine)
}
