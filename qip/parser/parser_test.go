package parser

import (
	"testing"

	"github.com/skydb/sky/qip/ast"
	"github.com/skydb/sky/qip/lexer"
	"github.com/skydb/sky/skyerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks, err := lexer.New([]byte(src)).Tokenize()
	require.NoError(t, err)
	mod, err := Parse(toks)
	require.NoError(t, err)
	return mod
}

func TestParseClassWithPropertyAndMethod(t *testing.T) {
	mod := parseSrc(t, `
class Session {
  public Int count;
  private String label;

  function total() : Int {
    return count;
  }
}`)
	require.Len(t, mod.Nodes, 1)
	class := mod.Nodes[0]
	assert.Equal(t, ast.NClass, class.Kind)
	assert.Equal(t, "Session", class.Name)
	require.Len(t, class.Nodes, 3)
	assert.Equal(t, ast.NProperty, class.Nodes[0].Kind)
	assert.Equal(t, "public", class.Nodes[0].Access)
	assert.Equal(t, ast.NProperty, class.Nodes[1].Kind)
	assert.Equal(t, "private", class.Nodes[1].Access)
	assert.Equal(t, ast.NMethod, class.Nodes[2].Kind)
	assert.Equal(t, "Int", class.Nodes[2].Type.Name)
}

func TestParseClassTemplateParams(t *testing.T) {
	mod := parseSrc(t, `class Box<T> { public T value; }`)
	class := mod.Nodes[0]
	assert.Equal(t, []string{"T"}, class.TemplateParams)
}

// S5 — arithmetic precedence: 2 + 3 * 4 must parse as 2 + (3 * 4).
func TestParseArithmeticPrecedence(t *testing.T) {
	mod := parseSrc(t, `function main() { Int x = 2 + 3 * 4; return x; }`)
	fn := mod.Nodes[0]
	decl := fn.Body.Nodes[0]
	require.Equal(t, ast.NVarDecl, decl.Kind)
	add := decl.Y
	require.Equal(t, ast.NBinary, add.Kind)
	assert.Equal(t, "+", add.Op)
	assert.Equal(t, ast.NIntLit, add.X.Kind)
	mul := add.Y
	require.Equal(t, ast.NBinary, mul.Kind)
	assert.Equal(t, "*", mul.Op)
}

// S6 — equality binds looser than arithmetic and accepts mixed operand kinds syntactically.
func TestParseEqualityExpression(t *testing.T) {
	mod := parseSrc(t, `function main() { Int x = 1 == true; }`)
	decl := mod.Nodes[0].Body.Nodes[0]
	eq := decl.Y
	require.Equal(t, ast.NBinary, eq.Kind)
	assert.Equal(t, "==", eq.Op)
	assert.Equal(t, ast.NIntLit, eq.X.Kind)
	assert.Equal(t, ast.NBoolLit, eq.Y.Kind)
}

func TestParseIfElseAndForEach(t *testing.T) {
	mod := parseSrc(t, `
function main() {
  if (true) {
    return 1;
  } else {
    return 2;
  }
  for each (ev in events) {
    return 0;
  }
}`)
	body := mod.Nodes[0].Body
	require.Len(t, body.Nodes, 2)
	ifNode := body.Nodes[0]
	assert.Equal(t, ast.NIf, ifNode.Kind)
	assert.NotNil(t, ifNode.Body)
	assert.NotNil(t, ifNode.Else)
	forNode := body.Nodes[1]
	assert.Equal(t, ast.NForEach, forNode.Kind)
	assert.Equal(t, "ev", forNode.Name)
	assert.Equal(t, "events", forNode.X.Name)
}

func TestParseMemberChainAndCall(t *testing.T) {
	mod := parseSrc(t, `function main() { return a.b.c(1, 2); }`)
	ret := mod.Nodes[0].Body.Nodes[0]
	call := ret.X
	require.Equal(t, ast.NCall, call.Kind)
	require.Len(t, call.Nodes, 2)
	member := call.X
	require.Equal(t, ast.NMember, member.Kind)
	assert.Equal(t, "c", member.Name)
	assert.Equal(t, "b", member.X.Name)
}

func TestParseSizeofAndOffsetof(t *testing.T) {
	mod := parseSrc(t, `function main() { return sizeof(Int); }`)
	ret := mod.Nodes[0].Body.Nodes[0]
	assert.Equal(t, ast.NSizeof, ret.X.Kind)

	mod2 := parseSrc(t, `function main() { return offsetof(count); }`)
	ret2 := mod2.Nodes[0].Body.Nodes[0]
	require.Equal(t, ast.NOffsetof, ret2.X.Kind)
	assert.Equal(t, "count", ret2.X.X.Name)
}

func TestParseErrorIncludesLine(t *testing.T) {
	_, lexErr := parseInvalid(t, "function main() { Int x = ; }")
	require.Error(t, lexErr)
	var pe skyerr.ParseError
	require.ErrorAs(t, lexErr, &pe)
	assert.Equal(t, 1, pe.Line)
}

func parseInvalid(t *testing.T, src string) (*ast.Node, error) {
	t.Helper()
	toks, err := lexer.New([]byte(src)).Tokenize()
	require.NoError(t, err)
	return Parse(toks)
}
