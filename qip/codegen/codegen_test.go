package codegen

import (
	"testing"

	"github.com/skydb/sky/qip/lexer"
	"github.com/skydb/sky/qip/parser"
	"github.com/skydb/sky/qip/sema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileFunc(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := lexer.New([]byte(src)).Tokenize()
	require.NoError(t, err)
	mod, err := parser.Parse(toks)
	require.NoError(t, err)
	require.Empty(t, sema.Check(mod))
	prog, err := Compile(mod.Nodes[0], nil)
	require.NoError(t, err)
	return prog
}

// S5 — "Int x = 2 + 3 * 4; return x;" must return the integer 14.
func TestRunScenarioS5Arithmetic(t *testing.T) {
	prog := compileFunc(t, "function main() { Int x = 2 + 3 * 4; return x; }")
	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind)
	assert.Equal(t, int64(14), v.Int)
}

func TestRunIfElseBranching(t *testing.T) {
	prog := compileFunc(t, `
function pick() {
  if (1 == 1) {
    return 10;
  } else {
    return 20;
  }
}`)
	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.Int)
}

func TestRunFloatArithmeticPromotesInt(t *testing.T) {
	prog := compileFunc(t, `function avg() { Float x = 1.5 + 1; return x; }`)
	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind)
	assert.InDelta(t, 2.5, v.Flt, 0.0001)
}

type fakeProps struct{ vals []Value }

func (f fakeProps) GetProperty(idx int) (Value, error) { return f.vals[idx], nil }

func TestRunPropertyGetResolvesAgainstBoundRecord(t *testing.T) {
	toks, err := lexer.New([]byte(`
class Counter {
  public Int count;
  function bump() : Int {
    return count + 1;
  }
}`)).Tokenize()
	require.NoError(t, err)
	mod, err := parser.Parse(toks)
	require.NoError(t, err)
	require.Empty(t, sema.Check(mod))

	method := mod.Nodes[0].Nodes[1]
	prog, err := Compile(method, map[string]int{"count": 0})
	require.NoError(t, err)

	v, err := Run(prog, fakeProps{vals: []Value{intVal(41)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)
}

func TestRunDivisionByZero(t *testing.T) {
	prog := compileFunc(t, `function main() { Int x = 1 / 0; return x; }`)
	_, err := Run(prog, nil, nil)
	require.Error(t, err)
}

// fakeCursor drives a for-each loop over a fixed in-memory timestamp list.
type fakeCursor struct {
	ts  []int64
	idx int
}

func (c *fakeCursor) Eof() bool { return c.idx >= len(c.ts) }
func (c *fakeCursor) Next() error {
	c.idx++
	return nil
}
func (c *fakeCursor) Timestamp() (int64, error) { return c.ts[c.idx], nil }
func (c *fakeCursor) ActionID() (uint32, error) { return uint32(c.idx), nil }

// S4-flavored — a for-each loop over the bound cursor sums every event's timestamp.
func TestRunForEachSumsCursorTimestamps(t *testing.T) {
	prog := compileFunc(t, `
function total() {
  Int sum = 0;
  for each (ev in events) {
    sum = sum + ev;
  }
  return sum;
}`)
	cur := &fakeCursor{ts: []int64{10, 20, 30}}
	v, err := Run(prog, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, int64(60), v.Int)
	assert.True(t, cur.Eof())
}

func TestRunSizeofBuiltinType(t *testing.T) {
	prog := compileFunc(t, `function main() { Int x = sizeof(Float); return x; }`)
	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.Int)
}

func TestRunOffsetofResolvesPropertyIndex(t *testing.T) {
	toks, err := lexer.New([]byte(`
class Session {
  public Int a;
  public Int b;
  function bOffset() : Int {
    return offsetof(b);
  }
}`)).Tokenize()
	require.NoError(t, err)
	mod, err := parser.Parse(toks)
	require.NoError(t, err)
	require.Empty(t, sema.Check(mod))

	method := mod.Nodes[0].Nodes[2]
	prog, err := Compile(method, map[string]int{"a": 0, "b": 1})
	require.NoError(t, err)

	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.Int)
}

func TestRunNullEqualityIsSentinelComparison(t *testing.T) {
	prog := compileFunc(t, `function main() { return null == null; }`)
	v, err := Run(prog, nil, nil)
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestRunForEachWithNilCursorFails(t *testing.T) {
	prog := compileFunc(t, `
function total() {
  Int sum = 0;
  for each (ev in events) {
    sum = sum + ev;
  }
  return sum;
}`)
	_, err := Run(prog, nil, nil)
	require.Error(t, err)
}
