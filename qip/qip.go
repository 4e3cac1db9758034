// Package qip wires the lexer, parser, semantic pass and codegen
// packages together into the single compile entry point (spec §4.J)
// the rest of the module calls: source text in, a runnable Compiled
// query out.
package qip

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skydb/sky/qip/ast"
	"github.com/skydb/sky/qip/codegen"
	"github.com/skydb/sky/qip/lexer"
	"github.com/skydb/sky/qip/parser"
	"github.com/skydb/sky/qip/sema"
)

var log = logrus.WithField("component", "qip")

// Compiled is a type-checked, codegen'd query ready to run against a
// cursor. It is the "single callable entry point" spec §4.I describes.
type Compiled struct {
	prog      *codegen.Program
	propIndex map[string]int
}

// Compile lexes, parses, type-checks and compiles src's entry function
// (named by entryFunc, a top-level `function` declaration) into a
// Compiled query. Every accumulated type error is returned together;
// lexing and parsing stop at their first error, so a lex or parse
// failure is returned as a single error.
func Compile(src string, entryFunc string) (*Compiled, []error) {
	toks, err := lexer.New([]byte(src)).Tokenize()
	if err != nil {
		return nil, []error{err}
	}
	mod, err := parser.Parse(toks)
	if err != nil {
		return nil, []error{err}
	}
	if errs := sema.Check(mod); len(errs) > 0 {
		for _, e := range errs {
			log.WithError(e).Warn("qip: semantic error")
		}
		return nil, errs
	}

	fn := findFunction(mod, entryFunc)
	if fn == nil {
		return nil, []error{&compileError{"no function named " + entryFunc}}
	}
	prog, err := codegen.Compile(fn, nil)
	if err != nil {
		return nil, []error{err}
	}
	return &Compiled{prog: prog}, nil
}

func findFunction(mod *ast.Node, name string) *ast.Node {
	for _, n := range mod.Nodes {
		if n.Kind == ast.NFunction && n.Name == name {
			return n
		}
	}
	return nil
}

type compileError struct{ msg string }

func (e *compileError) Error() string { return e.msg }

// Run executes the compiled query against cur, returning the Value its
// entry function returned.
func (c *Compiled) Run(cur codegen.CursorOps) (codegen.Value, error) {
	return codegen.Run(c.prog, nil, cur)
}

// Name returns the compiled entry function's name, for diagnostics.
func (c *Compiled) Name() string { return c.prog.Name }

// Dump renders the compiled program's instruction stream, one per
// line, for debugging (`sky-query --dump`).
func (c *Compiled) Dump() string {
	var b strings.Builder
	for i, inst := range c.prog.Code {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(':')
		b.WriteByte(' ')
		b.WriteString(opcodeName(inst.Op))
		b.WriteByte('\n')
	}
	return b.String()
}

var opcodeNames = map[codegen.Opcode]string{
	codegen.OpConstInt: "const.int", codegen.OpConstFloat: "const.float",
	codegen.OpConstBool: "const.bool", codegen.OpConstString: "const.string",
	codegen.OpLocalGet: "local.get", codegen.OpLocalSet: "local.set",
	codegen.OpPropertyGet: "property.get",
	codegen.OpAdd:         "add", codegen.OpSub: "sub", codegen.OpMul: "mul", codegen.OpDiv: "div",
	codegen.OpEq:              "eq",
	codegen.OpJmp:             "jmp",
	codegen.OpJmpIfNot:        "jmp.if.not",
	codegen.OpLabel:           "label",
	codegen.OpCursorBranchEof: "cursor.branch.eof",
	codegen.OpCursorNext:      "cursor.next",
	codegen.OpCursorTimestamp: "cursor.timestamp",
	codegen.OpCursorActionID:  "cursor.action_id",
	codegen.OpReturn:          "return",
	codegen.OpPop:             "pop",
}

func opcodeName(op codegen.Opcode) string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "?"
}
