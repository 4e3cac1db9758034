package codegen

import (
	"fmt"

	"github.com/skydb/sky/qip/ast"
)

// wordSize is the uniform storage-slot width every scalar QIP value
// occupies in a record, and the unit offsetof reports its result in.
const wordSize = 8

// builtinSizes gives sizeof(T) for every built-in scalar type (spec
// §6); a Boolean occupies a single byte, everything else one word.
var builtinSizes = map[string]int64{
	ast.TypeInt:     wordSize,
	ast.TypeFloat:   wordSize,
	ast.TypeBoolean: 1,
	ast.TypeString:  wordSize,
}

// compiler lowers one function/method body to a Program.
type compiler struct {
	locals    map[string]int
	names     []string
	code      []Inst
	nextLabel int
}

// Compile lowers fn (an ast.NFunction or ast.NMethod, already checked
// by sema.Check) to a Program. Property reads reachable through `this`
// are emitted as OpPropertyGet against propIndex, the property's
// declaration order within its class — the runtime glue resolves that
// index against the active cursor/record. Pass propIndex as nil for a
// class-less top-level function.
func Compile(fn *ast.Node, propIndex map[string]int) (*Program, error) {
	c := &compiler{locals: map[string]int{}}
	for _, arg := range fn.Nodes {
		if arg.Kind == ast.NFArg {
			c.declareLocal(arg.Name)
		}
	}
	if err := c.compileBlock(fn.Body, propIndex); err != nil {
		return nil, err
	}
	// A body that falls off the end without an explicit return yields
	// a trailing implicit return, matching ordinary void semantics.
	c.emit(Inst{Op: OpReturn})
	return &Program{Name: fn.Name, NumLocals: len(c.names), Locals: c.names, Code: c.code}, nil
}

func (c *compiler) declareLocal(name string) int {
	if idx, ok := c.locals[name]; ok {
		return idx
	}
	idx := len(c.names)
	c.locals[name] = idx
	c.names = append(c.names, name)
	return idx
}

func (c *compiler) emit(i Inst) { c.code = append(c.code, i) }

func (c *compiler) label() int {
	id := c.nextLabel
	c.nextLabel++
	return id
}

func (c *compiler) compileBlock(block *ast.Node, propIndex map[string]int) error {
	if block == nil {
		return nil
	}
	for _, stmt := range block.Nodes {
		if err := c.compileStmt(stmt, propIndex); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileStmt(n *ast.Node, propIndex map[string]int) error {
	switch n.Kind {
	case ast.NVarDecl:
		idx := c.declareLocal(n.Name)
		if n.Y != nil {
			if err := c.compileExpr(n.Y, propIndex); err != nil {
				return err
			}
			c.emit(Inst{Op: OpLocalSet, Arg: idx})
		}
	case ast.NAssign:
		if n.X.Kind != ast.NVarRef {
			return fmt.Errorf("codegen: unsupported assignment target at line %d", n.Line)
		}
		if err := c.compileExpr(n.Y, propIndex); err != nil {
			return err
		}
		c.emit(Inst{Op: OpLocalSet, Arg: c.declareLocal(n.X.Name)})
	case ast.NExprStmt:
		if err := c.compileExpr(n.X, propIndex); err != nil {
			return err
		}
		c.emit(Inst{Op: OpPop})
	case ast.NReturn:
		if n.X != nil {
			if err := c.compileExpr(n.X, propIndex); err != nil {
				return err
			}
		}
		c.emit(Inst{Op: OpReturn})
	case ast.NIf:
		if err := c.compileExpr(n.X, propIndex); err != nil {
			return err
		}
		elseLbl, endLbl := c.label(), c.label()
		c.emit(Inst{Op: OpJmpIfNot, Arg: elseLbl})
		if err := c.compileBlock(n.Body, propIndex); err != nil {
			return err
		}
		c.emit(Inst{Op: OpJmp, Arg: endLbl})
		c.emit(Inst{Op: OpLabel, Arg: elseLbl})
		if n.Else != nil {
			if n.Else.Kind == ast.NIf {
				if err := c.compileStmt(n.Else, propIndex); err != nil {
					return err
				}
			} else if err := c.compileBlock(n.Else, propIndex); err != nil {
				return err
			}
		}
		c.emit(Inst{Op: OpLabel, Arg: endLbl})
	case ast.NForEach:
		if n.X.Kind != ast.NVarRef || n.X.Name != "events" {
			return fmt.Errorf("codegen: for-each only supports iterating the reserved %q collection, at line %d", "events", n.Line)
		}
		startLbl, endLbl := c.label(), c.label()
		loopVar := c.declareLocal(n.Name)
		c.emit(Inst{Op: OpLabel, Arg: startLbl})
		c.emit(Inst{Op: OpCursorBranchEof, Arg: endLbl})
		c.emit(Inst{Op: OpCursorTimestamp})
		c.emit(Inst{Op: OpLocalSet, Arg: loopVar})
		if err := c.compileBlock(n.Body, propIndex); err != nil {
			return err
		}
		c.emit(Inst{Op: OpCursorNext})
		c.emit(Inst{Op: OpJmp, Arg: startLbl})
		c.emit(Inst{Op: OpLabel, Arg: endLbl})
	default:
		return fmt.Errorf("codegen: unsupported statement kind %s at line %d", n.Kind, n.Line)
	}
	return nil
}

// offsetofTarget recovers the property name an offsetof argument
// names, after sema's bare-property-to-this rewrite has turned a bare
// reference into an `this.name` NMember.
func offsetofTarget(n *ast.Node) (string, error) {
	switch n.Kind {
	case ast.NMember:
		return n.Name, nil
	case ast.NVarRef:
		return n.Name, nil
	default:
		return "", fmt.Errorf("codegen: offsetof argument at line %d is not a property reference", n.Line)
	}
}

func (c *compiler) compileExpr(n *ast.Node, propIndex map[string]int) error {
	switch n.Kind {
	case ast.NIntLit:
		c.emit(Inst{Op: OpConstInt, IntVal: n.IntValue})
	case ast.NFloatLit:
		c.emit(Inst{Op: OpConstFloat, FloatVal: n.FloatValue})
	case ast.NBoolLit:
		c.emit(Inst{Op: OpConstBool, BoolVal: n.BoolValue})
	case ast.NStringLit:
		c.emit(Inst{Op: OpConstString, StrVal: n.StringValue})
	case ast.NNullLit:
		c.emit(Inst{Op: OpConstNull})
	case ast.NSizeof:
		sz, ok := builtinSizes[n.X.Name]
		if !ok {
			return fmt.Errorf("codegen: sizeof of unknown type %q at line %d", n.X.Name, n.Line)
		}
		c.emit(Inst{Op: OpConstInt, IntVal: sz})
	case ast.NOffsetof:
		name, err := offsetofTarget(n.X)
		if err != nil {
			return err
		}
		idx, ok := propIndex[name]
		if !ok {
			return fmt.Errorf("codegen: unknown property %q in offsetof at line %d", name, n.Line)
		}
		c.emit(Inst{Op: OpConstInt, IntVal: int64(idx) * wordSize})
	case ast.NVarRef:
		idx, ok := c.locals[n.Name]
		if !ok {
			return fmt.Errorf("codegen: reference to undeclared local %q at line %d", n.Name, n.Line)
		}
		c.emit(Inst{Op: OpLocalGet, Arg: idx})
	case ast.NMember:
		if n.X.Kind == ast.NVarRef && n.X.Name == "this" {
			idx, ok := propIndex[n.Name]
			if !ok {
				return fmt.Errorf("codegen: unknown property %q at line %d", n.Name, n.Line)
			}
			c.emit(Inst{Op: OpPropertyGet, Arg: idx})
			return nil
		}
		return fmt.Errorf("codegen: unsupported member access at line %d", n.Line)
	case ast.NBinary:
		if err := c.compileExpr(n.X, propIndex); err != nil {
			return err
		}
		if err := c.compileExpr(n.Y, propIndex); err != nil {
			return err
		}
		switch n.Op {
		case "+":
			c.emit(Inst{Op: OpAdd})
		case "-":
			c.emit(Inst{Op: OpSub})
		case "*":
			c.emit(Inst{Op: OpMul})
		case "/":
			c.emit(Inst{Op: OpDiv})
		case "==":
			c.emit(Inst{Op: OpEq})
		default:
			return fmt.Errorf("codegen: unsupported operator %q at line %d", n.Op, n.Line)
		}
	default:
		return fmt.Errorf("codegen: unsupported expression kind %s at line %d", n.Kind, n.Line)
	}
	return nil
}
