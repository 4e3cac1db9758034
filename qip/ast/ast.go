// Package ast defines QIP's abstract syntax tree (spec §4.G): a single
// universal Node type discriminated by Kind, carrying parent pointers
// so semantic passes can walk upward as well as down.
package ast

import (
	"fmt"
	"strings"
)

// Kind discriminates what a Node represents.
type Kind int

const (
	NModule Kind = iota
	NClass
	NProperty
	NMethod
	NFunction // named `function` declaration (top-level; re-kinded NMethod inside a class)
	NFArg
	NBlock
	NVarDecl
	NAssign
	NVarRef
	NMember // one `.name` segment chained off X
	NIf
	NForEach
	NReturn
	NExprStmt
	NIntLit
	NFloatLit
	NBoolLit
	NStringLit
	NNullLit
	NArrayLit
	NTypeRef
	NBinary
	NCall
	NSizeof
	NOffsetof
)

var kindNames = map[Kind]string{
	NModule: "Module", NClass: "Class", NProperty: "Property", NMethod: "Method",
	NFunction: "Function", NFArg: "FArg", NBlock: "Block", NVarDecl: "VarDecl",
	NAssign: "Assign", NVarRef: "VarRef", NMember: "Member", NIf: "If",
	NForEach: "ForEach", NReturn: "Return", NExprStmt: "ExprStmt",
	NIntLit: "IntLit", NFloatLit: "FloatLit", NBoolLit: "BoolLit",
	NStringLit: "StringLit", NNullLit: "NullLit", NArrayLit: "ArrayLit",
	NTypeRef: "TypeRef", NBinary: "Binary", NCall: "Call",
	NSizeof: "Sizeof", NOffsetof: "Offsetof",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?"
}

// Built-in scalar type names (spec §4.G, §6).
const (
	TypeInt     = "Int"
	TypeFloat   = "Float"
	TypeBoolean = "Boolean"
	TypeString  = "String"
)

// Node is the universal AST node. Not every field is meaningful for
// every Kind; see the per-Kind comments below.
type Node struct {
	Kind      Kind
	Parent    *Node
	Line      int
	Col       int
	Generated bool // synthesized by sema (template-expanded classes, the `this` of a rewritten property reference)

	Name   string // class/property/method/function/var/member/farg identifier
	Access string // "public" or "private", for NProperty/NMethod

	// Nodes holds Kind-dependent ordered children:
	//   NModule: top-level NClass/NFunction declarations
	//   NClass: NProperty/NMethod members, in declaration order
	//   NBlock: statements
	//   NCall: argument expressions
	//   NArrayLit: element expressions
	//   NFunction/NMethod: NFArg parameter declarations
	Nodes []*Node

	X, Y *Node // Kind-dependent:
	// NBinary: left/right operand
	// NAssign: X=target Y=value
	// NVarDecl: Y=initializer expression (optional); the declared type is in Type
	// NMember: X=the expression the member is selected off of
	// NIf: X=condition
	// NForEach: X=the collection expression being iterated
	// NCall: X=callee (NVarRef/NMember)
	// NSizeof: X=the NTypeRef argument
	// NOffsetof: X=the var expression whose storage-slot offset is measured

	Body *Node // NClass/NMethod/NFunction/NIf(then-branch)/NForEach: block body
	Else *Node // NIf: else branch block, nil if absent
	Type *Node // declared/annotated type: NVarDecl, NFArg, NProperty, NFunction/NMethod return type

	TemplateParams []string // NClass: declared template parameter names, e.g. ["T"] for class Foo<T>
	TemplateArgs   []*Node  // NTypeRef: template instantiation arguments, e.g. Array<Int>

	Op string // NBinary operator text: "+" "-" "*" "/" "=="

	IntValue    int64
	FloatValue  float64
	BoolValue   bool
	StringValue string

	// ResolvedType is filled in by the semantic pass (spec §4.H) with
	// the type name this expression evaluates to; empty until then.
	ResolvedType string
}

// AddChild appends child to n.Nodes and sets its Parent.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		return
	}
	child.Parent = n
	n.Nodes = append(n.Nodes, child)
}

// SetBody attaches body as n's Body, parenting it.
func (n *Node) SetBody(body *Node) {
	if body != nil {
		body.Parent = n
	}
	n.Body = body
}

// Copy returns a deep clone of the subtree rooted at n, with Parent
// pointers left nil on the root (the caller reparents it) and set
// correctly throughout the rest of the clone.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Parent = nil
	c.Nodes = nil
	for _, child := range n.Nodes {
		cc := child.Copy()
		cc.Parent = &c
		c.Nodes = append(c.Nodes, cc)
	}
	if n.X != nil {
		c.X = n.X.Copy()
		c.X.Parent = &c
	}
	if n.Y != nil {
		c.Y = n.Y.Copy()
		c.Y.Parent = &c
	}
	if n.Body != nil {
		c.Body = n.Body.Copy()
		c.Body.Parent = &c
	}
	if n.Else != nil {
		c.Else = n.Else.Copy()
		c.Else.Parent = &c
	}
	if n.Type != nil {
		c.Type = n.Type.Copy()
		c.Type.Parent = &c
	}
	if n.TemplateArgs != nil {
		c.TemplateArgs = make([]*Node, len(n.TemplateArgs))
		for i, a := range n.TemplateArgs {
			c.TemplateArgs[i] = a.Copy()
			c.TemplateArgs[i].Parent = &c
		}
	}
	return &c
}

// GetLastMember returns the rightmost segment of a `.`-chain rooted at
// n. Because the parser builds chains by wrapping each new segment
// around the one before it (X holds the earlier, inner expression), the
// outermost NMember node already is the chain's last segment.
func GetLastMember(n *Node) *Node {
	return n
}

// walk calls visit on n and every descendant, depth-first.
func walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Nodes {
		walk(c, visit)
	}
	walk(n.X, visit)
	walk(n.Y, visit)
	walk(n.Body, visit)
	walk(n.Else, visit)
	walk(n.Type, visit)
	for _, a := range n.TemplateArgs {
		walk(a, visit)
	}
}

// GetVarRefs returns every NVarRef node in the subtree rooted at n.
func GetVarRefs(n *Node) []*Node {
	var out []*Node
	walk(n, func(x *Node) {
		if x.Kind == NVarRef {
			out = append(out, x)
		}
	})
	return out
}

// GetVarRefsByType returns every NVarRef node in the subtree rooted at
// n whose ResolvedType equals typeName.
func GetVarRefsByType(n *Node, typeName string) []*Node {
	var out []*Node
	for _, ref := range GetVarRefs(n) {
		if ref.ResolvedType == typeName {
			out = append(out, ref)
		}
	}
	return out
}

// GetTypeRefs returns every NTypeRef node in the subtree rooted at n.
func GetTypeRefs(n *Node) []*Node {
	var out []*Node
	walk(n, func(x *Node) {
		if x.Kind == NTypeRef {
			out = append(out, x)
		}
	})
	return out
}

// Dump renders the subtree rooted at n as an indented, human-readable
// tree, one node per line — the form spec §4.G's "dump" operation
// gives test failure output, so a mismatched tree is readable without
// a debugger.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind.String())
	if n.Name != "" {
		b.WriteString(" ")
		b.WriteString(n.Name)
	}
	if n.Op != "" {
		b.WriteString(" ")
		b.WriteString(n.Op)
	}
	switch n.Kind {
	case NIntLit:
		fmt.Fprintf(b, " %d", n.IntValue)
	case NFloatLit:
		fmt.Fprintf(b, " %g", n.FloatValue)
	case NBoolLit:
		fmt.Fprintf(b, " %t", n.BoolValue)
	case NStringLit:
		fmt.Fprintf(b, " %q", n.StringValue)
	}
	b.WriteString("\n")
	for _, c := range []*Node{n.X, n.Y, n.Type, n.Body, n.Else} {
		c.dump(b, depth+1)
	}
	for _, c := range n.Nodes {
		c.dump(b, depth+1)
	}
}

// FindClass returns the NClass member of mod named name, or nil.
func FindClass(mod *Node, name string) *Node {
	for _, c := range mod.Nodes {
		if c.Kind == NClass && c.Name == name {
			return c
		}
	}
	return nil
}
