// Package sema runs QIP's semantic pipeline over a parsed module (spec
// §4.H): template expansion, preprocessing (bare-name property
// resolution), and type validation. Validate never stops at the first
// problem — every independent error in the module is collected and
// returned together.
package sema

import (
	"fmt"

	"github.com/skydb/sky/qip/ast"
	"github.com/skydb/sky/skyerr"
)

// Check runs the full pipeline: template expansion, preprocessing, then
// validation. It returns every accumulated error; a nil/empty result
// means mod is well-typed.
func Check(mod *ast.Node) []error {
	expandTemplates(mod)
	preprocess(mod)
	var errs []error
	validate(mod, &errs)
	return errs
}

// --- template expansion -----------------------------------------------

// expandTemplates instantiates a concrete copy of every generic class
// referenced with concrete template arguments (e.g. Box<Int>),
// rewriting the referencing NTypeRef to point at the mangled concrete
// class name. A worklist with a visited set bounds the expansion even
// if two generic classes reference each other.
func expandTemplates(mod *ast.Node) {
	visited := map[string]bool{}
	worklist := pendingInstantiations(mod, visited)
	for len(worklist) > 0 {
		inst := worklist[0]
		worklist = worklist[1:]
		key := mangledName(inst.Name, inst.TemplateArgs)
		if visited[key] {
			continue
		}
		visited[key] = true

		generic := ast.FindClass(mod, inst.Name)
		if generic == nil || len(generic.TemplateParams) != len(inst.TemplateArgs) {
			continue // nothing to expand; the reference is left as written, and validate does not check type names
		}
		if ast.FindClass(mod, key) != nil {
			inst.Name = key
			inst.TemplateArgs = nil
			continue
		}
		subst := map[string]string{}
		for i, param := range generic.TemplateParams {
			subst[param] = inst.TemplateArgs[i].Name
		}
		concrete := generic.Copy()
		concrete.Name = key
		concrete.TemplateParams = nil
		concrete.Generated = true
		substituteTypeNames(concrete, subst)
		mod.AddChild(concrete)

		inst.Name = key
		inst.TemplateArgs = nil

		worklist = append(worklist, pendingInstantiations(mod, visited)...)
	}
}

func mangledName(base string, args []*ast.Node) string {
	name := base
	for _, a := range args {
		name += "$" + a.Name
	}
	return name
}

// pendingInstantiations returns every NTypeRef in mod that names a
// generic class with concrete template arguments and hasn't already
// been recorded in visited.
func pendingInstantiations(mod *ast.Node, visited map[string]bool) []*ast.Node {
	var out []*ast.Node
	for _, ref := range ast.GetTypeRefs(mod) {
		if len(ref.TemplateArgs) == 0 {
			continue
		}
		key := mangledName(ref.Name, ref.TemplateArgs)
		if visited[key] {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// substituteTypeNames rewrites every NTypeRef.Name in n matching a key
// of subst to that key's value, throughout the whole subtree.
func substituteTypeNames(n *ast.Node, subst map[string]string) {
	if n == nil {
		return
	}
	if n.Kind == ast.NTypeRef {
		if repl, ok := subst[n.Name]; ok {
			n.Name = repl
		}
	}
	for _, c := range n.Nodes {
		substituteTypeNames(c, subst)
	}
	substituteTypeNames(n.X, subst)
	substituteTypeNames(n.Y, subst)
	substituteTypeNames(n.Body, subst)
	substituteTypeNames(n.Else, subst)
	substituteTypeNames(n.Type, subst)
	for _, a := range n.TemplateArgs {
		substituteTypeNames(a, subst)
	}
}

// --- preprocessing ------------------------------------------------------

// preprocess resolves bare identifiers inside a method body that name
// an enclosing class property to an explicit `this.name` member
// access, so validate and codegen never need to special-case implicit
// self-reference.
func preprocess(mod *ast.Node) {
	for _, class := range mod.Nodes {
		if class.Kind != ast.NClass {
			continue
		}
		props := map[string]*ast.Node{}
		for _, m := range class.Nodes {
			if m.Kind == ast.NProperty {
				props[m.Name] = m
			}
		}
		for _, m := range class.Nodes {
			if m.Kind == ast.NMethod {
				rewriteBareProperties(m.Body, props, localNames(m))
			}
		}
	}
}

func localNames(method *ast.Node) map[string]bool {
	names := map[string]bool{}
	for _, arg := range method.Nodes {
		if arg.Kind == ast.NFArg {
			names[arg.Name] = true
		}
	}
	return names
}

// rewriteBareProperties turns a bare NVarRef that names a class
// property (and isn't shadowed by a local) into a synthetic `this.name`
// NMember chain. Locally declared vars seen along the walk shadow the
// property for the remainder of the block, matching ordinary lexical
// scoping.
func rewriteBareProperties(n *ast.Node, props map[string]*ast.Node, locals map[string]bool) {
	if n == nil {
		return
	}
	if n.Kind == ast.NBlock {
		locals = cloneSet(locals)
		for _, stmt := range n.Nodes {
			if stmt.Kind == ast.NVarDecl {
				locals[stmt.Name] = true
			}
			rewriteBareProperties(stmt, props, locals)
		}
		return
	}
	if n.Kind == ast.NVarRef && !locals[n.Name] {
		if _, isProp := props[n.Name]; isProp {
			this := &ast.Node{Kind: ast.NVarRef, Name: "this", Line: n.Line, Generated: true}
			n.Kind = ast.NMember
			n.X = this
			this.Parent = n
			return
		}
	}
	rewriteBareProperties(n.X, props, locals)
	rewriteBareProperties(n.Y, props, locals)
	rewriteBareProperties(n.Body, props, locals)
	rewriteBareProperties(n.Else, props, locals)
	for _, c := range n.Nodes {
		rewriteBareProperties(c, props, locals)
	}
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// --- validation ----------------------------------------------------------

type scope struct {
	vars   map[string]string // name -> type
	parent *scope
}

func newScope(parent *scope) *scope { return &scope{vars: map[string]string{}, parent: parent} }

func (s *scope) lookup(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return "", false
}

func (s *scope) declare(name, typ string) { s.vars[name] = typ }

func validate(mod *ast.Node, errs *[]error) {
	for _, decl := range mod.Nodes {
		switch decl.Kind {
		case ast.NClass:
			validateClass(mod, decl, errs)
		case ast.NFunction:
			validateFunc(mod, decl, nil, errs)
		}
	}
}

func validateClass(mod, class *ast.Node, errs *[]error) {
	for _, m := range class.Nodes {
		if m.Kind == ast.NMethod {
			validateFunc(mod, m, class, errs)
		}
	}
}

// reservedEventStreamType is the type of the implicit `events`
// collection every function body may iterate with `for each`.
const reservedEventStreamType = "EventStream"

func validateFunc(mod, fn, class *ast.Node, errs *[]error) {
	s := newScope(nil)
	s.declare("events", reservedEventStreamType)
	if class != nil {
		s.declare("this", class.Name)
	}
	for _, arg := range fn.Nodes {
		if arg.Kind == ast.NFArg {
			s.declare(arg.Name, arg.Type.Name)
		}
	}
	validateBlock(mod, class, fn.Body, s, errs)
}

func validateBlock(mod, class, block *ast.Node, parent *scope, errs *[]error) {
	if block == nil {
		return
	}
	s := newScope(parent)
	for _, stmt := range block.Nodes {
		validateStmt(mod, class, stmt, s, errs)
	}
}

func validateStmt(mod, class, n *ast.Node, s *scope, errs *[]error) {
	switch n.Kind {
	case ast.NVarDecl:
		s.declare(n.Name, n.Type.Name)
		if n.Y != nil {
			t := validateExpr(mod, class, n.Y, s, errs)
			if t != "" && n.Type.Name != "" && t != n.Type.Name {
				*errs = append(*errs, skyerr.TypeError{Line: n.Line, Message: fmt.Sprintf("cannot assign %s to %s variable %q", t, n.Type.Name, n.Name)})
			}
		}
	case ast.NAssign:
		lt := validateExpr(mod, class, n.X, s, errs)
		rt := validateExpr(mod, class, n.Y, s, errs)
		if lt != "" && rt != "" && lt != rt {
			*errs = append(*errs, skyerr.TypeError{Line: n.Line, Message: fmt.Sprintf("incompatible types (%s, %s)", lt, rt)})
		}
	case ast.NExprStmt:
		validateExpr(mod, class, n.X, s, errs)
	case ast.NReturn:
		if n.X != nil {
			validateExpr(mod, class, n.X, s, errs)
		}
	case ast.NIf:
		validateExpr(mod, class, n.X, s, errs)
		validateBlock(mod, class, n.Body, s, errs)
		if n.Else != nil {
			if n.Else.Kind == ast.NIf {
				validateStmt(mod, class, n.Else, s, errs)
			} else {
				validateBlock(mod, class, n.Else, s, errs)
			}
		}
	case ast.NForEach:
		validateExpr(mod, class, n.X, s, errs)
		inner := newScope(s)
		inner.declare(n.Name, ast.TypeInt)
		validateBlock(mod, class, n.Body, inner, errs)
	}
}

// validateExpr type-checks n and returns its resolved type name, or ""
// if it couldn't be determined (an unresolved identifier, already
// reported elsewhere).
func validateExpr(mod, class, n *ast.Node, s *scope, errs *[]error) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case ast.NIntLit:
		n.ResolvedType = ast.TypeInt
	case ast.NFloatLit:
		n.ResolvedType = ast.TypeFloat
	case ast.NBoolLit:
		n.ResolvedType = ast.TypeBoolean
	case ast.NStringLit:
		n.ResolvedType = ast.TypeString
	case ast.NNullLit:
		n.ResolvedType = ""
	case ast.NVarRef:
		if t, ok := s.lookup(n.Name); ok {
			n.ResolvedType = t
		} else {
			*errs = append(*errs, skyerr.TypeError{Line: n.Line, Message: fmt.Sprintf("undefined variable %q", n.Name)})
		}
	case ast.NMember:
		validateExpr(mod, class, n.X, s, errs)
		if n.X.Kind == ast.NVarRef && n.X.Name == "this" && class != nil {
			for _, m := range class.Nodes {
				if m.Kind == ast.NProperty && m.Name == n.Name {
					n.ResolvedType = m.Type.Name
				}
			}
		}
	case ast.NCall:
		validateExpr(mod, class, n.X, s, errs)
		for _, a := range n.Nodes {
			validateExpr(mod, class, a, s, errs)
		}
	case ast.NBinary:
		lt := validateExpr(mod, class, n.X, s, errs)
		rt := validateExpr(mod, class, n.Y, s, errs)
		n.ResolvedType = resolveBinaryType(n, lt, rt, errs)
	case ast.NSizeof:
		n.ResolvedType = ast.TypeInt
	case ast.NOffsetof:
		validateExpr(mod, class, n.X, s, errs)
		n.ResolvedType = ast.TypeInt
	case ast.NArrayLit:
		for _, el := range n.Nodes {
			validateExpr(mod, class, el, s, errs)
		}
	}
	return n.ResolvedType
}

// resolveBinaryType implements the type-dispatch rule described in
// spec §4.I: arithmetic operators accept any pair of numeric operand
// types, widening the RHS toward the LHS type through the same
// cast_value rule the VM's arith applies, and produce the LHS's type;
// equality requires identical operand types (of any kind) and always
// produces Boolean.
func resolveBinaryType(n *ast.Node, lt, rt string, errs *[]error) string {
	if lt == "" || rt == "" {
		return "" // the missing-type error was already reported where it originated
	}
	if n.Op == "==" {
		if lt != rt {
			*errs = append(*errs, skyerr.TypeError{Line: n.Line, Message: fmt.Sprintf("incompatible types (%s, %s)", lt, rt)})
			return ""
		}
		return ast.TypeBoolean
	}
	numeric := map[string]bool{ast.TypeInt: true, ast.TypeFloat: true}
	if !numeric[lt] || !numeric[rt] {
		*errs = append(*errs, skyerr.TypeError{Line: n.Line, Message: fmt.Sprintf("incompatible types (%s, %s)", lt, rt)})
		return ""
	}
	return lt
}
