// Package parser builds a QIP AST from a token stream via hand-written
// recursive descent (spec §4.F), the same style the teacher's own Go
// parser uses for its grammar.
package parser

import (
	"strconv"

	"github.com/skydb/sky/qip/ast"
	"github.com/skydb/sky/qip/token"
	"github.com/skydb/sky/skyerr"
)

// Parser consumes a fixed token slice and produces an *ast.Node tree.
type Parser struct {
	toks []token.Token
	pos  int
}

// New returns a Parser over toks (as produced by lexer.Tokenize).
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	t := p.advance()
	if t.Kind != k {
		return t, skyerr.ParseError{Line: t.Pos.FirstLine, Message: "expected " + k.String() + ", got " + t.String()}
	}
	return t, nil
}

// Parse parses a complete QIP module: a sequence of class declarations
// and top-level function declarations.
func Parse(toks []token.Token) (*ast.Node, error) {
	p := New(toks)
	mod := &ast.Node{Kind: ast.NModule}
	for !p.at(token.EOF) {
		var decl *ast.Node
		var err error
		switch {
		case p.at(token.CLASS):
			decl, err = p.parseClass()
		case p.at(token.FUNCTION):
			decl, err = p.parseFunction()
		default:
			t := p.peek()
			err = skyerr.ParseError{Line: t.Pos.FirstLine, Message: "expected class or function declaration, got " + t.String()}
		}
		if err != nil {
			return nil, err
		}
		mod.AddChild(decl)
	}
	return mod, nil
}

func (p *Parser) parseClass() (*ast.Node, error) {
	tok, err := p.expect(token.CLASS)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	class := &ast.Node{Kind: ast.NClass, Name: name.Text, Line: tok.Pos.FirstLine}

	if p.at(token.LT) {
		p.advance()
		for {
			tp, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			class.TemplateParams = append(class.TemplateParams, tp.Text)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.GT); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		member, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		class.AddChild(member)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return class, nil
}

func (p *Parser) parseMember() (*ast.Node, error) {
	access := "public"
	if p.at(token.PUBLIC) || p.at(token.PRIVATE) {
		access = p.peek().Kind.String()
		p.advance()
	}
	if p.at(token.FUNCTION) {
		m, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		m.Kind = ast.NMethod
		m.Access = access
		return m, nil
	}
	typ, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.NProperty, Name: name.Text, Access: access, Type: typ, Line: name.Pos.FirstLine}, nil
}

func (p *Parser) parseFunction() (*ast.Node, error) {
	tok, err := p.expect(token.FUNCTION)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	fn := &ast.Node{Kind: ast.NFunction, Name: name.Text, Line: tok.Pos.FirstLine}

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	for !p.at(token.RPAREN) {
		argType, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		argName, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		fn.AddChild(&ast.Node{Kind: ast.NFArg, Name: argName.Text, Type: argType})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if p.at(token.COLON) {
		p.advance()
		rt, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		fn.Type = rt
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.SetBody(body)
	return fn, nil
}

func (p *Parser) parseTypeRef() (*ast.Node, error) {
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	t := &ast.Node{Kind: ast.NTypeRef, Name: name.Text, Line: name.Pos.FirstLine}
	if p.at(token.LT) {
		p.advance()
		for {
			arg, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			t.TemplateArgs = append(t.TemplateArgs, arg)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.GT); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (p *Parser) parseBlock() (*ast.Node, error) {
	tok, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	block := &ast.Node{Kind: ast.NBlock, Line: tok.Pos.FirstLine}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.AddChild(stmt)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	switch {
	case p.at(token.IF):
		return p.parseIf()
	case p.at(token.FOR):
		return p.parseForEach()
	case p.at(token.RETURN):
		return p.parseReturn()
	default:
		return p.parseSimpleStatement()
	}
}

func (p *Parser) parseIf() (*ast.Node, error) {
	tok, _ := p.expect(token.IF)
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &ast.Node{Kind: ast.NIf, Line: tok.Pos.FirstLine, X: cond}
	n.SetBody(then)
	if p.at(token.ELSE) {
		p.advance()
		var elseBlock *ast.Node
		if p.at(token.IF) {
			elseBlock, err = p.parseIf()
		} else {
			elseBlock, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
		n.Else = elseBlock
		elseBlock.Parent = n
	}
	cond.Parent = n
	return n, nil
}

func (p *Parser) parseForEach() (*ast.Node, error) {
	tok, _ := p.expect(token.FOR)
	if _, err := p.expect(token.EACH); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	coll, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &ast.Node{Kind: ast.NForEach, Name: name.Text, Line: tok.Pos.FirstLine, X: coll}
	n.SetBody(body)
	coll.Parent = n
	return n, nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	tok, _ := p.expect(token.RETURN)
	n := &ast.Node{Kind: ast.NReturn, Line: tok.Pos.FirstLine}
	if !p.at(token.SEMI) {
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.X = val
		val.Parent = n
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return n, nil
}

// parseSimpleStatement parses a variable declaration, an assignment or
// a bare expression statement, disambiguated by a short lookahead:
// `Type ident` (optionally `= value`) is a declaration, where Type may
// carry template arguments (`Box<Int> b`) since no expression starts
// with `ident <`; `ident(.member)* =` is an assignment, anything else
// is an expression statement.
func (p *Parser) parseSimpleStatement() (*ast.Node, error) {
	if p.at(token.IDENT) && p.pos+1 < len(p.toks) && (p.toks[p.pos+1].Kind == token.IDENT || p.toks[p.pos+1].Kind == token.LT) {
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		n := &ast.Node{Kind: ast.NVarDecl, Name: name.Text, Line: name.Pos.FirstLine, Type: typ}
		if p.at(token.ASSIGN) {
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			n.Y = val
			val.Parent = n
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return n, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(token.ASSIGN) {
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n := &ast.Node{Kind: ast.NAssign, Line: expr.Line, X: expr, Y: val}
		expr.Parent, val.Parent = n, n
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return n, nil
	}
	n := &ast.Node{Kind: ast.NExprStmt, Line: expr.Line, X: expr}
	expr.Parent = n
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return n, nil
}

// Expression grammar, lowest to highest precedence:
//   equality   := additive ( "==" additive )*
//   additive   := multiplicative ( ("+"|"-") multiplicative )*
//   multiplicative := unary ( ("*"|"/") unary )*
//   unary      := primary
func (p *Parser) parseExpr() (*ast.Node, error) { return p.parseEquality() }

func (p *Parser) parseEquality() (*ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(token.EQ) {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		n := &ast.Node{Kind: ast.NBinary, Op: "==", Line: tok.Pos.FirstLine, X: left, Y: right}
		left.Parent, right.Parent = n, n
		left = n
	}
	return left, nil
}

func (p *Parser) parseAdditive() (*ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.MINUS) {
		tok := p.advance()
		op := "+"
		if tok.Kind == token.MINUS {
			op = "-"
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		n := &ast.Node{Kind: ast.NBinary, Op: op, Line: tok.Pos.FirstLine, X: left, Y: right}
		left.Parent, right.Parent = n, n
		left = n
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) {
		tok := p.advance()
		op := "*"
		if tok.Kind == token.SLASH {
			op = "/"
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := &ast.Node{Kind: ast.NBinary, Op: op, Line: tok.Pos.FirstLine, X: left, Y: right}
		left.Parent, right.Parent = n, n
		left = n
	}
	return left, nil
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	if p.at(token.MINUS) {
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		zero := &ast.Node{Kind: ast.NIntLit, Line: tok.Pos.FirstLine}
		n := &ast.Node{Kind: ast.NBinary, Op: "-", Line: tok.Pos.FirstLine, X: zero, Y: operand}
		zero.Parent, operand.Parent = n, n
		return n, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.DOT):
			tok := p.advance()
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			n := &ast.Node{Kind: ast.NMember, Name: name.Text, Line: tok.Pos.FirstLine, X: expr}
			expr.Parent = n
			expr = n
		case p.at(token.LPAREN):
			tok := p.advance()
			n := &ast.Node{Kind: ast.NCall, Line: tok.Pos.FirstLine, X: expr}
			expr.Parent = n
			for !p.at(token.RPAREN) {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				n.AddChild(arg)
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			expr = n
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.INT:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, skyerr.ParseError{Line: tok.Pos.FirstLine, Message: err.Error()}
		}
		return &ast.Node{Kind: ast.NIntLit, IntValue: v, Line: tok.Pos.FirstLine}, nil
	case token.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, skyerr.ParseError{Line: tok.Pos.FirstLine, Message: err.Error()}
		}
		return &ast.Node{Kind: ast.NFloatLit, FloatValue: v, Line: tok.Pos.FirstLine}, nil
	case token.STRING:
		p.advance()
		return &ast.Node{Kind: ast.NStringLit, StringValue: tok.Text, Line: tok.Pos.FirstLine}, nil
	case token.TRUE:
		p.advance()
		return &ast.Node{Kind: ast.NBoolLit, BoolValue: true, Line: tok.Pos.FirstLine}, nil
	case token.FALSE:
		p.advance()
		return &ast.Node{Kind: ast.NBoolLit, BoolValue: false, Line: tok.Pos.FirstLine}, nil
	case token.NULL:
		p.advance()
		return &ast.Node{Kind: ast.NNullLit, Line: tok.Pos.FirstLine}, nil
	case token.SIZEOF:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.NSizeof, Line: tok.Pos.FirstLine, X: typ}, nil
	case token.OFFSETOF:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.Node{Kind: ast.NOffsetof, Line: tok.Pos.FirstLine, X: v}, nil
	case token.LBRACK:
		p.advance()
		n := &ast.Node{Kind: ast.NArrayLit, Line: tok.Pos.FirstLine}
		for !p.at(token.RBRACK) {
			el, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			n.AddChild(el)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		return n, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.IDENT:
		p.advance()
		return &ast.Node{Kind: ast.NVarRef, Name: tok.Text, Line: tok.Pos.FirstLine}, nil
	default:
		return nil, skyerr.ParseError{Line: tok.Pos.FirstLine, Message: "unexpected token " + tok.String() + " in expression"}
	}
}
