// Package parser implements microjs's recursive-descent parser
// (SPEC_FULL.md §4.3.2), turning a lexer token stream into an AST.
//
// Like smog's parser, it keeps a two-token lookahead window (curTok,
// peekTok) and accumulates errors rather than stopping at the first
// one, so a caller can report every syntax problem in one pass.
package parser

import (
	"fmt"
	"strconv"

	"microjs/pkg/ast"
	"microjs/pkg/lexer"
	"microjs/pkg/token"
)

// Error is a syntax error with a source location (§7).
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// precedence levels, lowest to highest.
const (
	_ int = iota
	precLowest
	precComma
	precAssign
	precConditional
	precNullish
	precLOr
	precLAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precExponent
	precUnary
	precPostfix
	precCall
)

var binaryPrecedence = map[token.Kind]int{
	token.LOr:       precLOr,
	token.LAnd:      precLAnd,
	token.Nullish:   precNullish,
	token.BitOr:     precBitOr,
	token.BitXor:    precBitXor,
	token.BitAnd:    precBitAnd,
	token.Eq:        precEquality,
	token.Neq:       precEquality,
	token.StrictEq:  precEquality,
	token.StrictNeq: precEquality,
	token.Lt:        precRelational,
	token.Gt:        precRelational,
	token.Lte:       precRelational,
	token.Gte:       precRelational,
	token.In:        precRelational,
	token.Instanceof: precRelational,
	token.Shl:       precShift,
	token.Sar:       precShift,
	token.Shr:       precShift,
	token.Plus:      precAdditive,
	token.Minus:     precAdditive,
	token.Star:      precMultiplicative,
	token.Slash:     precMultiplicative,
	token.Percent:   precMultiplicative,
	token.Pow:       precExponent,
}

var assignOps = map[token.Kind]bool{
	token.Assign: true, token.PlusAssign: true, token.MinusAssign: true,
	token.StarAssign: true, token.SlashAssign: true, token.PercentAssign: true,
	token.PowAssign: true, token.AndAssign: true, token.OrAssign: true,
	token.XorAssign: true, token.ShlAssign: true, token.SarAssign: true,
	token.ShrAssign: true, token.NullishAssign: true, token.AndAndAssign: true,
	token.OrOrAssign: true,
}

// Parser turns a token stream into an ast.Program.
type Parser struct {
	l       *lexer.Lexer
	curTok  token.Token
	peekTok token.Token
	errors  []error

	// noIn suppresses treating `in` as a binary operator while parsing a
	// for-in/for-of statement's left-hand side (§4.3.2's subtlety).
	noIn bool
}

// New constructs a parser over the given lexer and primes its
// two-token lookahead.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

// Errors returns every syntax error accumulated during parsing.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) next() {
	p.curTok = p.peekTok
	tok, err := p.l.NextToken()
	if err != nil {
		p.errors = append(p.errors, err)
		tok.Kind = token.Illegal
	}
	p.peekTok = tok
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &Error{
		Message: fmt.Sprintf(format, args...),
		Line:    p.curTok.Line,
		Column:  p.curTok.Column,
	})
}

func (p *Parser) expect(k token.Kind) bool {
	if p.curTok.Kind != k {
		p.errorf("expected %s, got %s (%q)", k, p.curTok.Kind, p.curTok.Literal)
		return false
	}
	p.next()
	return true
}

// consumeSemicolon applies §4.3.2's ASI rule: a semicolon is elided
// before `}`, at end-of-input, or when a line break separated the
// current token from the previous one.
func (p *Parser) consumeSemicolon() {
	if p.curTok.Kind == token.Semicolon {
		p.next()
		return
	}
	if p.curTok.Kind == token.RBrace || p.curTok.Kind == token.EOF || p.curTok.HadNewlineBefore {
		return
	}
	p.errorf("expected ';', got %s", p.curTok.Kind)
}

// ParseProgram parses the entire token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.curTok.Kind != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

// ---- Statements -----------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Kind {
	case token.LBrace:
		return p.parseBlockStatement()
	case token.Var, token.Let, token.Const:
		s := p.parseVarStatement()
		p.consumeSemicolon()
		return s
	case token.Function:
		return p.parseFunctionDeclaration()
	case token.If:
		return p.parseIfStatement()
	case token.While:
		return p.parseWhileStatement()
	case token.Do:
		return p.parseDoWhileStatement()
	case token.For:
		return p.parseForStatement()
	case token.Return:
		return p.parseReturnStatement()
	case token.Break:
		return p.parseBreakStatement()
	case token.Continue:
		return p.parseContinueStatement()
	case token.Throw:
		return p.parseThrowStatement()
	case token.Try:
		return p.parseTryStatement()
	case token.Switch:
		return p.parseSwitchStatement()
	case token.Semicolon:
		s := &ast.EmptyStatement{Token: p.curTok}
		p.next()
		return s
	case token.Identifier:
		if p.peekTok.Kind == token.Colon {
			return p.parseLabeledStatement()
		}
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curTok}
	p.expect(token.LBrace)
	for p.curTok.Kind != token.RBrace && p.curTok.Kind != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
	}
	p.expect(token.RBrace)
	return block
}

func (p *Parser) varKindOf(k token.Kind) ast.VarKind {
	switch k {
	case token.Let:
		return ast.VarLet
	case token.Const:
		return ast.VarConst
	default:
		return ast.VarVar
	}
}

func (p *Parser) parseVarStatement() *ast.VarStatement {
	stmt := &ast.VarStatement{Token: p.curTok, Kind: p.varKindOf(p.curTok.Kind)}
	p.next()
	for {
		if p.curTok.Kind != token.Identifier {
			p.errorf("expected identifier in declaration, got %s", p.curTok.Kind)
			return stmt
		}
		name := p.curTok.Literal
		p.next()
		var init ast.Expression
		if p.curTok.Kind == token.Assign {
			p.next()
			init = p.parseAssignmentExpression()
		}
		stmt.Declarators = append(stmt.Declarators, ast.Declarator{Name: name, Init: init})
		if p.curTok.Kind != token.Comma {
			break
		}
		p.next()
	}
	return stmt
}

func (p *Parser) parseParams() []string {
	var params []string
	p.expect(token.LParen)
	for p.curTok.Kind != token.RParen && p.curTok.Kind != token.EOF {
		if p.curTok.Kind == token.Identifier {
			params = append(params, p.curTok.Literal)
			p.next()
		} else {
			p.errorf("expected parameter name, got %s", p.curTok.Kind)
			p.next()
		}
		if p.curTok.Kind == token.Comma {
			p.next()
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	tok := p.curTok
	p.expect(token.Function)
	name := p.curTok.Literal
	p.expect(token.Identifier)
	params := p.parseParams()
	body := p.parseBlockStatement()
	return &ast.FunctionDeclaration{Token: tok, Name: name, Params: params, Body: body}
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	tok := p.curTok
	p.expect(token.If)
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	cons := p.parseStatement()
	stmt := &ast.IfStatement{Token: tok, Condition: cond, Consequence: cons}
	if p.curTok.Kind == token.Else {
		p.next()
		stmt.Alternative = p.parseStatement()
	}
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	tok := p.curTok
	p.expect(token.While)
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseStatement()
	return &ast.WhileStatement{Token: tok, Condition: cond, Body: body}
}

func (p *Parser) parseDoWhileStatement() *ast.DoWhileStatement {
	tok := p.curTok
	p.expect(token.Do)
	body := p.parseStatement()
	p.expect(token.While)
	p.expect(token.LParen)
	cond := p.parseExpression()
	p.expect(token.RParen)
	p.consumeSemicolon()
	return &ast.DoWhileStatement{Token: tok, Body: body, Condition: cond}
}

// parseForStatement disambiguates C-style for, for-in, and for-of by
// parsing the initializer clause with `in` suppressed as a binary
// operator (§4.3.2), then checking the token that follows it.
func (p *Parser) parseForStatement() ast.Statement {
	tok := p.curTok
	p.expect(token.For)
	p.expect(token.LParen)

	if p.curTok.Kind == token.Semicolon {
		p.next()
		return p.finishCStyleFor(tok, nil)
	}

	declKind, hasDecl := ast.VarVar, false
	switch p.curTok.Kind {
	case token.Var, token.Let, token.Const:
		declKind = p.varKindOf(p.curTok.Kind)
		hasDecl = true
		p.next()
	}

	if hasDecl && p.curTok.Kind == token.Identifier &&
		(p.peekTok.Kind == token.In || p.peekTok.Kind == token.Identifier && p.peekTok.Literal == "of") {
		name := p.curTok.Literal
		p.next()
		if p.curTok.Kind == token.In {
			p.next()
			obj := p.parseExpression()
			p.expect(token.RParen)
			body := p.parseStatement()
			return &ast.ForInStatement{Token: tok, LHSName: name, LHSDecl: declKind, HasDecl: true, Object: obj, Body: body}
		}
		p.next() // "of"
		iter := p.parseAssignmentExpression()
		p.expect(token.RParen)
		body := p.parseStatement()
		return &ast.ForOfStatement{Token: tok, LHSName: name, LHSDecl: declKind, HasDecl: true, Iterable: iter, Body: body}
	}

	if !hasDecl && p.curTok.Kind == token.Identifier &&
		(p.peekTok.Kind == token.In || p.peekTok.Kind == token.Identifier && p.peekTok.Literal == "of") {
		name := p.curTok.Literal
		p.next()
		if p.curTok.Kind == token.In {
			p.next()
			obj := p.parseExpression()
			p.expect(token.RParen)
			body := p.parseStatement()
			return &ast.ForInStatement{Token: tok, LHSName: name, Object: obj, Body: body}
		}
		p.next()
		iter := p.parseAssignmentExpression()
		p.expect(token.RParen)
		body := p.parseStatement()
		return &ast.ForOfStatement{Token: tok, LHSName: name, Iterable: iter, Body: body}
	}

	var init ast.Node
	if hasDecl {
		p.noIn = true
		vs := &ast.VarStatement{Token: tok, Kind: declKind}
		for {
			name := p.curTok.Literal
			p.expect(token.Identifier)
			var initExpr ast.Expression
			if p.curTok.Kind == token.Assign {
				p.next()
				initExpr = p.parseAssignmentExpression()
			}
			vs.Declarators = append(vs.Declarators, ast.Declarator{Name: name, Init: initExpr})
			if p.curTok.Kind != token.Comma {
				break
			}
			p.next()
		}
		p.noIn = false
		init = vs
	} else {
		p.noIn = true
		init = p.parseExpression()
		p.noIn = false
	}
	p.expect(token.Semicolon)
	return p.finishCStyleFor(tok, init)
}

func (p *Parser) finishCStyleFor(tok token.Token, init ast.Node) *ast.ForStatement {
	var cond, update ast.Expression
	if p.curTok.Kind != token.Semicolon {
		cond = p.parseExpression()
	}
	p.expect(token.Semicolon)
	if p.curTok.Kind != token.RParen {
		update = p.parseExpression()
	}
	p.expect(token.RParen)
	body := p.parseStatement()
	return &ast.ForStatement{Token: tok, Init: init, Condition: cond, Update: update, Body: body}
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	tok := p.curTok
	p.next()
	stmt := &ast.ReturnStatement{Token: tok}
	if p.curTok.Kind != token.Semicolon && p.curTok.Kind != token.RBrace &&
		p.curTok.Kind != token.EOF && !p.curTok.HadNewlineBefore {
		stmt.Value = p.parseExpression()
	}
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	tok := p.curTok
	p.next()
	stmt := &ast.BreakStatement{Token: tok}
	if p.curTok.Kind == token.Identifier && !p.curTok.HadNewlineBefore {
		stmt.Label = p.curTok.Literal
		p.next()
	}
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	tok := p.curTok
	p.next()
	stmt := &ast.ContinueStatement{Token: tok}
	if p.curTok.Kind == token.Identifier && !p.curTok.HadNewlineBefore {
		stmt.Label = p.curTok.Literal
		p.next()
	}
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseThrowStatement() *ast.ThrowStatement {
	tok := p.curTok
	p.next()
	value := p.parseExpression()
	p.consumeSemicolon()
	return &ast.ThrowStatement{Token: tok, Value: value}
}

func (p *Parser) parseTryStatement() *ast.TryStatement {
	tok := p.curTok
	p.expect(token.Try)
	stmt := &ast.TryStatement{Token: tok, Block: p.parseBlockStatement()}
	if p.curTok.Kind == token.Catch {
		p.next()
		clause := &ast.CatchClause{}
		if p.curTok.Kind == token.LParen {
			p.next()
			clause.Param = p.curTok.Literal
			p.expect(token.Identifier)
			p.expect(token.RParen)
		}
		clause.Body = p.parseBlockStatement()
		stmt.Catch = clause
	}
	if p.curTok.Kind == token.Finally {
		p.next()
		stmt.Finally = p.parseBlockStatement()
	}
	if stmt.Catch == nil && stmt.Finally == nil {
		p.errorf("try statement requires a catch or finally clause")
	}
	return stmt
}

func (p *Parser) parseSwitchStatement() *ast.SwitchStatement {
	tok := p.curTok
	p.expect(token.Switch)
	p.expect(token.LParen)
	disc := p.parseExpression()
	p.expect(token.RParen)
	p.expect(token.LBrace)
	stmt := &ast.SwitchStatement{Token: tok, Discriminant: disc}
	for p.curTok.Kind != token.RBrace && p.curTok.Kind != token.EOF {
		var c ast.SwitchCase
		if p.curTok.Kind == token.Case {
			p.next()
			c.Test = p.parseExpression()
		} else {
			p.expect(token.Default)
		}
		p.expect(token.Colon)
		for p.curTok.Kind != token.Case && p.curTok.Kind != token.Default &&
			p.curTok.Kind != token.RBrace && p.curTok.Kind != token.EOF {
			c.Statements = append(c.Statements, p.parseStatement())
		}
		stmt.Cases = append(stmt.Cases, c)
	}
	p.expect(token.RBrace)
	return stmt
}

func (p *Parser) parseLabeledStatement() *ast.LabeledStatement {
	tok := p.curTok
	label := p.curTok.Literal
	p.next()
	p.expect(token.Colon)
	return &ast.LabeledStatement{Token: tok, Label: label, Body: p.parseStatement()}
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	tok := p.curTok
	expr := p.parseExpression()
	p.consumeSemicolon()
	return &ast.ExpressionStatement{Token: tok, Expression: expr}
}

// ---- Expressions -----------------------------------------------------------

// parseExpression handles the comma operator; parseAssignmentExpression
// handles everything tighter.
func (p *Parser) parseExpression() ast.Expression {
	first := p.parseAssignmentExpression()
	if p.curTok.Kind != token.Comma {
		return first
	}
	seq := &ast.SequenceExpression{Token: p.curTok, Expressions: []ast.Expression{first}}
	for p.curTok.Kind == token.Comma {
		p.next()
		seq.Expressions = append(seq.Expressions, p.parseAssignmentExpression())
	}
	return seq
}

func (p *Parser) parseAssignmentExpression() ast.Expression {
	left := p.parseConditionalExpression()
	if !assignOps[p.curTok.Kind] {
		return left
	}
	tok := p.curTok
	op := tok.Literal
	p.next()
	value := p.parseAssignmentExpression()
	return &ast.AssignmentExpression{Token: tok, Operator: op, Target: left, Value: value}
}

func (p *Parser) parseConditionalExpression() ast.Expression {
	cond := p.parseBinaryExpression(precLowest)
	if p.curTok.Kind != token.Question {
		return cond
	}
	tok := p.curTok
	p.next()
	cons := p.parseAssignmentExpression()
	p.expect(token.Colon)
	alt := p.parseAssignmentExpression()
	return &ast.ConditionalExpression{Token: tok, Condition: cond, Consequent: cons, Alternate: alt}
}

func isLogical(k token.Kind) bool {
	return k == token.LAnd || k == token.LOr || k == token.Nullish
}

// parseBinaryExpression is precedence-climbing: it keeps folding in
// operators whose precedence exceeds minPrec, handling logical
// operators (which short-circuit) as ast.LogicalExpression and every
// other binary operator as ast.BinaryExpression.
func (p *Parser) parseBinaryExpression(minPrec int) ast.Expression {
	left := p.parseUnaryExpression()
	for {
		if p.noIn && p.curTok.Kind == token.In {
			return left
		}
		prec, ok := binaryPrecedence[p.curTok.Kind]
		if !ok || prec <= minPrec {
			return left
		}
		tok := p.curTok
		op := tok.Literal
		p.next()
		nextMin := prec
		if tok.Kind == token.Pow {
			nextMin = prec - 1 // right-associative
		}
		right := p.parseBinaryExpression(nextMin)
		if isLogical(tok.Kind) {
			left = &ast.LogicalExpression{Token: tok, Operator: op, Left: left, Right: right}
		} else {
			left = &ast.BinaryExpression{Token: tok, Operator: op, Left: left, Right: right}
		}
	}
}

func isUnaryOp(k token.Kind) bool {
	switch k {
	case token.Plus, token.Minus, token.LNot, token.BitNot, token.Typeof, token.Void, token.Delete:
		return true
	}
	return false
}

func (p *Parser) parseUnaryExpression() ast.Expression {
	if p.curTok.Kind == token.Inc || p.curTok.Kind == token.Dec {
		tok := p.curTok
		p.next()
		operand := p.parseUnaryExpression()
		return &ast.UpdateExpression{Token: tok, Operator: tok.Literal, Operand: operand, Prefix: true}
	}
	if isUnaryOp(p.curTok.Kind) {
		tok := p.curTok
		p.next()
		operand := p.parseUnaryExpression()
		return &ast.UnaryExpression{Token: tok, Operator: tok.Literal, Operand: operand}
	}
	return p.parsePostfixExpression()
}

func (p *Parser) parsePostfixExpression() ast.Expression {
	expr := p.parseCallExpression(p.parsePrimaryExpression())
	if (p.curTok.Kind == token.Inc || p.curTok.Kind == token.Dec) && !p.curTok.HadNewlineBefore {
		tok := p.curTok
		p.next()
		return &ast.UpdateExpression{Token: tok, Operator: tok.Literal, Operand: expr, Prefix: false}
	}
	return expr
}

// parseCallExpression handles member access, computed access, and call
// suffixes chained after a primary expression.
func (p *Parser) parseCallExpression(expr ast.Expression) ast.Expression {
	for {
		switch p.curTok.Kind {
		case token.Dot:
			tok := p.curTok
			p.next()
			name := p.curTok.Literal
			p.expect(token.Identifier)
			expr = &ast.MemberExpression{Token: tok, Object: expr, Property: &ast.Identifier{Name: name}, Computed: false}
		case token.LBracket:
			tok := p.curTok
			p.next()
			key := p.parseExpression()
			p.expect(token.RBracket)
			expr = &ast.MemberExpression{Token: tok, Object: expr, Property: key, Computed: true}
		case token.LParen:
			tok := p.curTok
			args := p.parseArguments()
			expr = &ast.CallExpression{Token: tok, Callee: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArguments() []ast.Expression {
	var args []ast.Expression
	p.expect(token.LParen)
	for p.curTok.Kind != token.RParen && p.curTok.Kind != token.EOF {
		args = append(args, p.parseAssignmentExpression())
		if p.curTok.Kind == token.Comma {
			p.next()
		}
	}
	p.expect(token.RParen)
	return args
}

func (p *Parser) parseNewExpression() ast.Expression {
	tok := p.curTok
	p.next()
	callee := p.parseCallExpressionNoCall(p.parsePrimaryExpression())
	var args []ast.Expression
	if p.curTok.Kind == token.LParen {
		args = p.parseArguments()
	}
	expr := ast.Expression(&ast.CallExpression{Token: tok, Callee: callee, Args: args, IsNew: true})
	return p.parseCallExpression(expr)
}

// parseCallExpressionNoCall parses member-access suffixes only (not
// calls), used while resolving `new Callee.member(...)`'s callee.
func (p *Parser) parseCallExpressionNoCall(expr ast.Expression) ast.Expression {
	for {
		switch p.curTok.Kind {
		case token.Dot:
			tok := p.curTok
			p.next()
			name := p.curTok.Literal
			p.expect(token.Identifier)
			expr = &ast.MemberExpression{Token: tok, Object: expr, Property: &ast.Identifier{Name: name}, Computed: false}
		case token.LBracket:
			tok := p.curTok
			p.next()
			key := p.parseExpression()
			p.expect(token.RBracket)
			expr = &ast.MemberExpression{Token: tok, Object: expr, Property: key, Computed: true}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimaryExpression() ast.Expression {
	tok := p.curTok
	switch tok.Kind {
	case token.Number:
		p.next()
		return &ast.NumberLiteral{Token: tok, Value: tok.Number}
	case token.String:
		p.next()
		return &ast.StringLiteral{Token: tok, Value: tok.Literal}
	case token.True, token.False:
		p.next()
		return &ast.BoolLiteral{Token: tok, Value: tok.Kind == token.True}
	case token.Null:
		p.next()
		return &ast.NullLiteral{Token: tok}
	case token.Undefined:
		p.next()
		return &ast.UndefinedLiteral{Token: tok}
	case token.This:
		p.next()
		return &ast.ThisExpression{Token: tok}
	case token.New:
		return p.parseNewExpression()
	case token.Function:
		return p.parseFunctionExpression()
	case token.LParen:
		return p.parseParenOrArrow()
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.LBrace:
		return p.parseObjectLiteral()
	case token.Identifier:
		if p.peekTok.Kind == token.Arrow {
			name := tok.Literal
			p.next()
			return p.finishArrow(tok, []string{name})
		}
		p.next()
		return &ast.Identifier{Token: tok, Name: tok.Literal}
	}
	p.errorf("unexpected token %s in expression", tok.Kind)
	p.next()
	return &ast.UndefinedLiteral{Token: tok}
}

func (p *Parser) parseFunctionExpression() ast.Expression {
	tok := p.curTok
	p.expect(token.Function)
	name := ""
	if p.curTok.Kind == token.Identifier {
		name = p.curTok.Literal
		p.next()
	}
	params := p.parseParams()
	body := p.parseBlockStatement()
	return &ast.FunctionExpression{Token: tok, Name: name, Params: params, Body: body}
}

// parseParenOrArrow disambiguates a parenthesized expression from an
// arrow function's parameter list by scanning ahead for `=>` after the
// matching `)`, restoring state otherwise — smog's parser does not
// need backtracking, but JS's grammar forces it here.
func (p *Parser) parseParenOrArrow() ast.Expression {
	tok := p.curTok
	if names, ok := p.tryParseArrowParams(); ok {
		return p.finishArrow(tok, names)
	}
	p.expect(token.LParen)
	expr := p.parseExpression()
	p.expect(token.RParen)
	return expr
}

// tryParseArrowParams speculatively scans the upcoming tokens for
// `(ident, ident, ...) =>`. On a match it consumes through the `=>` and
// returns the names; otherwise it restores the lexer, both lookahead
// tokens and the error list from copies saved before the scan.
func (p *Parser) tryParseArrowParams() ([]string, bool) {
	save := *p.l
	saveCur, savePeek, saveErrs := p.curTok, p.peekTok, len(p.errors)

	if p.curTok.Kind != token.LParen {
		return nil, false
	}
	p.next()
	var names []string
	ok := true
	for p.curTok.Kind != token.RParen {
		if p.curTok.Kind != token.Identifier {
			ok = false
			break
		}
		names = append(names, p.curTok.Literal)
		p.next()
		if p.curTok.Kind == token.Comma {
			p.next()
			continue
		}
		break
	}
	if ok && p.curTok.Kind == token.RParen {
		p.next()
		if p.curTok.Kind == token.Arrow {
			p.next()
			return names, true
		}
	}

	*p.l = save
	p.curTok, p.peekTok = saveCur, savePeek
	p.errors = p.errors[:saveErrs]
	return nil, false
}

func (p *Parser) finishArrow(tok token.Token, params []string) ast.Expression {
	fn := &ast.FunctionExpression{Token: tok, Params: params, IsArrow: true}
	if p.curTok.Kind == token.LBrace {
		fn.Body = p.parseBlockStatement()
	} else {
		fn.ExprBody = p.parseAssignmentExpression()
	}
	return fn
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.curTok
	p.expect(token.LBracket)
	lit := &ast.ArrayLiteral{Token: tok}
	for p.curTok.Kind != token.RBracket && p.curTok.Kind != token.EOF {
		if p.curTok.Kind == token.Comma {
			lit.Elements = append(lit.Elements, ast.ArrayElement{})
			p.next()
			continue
		}
		spread := false
		if p.curTok.Kind == token.Ellipsis {
			spread = true
			p.next()
		}
		el := p.parseAssignmentExpression()
		lit.Elements = append(lit.Elements, ast.ArrayElement{Expr: el, Spread: spread})
		if p.curTok.Kind == token.Comma {
			p.next()
		}
	}
	p.expect(token.RBracket)
	return lit
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	tok := p.curTok
	p.expect(token.LBrace)
	lit := &ast.ObjectLiteral{Token: tok}
	for p.curTok.Kind != token.RBrace && p.curTok.Kind != token.EOF {
		lit.Properties = append(lit.Properties, p.parseObjectProperty())
		if p.curTok.Kind == token.Comma {
			p.next()
		}
	}
	p.expect(token.RBrace)
	return lit
}

func (p *Parser) parseObjectProperty() ast.Property {
	if p.curTok.Kind == token.Ellipsis {
		p.next()
		return ast.Property{Kind: ast.PropertySpread, Value: p.parseAssignmentExpression()}
	}

	if p.curTok.Kind == token.Identifier && (p.curTok.Literal == "get" || p.curTok.Literal == "set") &&
		p.peekTok.Kind != token.Colon && p.peekTok.Kind != token.Comma && p.peekTok.Kind != token.RBrace {
		isGetter := p.curTok.Literal == "get"
		p.next()
		key, computed, keyExpr := p.parsePropertyKey()
		params := p.parseParams()
		body := p.parseBlockStatement()
		fn := &ast.FunctionExpression{Params: params, Body: body}
		kind := ast.PropertySetter
		if isGetter {
			kind = ast.PropertyGetter
		}
		return ast.Property{Kind: kind, Key: key, Computed: computed, KeyExpr: keyExpr, Value: fn}
	}

	key, computed, keyExpr := p.parsePropertyKey()

	if p.curTok.Kind == token.LParen {
		params := p.parseParams()
		body := p.parseBlockStatement()
		return ast.Property{Kind: ast.PropertyMethod, Key: key, Computed: computed, KeyExpr: keyExpr, Value: &ast.FunctionExpression{Params: params, Body: body}}
	}

	if p.curTok.Kind == token.Colon {
		p.next()
		value := p.parseAssignmentExpression()
		return ast.Property{Kind: ast.PropertyData, Key: key, Computed: computed, KeyExpr: keyExpr, Value: value}
	}

	// shorthand { x }
	return ast.Property{Kind: ast.PropertyData, Key: key, Value: &ast.Identifier{Name: key}, Shorthand: true}
}

func (p *Parser) parsePropertyKey() (name string, computed bool, keyExpr ast.Expression) {
	switch p.curTok.Kind {
	case token.LBracket:
		p.next()
		keyExpr = p.parseAssignmentExpression()
		p.expect(token.RBracket)
		return "", true, keyExpr
	case token.String:
		name = p.curTok.Literal
		p.next()
		return name, false, nil
	case token.Number:
		name = strconv.FormatFloat(p.curTok.Number, 'g', -1, 64)
		p.next()
		return name, false, nil
	default:
		name = p.curTok.Literal
		p.next()
		return name, false, nil
	}
}
