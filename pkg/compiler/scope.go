package compiler

import "microjs/pkg/ast"

// scopeNode is one function-level scope (§4.3.3's "scope chain"). Block
// constructs (if/while/for/try bodies) do not get their own scopeNode;
// var/let/const/function declarations are hoisted to the nearest
// enclosing function scope. This is a deliberate simplification of
// JavaScript's block scoping (documented in DESIGN.md) rather than an
// oversight: it keeps capture analysis a single bottom-up pass instead
// of a block-aware one, at the cost of not modeling per-iteration `let`
// bindings precisely.
type scopeNode struct {
	parent    *scopeNode
	declared  map[string]bool
	declOrder []string

	// ownCell holds the subset of declared names that some descendant
	// function captures; such locals are allocated as VarCells instead
	// of plain stack slots so the capture observes mutation.
	ownCell map[string]bool

	// capture holds names not declared in this scope but referenced by
	// this function (or forwarded through it to a deeper descendant)
	// that resolve to an ancestor's local. captureOrder fixes the index
	// each gets in this function's VarRefs array.
	capture      map[string]bool
	captureOrder []string

	// paramSet marks the subset of declared names that are parameters;
	// these are always a prefix of declOrder since analysis.function
	// declares every parameter before hoisting the body.
	paramSet map[string]bool

	// fn is the AST node this scope was analyzed from (nil for the
	// top-level program); analysis.scopes maps it back to this node so
	// codegen can recover the precomputed scope for a nested function
	// literal without re-running analysis.
	fn ast.Node
}

func newScope(parent *scopeNode) *scopeNode {
	return &scopeNode{
		parent:   parent,
		declared: make(map[string]bool),
		ownCell:  make(map[string]bool),
		capture:  make(map[string]bool),
		paramSet: make(map[string]bool),
	}
}

func (s *scopeNode) declare(name string) {
	if name == "" || s.declared[name] {
		return
	}
	s.declared[name] = true
	s.declOrder = append(s.declOrder, name)
}

// resolve records the effect of scope s referencing name: if name
// belongs to an ancestor scope, that ancestor's local is promoted to an
// own-cell and every intervening function scope (including s) records
// it as a forwarded capture.
func (s *scopeNode) resolve(name string) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.declared[name] {
			if cur == s {
				return // local to the referencing function itself
			}
			cur.ownCell[name] = true
			for mid := s; mid != cur; mid = mid.parent {
				if !mid.capture[name] {
					mid.capture[name] = true
					mid.captureOrder = append(mid.captureOrder, name)
				}
			}
			return
		}
	}
	// Unresolved: a global reference. Nothing to record.
}

// analysis collects the scopeNode computed for every function literal
// in a program, keyed by its AST node, so the codegen pass (which walks
// the same tree a second time) can look up precomputed capture
// decisions instead of re-deriving them mid-codegen — capture decisions
// for a name must be known before any reference to it anywhere in its
// owning function is compiled, including references that lexically
// precede the capturing nested function.
type analysis struct {
	scopes map[ast.Node]*scopeNode
}

func newAnalysis() *analysis {
	return &analysis{scopes: make(map[ast.Node]*scopeNode)}
}

// analyzeProgram runs capture analysis over an entire program and
// returns both the top-level scope and the node->scope map codegen
// needs for nested functions.
func analyzeProgram(stmts []ast.Statement) (*scopeNode, *analysis) {
	an := newAnalysis()
	top := an.function(nil, nil, nil, stmts)
	return top, an
}

// function runs capture analysis over a function body, given the scope
// chain it's nested in (nil parent for the top-level program), records
// the result in an.scopes keyed by node (if non-nil), and returns the
// function's own scopeNode with ownCell/capture fully populated.
func (an *analysis) function(parent *scopeNode, node ast.Node, params []string, body []ast.Statement) *scopeNode {
	s := newScope(parent)
	s.fn = node
	for _, p := range params {
		s.declare(p)
		s.paramSet[p] = true
	}
	an.hoistDeclarations(s, body)
	for _, stmt := range body {
		an.statement(s, stmt)
	}
	if node != nil {
		an.scopes[node] = s
	}
	return s
}

func (an *analysis) hoistDeclarations(s *scopeNode, stmts []ast.Statement) {
	for _, stmt := range stmts {
		an.hoistStatement(s, stmt)
	}
}

func (an *analysis) hoistStatement(s *scopeNode, stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.VarStatement:
		for _, d := range n.Declarators {
			s.declare(d.Name)
		}
	case *ast.FunctionDeclaration:
		s.declare(n.Name)
	case *ast.BlockStatement:
		an.hoistDeclarations(s, n.Statements)
	case *ast.IfStatement:
		an.hoistStatement(s, n.Consequence)
		if n.Alternative != nil {
			an.hoistStatement(s, n.Alternative)
		}
	case *ast.WhileStatement:
		an.hoistStatement(s, n.Body)
	case *ast.DoWhileStatement:
		an.hoistStatement(s, n.Body)
	case *ast.ForStatement:
		if v, ok := n.Init.(*ast.VarStatement); ok {
			for _, d := range v.Declarators {
				s.declare(d.Name)
			}
		}
		an.hoistStatement(s, n.Body)
	case *ast.ForInStatement:
		if n.HasDecl {
			s.declare(n.LHSName)
		}
		an.hoistStatement(s, n.Body)
	case *ast.ForOfStatement:
		if n.HasDecl {
			s.declare(n.LHSName)
		}
		an.hoistStatement(s, n.Body)
	case *ast.LabeledStatement:
		an.hoistStatement(s, n.Body)
	case *ast.TryStatement:
		an.hoistDeclarations(s, n.Block.Statements)
		if n.Catch != nil {
			s.declare(n.Catch.Param)
			an.hoistDeclarations(s, n.Catch.Body.Statements)
		}
		if n.Finally != nil {
			an.hoistDeclarations(s, n.Finally.Statements)
		}
	case *ast.SwitchStatement:
		for _, c := range n.Cases {
			an.hoistDeclarations(s, c.Statements)
		}
	}
}

func (an *analysis) statement(s *scopeNode, stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		an.expr(s, n.Expression)
	case *ast.VarStatement:
		for _, d := range n.Declarators {
			if d.Init != nil {
				an.expr(s, d.Init)
			}
		}
	case *ast.FunctionDeclaration:
		an.function(s, n, n.Params, n.Body.Statements)
	case *ast.BlockStatement:
		for _, st := range n.Statements {
			an.statement(s, st)
		}
	case *ast.IfStatement:
		an.expr(s, n.Condition)
		an.statement(s, n.Consequence)
		if n.Alternative != nil {
			an.statement(s, n.Alternative)
		}
	case *ast.WhileStatement:
		an.expr(s, n.Condition)
		an.statement(s, n.Body)
	case *ast.DoWhileStatement:
		an.expr(s, n.Condition)
		an.statement(s, n.Body)
	case *ast.ForStatement:
		switch init := n.Init.(type) {
		case *ast.VarStatement:
			an.statement(s, init)
		case ast.Expression:
			an.expr(s, init)
		}
		if n.Condition != nil {
			an.expr(s, n.Condition)
		}
		if n.Update != nil {
			an.expr(s, n.Update)
		}
		an.statement(s, n.Body)
	case *ast.ForInStatement:
		an.expr(s, n.Object)
		an.statement(s, n.Body)
	case *ast.ForOfStatement:
		an.expr(s, n.Iterable)
		an.statement(s, n.Body)
	case *ast.ReturnStatement:
		if n.Value != nil {
			an.expr(s, n.Value)
		}
	case *ast.ThrowStatement:
		an.expr(s, n.Value)
	case *ast.LabeledStatement:
		an.statement(s, n.Body)
	case *ast.TryStatement:
		for _, st := range n.Block.Statements {
			an.statement(s, st)
		}
		if n.Catch != nil {
			for _, st := range n.Catch.Body.Statements {
				an.statement(s, st)
			}
		}
		if n.Finally != nil {
			for _, st := range n.Finally.Statements {
				an.statement(s, st)
			}
		}
	case *ast.SwitchStatement:
		an.expr(s, n.Discriminant)
		for _, c := range n.Cases {
			if c.Test != nil {
				an.expr(s, c.Test)
			}
			for _, st := range c.Statements {
				an.statement(s, st)
			}
		}
	}
}

func (an *analysis) expr(s *scopeNode, expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.Identifier:
		s.resolve(n.Name)
	case *ast.FunctionExpression:
		an.function(s, n, n.Params, bodyOf(n))
	case *ast.UnaryExpression:
		an.expr(s, n.Operand)
	case *ast.UpdateExpression:
		an.expr(s, n.Operand)
	case *ast.BinaryExpression:
		an.expr(s, n.Left)
		an.expr(s, n.Right)
	case *ast.LogicalExpression:
		an.expr(s, n.Left)
		an.expr(s, n.Right)
	case *ast.AssignmentExpression:
		an.expr(s, n.Target)
		an.expr(s, n.Value)
	case *ast.ConditionalExpression:
		an.expr(s, n.Condition)
		an.expr(s, n.Consequent)
		an.expr(s, n.Alternate)
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			an.expr(s, e)
		}
	case *ast.CallExpression:
		an.expr(s, n.Callee)
		for _, a := range n.Args {
			an.expr(s, a)
		}
	case *ast.MemberExpression:
		an.expr(s, n.Object)
		if n.Computed {
			an.expr(s, n.Property)
		}
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			if el.Expr != nil {
				an.expr(s, el.Expr)
			}
		}
	case *ast.ObjectLiteral:
		for _, p := range n.Properties {
			if p.Computed {
				an.expr(s, p.KeyExpr)
			}
			if p.Value != nil {
				an.expr(s, p.Value)
			}
		}
	}
}

func bodyOf(fn *ast.FunctionExpression) []ast.Statement {
	if fn.Body != nil {
		return fn.Body.Statements
	}
	if fn.ExprBody != nil {
		return []ast.Statement{&ast.ReturnStatement{Value: fn.ExprBody}}
	}
	return nil
}

// ownCellIndex returns the index name occupies in this scope's own-cell
// block of the unified VarRefs addressing space (§4.3.3), in the order
// names were declared.
func (s *scopeNode) ownCellIndex(name string) (int, bool) {
	i := 0
	for _, n := range s.declOrder {
		if !s.ownCell[n] {
			continue
		}
		if n == name {
			return i, true
		}
		i++
	}
	return 0, false
}

func (s *scopeNode) ownCellCount() int {
	n := 0
	for _, name := range s.declOrder {
		if s.ownCell[name] {
			n++
		}
	}
	return n
}

// captureIndex returns name's index within captureOrder, offset by
// ownCellCount so it lands after the own-cell block in the unified
// VarRefs addressing space.
func (s *scopeNode) captureIndex(name string) (int, bool) {
	for i, n := range s.captureOrder {
		if n == name {
			return s.ownCellCount() + i, true
		}
	}
	return 0, false
}

// paramIndex returns name's raw positional index among ALL parameters
// (promoted to an own-cell or not). Arguments are always delivered into
// Locals[0:paramCount] positionally at call time regardless of whether
// a given parameter is later promoted to a VarCell, so this numbering
// never skips promoted names — only a promoted parameter's *subsequent*
// references compile to the VarRef family instead of GetArg, after a
// one-time prologue copy (see compileFunctionBody).
func (s *scopeNode) paramIndex(name string) (int, bool) {
	i := 0
	for _, n := range s.declOrder {
		if !s.paramSet[n] {
			break
		}
		if n == name {
			return i, true
		}
		i++
	}
	return 0, false
}

// plainLocalIndex returns name's GetLoc/PutLoc/SetLoc operand index:
// its position among non-parameter declared names that were not
// promoted to an own-cell.
func (s *scopeNode) plainLocalIndex(name string) (int, bool) {
	i := 0
	for _, n := range s.declOrder {
		if s.paramSet[n] {
			continue
		}
		if s.ownCell[n] {
			continue
		}
		if n == name {
			return i, true
		}
		i++
	}
	return 0, false
}

// paramCount is the Locals-array slot count reserved for parameters:
// every declared parameter, whether or not it is later promoted to an
// own-cell, since argument values are delivered positionally.
func (s *scopeNode) paramCount() int { return len(s.paramSet) }

// plainLocalCount is the Locals-array slot count reserved for
// non-promoted, non-parameter declared names.
func (s *scopeNode) plainLocalCount() int {
	n := 0
	for _, name := range s.declOrder {
		if !s.paramSet[name] && !s.ownCell[name] {
			n++
		}
	}
	return n
}

// isParam reports whether name is a parameter of this scope's function.
func (s *scopeNode) isParam(name string) bool { return s.paramSet[name] }
