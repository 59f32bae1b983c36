package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/ast"
	"microjs/pkg/lexer"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func exprStmt(t *testing.T, prog *ast.Program, i int) ast.Expression {
	t.Helper()
	require.Greater(t, len(prog.Statements), i)
	stmt, ok := prog.Statements[i].(*ast.ExpressionStatement)
	require.True(t, ok, "statement %d is %T, not ExpressionStatement", i, prog.Statements[i])
	return stmt.Expression
}

func TestParseNumberLiteral(t *testing.T) {
	prog := parse(t, "42;")
	lit, ok := exprStmt(t, prog, 0).(*ast.NumberLiteral)
	require.True(t, ok)
	assert.Equal(t, float64(42), lit.Value)
}

func TestParseStringLiteral(t *testing.T) {
	prog := parse(t, `"hello";`)
	lit, ok := exprStmt(t, prog, 0).(*ast.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, "hello", lit.Value)
}

func TestParseVarDeclaration(t *testing.T) {
	prog := parse(t, "var x = 1, y = 2;")
	stmt, ok := prog.Statements[0].(*ast.VarStatement)
	require.True(t, ok)
	assert.Equal(t, ast.VarVar, stmt.Kind)
	require.Len(t, stmt.Declarators, 2)
	assert.Equal(t, "x", stmt.Declarators[0].Name)
	assert.Equal(t, "y", stmt.Declarators[1].Name)
}

func TestParseFunctionDeclaration(t *testing.T) {
	prog := parse(t, "function add(a, b) { return a + b; }")
	fn, ok := prog.Statements[0].(*ast.FunctionDeclaration)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body.Statements, 1)
	ret, ok := fn.Body.Statements[0].(*ast.ReturnStatement)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Operator)
}

func TestParseIfElse(t *testing.T) {
	prog := parse(t, "if (x) { y; } else { z; }")
	ifs, ok := prog.Statements[0].(*ast.IfStatement)
	require.True(t, ok)
	assert.NotNil(t, ifs.Consequence)
	assert.NotNil(t, ifs.Alternative)
}

func TestParseForLoop(t *testing.T) {
	prog := parse(t, "for (var i = 0; i < 10; i = i + 1) { sum; }")
	forStmt, ok := prog.Statements[0].(*ast.ForStatement)
	require.True(t, ok)
	assert.NotNil(t, forStmt.Init)
	assert.NotNil(t, forStmt.Condition)
	assert.NotNil(t, forStmt.Update)
}

func TestParseForIn(t *testing.T) {
	prog := parse(t, "for (var k in obj) { k; }")
	forIn, ok := prog.Statements[0].(*ast.ForInStatement)
	require.True(t, ok)
	assert.Equal(t, "k", forIn.LHSName)
}

func TestParseForOf(t *testing.T) {
	prog := parse(t, "for (var v of arr) { v; }")
	forOf, ok := prog.Statements[0].(*ast.ForOfStatement)
	require.True(t, ok)
	assert.Equal(t, "v", forOf.LHSName)
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := parse(t, `try { risky(); } catch (e) { handle(e); } finally { cleanup(); }`)
	tr, ok := prog.Statements[0].(*ast.TryStatement)
	require.True(t, ok)
	require.NotNil(t, tr.Catch)
	assert.Equal(t, "e", tr.Catch.Param)
	assert.NotNil(t, tr.Finally)
}

func TestParseArrayLiteralWithHoles(t *testing.T) {
	prog := parse(t, "[1, , 3];")
	arr, ok := exprStmt(t, prog, 0).(*ast.ArrayLiteral)
	require.True(t, ok)
	require.Len(t, arr.Elements, 3)
	assert.Nil(t, arr.Elements[1].Expr)
}

func TestParseObjectLiteral(t *testing.T) {
	prog := parse(t, `({a: 1, b() {}, get c() { return 1; }});`)
	obj, ok := exprStmt(t, prog, 0).(*ast.ObjectLiteral)
	require.True(t, ok)
	require.Len(t, obj.Properties, 3)
	assert.Equal(t, ast.PropertyData, obj.Properties[0].Kind)
	assert.Equal(t, ast.PropertyMethod, obj.Properties[1].Kind)
	assert.Equal(t, ast.PropertyGetter, obj.Properties[2].Kind)
}

func TestParseArrowFunctionExpressionBody(t *testing.T) {
	prog := parse(t, "var f = (a, b) => a + b;")
	stmt := prog.Statements[0].(*ast.VarStatement)
	fn, ok := stmt.Declarators[0].Init.(*ast.FunctionExpression)
	require.True(t, ok)
	assert.True(t, fn.IsArrow)
	assert.NotNil(t, fn.ExprBody)
	assert.Nil(t, fn.Body)
}

func TestParseArrowFunctionBlockBody(t *testing.T) {
	prog := parse(t, "var f = x => { return x; };")
	stmt := prog.Statements[0].(*ast.VarStatement)
	fn, ok := stmt.Declarators[0].Init.(*ast.FunctionExpression)
	require.True(t, ok)
	assert.True(t, fn.IsArrow)
	assert.NotNil(t, fn.Body)
}

func TestParseMemberAndCallChain(t *testing.T) {
	prog := parse(t, "a.b[c].d(1, 2);")
	call, ok := exprStmt(t, prog, 0).(*ast.CallExpression)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	member, ok := call.Callee.(*ast.MemberExpression)
	require.True(t, ok)
	assert.False(t, member.Computed)
}

func TestParseNewExpression(t *testing.T) {
	prog := parse(t, "new Foo(1);")
	call, ok := exprStmt(t, prog, 0).(*ast.CallExpression)
	require.True(t, ok)
	assert.True(t, call.IsNew)
}

func TestParseConditionalExpression(t *testing.T) {
	prog := parse(t, "a ? b : c;")
	cond, ok := exprStmt(t, prog, 0).(*ast.ConditionalExpression)
	require.True(t, ok)
	assert.NotNil(t, cond.Consequent)
	assert.NotNil(t, cond.Alternate)
}

func TestASIInsertsSemicolonBeforeNewline(t *testing.T) {
	prog := parse(t, "var x = 1\nvar y = 2\n")
	require.Len(t, prog.Statements, 2)
}

func TestASIBeforeReturnValueOnNewLine(t *testing.T) {
	prog := parse(t, "function f() {\n  return\n  1\n}")
	fn := prog.Statements[0].(*ast.FunctionDeclaration)
	ret, ok := fn.Body.Statements[0].(*ast.ReturnStatement)
	require.True(t, ok)
	assert.Nil(t, ret.Value)
}
