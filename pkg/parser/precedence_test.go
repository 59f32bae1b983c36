package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/ast"
)

func TestPrecedenceMultiplicationOverAddition(t *testing.T) {
	prog := parse(t, "1 + 2 * 3;")
	add, ok := exprStmt(t, prog, 0).(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "+", add.Operator)
	_, leftIsNumber := add.Left.(*ast.NumberLiteral)
	assert.True(t, leftIsNumber)
	mul, ok := add.Right.(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)
}

func TestPrecedenceExponentRightAssociative(t *testing.T) {
	prog := parse(t, "2 ** 3 ** 2;")
	top, ok := exprStmt(t, prog, 0).(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "**", top.Operator)
	_, leftIsNumber := top.Left.(*ast.NumberLiteral)
	assert.True(t, leftIsNumber, "exponent should be right-associative: left should be the bare literal 2")
	_, rightIsBinary := top.Right.(*ast.BinaryExpression)
	assert.True(t, rightIsBinary)
}

func TestPrecedenceLogicalAndOverOr(t *testing.T) {
	prog := parse(t, "a || b && c;")
	or, ok := exprStmt(t, prog, 0).(*ast.LogicalExpression)
	require.True(t, ok)
	assert.Equal(t, "||", or.Operator)
	and, ok := or.Right.(*ast.LogicalExpression)
	require.True(t, ok)
	assert.Equal(t, "&&", and.Operator)
}

func TestPrecedenceAssignmentIsLowerThanConditional(t *testing.T) {
	prog := parse(t, "x = a ? b : c;")
	assign, ok := exprStmt(t, prog, 0).(*ast.AssignmentExpression)
	require.True(t, ok)
	_, ok = assign.Value.(*ast.ConditionalExpression)
	assert.True(t, ok)
}

func TestPrecedenceUnaryBindsTighterThanBinary(t *testing.T) {
	prog := parse(t, "-a + b;")
	add, ok := exprStmt(t, prog, 0).(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "+", add.Operator)
	_, ok = add.Left.(*ast.UnaryExpression)
	assert.True(t, ok)
}

func TestPrecedenceComparisonAndEquality(t *testing.T) {
	prog := parse(t, "a < b == c;")
	eq, ok := exprStmt(t, prog, 0).(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "==", eq.Operator)
	_, ok = eq.Left.(*ast.BinaryExpression)
	assert.True(t, ok)
}

func TestPrecedenceParenthesesOverridePrecedence(t *testing.T) {
	prog := parse(t, "(1 + 2) * 3;")
	mul, ok := exprStmt(t, prog, 0).(*ast.BinaryExpression)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)
	_, ok = mul.Left.(*ast.BinaryExpression)
	assert.True(t, ok)
}
