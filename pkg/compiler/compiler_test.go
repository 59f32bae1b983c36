package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/bytecode"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
)

func compile(t *testing.T, src string) *bytecode.Container {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	c := New()
	container, err := c.Compile(prog)
	require.NoError(t, err)
	return container
}

func disasm(t *testing.T, src string) string {
	t.Helper()
	return compile(t, src).Disassemble()
}

func countOccurrences(s, substr string) int {
	return strings.Count(s, substr)
}

func TestCompileNumberLiteralUsesInlineFastPath(t *testing.T) {
	out := disasm(t, "7;")
	assert.Contains(t, out, "push_7")
}

func TestCompileNumberLiteralOutOfRangeUsesConstantPool(t *testing.T) {
	c := compile(t, "3.5;")
	require.Len(t, c.Constants, 1)
	assert.Equal(t, 3.5, c.Constants[0].Float())
	assert.Contains(t, c.Disassemble(), "push_const8")
}

func TestCompileStringLiteralInternsAtom(t *testing.T) {
	c := compile(t, `"hi";`)
	require.Len(t, c.Atoms, 1)
	assert.Equal(t, "hi", c.Atoms[0])
	assert.Contains(t, c.Disassemble(), "push_atom_string8")
}

func TestCompileTopLevelFinalExpressionReturnsItsValue(t *testing.T) {
	out := disasm(t, "1; 2; 3")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "return")
	assert.NotContains(t, last, "return_undef")
}

func TestCompileVarDeclarationUsesPlainLocal(t *testing.T) {
	c := compile(t, "function f() { var x = 1; return x; }")
	require.Len(t, c.Functions, 1)
	inner := c.Functions[0].Code.Disassemble()
	assert.Contains(t, inner, "put_loc")
	assert.Contains(t, inner, "get_loc")
}

func TestCompileGlobalAssignmentFallsBackToGlobalOpcodes(t *testing.T) {
	out := disasm(t, "x = 1;")
	assert.Contains(t, out, "set_global8")
}

func TestCompileIfElse(t *testing.T) {
	out := disasm(t, "if (1) { 2; } else { 3; }")
	assert.Contains(t, out, "if_false")
	assert.Contains(t, out, "goto")
}

func TestCompileWhileLoop(t *testing.T) {
	out := disasm(t, "while (1) { 2; }")
	assert.Contains(t, out, "if_false")
	assert.Contains(t, out, "goto")
}

func TestCompileForLoopWithBreakAndContinue(t *testing.T) {
	out := disasm(t, `
		for (var i = 0; i < 10; i = i + 1) {
			if (i) { continue; }
			if (i) { break; }
		}
	`)
	assert.Contains(t, out, "lt")
	assert.GreaterOrEqual(t, countOccurrences(out, "goto"), 3)
}

func TestCompileDoWhileLoop(t *testing.T) {
	out := disasm(t, "do { 1; } while (0);")
	assert.Contains(t, out, "if_true")
}

func TestCompileLabeledBreak(t *testing.T) {
	out := disasm(t, `
		outer: while (1) {
			while (1) {
				break outer;
			}
		}
	`)
	assert.Contains(t, out, "goto")
}

func TestCompileSwitchStatement(t *testing.T) {
	out := disasm(t, `
		switch (1) {
			case 1: 2; break;
			case 2: 3; break;
			default: 4;
		}
	`)
	assert.Contains(t, out, "strict_eq")
	assert.Contains(t, out, "put_loc")
}

func TestCompileTryCatchFinally(t *testing.T) {
	out := disasm(t, `
		try { 1; } catch (e) { 2; } finally { 3; }
	`)
	assert.Contains(t, out, "push_catch_offset")
	assert.Contains(t, out, "catch")
	assert.Contains(t, out, "clear_catch_offset")
}

func TestCompileTryFinallyWithoutCatchRethrows(t *testing.T) {
	out := disasm(t, `
		try { 1; } finally { 2; }
	`)
	assert.Contains(t, out, "rethrow")
}

func TestCompileThrowStatement(t *testing.T) {
	out := disasm(t, `throw "boom";`)
	assert.Contains(t, out, "throw")
}

func TestCompileFunctionExpressionBuildsNestedContainer(t *testing.T) {
	c := compile(t, "var f = function(a, b) { return a + b; };")
	require.Len(t, c.Functions, 1)
	fn := c.Functions[0]
	assert.Equal(t, uint8(2), fn.ParamCount)
	assert.Contains(t, fn.Code.Disassemble(), "add")
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	// x is captured by the inner function, so the outer function must
	// promote it to an own-cell and seed it via put_var_ref instead of a
	// plain put_loc.
	c := compile(t, `
		function make() {
			var x = 0;
			function inc() { x = x + 1; return x; }
			return inc;
		}
	`)
	require.Len(t, c.Functions, 1)
	outer := c.Functions[0] // make, registered in the top-level container
	assert.Contains(t, outer.Code.Disassemble(), "put_var_ref")

	require.Len(t, outer.Code.Functions, 1)
	inner := outer.Code.Functions[0] // inc, registered inside make's own container
	assert.Contains(t, inner.Code.Disassemble(), "get_var_ref")
	assert.Contains(t, inner.Code.Disassemble(), "set_var_ref")
}

func TestCompilePromotedParameterGetsSeedingPrologue(t *testing.T) {
	c := compile(t, `
		function outer(x) {
			function inner() { return x; }
			return inner;
		}
	`)
	require.Len(t, c.Functions, 1)
	outer := c.Functions[0]
	out := outer.Code.Disassemble()
	// Seeding prologue: read the raw argument once, then copy it into
	// its VarCell before any other code runs.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "get_arg")
	assert.Contains(t, lines[1], "put_var_ref")
}

func TestCompileArrayLiteral(t *testing.T) {
	out := disasm(t, "[1, 2, 3];")
	assert.Contains(t, out, "array")
	assert.Equal(t, 3, countOccurrences(out, "define_array_el"))
}

func TestCompileArrayLiteralWithHole(t *testing.T) {
	out := disasm(t, "[1, , 3];")
	assert.Contains(t, out, "undefined")
}

func TestCompileObjectLiteral(t *testing.T) {
	c := compile(t, `({a: 1, b: 2});`)
	require.Len(t, c.Atoms, 2)
	assert.Contains(t, c.Disassemble(), "object")
	assert.Contains(t, c.Disassemble(), "define_field")
}

func TestCompileMemberGetAndSet(t *testing.T) {
	out := disasm(t, "a.b = 1; a.b;")
	assert.Contains(t, out, "get_field8")
	assert.Contains(t, out, "put_field8")
}

func TestCompileComputedMemberAccess(t *testing.T) {
	out := disasm(t, "a[0] = 1; a[0];")
	assert.Contains(t, out, "get_array_el")
	assert.Contains(t, out, "put_array_el")
}

func TestCompileCompoundAssignment(t *testing.T) {
	out := disasm(t, "var x = 1; x += 2;")
	assert.Contains(t, out, "add")
}

func TestCompilePrefixAndPostfixUpdate(t *testing.T) {
	out := disasm(t, "var x = 0; ++x; x++;")
	assert.Contains(t, out, " inc")
	assert.Contains(t, out, "post_inc")
}

func TestCompileLogicalAndShortCircuits(t *testing.T) {
	out := disasm(t, "1 && 2;")
	assert.Contains(t, out, "if_false")
	assert.Contains(t, out, "dup")
}

func TestCompileLogicalOrShortCircuits(t *testing.T) {
	out := disasm(t, "1 || 2;")
	assert.Contains(t, out, "if_true")
}

func TestCompileNullishCoalescing(t *testing.T) {
	out := disasm(t, "a ?? b;")
	assert.Contains(t, out, "nullish")
}

func TestCompileConditionalExpression(t *testing.T) {
	out := disasm(t, "1 ? 2 : 3;")
	assert.Contains(t, out, "if_false")
}

func TestCompileBinaryOperatorTable(t *testing.T) {
	cases := map[string]string{
		"1 + 2;":          "add",
		"1 - 2;":          "sub",
		"1 * 2;":          "mul",
		"1 / 2;":          "div",
		"1 % 2;":          "mod",
		"1 ** 2;":         "pow",
		"1 < 2;":          "lt",
		"1 <= 2;":         "lte",
		"1 > 2;":          "gt",
		"1 >= 2;":         "gte",
		"1 == 2;":         "eq",
		"1 != 2;":         "neq",
		"1 === 2;":        "strict_eq",
		"1 !== 2;":        "strict_neq",
		"1 & 2;":          "and",
		"1 | 2;":          "or",
		"1 ^ 2;":          "xor",
		"1 << 2;":         "shl",
		"1 >> 2;":         "sar",
		"1 >>> 2;":        "shr",
		"a instanceof b;": "instanceof",
		"a in b;":         "in",
	}
	for src, want := range cases {
		out := disasm(t, src)
		assert.Contains(t, out, want, "source %q", src)
	}
}

func TestCompileUnaryOperators(t *testing.T) {
	cases := map[string]string{
		"-a;":       "neg",
		"+a;":       "plus",
		"!a;":       "lnot",
		"~a;":       "not",
		"typeof a;": "typeof",
		"void a;":   "void",
		"delete a;": "delete",
	}
	for src, want := range cases {
		out := disasm(t, src)
		assert.Contains(t, out, want, "source %q", src)
	}
}

func TestCompileCallExpression(t *testing.T) {
	out := disasm(t, "f(1, 2);")
	assert.Contains(t, out, " call ")
}

func TestCompileMethodCallUsesCallMethodStackConvention(t *testing.T) {
	out := disasm(t, "obj.method(1);")
	assert.Contains(t, out, "dup")
	assert.Contains(t, out, "call_method")
}

func TestCompileNewExpressionEmitsCallConstructor(t *testing.T) {
	out := disasm(t, "new Foo(1);")
	assert.Contains(t, out, "call_constructor")
}

func TestCompileForInStatementEmitsReservedOpcodes(t *testing.T) {
	out := disasm(t, "for (var k in obj) { k; }")
	assert.Contains(t, out, "for_in_start")
	assert.Contains(t, out, "for_in_next")
}

func TestCompileForOfStatementEmitsReservedOpcodes(t *testing.T) {
	out := disasm(t, "for (var v of list) { v; }")
	assert.Contains(t, out, "for_of_start")
	assert.Contains(t, out, "for_of_next")
}

func TestCompileSequenceExpressionDropsIntermediateValues(t *testing.T) {
	out := disasm(t, "(1, 2, 3);")
	assert.Equal(t, 2, countOccurrences(out, "drop"))
}

func TestCompileThisAndLiterals(t *testing.T) {
	out := disasm(t, "this; null; undefined; true; false;")
	assert.Contains(t, out, "push_this")
	assert.Contains(t, out, "null")
	assert.Contains(t, out, "undefined")
	assert.Contains(t, out, "push_true")
	assert.Contains(t, out, "push_false")
}
