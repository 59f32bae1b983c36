package vm

import (
	"testing"

	"microjs/pkg/compiler"
	"microjs/pkg/context"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
	"microjs/pkg/value"
)

// run parses, compiles, and executes src as a script, returning its
// completion value against a fresh Context/VM pair.
func run(t *testing.T, src string) (value.Value, *context.Context) {
	t.Helper()
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	c := compiler.New()
	container, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	ctx, err := context.New(64*1024, nil)
	if err != nil {
		t.Fatalf("context.New: %v", err)
	}
	vm := New(ctx)
	result, err := vm.RunProgram(container)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return result, ctx
}

func TestIntegerLiteral(t *testing.T) {
	result, ctx := run(t, "42")
	n, ok := ctx.GetNumber(result)
	if !ok || n != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ** 10", 1024},
		{"-5 + 5", 0},
	}
	for _, c := range cases {
		result, ctx := run(t, c.src)
		n, ok := ctx.GetNumber(result)
		if !ok || n != c.want {
			t.Errorf("%q: expected %v, got %v", c.src, c.want, result)
		}
	}
}

func TestStringConcat(t *testing.T) {
	result, ctx := run(t, `"foo" + "bar"`)
	s, ok := ctx.GetString(result)
	if !ok || s != "foobar" {
		t.Errorf("expected \"foobar\", got %v", result)
	}
}

func TestVariablesAndAssignment(t *testing.T) {
	result, ctx := run(t, `
let x = 1;
let y = 2;
x = x + y;
x;
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 3 {
		t.Errorf("expected 3, got %v", result)
	}
}

func TestIfElse(t *testing.T) {
	result, ctx := run(t, `
let x = 10;
let y;
if (x > 5) {
  y = "big";
} else {
  y = "small";
}
y;
`)
	s, ok := ctx.GetString(result)
	if !ok || s != "big" {
		t.Errorf("expected \"big\", got %v", result)
	}
}

func TestWhileLoop(t *testing.T) {
	result, ctx := run(t, `
let i = 0;
let sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
sum;
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 10 {
		t.Errorf("expected 10, got %v", result)
	}
}

func TestFunctionCall(t *testing.T) {
	result, ctx := run(t, `
function add(a, b) {
  return a + b;
}
add(3, 4);
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 7 {
		t.Errorf("expected 7, got %v", result)
	}
}

func TestClosureCapture(t *testing.T) {
	result, ctx := run(t, `
function makeCounter() {
  let count = 0;
  function increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
let counter = makeCounter();
counter();
counter();
counter();
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 3 {
		t.Errorf("expected 3, got %v", result)
	}
}

func TestRecursion(t *testing.T) {
	result, ctx := run(t, `
function fact(n) {
  if (n <= 1) {
    return 1;
  }
  return n * fact(n - 1);
}
fact(6);
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 720 {
		t.Errorf("expected 720, got %v", result)
	}
}

func TestArrayLiteralAndIndex(t *testing.T) {
	result, ctx := run(t, `
let arr = [10, 20, 30];
arr[1];
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 20 {
		t.Errorf("expected 20, got %v", result)
	}
}

func TestNewExpressionBindsThisAndPrototype(t *testing.T) {
	result, ctx := run(t, `
function Point(x, y) {
  this.x = x;
  this.y = y;
}
Point.prototype.sum = function() {
  return this.x + this.y;
};
let p = new Point(3, 4);
p.sum();
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 7 {
		t.Errorf("expected 7, got %v", result)
	}
}

func TestObjectLiteralAndMember(t *testing.T) {
	result, ctx := run(t, `
let obj = { a: 1, b: 2 };
obj.a + obj.b;
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 3 {
		t.Errorf("expected 3, got %v", result)
	}
}

func TestObjectLiteralGetterSetter(t *testing.T) {
	result, ctx := run(t, `
let celsius = 0;
let obj = {
  get temp() { return celsius; },
  set temp(v) { celsius = v * 2; }
};
obj.temp = 10;
obj.temp;
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 20 {
		t.Errorf("expected 20, got %v", result)
	}
}

func TestObjectLiteralGetterOnlyAssignmentIsNoop(t *testing.T) {
	result, ctx := run(t, `
let obj = { get x() { return 5; } };
obj.x = 99;
obj.x;
`)
	n, ok := ctx.GetNumber(result)
	if !ok || n != 5 {
		t.Errorf("expected 5, got %v", result)
	}
}
