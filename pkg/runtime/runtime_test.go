package runtime

import (
	"testing"

	"microjs/pkg/compiler"
	"microjs/pkg/context"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// run parses, compiles, and executes src as a script against a fresh
// Context/VM pair with the built-in object graph installed, returning
// its completion value — the same harness pkg/vm's own tests use,
// extended with the one extra step (Install) this package exists for.
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
	v := vm.New(ctx)
	if err := Install(v); err != nil {
		t.Fatalf("Install: %v", err)
	}
	result, err := v.RunProgram(container)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return result, ctx
}

func runString(t *testing.T, src string) string {
	t.Helper()
	result, ctx := run(t, src)
	s, ok := ctx.GetString(result)
	if !ok {
		t.Fatalf("%s: expected string result, got %v", src, result)
	}
	return s
}

func runNumber(t *testing.T, src string) float64 {
	t.Helper()
	result, ctx := run(t, src)
	n, ok := ctx.GetNumber(result)
	if !ok {
		t.Fatalf("%s: expected number result, got %v", src, result)
	}
	return n
}

func runBool(t *testing.T, src string) bool {
	t.Helper()
	result, _ := run(t, src)
	if !result.IsBool() {
		t.Fatalf("%s: expected bool result, got %v", src, result)
	}
	return result == value.True
}

func TestArrayMethods(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"[1,2,3].join('-')", "1-2-3"},
		{"[1,[2,3],4].join()", "1,2,3,4"},
		{"var a=[1,2]; a.push(3); a.join()", "1,2,3"},
		{"var a=[1,2,3]; a.pop(); a.join()", "1,2"},
		{"var a=[1,2,3]; a.shift(); a.join()", "2,3"},
		{"var a=[2,3]; a.unshift(1); a.join()", "1,2,3"},
		{"[1,2,3,4,5].slice(1,3).join()", "2,3"},
		{"[1,2,3,4,5].slice(-2).join()", "4,5"},
		{"[1,2,3].reverse().join()", "3,2,1"},
		{"[1,2,3].concat([4,5]).join()", "1,2,3,4,5"},
		{"[3,1,2].sort().join()", "1,2,3"},
		{"[1,2,3].map(function(x){return x*2}).join()", "2,4,6"},
		{"[1,2,3,4].filter(function(x){return x%2===0}).join()", "2,4"},
	}
	for _, c := range cases {
		if got := runString(t, c.src); got != c.want {
			t.Errorf("%s = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestArrayReduce(t *testing.T) {
	got := runNumber(t, "[1,2,3,4].reduce(function(a,b){return a+b}, 0)")
	if got != 10 {
		t.Errorf("reduce sum = %v, want 10", got)
	}
}

func TestArrayIndexOfIncludes(t *testing.T) {
	if got := runNumber(t, "[1,2,3].indexOf(2)"); got != 1 {
		t.Errorf("indexOf = %v, want 1", got)
	}
	if !runBool(t, "[1,2,3].includes(3)") {
		t.Errorf("includes(3) = false, want true")
	}
	if runBool(t, "[1,2,3].includes(9)") {
		t.Errorf("includes(9) = true, want false")
	}
}

func TestArrayIsArray(t *testing.T) {
	if !runBool(t, "Array.isArray([1,2,3])") {
		t.Errorf("Array.isArray([1,2,3]) = false, want true")
	}
	if runBool(t, "Array.isArray({})") {
		t.Errorf("Array.isArray({}) = true, want false")
	}
}

func TestStringMethods(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"'hello'.toUpperCase()", "HELLO"},
		{"'HELLO'.toLowerCase()", "hello"},
		{"'  hi  '.trim()", "hi"},
		{"'hello world'.slice(0,5)", "hello"},
		{"'hello world'.slice(-5)", "world"},
		{"'hello world'.substring(6)", "world"},
		{"'hello'.charAt(1)", "e"},
		{"'hello'.split('l').join('-')", "he--o"},
		{"'abc'.concat('def')", "abcdef"},
		{"'abcabc'.replace('a','X')", "Xbcabc"},
		{"'abcabc'.replaceAll('a','X')", "XbcXbc"},
		{"'ab'.repeat(3)", "ababab"},
		{"'5'.padStart(3,'0')", "005"},
	}
	for _, c := range cases {
		if got := runString(t, c.src); got != c.want {
			t.Errorf("%s = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestStringSearch(t *testing.T) {
	if got := runNumber(t, "'hello world'.indexOf('world')"); got != 6 {
		t.Errorf("indexOf = %v, want 6", got)
	}
	if !runBool(t, "'hello world'.includes('world')") {
		t.Errorf("includes = false, want true")
	}
	if !runBool(t, "'hello world'.startsWith('hello')") {
		t.Errorf("startsWith = false, want true")
	}
	if !runBool(t, "'hello world'.endsWith('world')") {
		t.Errorf("endsWith = false, want true")
	}
}

func TestObjectStatics(t *testing.T) {
	if got := runString(t, "Object.keys({a:1,b:2}).join(',')"); got != "a,b" {
		t.Errorf("Object.keys = %q, want \"a,b\"", got)
	}
	if got := runNumber(t, "Object.values({a:1,b:2}).reduce(function(s,v){return s+v},0)"); got != 3 {
		t.Errorf("Object.values sum = %v, want 3", got)
	}
	if !runBool(t, "var o={}; Object.freeze(o); Object.isFrozen(o)") {
		t.Errorf("isFrozen after freeze = false, want true")
	}
}

func TestObjectHasOwnProperty(t *testing.T) {
	if !runBool(t, "({a:1}).hasOwnProperty('a')") {
		t.Errorf("hasOwnProperty('a') = false, want true")
	}
	if runBool(t, "({a:1}).hasOwnProperty('b')") {
		t.Errorf("hasOwnProperty('b') = true, want false")
	}
}

func TestObjectDefinePropertyAccessor(t *testing.T) {
	got := runNumber(t, `
var store = 1;
var o = {};
Object.defineProperty(o, 'x', {
  get: function() { return store; },
  set: function(v) { store = v + 1; }
});
o.x = 10;
o.x;
`)
	if got != 11 {
		t.Errorf("defineProperty accessor roundtrip = %v, want 11", got)
	}
}

func TestFunctionCallApplyBind(t *testing.T) {
	if got := runNumber(t, "function f(a,b){return this.x+a+b} f.call({x:1},2,3)"); got != 6 {
		t.Errorf("call = %v, want 6", got)
	}
	if got := runNumber(t, "function f(a,b){return this.x+a+b} f.apply({x:1},[2,3])"); got != 6 {
		t.Errorf("apply = %v, want 6", got)
	}
	if got := runNumber(t, "function f(a,b){return this.x+a+b} var g=f.bind({x:1},2); g(3)"); got != 6 {
		t.Errorf("bind = %v, want 6", got)
	}
}

func TestMath(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"Math.abs(-5)", 5},
		{"Math.floor(1.9)", 1},
		{"Math.ceil(1.1)", 2},
		{"Math.round(1.5)", 2},
		{"Math.max(1,2,3)", 3},
		{"Math.min(1,2,3)", 1},
		{"Math.pow(2,10)", 1024},
		{"Math.sqrt(16)", 4},
		{"Math.trunc(-1.9)", -1},
		{"Math.sign(-5)", -1},
	}
	for _, c := range cases {
		if got := runNumber(t, c.src); got != c.want {
			t.Errorf("%s = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestNumberMethods(t *testing.T) {
	if got := runString(t, "(255).toString(16)"); got != "ff" {
		t.Errorf("toString(16) = %q, want \"ff\"", got)
	}
	if got := runString(t, "(1.005).toFixed(2)"); got != "1.00" && got != "1.01" {
		t.Errorf("toFixed(2) = %q, want ~1.00/1.01", got)
	}
	if !runBool(t, "Number.isInteger(5)") {
		t.Errorf("isInteger(5) = false, want true")
	}
	if runBool(t, "Number.isInteger(5.5)") {
		t.Errorf("isInteger(5.5) = true, want false")
	}
}

func TestGlobalParsing(t *testing.T) {
	if got := runNumber(t, "parseInt('42px')"); got != 42 {
		t.Errorf("parseInt = %v, want 42", got)
	}
	if got := runNumber(t, "parseFloat('3.14abc')"); got != 3.14 {
		t.Errorf("parseFloat = %v, want 3.14", got)
	}
	if !runBool(t, "isNaN('abc')") {
		t.Errorf("isNaN('abc') = false, want true")
	}
	if !runBool(t, "isFinite(42)") {
		t.Errorf("isFinite(42) = false, want true")
	}
}

func TestErrorConstructors(t *testing.T) {
	if got := runString(t, "new TypeError('bad').message"); got != "bad" {
		t.Errorf("TypeError message = %q, want \"bad\"", got)
	}
	if got := runString(t, "new TypeError('bad').name"); got != "TypeError" {
		t.Errorf("TypeError name = %q, want \"TypeError\"", got)
	}
	if got := runString(t, "TypeError('bad').toString()"); got != "TypeError: bad" {
		t.Errorf("toString = %q, want \"TypeError: bad\"", got)
	}
	if got := runString(t, "new RangeError('x') instanceof Error ? 'yes' : 'no'"); got != "yes" {
		t.Errorf("RangeError instanceof Error = %q, want \"yes\"", got)
	}
}

func TestConsoleLogDoesNotThrow(t *testing.T) {
	run(t, "console.log('hello', 42, true)")
}
