package engine

import (
	"testing"

	"microjs/pkg/value"
	"microjs/pkg/vm"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEvalNumber(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Eval("1 + 2 * 3")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	n, err := e.ToNumber(result)
	if err != nil {
		t.Fatalf("ToNumber: %v", err)
	}
	if n != 7 {
		t.Errorf("1 + 2 * 3 = %v, want 7", n)
	}
}

func TestEvalString(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Eval(`"hello".toUpperCase()`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	s, err := e.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if s != "HELLO" {
		t.Errorf("toUpperCase = %q, want \"HELLO\"", s)
	}
}

func TestEvalParseError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Eval("var x = ;")
	if err == nil {
		t.Fatalf("expected parse error, got nil")
	}
	evalErr, ok := err.(*EvalError)
	if !ok {
		t.Fatalf("expected *EvalError, got %T", err)
	}
	if evalErr.Stage != "parse" {
		t.Errorf("Stage = %q, want \"parse\"", evalErr.Stage)
	}
}

func TestEvalUncaughtThrow(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Eval(`throw new TypeError("boom")`)
	if err == nil {
		t.Fatalf("expected runtime error, got nil")
	}
	evalErr, ok := err.(*EvalError)
	if !ok {
		t.Fatalf("expected *EvalError, got %T", err)
	}
	if evalErr.Stage != "runtime" {
		t.Errorf("Stage = %q, want \"runtime\"", evalErr.Stage)
	}
	msg, ok := e.Context().GetString(mustGetProperty(t, e, evalErr.Value, "message"))
	if !ok || msg != "boom" {
		t.Errorf("thrown value message = %q, %v, want \"boom\"", msg, ok)
	}
}

func mustGetProperty(t *testing.T, e *Engine, obj value.Value, name string) value.Value {
	t.Helper()
	a := e.Context().Atoms.Intern(name)
	v, ok := e.Context().GetProperty(obj, a)
	if !ok {
		t.Fatalf("GetProperty(%v, %q) not found", obj, name)
	}
	return v
}

func TestCallFunctionValue(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Eval("function add(a, b) { return a + b; }")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	fn, ok := e.GetGlobal("add")
	if !ok {
		t.Fatalf("global add not found")
	}
	a, _ := e.NewNumber(2)
	b, _ := e.NewNumber(3)
	result, err := e.Call(fn, Undefined, []value.Value{a, b})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	n, _ := e.ToNumber(result)
	if n != 5 {
		t.Errorf("add(2, 3) = %v, want 5", n)
	}
}

func TestSetGlobalVisibleToScript(t *testing.T) {
	e := newTestEngine(t)
	v, _ := e.NewNumber(42)
	if err := e.SetGlobal("answer", v); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	result, err := e.Eval("answer * 2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	n, _ := e.ToNumber(result)
	if n != 84 {
		t.Errorf("answer * 2 = %v, want 84", n)
	}
}

func TestRegisterNativeCallableFromScript(t *testing.T) {
	e := newTestEngine(t)
	fn, err := e.RegisterNative(func(_ *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
		return value.FromInt(99), nil
	}, 0)
	if err != nil {
		t.Fatalf("RegisterNative: %v", err)
	}
	if err := e.SetGlobal("native99", fn); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	result, err := e.Eval("native99()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	n, _ := e.ToNumber(result)
	if n != 99 {
		t.Errorf("native99() = %v, want 99", n)
	}
}

func TestInspectPredicates(t *testing.T) {
	e := newTestEngine(t)
	if !e.IsInt(value.FromInt(5)) {
		t.Errorf("IsInt(5) = false")
	}
	if !e.IsNull(value.Null) {
		t.Errorf("IsNull(null) = false")
	}
	if !e.IsUndefined(value.Undefined) {
		t.Errorf("IsUndefined(undefined) = false")
	}
	if !e.IsBool(value.True) {
		t.Errorf("IsBool(true) = false")
	}
	s, _ := e.NewString("hi")
	if !e.IsString(s) {
		t.Errorf("IsString(\"hi\") = false")
	}
	obj, _ := e.NewObject()
	if !e.IsObject(obj) {
		t.Errorf("IsObject({}) = false")
	}
	if e.IsCallable(obj) {
		t.Errorf("IsCallable({}) = true, want false")
	}
}

func TestMemoryStats(t *testing.T) {
	e := newTestEngine(t)
	stats := e.MemoryStats()
	if stats.Size <= 0 {
		t.Errorf("Size = %d, want > 0", stats.Size)
	}
	if stats.Used+stats.Free > stats.Size {
		t.Errorf("used(%d)+free(%d) > size(%d)", stats.Used, stats.Free, stats.Size)
	}
	e.GC()
}
