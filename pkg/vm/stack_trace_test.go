package vm

import (
	"strings"
	"testing"

	"microjs/pkg/bytecode"
	"microjs/pkg/compiler"
	"microjs/pkg/context"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
)

func compileOnly(t *testing.T, src string) *bytecode.Container {
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
	return container
}

func newTestContext(t *testing.T) *context.Context {
	t.Helper()
	ctx, err := context.New(64*1024, nil)
	if err != nil {
		t.Fatalf("context.New: %v", err)
	}
	return ctx
}

// TestStackTraceOnCallDepthExceeded checks that unbounded recursion
// surfaces as a *RuntimeError carrying a call-stack trace, rather than
// exhausting the Go goroutine stack the way an unchecked recursive
// runFrame call would.
func TestStackTraceOnCallDepthExceeded(t *testing.T) {
	container := compileOnly(t, `
function recurse(n) {
  return recurse(n + 1);
}
recurse(0);
`)
	ctx := newTestContext(t)
	vm := New(ctx)
	_, err := vm.RunProgram(container)
	if err == nil {
		t.Fatal("expected a call-stack-exceeded error, got nil")
	}

	runtimeErr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if !strings.Contains(runtimeErr.Error(), "call stack size exceeded") {
		t.Errorf("expected message to mention call stack exhaustion, got: %v", runtimeErr.Error())
	}
	if len(runtimeErr.Stack) == 0 {
		t.Error("expected a non-empty call-stack trace")
	}
}

// TestUncaughtThrowPropagatesException checks that a thrown value with
// no enclosing try/catch propagates out of RunProgram as the
// catchable-exception sentinel (not a *RuntimeError) and leaves the
// thrown value on ctx.Exception for the embedder to inspect.
func TestUncaughtThrowPropagatesException(t *testing.T) {
	container := compileOnly(t, `throw "boom";`)
	ctx := newTestContext(t)
	vm := New(ctx)
	_, err := vm.RunProgram(container)
	if err == nil {
		t.Fatal("expected an uncaught-exception error, got nil")
	}
	if _, ok := err.(*RuntimeError); ok {
		t.Fatalf("expected the catchable-exception sentinel, got *RuntimeError: %v", err)
	}
	msg, ok := ctx.GetString(ctx.Exception)
	if !ok || msg != "boom" {
		t.Errorf("expected ctx.Exception to hold \"boom\", got %v", ctx.Exception)
	}
}

// TestTryCatchRecoversAcrossNestedCalls checks that a throw several
// call frames deep unwinds through runFrame's Go-level recursion and is
// caught by a try/catch in an outer frame, with the caught value
// flowing into the catch body as an ordinary expression result.
func TestTryCatchRecoversAcrossNestedCalls(t *testing.T) {
	result, ctx := run(t, `
function inner() {
  throw "deep failure";
}
function middle() {
  return inner();
}
let caught;
try {
  middle();
} catch (e) {
  caught = e;
}
caught;
`)
	s, ok := ctx.GetString(result)
	if !ok || s != "deep failure" {
		t.Errorf("expected \"deep failure\", got %v", result)
	}
}
