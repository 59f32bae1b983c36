// Package engine is the embedder-facing facade over pkg/context, pkg/vm,
// pkg/compiler, and pkg/parser (SPEC_FULL.md §6.3): construct a Context,
// eval source, call a value, inspect and extract values, register
// native functions — the same shape crabquick's context.rs/engine.rs
// expose to its own host, translated to Go naming and error-return
// conventions instead of Rust's Result<Value, Value>.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"microjs/pkg/compiler"
	"microjs/pkg/context"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
	"microjs/pkg/runtime"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// defaultHeapBytes matches pkg/context's own examples/tests: enough for
// a small-to-medium script without forcing every embedder to size it.
const defaultHeapBytes = 1 << 20 // 1 MiB

// Options configures a new Engine. The zero value is not valid; use
// Default() and override only the fields a caller cares about.
type Options struct {
	// HeapBytes sizes the Context's arena (pkg/heap.Arena is fixed-size
	// for the lifetime of a Context — see heap.NewArena).
	HeapBytes int

	// ValueStackSize bounds the VM's operand stack depth.
	ValueStackSize int

	// CallStackDepth bounds recursive call nesting.
	CallStackDepth int

	// Logger receives structured diagnostics (console.* output, GC
	// notices). Defaults to zap.NewNop() when nil, the same default
	// context.New itself applies.
	Logger *zap.Logger
}

// Default returns the Options every cmd/microjs invocation starts from
// absent an explicit --heap-size override.
func Default() Options {
	return Options{
		HeapBytes:      defaultHeapBytes,
		ValueStackSize: 0, // 0 means "leave the VM's own default in place"
		CallStackDepth: 0,
	}
}

// Engine bundles a Context and the VM driving it, plus the installed
// built-in object graph, behind the embedder API SPEC_FULL.md §6.3
// describes.
type Engine struct {
	ctx *context.Context
	vm  *vm.VM
}

// New constructs an Engine: allocates the Context's arena, builds a VM
// bound to it, applies any stack-size overrides from opts, and installs
// the built-in object graph (Object/Array/String/Number/.../console).
func New(opts Options) (*Engine, error) {
	if opts.HeapBytes <= 0 {
		opts.HeapBytes = defaultHeapBytes
	}
	ctx, err := context.New(opts.HeapBytes, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: creating context: %w", err)
	}
	v := vm.New(ctx)
	if opts.ValueStackSize > 0 {
		v.SetMaxStack(opts.ValueStackSize)
	}
	if opts.CallStackDepth > 0 {
		v.SetMaxCallDepth(opts.CallStackDepth)
	}
	if err := runtime.Install(v); err != nil {
		return nil, fmt.Errorf("engine: installing runtime: %w", err)
	}
	return &Engine{ctx: ctx, vm: v}, nil
}

// Context exposes the underlying Context for callers that need lower-
// level access (pkg/runtime-style native function authoring, tests).
func (e *Engine) Context() *context.Context { return e.ctx }

// VM exposes the underlying VM, mirroring Context above.
func (e *Engine) VM() *vm.VM { return e.vm }

// EvalError wraps a failure at either the parse/compile stage (a host-
// level error, no JavaScript value) or an uncaught runtime exception
// (a JavaScript value available via Value). cmd/microjs's `run` command
// distinguishes the two to decide whether to print a stack trace or a
// thrown value.
type EvalError struct {
	// Stage names where the failure happened: "parse", "compile", or
	// "runtime".
	Stage string
	// Value holds the thrown JavaScript value when Stage == "runtime"
	// and the failure was a script-level throw rather than an internal
	// RuntimeError; otherwise it is value.Undefined.
	Value value.Value
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Eval parses, compiles, and runs source as a top-level script, the
// same pipeline pkg/runtime's tests drive by hand (§7's three-stage
// error model: parse errors,
// compile errors, and runtime exceptions are kept distinguishable via
// EvalError.Stage rather than collapsed into one error string).
func (e *Engine) Eval(source string) (value.Value, error) {
	p := parser.New(lexer.New(source))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return value.Undefined, &EvalError{Stage: "parse", Err: joinErrors(errs)}
	}
	c := compiler.New()
	container, err := c.Compile(program)
	if err != nil {
		return value.Undefined, &EvalError{Stage: "compile", Err: err}
	}
	result, err := e.vm.RunProgram(container)
	if err != nil {
		thrown := e.ctx.Exception
		e.ctx.Exception = value.Undefined
		return value.Undefined, &EvalError{Stage: "runtime", Value: thrown, Err: err}
	}
	return result, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("%d errors, first: %v", len(errs), errs[0])
}

// Call invokes fn with the given this-binding and arguments, the
// embedder-facing equivalent of crabquick's Context::call.
func (e *Engine) Call(fn, this value.Value, args []value.Value) (value.Value, error) {
	result, err := e.vm.Call(fn, this, args)
	if err != nil {
		thrown := e.ctx.Exception
		e.ctx.Exception = value.Undefined
		return value.Undefined, &EvalError{Stage: "runtime", Value: thrown, Err: err}
	}
	return result, nil
}

// GetGlobal reads a property off the global object by name.
func (e *Engine) GetGlobal(name string) (value.Value, bool) {
	return e.ctx.GlobalProperty(name)
}

// SetGlobal installs or overwrites a property on the global object,
// the embedder's way of injecting host functions/values into scripts
// before calling Eval.
func (e *Engine) SetGlobal(name string, v value.Value) error {
	return e.ctx.SetGlobalProperty(name, v)
}

// GC requests an immediate collection.
func (e *Engine) GC() { e.ctx.GC() }

// MemoryStats mirrors crabquick's Context::memory_stats() → {size, used,
// free}.
type MemoryStats struct {
	Size int
	Used int
	Free int
}

// MemoryStats reports the arena's current size/used/free byte counts.
func (e *Engine) MemoryStats() MemoryStats {
	return MemoryStats{
		Size: e.ctx.ArenaSize(),
		Used: e.ctx.MemoryUsage(),
		Free: e.ctx.FreeMemory(),
	}
}

// RegisterNative wires a Go function in as a callable JavaScript value
// with the given declared parameter count ("length", in §6.3's terms),
// returning the Value a caller can SetGlobal or hand to a script as a
// property.
func (e *Engine) RegisterNative(fn vm.NativeFunc, length int) (value.Value, error) {
	id := e.vm.RegisterNative(fn)
	return e.ctx.NewNativeFunction(id, length)
}
