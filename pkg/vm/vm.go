// Package vm implements the bytecode interpreter (SPEC_FULL.md §4.5): a
// stack machine that executes the containers pkg/compiler produces
// against the heap pkg/context and pkg/heap manage. It owns the value
// stack and call stack, dispatches every opcode pkg/bytecode defines,
// and implements the type-coercion and function-call protocols the
// language's operators and calling convention need.
package vm

import (
	"fmt"

	"microjs/pkg/atom"
	"microjs/pkg/bytecode"
	"microjs/pkg/context"
	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// NativeFunc is a Go function wired in as a callable JavaScript value
// (§4.6). pkg/vm never imports pkg/runtime — pkg/runtime imports pkg/vm
// and calls RegisterNative, then ctx.NewNativeFunction(id, length) to
// turn the returned id into a heap value — so this indirection is what
// keeps the two packages from forming an import cycle.
type NativeFunc func(vm *VM, this value.Value, args []value.Value) (value.Value, error)

// defaultMaxCallDepth bounds recursive invocation the same way a native
// stack would, so runaway recursion surfaces as a catchable-at-the-host
// RuntimeError instead of exhausting the Go goroutine stack.
const defaultMaxCallDepth = 2000

// VM executes compiled containers against a Context.
type VM struct {
	ctx *context.Context

	stack    []value.Value
	maxStack int

	maxCallDepth int

	frames []*Frame

	// containers is the process-lifetime table NewBytecodeFunction's
	// doc comment describes: registerContainer hands back an index,
	// stored inline as a value.Value (value.FromInt) wherever the heap
	// would otherwise need a pointer to a *bytecode.Container. This is
	// what lets Function.Captures survive for live, in-process
	// execution even though it is never part of the on-disk format.
	containers []*bytecode.Container

	natives []NativeFunc

	// Debugger, when non-nil and enabled, is consulted by runFrame
	// before every opcode it executes (§4.5.6's interactive tooling
	// hook; cmd/microjs's `run --debug` attaches one). Left nil in the
	// common case so ordinary execution never pays for the check beyond
	// a single nil comparison per opcode.
	Debugger *Debugger
}

// New constructs a VM bound to ctx and registers its value stack and
// call-frame state as GC roots, so a collection triggered mid-execution
// (e.g. from inside a native function) never reclaims a value only the
// running program still references.
func New(ctx *context.Context) *VM {
	vm := &VM{
		ctx:          ctx,
		maxStack:     defaultMaxStack,
		maxCallDepth: defaultMaxCallDepth,
	}
	ctx.AddScanner(vm.scanRoots)
	return vm
}

// scanRoots implements the callback AddScanner wants: every value
// currently live on the value stack, plus every frame's `this`, locals,
// own cells, and captured cells (OwnCells/Captured hold heap VarCell
// references, which themselves point at the value a closure shares —
// visiting the cell reference is enough for the arena's own VarCell
// marking to follow it).
func (vm *VM) scanRoots(visit func(value.Value)) {
	for _, v := range vm.stack {
		visit(v)
	}
	for _, f := range vm.frames {
		visit(f.This)
		for _, v := range f.Locals {
			visit(v)
		}
		for _, v := range f.OwnCells {
			visit(v)
		}
		for _, v := range f.Captured {
			visit(v)
		}
	}
}

// Context returns the VM's bound Context.
func (vm *VM) Context() *context.Context { return vm.ctx }

// RegisterNative adds fn to the native-function registry and returns
// its id, for pkg/runtime to pass to ctx.NewNativeFunction.
func (vm *VM) RegisterNative(fn NativeFunc) uint32 {
	vm.natives = append(vm.natives, fn)
	return uint32(len(vm.natives) - 1)
}

// registerContainer interns c into the VM's container table, returning
// an opaque handle Value to store on a heap BytecodeFunction/Closure.
func (vm *VM) registerContainer(c *bytecode.Container) value.Value {
	vm.containers = append(vm.containers, c)
	return value.FromInt(int64(len(vm.containers) - 1))
}

// container resolves a handle Value produced by registerContainer back
// to the *bytecode.Container it names.
func (vm *VM) container(h value.Value) *bytecode.Container {
	i, ok := h.ToInt()
	if !ok || i < 0 || int(i) >= len(vm.containers) {
		return nil
	}
	return vm.containers[i]
}

// RunProgram executes an already-compiled top-level container (the
// root Container pkg/compiler's Compile returns) as a script, with the
// global object as `this` and no arguments, returning the completion
// value of its last expression statement or undefined.
func (vm *VM) RunProgram(c *bytecode.Container) (value.Value, error) {
	locals := make([]value.Value, int(c.LocalCount))
	for i := range locals {
		locals[i] = value.Undefined
	}
	ownCells, err := vm.allocOwnCells(int(c.OwnCellCount))
	if err != nil {
		return value.Undefined, err
	}
	f := &Frame{
		Name:       "<script>",
		Container:  c,
		Base:       len(vm.stack),
		This:       vm.ctx.Global,
		Locals:     locals,
		OwnCells:   ownCells,
		CatchPC:    -1,
		ParamCount: 0,
	}
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	return vm.runFrame(f)
}

func (vm *VM) allocOwnCells(n int) ([]value.Value, error) {
	if n == 0 {
		return nil, nil
	}
	cells := make([]value.Value, n)
	for i := range cells {
		idx, err := vm.ctx.Arena.NewVarCell(value.Undefined)
		if err != nil {
			return nil, err
		}
		cells[i] = value.FromPtr(idx)
	}
	return cells, nil
}

// thrownSignal is the error sentinel runFrame returns to mean "a
// JavaScript value is being thrown; find it in ctx.Exception", as
// distinct from a *RuntimeError (an engine-level failure no catch
// clause can see). Throw sites always set ctx.Exception before
// returning or propagating this sentinel.
type thrownSignal struct{}

func (*thrownSignal) Error() string { return "uncaught exception" }

var errThrown = &thrownSignal{}

// isThrown reports whether err is the catchable-JS-exception sentinel,
// as opposed to a RuntimeError or a Go-level I/O-style error.
func isThrown(err error) bool {
	_, ok := err.(*thrownSignal)
	return ok
}

// throw records v as the in-flight exception and returns the sentinel
// runFrame's caller uses to find it.
func (vm *VM) throw(v value.Value) error {
	vm.ctx.Exception = v
	return errThrown
}

// throwTypeErrorf builds a TypeError-ish exception object (a plain
// object carrying name/message, since pkg/runtime installs the real
// Error.prototype hierarchy) and throws it. Used by dispatch for
// operations the language spec defines as throwing TypeError
// (non-callable invocation, etc).
func (vm *VM) throwTypeErrorf(format string, args ...any) error {
	v, err := vm.newErrorValue("TypeError", fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	return vm.throw(v)
}

func (vm *VM) newErrorValue(name, message string) (value.Value, error) {
	ctx := vm.ctx
	proto := ctx.ErrorProto
	if proto.IsUndefined() {
		proto = ctx.ObjectProto
	}
	obj, err := ctx.NewObjectWithProto(proto)
	if err != nil {
		return value.Undefined, err
	}
	nameV, err := ctx.NewString(name)
	if err != nil {
		return value.Undefined, err
	}
	msgV, err := ctx.NewString(message)
	if err != nil {
		return value.Undefined, err
	}
	if err := ctx.SetOwnProperty(obj, ctx.WellKnown[atom.WellKnownName], nameV, heap.DefaultDataPropFlags); err != nil {
		return value.Undefined, err
	}
	if err := ctx.SetOwnProperty(obj, ctx.WellKnown[atom.WellKnownMessage], msgV, heap.DefaultDataPropFlags); err != nil {
		return value.Undefined, err
	}
	return obj, nil
}
