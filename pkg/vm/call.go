package vm

import (
	"microjs/pkg/atom"
	"microjs/pkg/bytecode"
	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// callValue implements the function call protocol (§4.5.5): dispatch on
// the callee's heap kind, pad/truncate args against the callee's
// declared parameter count, and execute it — recursively re-entering
// runFrame for a bytecode function/closure, or invoking the registered
// Go function directly for a native.
func (vm *VM) callValue(callee, this value.Value, args []value.Value) (value.Value, error) {
	idx, ok := callee.ToPtr()
	if !ok {
		return value.Undefined, vm.throwTypeErrorf("value is not a function")
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindNativeFunction:
		registryID := vm.ctx.Arena.NativeFunctionRegistryID(idx)
		if int(registryID) >= len(vm.natives) {
			return value.Undefined, vm.runtimeErrorf("native function id %d not registered", registryID)
		}
		return vm.natives[registryID](vm, this, args)

	case heap.KindBytecodeFunction:
		containerH := vm.ctx.Arena.BytecodeFunctionContainer(idx)
		c := vm.container(containerH)
		if c == nil {
			return value.Undefined, vm.runtimeErrorf("dangling bytecode function container handle")
		}
		paramCount := vm.ctx.Arena.BytecodeFunctionParamCount(idx)
		return vm.invokeContainer(c, paramCount, this, args, nil, "<anonymous>")

	case heap.KindClosure:
		containerH := vm.ctx.Arena.ClosureContainer(idx)
		c := vm.container(containerH)
		if c == nil {
			return value.Undefined, vm.runtimeErrorf("dangling closure container handle")
		}
		paramCount := vm.ctx.Arena.ClosureParamCount(idx)
		capturedCount := vm.ctx.Arena.ClosureCapturedCount(idx)
		captured := make([]value.Value, capturedCount)
		for i := range captured {
			captured[i] = vm.ctx.Arena.ClosureCapturedGet(idx, i)
		}
		return vm.invokeContainer(c, paramCount, this, args, captured, "<anonymous>")

	default:
		return value.Undefined, vm.throwTypeErrorf("value is not a function")
	}
}

// invokeContainer pushes a fresh Frame for c and runs it to completion.
// args is padded with undefined up to paramCount and truncated beyond
// it (this engine has no OpArguments/rest-parameter support — both are
// reserved opcodes — so extra arguments are simply unreachable from the
// callee's body, matching how a fixed-arity calling convention treats
// over-application).
func (vm *VM) invokeContainer(c *bytecode.Container, paramCount int, this value.Value, args []value.Value, captured []value.Value, name string) (value.Value, error) {
	if len(vm.frames) >= vm.maxCallDepth {
		return value.Undefined, vm.runtimeErrorf("call stack size exceeded")
	}

	locals := make([]value.Value, paramCount+int(c.LocalCount))
	for i := range locals {
		if i < paramCount && i < len(args) {
			locals[i] = args[i]
		} else {
			locals[i] = value.Undefined
		}
	}

	ownCells, err := vm.allocOwnCells(int(c.OwnCellCount))
	if err != nil {
		return value.Undefined, err
	}

	f := &Frame{
		Name:       name,
		Container:  c,
		Base:       len(vm.stack),
		This:       this,
		Locals:     locals,
		OwnCells:   ownCells,
		Captured:   captured,
		CatchPC:    -1,
		ParamCount: paramCount,
	}

	vm.frames = append(vm.frames, f)
	result, err := vm.runFrame(f)
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.truncateTo(f.Base)
	return result, err
}

// buildClosure executes OpFClosure/OpFClosureVarArgs: looks up fn's
// capture wiring (Function.Captures — see its doc comment for why this
// exists only for live, in-process execution) and gathers the VarCell
// references the new closure should share with the enclosing frame,
// then allocates the closure heap value.
func (vm *VM) buildClosure(f *Frame, fn bytecode.Function) (value.Value, error) {
	captured := make([]value.Value, len(fn.Captures))
	for i, c := range fn.Captures {
		if c.FromOwnCell {
			if c.Index < 0 || c.Index >= len(f.OwnCells) {
				return value.Undefined, vm.runtimeErrorf("capture index %d out of range (own cells)", c.Index)
			}
			captured[i] = f.OwnCells[c.Index]
		} else {
			if c.Index < 0 || c.Index >= len(f.Captured) {
				return value.Undefined, vm.runtimeErrorf("capture index %d out of range (captured)", c.Index)
			}
			captured[i] = f.Captured[c.Index]
		}
	}

	containerH := vm.registerContainer(fn.Code)
	if len(captured) == 0 {
		idx, err := vm.ctx.Arena.NewBytecodeFunction(containerH, int(fn.ParamCount), int(fn.Code.LocalCount))
		if err != nil {
			return value.Undefined, err
		}
		fnVal := value.FromPtr(idx)
		if err := vm.attachPrototype(fnVal); err != nil {
			return value.Undefined, err
		}
		return fnVal, nil
	}
	idx, err := vm.ctx.Arena.NewClosure(containerH, int(fn.ParamCount), int(fn.Code.LocalCount), len(captured))
	if err != nil {
		return value.Undefined, err
	}
	for i, cell := range captured {
		vm.ctx.Arena.ClosureCapturedSet(idx, i, cell)
	}
	fnVal := value.FromPtr(idx)
	if err := vm.attachPrototype(fnVal); err != nil {
		return value.Undefined, err
	}
	return fnVal, nil
}

// attachPrototype gives a freshly built function its own "prototype"
// object with a "constructor" back-reference, the way every JavaScript
// function declaration/expression does (§4.5.5, needed for the common
// `function F() {}` / `F.prototype.method = ...` / `new F()` pattern to
// work without the script itself having to create that object). Native
// constructors pkg/runtime installs set up their own "prototype" link
// explicitly instead of going through this path.
func (vm *VM) attachPrototype(fnVal value.Value) error {
	proto, err := vm.ctx.NewObjectWithProto(vm.ctx.ObjectProto)
	if err != nil {
		return err
	}
	if err := vm.ctx.SetOwnProperty(proto, vm.ctx.WellKnown[atom.WellKnownConstructor], fnVal, heap.PropWritable|heap.PropConfigurable); err != nil {
		return err
	}
	return vm.ctx.SetOwnProperty(fnVal, vm.ctx.WellKnown[atom.WellKnownPrototype], proto, heap.PropWritable)
}
