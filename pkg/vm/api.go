package vm

import (
	"fmt"

	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// This file exposes the coercion and call primitives pkg/runtime's native
// methods and pkg/engine's embedder API need, as thin wrappers over the
// unexported algorithms dispatch.go/coerce.go/call.go already implement
// for the bytecode interpreter itself. Keeping the algorithms unexported
// and forwarding here (rather than exporting them directly) keeps the
// opcode handlers' internal names free to evolve independently of this
// public surface.

// ToBoolean implements ToBoolean (§4.5.4).
func (vm *VM) ToBoolean(v value.Value) bool { return vm.toBoolean(v) }

// ToNumber implements ToNumber (§4.5.4).
func (vm *VM) ToNumber(v value.Value) (float64, error) { return vm.toNumber(v) }

// ToString implements ToString (§4.5.4).
func (vm *VM) ToString(v value.Value) (string, error) { return vm.toString(v) }

// ToInt32 implements ToInt32 (§4.5.4).
func (vm *VM) ToInt32(v value.Value) (int32, error) { return vm.toInt32(v) }

// ToUint32 implements ToUint32 (§4.5.4).
func (vm *VM) ToUint32(v value.Value) (uint32, error) { return vm.toUint32(v) }

// TypeOf implements the typeof operator.
func (vm *VM) TypeOf(v value.Value) string { return vm.typeOf(v) }

// StrictEquals implements ===.
func (vm *VM) StrictEquals(a, b value.Value) (bool, error) { return vm.strictEquals(a, b) }

// AbstractEquals implements ==.
func (vm *VM) AbstractEquals(a, b value.Value) (bool, error) { return vm.abstractEquals(a, b) }

// IsObjectLike reports whether v is an Object/NativeFunction/
// BytecodeFunction/Closure — anything neither primitive nor nullish —
// the same classification Compare/AbstractEquals use internally.
func (vm *VM) IsObjectLike(v value.Value) bool { return vm.isObjectLike(v) }

// IsCallable reports whether v can be the left side of a Call: one of
// the three callable heap kinds.
func (vm *VM) IsCallable(v value.Value) bool {
	idx, ok := v.ToPtr()
	if !ok {
		return false
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindNativeFunction, heap.KindBytecodeFunction, heap.KindClosure:
		return true
	default:
		return false
	}
}

// Construct implements the `new` operator, the same protocol
// OpCallConstructor uses: allocate a fresh object linked to callee's
// "prototype", invoke callee with it bound as `this`, and return
// whichever of the two is object-like.
func (vm *VM) Construct(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.construct(callee, args)
}

// SetMaxStack overrides the value stack's capacity (pkg/engine's Options
// surfaces this as a construction-time size rather than a fixed constant).
func (vm *VM) SetMaxStack(n int) { vm.maxStack = n }

// SetMaxCallDepth overrides the call-frame depth limit.
func (vm *VM) SetMaxCallDepth(n int) { vm.maxCallDepth = n }

// Call invokes callee with the given this-binding and arguments,
// following the same dispatch the CALL opcode uses (native function,
// bytecode function, or closure).
func (vm *VM) Call(callee, this value.Value, args []value.Value) (value.Value, error) {
	return vm.callValue(callee, this, args)
}

// Throw records v as the in-flight exception (the same sentinel a
// script-level throw statement produces).
func (vm *VM) Throw(v value.Value) error { return vm.throw(v) }

// ThrowTypeErrorf throws a TypeError with a formatted message.
func (vm *VM) ThrowTypeErrorf(format string, args ...any) error {
	return vm.throwTypeErrorf(format, args...)
}

// ThrowErrorf throws a plain Error (by name) with a formatted message,
// for native builtins that need to report something other than a
// TypeError (RangeError-ish cases, etc — this engine models every error
// kind as the same Object shape with a different name, per newErrorValue).
func (vm *VM) ThrowErrorf(name, format string, args ...any) error {
	v, err := vm.newErrorValue(name, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	return vm.throw(v)
}
