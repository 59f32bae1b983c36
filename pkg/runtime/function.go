package runtime

import (
	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installFunction wires Function.prototype.call/apply/bind (crabquick's
// install_function_constructor); Function.prototype itself already
// exists the moment a Context is constructed (context.New creates it
// alongside Object.prototype so every callable value has somewhere to
// fall back to — see context.Context.GetProperty's doc comment).
func installFunction(ctx *context.Context, v *vm.VM) error {
	proto := ctx.FunctionProto

	if err := defineMethod(ctx, v, proto, "call", 1, functionCall); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "apply", 2, functionApply); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "bind", 1, functionBind); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "toString", 0, functionToString); err != nil {
		return err
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}
	return ctx.SetGlobalProperty("Function", ctor)
}

// functionCall implements Function.prototype.call: invoke this with
// args[0] as the this-binding and args[1:] as the argument list.
func functionCall(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if !vmm.IsCallable(this) {
		return value.Undefined, vmm.ThrowTypeErrorf("Function.prototype.call called on non-callable")
	}
	newThis := arg(args, 0)
	var callArgs []value.Value
	if len(args) > 1 {
		callArgs = args[1:]
	}
	return vmm.Call(this, newThis, callArgs)
}

// functionApply implements Function.prototype.apply: invoke this with
// args[0] as the this-binding and the elements of the args[1] array (or
// no arguments, if args[1] is null/undefined) as the argument list.
func functionApply(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if !vmm.IsCallable(this) {
		return value.Undefined, vmm.ThrowTypeErrorf("Function.prototype.apply called on non-callable")
	}
	newThis := arg(args, 0)
	argArray := arg(args, 1)
	var callArgs []value.Value
	if !argArray.IsNull() && !argArray.IsUndefined() {
		callArgs = toElements(vmm.Context(), argArray)
	}
	return vmm.Call(this, newThis, callArgs)
}

// functionBind implements Function.prototype.bind: returns a new native
// function that, when called, invokes the original with the bound
// this-value and the concatenation of the bound and call-time argument
// lists (partial application, as in every other JS engine).
func functionBind(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if !vmm.IsCallable(this) {
		return value.Undefined, vmm.ThrowTypeErrorf("Function.prototype.bind called on non-callable")
	}
	ctx := vmm.Context()
	boundThis := arg(args, 0)
	var boundArgs []value.Value
	if len(args) > 1 {
		boundArgs = append(boundArgs, args[1:]...)
	}
	target := this

	id := vmm.RegisterNative(func(inner *vm.VM, _ value.Value, callArgs []value.Value) (value.Value, error) {
		full := make([]value.Value, 0, len(boundArgs)+len(callArgs))
		full = append(full, boundArgs...)
		full = append(full, callArgs...)
		return inner.Call(target, boundThis, full)
	})
	return ctx.NewNativeFunction(id, 0)
}

func functionToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return vmm.Context().NewString("function () { [native code] }")
}
