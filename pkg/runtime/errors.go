package runtime

import (
	"microjs/pkg/context"
	"microjs/pkg/heap"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// errorKinds lists the native error subtypes this engine installs beyond
// the base Error. crabquick's install leaves the whole family as TODO
// placeholders ("// TODO: implement Error constructor" and friends);
// this builds the real hierarchy ECMA-262 describes — a single
// Error.prototype carrying name/message/toString, and one subtype
// prototype per kind chained to it, each overriding only "name".
// vm.newErrorValue (vm.go) already assumes exactly this shape when it
// builds TypeError objects for internal dispatch failures, so this is
// also what makes those internally-thrown errors look like ordinary
// script-visible ones.
var errorKinds = []string{"TypeError", "RangeError", "ReferenceError", "SyntaxError", "EvalError", "URIError"}

func installErrors(ctx *context.Context, v *vm.VM) error {
	base, err := ctx.NewObjectWithProto(ctx.ObjectProto)
	if err != nil {
		return err
	}
	ctx.ErrorProto = base

	nameV, err := ctx.NewString("Error")
	if err != nil {
		return err
	}
	if err := defineValue(ctx, base, "name", nameV, heap.PropWritable|heap.PropConfigurable); err != nil {
		return err
	}
	msgV, err := ctx.NewString("")
	if err != nil {
		return err
	}
	if err := defineValue(ctx, base, "message", msgV, heap.PropWritable|heap.PropConfigurable); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, base, "toString", 0, errorToString); err != nil {
		return err
	}

	if err := installErrorConstructor(ctx, v, base, "Error"); err != nil {
		return err
	}

	for _, kind := range errorKinds {
		proto, err := ctx.NewObjectWithProto(base)
		if err != nil {
			return err
		}
		kindName, err := ctx.NewString(kind)
		if err != nil {
			return err
		}
		if err := defineValue(ctx, proto, "name", kindName, heap.PropWritable|heap.PropConfigurable); err != nil {
			return err
		}
		if err := installErrorConstructor(ctx, v, proto, kind); err != nil {
			return err
		}
	}
	return nil
}

// installErrorConstructor registers kind's native constructor function
// and binds it as a global, with a "prototype" property pointing back at
// proto and proto's "constructor" pointing back at it — the same
// back-reference newConstructor sets up for the plain-Object
// placeholder constructors, done by hand here since an error
// constructor needs to actually run code (set "message") rather than
// just exist as a namespace.
func installErrorConstructor(ctx *context.Context, v *vm.VM, proto value.Value, kind string) error {
	id := v.RegisterNative(makeErrorConstructor(proto))
	ctorVal, err := ctx.NewNativeFunction(id, 1)
	if err != nil {
		return err
	}
	if err := defineValue(ctx, ctorVal, "prototype", proto, heap.PropWritable); err != nil {
		return err
	}
	if err := defineValue(ctx, proto, "constructor", ctorVal, heap.PropWritable|heap.PropConfigurable); err != nil {
		return err
	}
	return ctx.SetGlobalProperty(kind, ctorVal)
}

// makeErrorConstructor returns the native function body shared by every
// error kind: called via `new Kind(message)` it receives a fresh object
// already linked to proto as `this` (the construct protocol, see
// vm.VM.Construct); called bare as `Kind(message)`, `this` is whatever
// the caller supplied (usually undefined), so a fresh object is
// allocated by hand — matching real engines, where Error(...) and
// new Error(...) behave identically.
func makeErrorConstructor(proto value.Value) vm.NativeFunc {
	return func(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
		ctx := vmm.Context()
		obj := this
		if !vmm.IsObjectLike(obj) {
			var err error
			obj, err = ctx.NewObjectWithProto(proto)
			if err != nil {
				return value.Undefined, err
			}
		}
		if !arg(args, 0).IsUndefined() {
			msg, err := vmm.ToString(args[0])
			if err != nil {
				return value.Undefined, err
			}
			msgV, err := ctx.NewString(msg)
			if err != nil {
				return value.Undefined, err
			}
			if err := ctx.SetOwnProperty(obj, ctx.Atoms.Intern("message"), msgV, heap.DefaultDataPropFlags); err != nil {
				return value.Undefined, err
			}
		}
		return obj, nil
	}
}

func errorToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	name := "Error"
	if n, found := ctx.GetProperty(this, ctx.Atoms.Intern("name")); found && !n.IsUndefined() {
		s, err := vmm.ToString(n)
		if err != nil {
			return value.Undefined, err
		}
		name = s
	}
	message := ""
	if m, found := ctx.GetProperty(this, ctx.Atoms.Intern("message")); found && !m.IsUndefined() {
		s, err := vmm.ToString(m)
		if err != nil {
			return value.Undefined, err
		}
		message = s
	}
	if message == "" {
		return ctx.NewString(name)
	}
	return ctx.NewString(name + ": " + message)
}
