package runtime

import (
	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installBoolean wires Boolean.prototype.toString/valueOf. Another of
// crabquick's bare-placeholder constructors ("// TODO: Add Boolean
// methods") — built from scratch here since there's nothing to
// generalize, same shape as installNumber.
func installBoolean(ctx *context.Context, v *vm.VM) error {
	proto, err := ctx.NewObjectWithProto(ctx.ObjectProto)
	if err != nil {
		return err
	}
	ctx.BooleanProto = proto

	if err := defineMethod(ctx, v, proto, "toString", 0, booleanToString); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "valueOf", 0, booleanValueOf); err != nil {
		return err
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}
	return ctx.SetGlobalProperty("Boolean", ctor)
}

func booleanToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if vmm.ToBoolean(this) {
		return vmm.Context().NewString("true")
	}
	return vmm.Context().NewString("false")
}

func booleanValueOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(vmm.ToBoolean(this)), nil
}
