package runtime

import (
	"math"

	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installGlobalFunctions wires the small set of bare global functions a
// hosted-script environment carries outside any namespace object:
// parseInt, parseFloat, isNaN, isFinite. crabquick's init.rs stub for
// these is a single TODO comment ("parseInt, parseFloat, isNaN,
// isFinite, encodeURIComponent, decodeURIComponent") with no body at
// all; encode/decodeURI* and eval are left out here since they have no
// home in a module with no network/URL or dynamic-compile surface.
func installGlobalFunctions(ctx *context.Context, v *vm.VM) error {
	globals := []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"parseInt", 2, globalParseInt},
		{"parseFloat", 1, globalParseFloat},
		{"isNaN", 1, globalIsNaN},
		{"isFinite", 1, globalIsFinite},
	}
	for _, g := range globals {
		id := v.RegisterNative(g.fn)
		fnVal, err := ctx.NewNativeFunction(id, g.length)
		if err != nil {
			return err
		}
		if err := ctx.SetGlobalProperty(g.name, fnVal); err != nil {
			return err
		}
	}
	return nil
}

func globalParseInt(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return numberParseInt(vmm, this, args)
}

func globalParseFloat(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return numberParseFloat(vmm, this, args)
}

func globalIsNaN(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	return value.Bool(math.IsNaN(n)), nil
}

func globalIsFinite(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	return value.Bool(!math.IsNaN(n) && !math.IsInf(n, 0)), nil
}
