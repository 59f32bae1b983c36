// Package runtime installs microjs's built-in object graph (SPEC_FULL.md
// §4.6) onto a freshly constructed Context/VM pair: Object, Array,
// String, Number, Boolean, Function prototypes and their static methods,
// the Math namespace, the Error constructor family, console, and the
// small set of bare global functions (parseInt/parseFloat/isNaN/
// isFinite). It mirrors crabquick's runtime/init.rs install order and
// native_functions module, translated to Go's explicit-error-return
// style and pkg/vm's exported coercion/call API (pkg/vm/api.go) rather
// than re-deriving ToNumber/ToString/the call protocol a second time.
package runtime

import (
	"math"

	"microjs/pkg/context"
	"microjs/pkg/heap"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// Install populates ctx's prototype slots (ArrayProto/StringProto/
// NumberProto/BooleanProto/ErrorProto — ObjectProto/FunctionProto are
// already valid the moment a Context is constructed, see context.New)
// and wires every built-in onto the global object. Call it once per VM
// immediately after construction, before running any script.
func Install(v *vm.VM) error {
	ctx := v.Context()

	if err := installGlobalConstants(ctx); err != nil {
		return err
	}
	if err := installObject(ctx, v); err != nil {
		return err
	}
	if err := installFunction(ctx, v); err != nil {
		return err
	}
	if err := installArray(ctx, v); err != nil {
		return err
	}
	if err := installString(ctx, v); err != nil {
		return err
	}
	if err := installNumber(ctx, v); err != nil {
		return err
	}
	if err := installBoolean(ctx, v); err != nil {
		return err
	}
	if err := installMath(ctx, v); err != nil {
		return err
	}
	if err := installErrors(ctx, v); err != nil {
		return err
	}
	if err := installConsole(ctx, v); err != nil {
		return err
	}
	if err := installGlobalFunctions(ctx, v); err != nil {
		return err
	}
	return nil
}

// installGlobalConstants installs NaN and Infinity as ordinary global
// properties. undefined needs no install: ast.UndefinedLiteral compiles
// directly to OpUndefined, so the identifier never reaches OpGetGlobal.
func installGlobalConstants(ctx *context.Context) error {
	nan, err := ctx.NewNumber(nanValue())
	if err != nil {
		return err
	}
	if err := ctx.SetGlobalProperty("NaN", nan); err != nil {
		return err
	}
	inf, err := ctx.NewNumber(infValue())
	if err != nil {
		return err
	}
	return ctx.SetGlobalProperty("Infinity", inf)
}

// defineMethod registers fn under the given name/arity on obj, as an
// own, writable, configurable, non-enumerable property — matching how
// real engines hide built-in methods from for-in/Object.keys.
func defineMethod(ctx *context.Context, v *vm.VM, obj value.Value, name string, length int, fn vm.NativeFunc) error {
	id := v.RegisterNative(fn)
	fnVal, err := ctx.NewNativeFunction(id, length)
	if err != nil {
		return err
	}
	a := ctx.Atoms.Intern(name)
	return ctx.SetOwnProperty(obj, a, fnVal, heap.PropWritable|heap.PropConfigurable)
}

// defineValue installs a plain data property (a constant, a nested
// namespace object, a "prototype" link) under name on obj.
func defineValue(ctx *context.Context, obj value.Value, name string, val value.Value, flags heap.PropFlags) error {
	return ctx.SetOwnProperty(obj, ctx.Atoms.Intern(name), val, flags)
}

// newConstructor allocates a plain object to serve as a built-in
// constructor function stand-in (§4.6's constructors are ordinary
// objects carrying a "prototype" link and static methods — this engine
// has no distinct "function object with internal [[Construct]])" heap
// kind for them, matching crabquick's own placeholder constructors).
func newConstructor(ctx *context.Context, proto value.Value) (value.Value, error) {
	ctor, err := ctx.NewObjectWithProto(ctx.FunctionProto)
	if err != nil {
		return value.Undefined, err
	}
	if err := defineValue(ctx, ctor, "prototype", proto, heap.PropWritable); err != nil {
		return value.Undefined, err
	}
	if err := defineValue(ctx, proto, "constructor", ctor, heap.PropWritable|heap.PropConfigurable); err != nil {
		return value.Undefined, err
	}
	return ctor, nil
}

// arg returns args[i], or value.Undefined if the call was made with
// fewer arguments than the native method declares.
func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Undefined
	}
	return args[i]
}

// toElements reads every element of a JS array-like object (its
// "length" property plus that many numeric-string-atom own
// properties — arrays carry no dedicated heap kind, see
// context.Context.NewArray) into a Go slice.
func toElements(ctx *context.Context, arr value.Value) []value.Value {
	n := ctx.ArrayLength(arr)
	if n < 0 {
		n = 0
	}
	out := make([]value.Value, n)
	for i := range out {
		v, found := ctx.GetProperty(arr, ctx.IndexAtom(i))
		if found {
			out[i] = v
		} else {
			out[i] = value.Undefined
		}
	}
	return out
}

// newArray allocates a fresh JS array containing elems, in order.
func newArray(ctx *context.Context, elems []value.Value) (value.Value, error) {
	arr, err := ctx.NewArray()
	if err != nil {
		return value.Undefined, err
	}
	for i, e := range elems {
		if err := ctx.SetOwnProperty(arr, ctx.IndexAtom(i), e, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	if err := ctx.SetArrayLength(arr, len(elems)); err != nil {
		return value.Undefined, err
	}
	return arr, nil
}

// normalizeIndex resolves a possibly-negative, possibly-out-of-range
// relative index (the convention shared by slice/splice/substring/
// indexOf's fromIndex/...) against a sequence of length n: negative
// counts back from the end, then the result is clamped to [0, n].
func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
		return i
	}
	if i > n {
		return n
	}
	return i
}

func nanValue() float64 { return math.NaN() }
func infValue() float64 { return math.Inf(1) }
