package runtime

import (
	"math"
	"math/rand"

	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installMath wires the Math namespace object: crabquick's
// install_math_object gives it PI/E/LN2/LN10/SQRT2 and abs/floor/ceil/
// round/min/max/pow/sqrt; this supplements that with the other constants
// and methods a complete Math namespace carries (LOG2E/LOG10E/SQRT1_2,
// trunc/sign/log/log2/log10/exp/random/cbrt/hypot and the trigonometric
// functions), all thin wrappers over Go's math package the way
// crabquick's own methods are thin wrappers over libm.
func installMath(ctx *context.Context, v *vm.VM) error {
	mathObj, err := ctx.NewObject()
	if err != nil {
		return err
	}

	constants := []struct {
		name string
		val  float64
	}{
		{"PI", math.Pi},
		{"E", math.E},
		{"LN2", math.Ln2},
		{"LN10", math.Log(10)},
		{"LOG2E", 1 / math.Ln2},
		{"LOG10E", 1 / math.Log(10)},
		{"SQRT2", math.Sqrt2},
		{"SQRT1_2", math.Sqrt(0.5)},
	}
	for _, c := range constants {
		n, err := ctx.NewNumber(c.val)
		if err != nil {
			return err
		}
		if err := defineValue(ctx, mathObj, c.name, n, 0); err != nil {
			return err
		}
	}

	methods := []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"abs", 1, mathUnary(math.Abs)},
		{"floor", 1, mathUnary(math.Floor)},
		{"ceil", 1, mathUnary(math.Ceil)},
		{"round", 1, mathUnary(mathRound)},
		{"trunc", 1, mathUnary(math.Trunc)},
		{"sign", 1, mathUnary(mathSign)},
		{"sqrt", 1, mathUnary(math.Sqrt)},
		{"cbrt", 1, mathUnary(math.Cbrt)},
		{"log", 1, mathUnary(math.Log)},
		{"log2", 1, mathUnary(math.Log2)},
		{"log10", 1, mathUnary(math.Log10)},
		{"exp", 1, mathUnary(math.Exp)},
		{"sin", 1, mathUnary(math.Sin)},
		{"cos", 1, mathUnary(math.Cos)},
		{"tan", 1, mathUnary(math.Tan)},
		{"asin", 1, mathUnary(math.Asin)},
		{"acos", 1, mathUnary(math.Acos)},
		{"atan", 1, mathUnary(math.Atan)},
		{"min", 2, mathMin},
		{"max", 2, mathMax},
		{"pow", 2, mathPow},
		{"atan2", 2, mathAtan2},
		{"hypot", 2, mathHypot},
		{"random", 0, mathRandom},
	}
	for _, m := range methods {
		if err := defineMethod(ctx, v, mathObj, m.name, m.length, m.fn); err != nil {
			return err
		}
	}

	return ctx.SetGlobalProperty("Math", mathObj)
}

func mathRound(n float64) float64 {
	return math.Floor(n + 0.5)
}

func mathSign(n float64) float64 {
	switch {
	case math.IsNaN(n):
		return math.NaN()
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return n
	}
}

// mathUnary adapts a float64->float64 Go function into a NativeFunc that
// coerces its single argument with ToNumber first.
func mathUnary(f func(float64) float64) vm.NativeFunc {
	return func(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
		n, err := vmm.ToNumber(arg(args, 0))
		if err != nil {
			return value.Undefined, err
		}
		return vmm.Context().NewNumber(f(n))
	}
}

func mathMin(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return vmm.Context().NewNumber(math.Inf(1))
	}
	best := math.Inf(1)
	for _, a := range args {
		n, err := vmm.ToNumber(a)
		if err != nil {
			return value.Undefined, err
		}
		if math.IsNaN(n) {
			return vmm.Context().NewNumber(math.NaN())
		}
		if n < best {
			best = n
		}
	}
	return vmm.Context().NewNumber(best)
}

func mathMax(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return vmm.Context().NewNumber(math.Inf(-1))
	}
	best := math.Inf(-1)
	for _, a := range args {
		n, err := vmm.ToNumber(a)
		if err != nil {
			return value.Undefined, err
		}
		if math.IsNaN(n) {
			return vmm.Context().NewNumber(math.NaN())
		}
		if n > best {
			best = n
		}
	}
	return vmm.Context().NewNumber(best)
}

func mathPow(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	base, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	exp, err := vmm.ToNumber(arg(args, 1))
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewNumber(math.Pow(base, exp))
}

func mathAtan2(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	y, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	x, err := vmm.ToNumber(arg(args, 1))
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewNumber(math.Atan2(y, x))
}

func mathHypot(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	sum := 0.0
	for _, a := range args {
		n, err := vmm.ToNumber(a)
		if err != nil {
			return value.Undefined, err
		}
		sum += n * n
	}
	return vmm.Context().NewNumber(math.Sqrt(sum))
}

func mathRandom(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return vmm.Context().NewNumber(rand.Float64())
}
