package runtime

import (
	"math"
	"strconv"
	"strings"

	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installNumber wires Number.prototype (toString/valueOf/toFixed) and the
// Number constructor's static constants/methods. crabquick's init.rs
// leaves this entire constructor as a bare placeholder object with no
// properties at all ("// TODO: Add Number.prototype methods") — there is
// nothing to generalize here, so this is built from the standard ECMA-262
// Number shape directly, in the same defineMethod/defineValue idiom every
// other install* function in this package uses.
func installNumber(ctx *context.Context, v *vm.VM) error {
	proto, err := ctx.NewObjectWithProto(ctx.ObjectProto)
	if err != nil {
		return err
	}
	ctx.NumberProto = proto

	if err := defineMethod(ctx, v, proto, "toString", 1, numberToString); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "valueOf", 0, numberValueOf); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "toFixed", 1, numberToFixed); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "toPrecision", 1, numberToPrecision); err != nil {
		return err
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}

	constants := []struct {
		name string
		val  float64
	}{
		{"MAX_VALUE", math.MaxFloat64},
		{"MIN_VALUE", math.SmallestNonzeroFloat64},
		{"MAX_SAFE_INTEGER", 9007199254740991},
		{"MIN_SAFE_INTEGER", -9007199254740991},
		{"EPSILON", 2.220446049250313e-16},
		{"POSITIVE_INFINITY", math.Inf(1)},
		{"NEGATIVE_INFINITY", math.Inf(-1)},
		{"NaN", math.NaN()},
	}
	for _, c := range constants {
		n, err := ctx.NewNumber(c.val)
		if err != nil {
			return err
		}
		if err := defineValue(ctx, ctor, c.name, n, 0); err != nil {
			return err
		}
	}

	statics := []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"isInteger", 1, numberIsInteger},
		{"isSafeInteger", 1, numberIsSafeInteger},
		{"isFinite", 1, numberIsFiniteStatic},
		{"isNaN", 1, numberIsNaNStatic},
		{"parseFloat", 1, numberParseFloat},
		{"parseInt", 2, numberParseInt},
	}
	for _, s := range statics {
		if err := defineMethod(ctx, v, ctor, s.name, s.length, s.fn); err != nil {
			return err
		}
	}

	return ctx.SetGlobalProperty("Number", ctor)
}

func thisNumber(vmm *vm.VM, this value.Value) (float64, error) {
	return vmm.ToNumber(this)
}

func numberToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := thisNumber(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	radix := 10
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(args[0])
		if err != nil {
			return value.Undefined, err
		}
		radix = int(f)
	}
	if radix == 10 {
		return vmm.Context().NewString(formatNumber(n))
	}
	if math.Trunc(n) != n {
		return vmm.Context().NewString(formatNumber(n))
	}
	return vmm.Context().NewString(strconv.FormatInt(int64(n), radix))
}

func numberValueOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := thisNumber(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewNumber(n)
}

func numberToFixed(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := thisNumber(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	digits := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(args[0])
		if err != nil {
			return value.Undefined, err
		}
		digits = int(f)
	}
	return vmm.Context().NewString(strconv.FormatFloat(n, 'f', digits, 64))
}

func numberToPrecision(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	n, err := thisNumber(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	if arg(args, 0).IsUndefined() {
		return vmm.Context().NewString(formatNumber(n))
	}
	f, err := vmm.ToNumber(args[0])
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strconv.FormatFloat(n, 'g', int(f), 64))
}

func numberIsInteger(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	n, ok := vmm.Context().GetNumber(v)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(!math.IsNaN(n) && !math.IsInf(n, 0) && math.Trunc(n) == n), nil
}

func numberIsSafeInteger(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	n, ok := vmm.Context().GetNumber(v)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(!math.IsNaN(n) && !math.IsInf(n, 0) && math.Trunc(n) == n &&
		math.Abs(n) <= 9007199254740991), nil
}

func numberIsFiniteStatic(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	n, ok := vmm.Context().GetNumber(v)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(!math.IsNaN(n) && !math.IsInf(n, 0)), nil
}

func numberIsNaNStatic(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	n, ok := vmm.Context().GetNumber(v)
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(math.IsNaN(n)), nil
}

func numberParseFloat(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewNumber(parseLeadingFloat(s))
}

func numberParseInt(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	radix := 0
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		if int(f) != 0 {
			radix = int(f)
		}
	}
	return vmm.Context().NewNumber(parseLeadingInt(s, radix))
}

// parseLeadingFloat mirrors JS's parseFloat: skip leading whitespace,
// consume the longest valid floating-point prefix, NaN if none exists.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
	for i, r := range s {
		switch {
		case r == '+' || r == '-':
			if i != 0 && !(seenExp && (s[i-1] == 'e' || s[i-1] == 'E')) {
				goto done
			}
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot && !seenExp:
			seenDot = true
		case (r == 'e' || r == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			goto done
		}
		end = i + 1
	}
done:
	if !seenDigit {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseLeadingInt mirrors JS's parseInt: skip leading whitespace, an
// optional sign, an optional "0x"/"0X" prefix when radix is 16 (or
// unspecified and the string looks hex), then the longest valid digit
// run in that radix.
func parseLeadingInt(s string, radix int) float64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if (radix == 16 || radix == 0) && len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		radix = 16
	}
	if radix == 0 {
		radix = 10
	}
	end := 0
	for end < len(s) && digitValue(s[end]) < radix {
		end++
	}
	if end == 0 {
		return math.NaN()
	}
	n, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		f, ferr := strconv.ParseUint(s[:end], radix, 64)
		if ferr != nil {
			return math.NaN()
		}
		n = int64(f)
	}
	if neg {
		return -float64(n)
	}
	return float64(n)
}

func digitValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 10
	default:
		return 99
	}
}

// formatNumber renders a float64 the way JS's Number-to-String coercion
// does: integral values print without a decimal point, NaN/Infinity
// print literally, everything else uses the shortest round-tripping
// representation.
func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
