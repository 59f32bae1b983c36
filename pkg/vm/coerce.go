package vm

import (
	"math"
	"strconv"
	"strings"

	"microjs/pkg/atom"
	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// toBoolean implements ToBoolean (§4.5.4): every value is truthy except
// undefined, null, false, +0/-0/NaN, and the empty string.
func (vm *VM) toBoolean(v value.Value) bool {
	switch {
	case v.IsUndefined(), v.IsNull():
		return false
	case v.IsBool():
		b, _ := v.ToBool()
		return b
	case v.IsInt():
		i, _ := v.ToInt()
		return i != 0
	}
	idx, ok := v.ToPtr()
	if !ok {
		return false
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindString:
		return vm.ctx.Arena.StringValue(idx) != ""
	case heap.KindBoxedFloat:
		f := vm.ctx.Arena.Float(idx)
		return f != 0 && !math.IsNaN(f)
	default:
		return true
	}
}

// toPrimitive implements ToPrimitive (§4.5.4): objects are coerced by
// calling valueOf then toString (hint "number", the default), or
// toString then valueOf (hint "string"), taking the first result that
// isn't itself an object. Everything else is already primitive.
func (vm *VM) toPrimitive(v value.Value, hintString bool) (value.Value, error) {
	idx, ok := v.ToPtr()
	if !ok {
		return v, nil
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindString, heap.KindBoxedFloat:
		return v, nil
	}

	order := []atom.Atom{vm.ctx.WellKnown[atom.WellKnownValueOf], vm.ctx.WellKnown[atom.WellKnownToString]}
	if hintString {
		order[0], order[1] = order[1], order[0]
	}
	for _, a := range order {
		method, found := vm.ctx.GetProperty(v, a)
		if !found {
			continue
		}
		if _, isPtr := method.ToPtr(); !isPtr {
			continue
		}
		result, err := vm.callValue(method, v, nil)
		if err != nil {
			return value.Undefined, err
		}
		if _, isObj := result.ToPtr(); !isObj {
			return result, nil
		}
	}
	return value.Undefined, vm.throwTypeErrorf("cannot convert object to primitive value")
}

// toNumber implements ToNumber (§4.5.4).
func (vm *VM) toNumber(v value.Value) (float64, error) {
	switch {
	case v.IsUndefined():
		return math.NaN(), nil
	case v.IsNull():
		return 0, nil
	case v.IsBool():
		b, _ := v.ToBool()
		if b {
			return 1, nil
		}
		return 0, nil
	case v.IsInt():
		i, _ := v.ToInt()
		return float64(i), nil
	}
	idx, ok := v.ToPtr()
	if !ok {
		return math.NaN(), nil
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindBoxedFloat:
		return vm.ctx.Arena.Float(idx), nil
	case heap.KindString:
		return parseNumericString(vm.ctx.Arena.StringValue(idx)), nil
	}
	prim, err := vm.toPrimitive(v, false)
	if err != nil {
		return 0, err
	}
	if _, isObj := prim.ToPtr(); isObj {
		return math.NaN(), nil
	}
	return vm.toNumber(prim)
}

func parseNumericString(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	return math.NaN()
}

// toString implements ToString (§4.5.4).
func (vm *VM) toString(v value.Value) (string, error) {
	switch {
	case v.IsUndefined():
		return "undefined", nil
	case v.IsNull():
		return "null", nil
	case v.IsBool():
		b, _ := v.ToBool()
		if b {
			return "true", nil
		}
		return "false", nil
	case v.IsInt():
		i, _ := v.ToInt()
		return strconv.FormatInt(i, 10), nil
	}
	idx, ok := v.ToPtr()
	if !ok {
		return "", nil
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindString:
		return vm.ctx.Arena.StringValue(idx), nil
	case heap.KindBoxedFloat:
		return formatNumber(vm.ctx.Arena.Float(idx)), nil
	}
	prim, err := vm.toPrimitive(v, true)
	if err != nil {
		return "", err
	}
	if _, isObj := prim.ToPtr(); isObj {
		return "[object Object]", nil
	}
	return vm.toString(prim)
}

// formatNumber renders f the way JS's Number::toString does for the
// common cases: integral values print without a decimal point, NaN and
// the infinities print their literal names.
func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toInt32 implements ToInt32 (§4.5.4): ToNumber then wrap to the
// 32-bit two's-complement range.
func (vm *VM) toInt32(v value.Value) (int32, error) {
	f, err := vm.toNumber(v)
	if err != nil {
		return 0, err
	}
	return toInt32(f), nil
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0
	}
	u := uint32(int64(math.Trunc(f)))
	return int32(u)
}

// toUint32 implements ToUint32 (§4.5.4).
func (vm *VM) toUint32(v value.Value) (uint32, error) {
	f, err := vm.toNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0, nil
	}
	return uint32(int64(math.Trunc(f))), nil
}

// typeOf implements the typeof operator.
func (vm *VM) typeOf(v value.Value) string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.IsNull():
		return "object"
	case v.IsBool():
		return "boolean"
	case v.IsInt():
		return "number"
	}
	idx, ok := v.ToPtr()
	if !ok {
		return "undefined"
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindString:
		return "string"
	case heap.KindBoxedFloat:
		return "number"
	case heap.KindNativeFunction, heap.KindBytecodeFunction, heap.KindClosure:
		return "function"
	default:
		return "object"
	}
}

// strictEquals implements === (§4.5.4): same type and same value, with
// reference identity for heap objects (content equality for strings is
// applied explicitly since two distinct String blocks with equal bytes
// must compare equal).
func (vm *VM) strictEquals(a, b value.Value) (bool, error) {
	if value.RawEquals(a, b) {
		return true, nil
	}
	aIdx, aPtr := a.ToPtr()
	bIdx, bPtr := b.ToPtr()
	if aPtr && bPtr {
		aKind, bKind := vm.ctx.Arena.KindOf(aIdx), vm.ctx.Arena.KindOf(bIdx)
		if aKind == heap.KindString && bKind == heap.KindString {
			return vm.ctx.Arena.StringValue(aIdx) == vm.ctx.Arena.StringValue(bIdx), nil
		}
		if aKind == heap.KindBoxedFloat && bKind == heap.KindBoxedFloat {
			return vm.ctx.Arena.Float(aIdx) == vm.ctx.Arena.Float(bIdx), nil
		}
		return false, nil
	}
	if a.IsInt() && bPtr && vm.ctx.Arena.KindOf(bIdx) == heap.KindBoxedFloat {
		i, _ := a.ToInt()
		return float64(i) == vm.ctx.Arena.Float(bIdx), nil
	}
	if b.IsInt() && aPtr && vm.ctx.Arena.KindOf(aIdx) == heap.KindBoxedFloat {
		i, _ := b.ToInt()
		return float64(i) == vm.ctx.Arena.Float(aIdx), nil
	}
	return false, nil
}

// abstractEquals implements == (§4.5.4): strict equality for same-type
// operands, with the usual cross-type numeric/string/boolean/null-
// undefined coercions otherwise.
func (vm *VM) abstractEquals(a, b value.Value) (bool, error) {
	aIsNullish := a.IsUndefined() || a.IsNull()
	bIsNullish := b.IsUndefined() || b.IsNull()
	if aIsNullish || bIsNullish {
		return aIsNullish && bIsNullish, nil
	}
	if vm.sameType(a, b) {
		return vm.strictEquals(a, b)
	}
	if a.IsBool() {
		n, err := vm.toNumber(a)
		if err != nil {
			return false, err
		}
		nv, err := vm.ctx.NewNumber(n)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(nv, b)
	}
	if b.IsBool() {
		n, err := vm.toNumber(b)
		if err != nil {
			return false, err
		}
		nv, err := vm.ctx.NewNumber(n)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(a, nv)
	}
	aNum, bNum := vm.isNumberLike(a), vm.isNumberLike(b)
	aStr, bStr := vm.isStringLike(a), vm.isStringLike(b)
	if aNum && bStr {
		bn, err := vm.toNumber(b)
		if err != nil {
			return false, err
		}
		bv, err := vm.ctx.NewNumber(bn)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(a, bv)
	}
	if aStr && bNum {
		an, err := vm.toNumber(a)
		if err != nil {
			return false, err
		}
		av, err := vm.ctx.NewNumber(an)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(av, b)
	}
	aObj, bObj := vm.isObjectLike(a), vm.isObjectLike(b)
	if aObj && (bNum || bStr) {
		ap, err := vm.toPrimitive(a, false)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(ap, b)
	}
	if bObj && (aNum || aStr) {
		bp, err := vm.toPrimitive(b, false)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(a, bp)
	}
	return false, nil
}

func (vm *VM) sameType(a, b value.Value) bool {
	return vm.classify(a) == vm.classify(b)
}

type valueClass int

const (
	classUndefined valueClass = iota
	classNull
	classBool
	classNumber
	classString
	classObject
)

func (vm *VM) classify(v value.Value) valueClass {
	switch {
	case v.IsUndefined():
		return classUndefined
	case v.IsNull():
		return classNull
	case v.IsBool():
		return classBool
	case v.IsInt():
		return classNumber
	}
	idx, ok := v.ToPtr()
	if !ok {
		return classUndefined
	}
	switch vm.ctx.Arena.KindOf(idx) {
	case heap.KindString:
		return classString
	case heap.KindBoxedFloat:
		return classNumber
	default:
		return classObject
	}
}

func (vm *VM) isNumberLike(v value.Value) bool { return vm.classify(v) == classNumber }
func (vm *VM) isStringLike(v value.Value) bool { return vm.classify(v) == classString }
func (vm *VM) isObjectLike(v value.Value) bool { return vm.classify(v) == classObject }

// compareResult is the outcome of the abstract relational comparison
// algorithm (§4.5.4): either a definite ordering or "undefined" (NaN
// involved), matching the spec's three-valued comparison.
type compareResult int

const (
	cmpLess compareResult = iota
	cmpEqual
	cmpGreater
	cmpUndefined
)

// compare implements the abstract relational comparison behind <, <=,
// >, >= (§4.5.4): string operands compare lexicographically by UTF-16
// code unit (approximated here with a byte-wise comparison over UTF-8,
// since the engine has no separate UTF-16 string representation),
// everything else compares numerically.
func (vm *VM) compare(a, b value.Value) (compareResult, error) {
	ap, err := vm.toPrimitive(a, false)
	if err != nil {
		return cmpUndefined, err
	}
	bp, err := vm.toPrimitive(b, false)
	if err != nil {
		return cmpUndefined, err
	}
	if vm.isStringLike(ap) && vm.isStringLike(bp) {
		as, _ := vm.toString(ap)
		bs, _ := vm.toString(bp)
		switch {
		case as < bs:
			return cmpLess, nil
		case as > bs:
			return cmpGreater, nil
		default:
			return cmpEqual, nil
		}
	}
	an, err := vm.toNumber(ap)
	if err != nil {
		return cmpUndefined, err
	}
	bn, err := vm.toNumber(bp)
	if err != nil {
		return cmpUndefined, err
	}
	if math.IsNaN(an) || math.IsNaN(bn) {
		return cmpUndefined, nil
	}
	switch {
	case an < bn:
		return cmpLess, nil
	case an > bn:
		return cmpGreater, nil
	default:
		return cmpEqual, nil
	}
}
