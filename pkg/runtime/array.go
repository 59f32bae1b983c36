package runtime

import (
	"sort"

	"microjs/pkg/context"
	"microjs/pkg/heap"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installArray wires Array.prototype's instance methods and
// Array.isArray, generalizing crabquick's install_array_constructor
// (builtins/array.rs) beyond its in-place-length-only push/pop/shift to
// the full method set SPEC_FULL.md's Array module names, all built on
// top of context.Context's "array is a plain Object with numeric-
// string-atom properties" representation rather than a dedicated
// ValueArray — the same representation array_push/array_slice/etc
// already assumed there.
func installArray(ctx *context.Context, v *vm.VM) error {
	proto, err := ctx.NewObjectWithProto(ctx.ObjectProto)
	if err != nil {
		return err
	}
	ctx.ArrayProto = proto

	methods := []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"push", 1, arrayPush},
		{"pop", 0, arrayPop},
		{"shift", 0, arrayShift},
		{"unshift", 1, arrayUnshift},
		{"slice", 2, arraySlice},
		{"splice", 2, arraySplice},
		{"concat", 1, arrayConcat},
		{"indexOf", 1, arrayIndexOf},
		{"lastIndexOf", 1, arrayLastIndexOf},
		{"includes", 1, arrayIncludes},
		{"join", 1, arrayJoin},
		{"reverse", 0, arrayReverse},
		{"forEach", 1, arrayForEach},
		{"map", 1, arrayMap},
		{"filter", 1, arrayFilter},
		{"reduce", 1, arrayReduce},
		{"reduceRight", 1, arrayReduceRight},
		{"find", 1, arrayFind},
		{"findIndex", 1, arrayFindIndex},
		{"some", 1, arraySome},
		{"every", 1, arrayEvery},
		{"sort", 1, arraySort},
		{"toString", 0, arrayToString},
	}
	for _, m := range methods {
		if err := defineMethod(ctx, v, proto, m.name, m.length, m.fn); err != nil {
			return err
		}
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}
	if err := defineMethod(ctx, v, ctor, "isArray", 1, arrayIsArray); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, ctor, "of", 0, arrayOf); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, ctor, "from", 1, arrayFrom); err != nil {
		return err
	}
	return ctx.SetGlobalProperty("Array", ctor)
}

func arrayLen(ctx *context.Context, v value.Value) int {
	n := ctx.ArrayLength(v)
	if n < 0 {
		return 0
	}
	return n
}

func arrayPush(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	for _, a := range args {
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(n), a, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
		n++
	}
	if err := ctx.SetArrayLength(this, n); err != nil {
		return value.Undefined, err
	}
	return value.FromInt(int64(n)), nil
}

func arrayPop(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	if n == 0 {
		return value.Undefined, nil
	}
	last := n - 1
	v, _ := ctx.GetProperty(this, ctx.IndexAtom(last))
	ctx.DeleteOwnProperty(this, ctx.IndexAtom(last))
	if err := ctx.SetArrayLength(this, last); err != nil {
		return value.Undefined, err
	}
	return v, nil
}

func arrayShift(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	if n == 0 {
		return value.Undefined, nil
	}
	first, _ := ctx.GetProperty(this, ctx.IndexAtom(0))
	for i := 1; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(i-1), v, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	ctx.DeleteOwnProperty(this, ctx.IndexAtom(n-1))
	if err := ctx.SetArrayLength(this, n-1); err != nil {
		return value.Undefined, err
	}
	return first, nil
}

func arrayUnshift(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	add := len(args)
	for i := n - 1; i >= 0; i-- {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(i+add), v, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	for i, a := range args {
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(i), a, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	newLen := n + add
	if err := ctx.SetArrayLength(this, newLen); err != nil {
		return value.Undefined, err
	}
	return value.FromInt(int64(newLen)), nil
}

func arraySlice(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	start := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(arg(args, 0))
		if err != nil {
			return value.Undefined, err
		}
		start = normalizeIndex(int(f), n)
	}
	end := n
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(arg(args, 1))
		if err != nil {
			return value.Undefined, err
		}
		end = normalizeIndex(int(f), n)
	}
	if start >= end {
		return newArray(ctx, nil)
	}
	elems := make([]value.Value, 0, end-start)
	for i := start; i < end; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		elems = append(elems, v)
	}
	return newArray(ctx, elems)
}

func arraySplice(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)

	start := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(arg(args, 0))
		if err != nil {
			return value.Undefined, err
		}
		start = normalizeIndex(int(f), n)
	}

	deleteCount := n - start
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		deleteCount = int(f)
		if deleteCount < 0 {
			deleteCount = 0
		}
		if deleteCount > n-start {
			deleteCount = n - start
		}
	}

	var items []value.Value
	if len(args) > 2 {
		items = args[2:]
	}

	all := toElements(ctx, this)
	deleted := append([]value.Value{}, all[start:start+deleteCount]...)

	rebuilt := make([]value.Value, 0, n-deleteCount+len(items))
	rebuilt = append(rebuilt, all[:start]...)
	rebuilt = append(rebuilt, items...)
	rebuilt = append(rebuilt, all[start+deleteCount:]...)

	for i := 0; i < n; i++ {
		ctx.DeleteOwnProperty(this, ctx.IndexAtom(i))
	}
	for i, v := range rebuilt {
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(i), v, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	if err := ctx.SetArrayLength(this, len(rebuilt)); err != nil {
		return value.Undefined, err
	}

	return newArray(ctx, deleted)
}

func arrayConcat(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	elems := toElements(ctx, this)
	for _, a := range args {
		if vmm.IsObjectLike(a) {
			elems = append(elems, toElements(ctx, a)...)
		} else {
			elems = append(elems, a)
		}
	}
	return newArray(ctx, elems)
}

func arrayIndexOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	search := arg(args, 0)
	start := 0
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		start = normalizeIndex(int(f), n)
	}
	for i := start; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if eq, _ := vmm.StrictEquals(v, search); eq {
			return value.FromInt(int64(i)), nil
		}
	}
	return value.FromInt(-1), nil
}

func arrayLastIndexOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	search := arg(args, 0)
	start := n - 1
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		start = int(f)
		if start < 0 {
			start += n
		}
		if start >= n {
			start = n - 1
		}
	}
	for i := start; i >= 0; i-- {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if eq, _ := vmm.StrictEquals(v, search); eq {
			return value.FromInt(int64(i)), nil
		}
	}
	return value.FromInt(-1), nil
}

func arrayIncludes(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	idx, err := arrayIndexOf(vmm, this, args)
	if err != nil {
		return value.Undefined, err
	}
	i, _ := idx.ToInt()
	return value.Bool(i >= 0), nil
}

func arrayJoin(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	sep := ","
	if !arg(args, 0).IsUndefined() {
		s, err := vmm.ToString(args[0])
		if err != nil {
			return value.Undefined, err
		}
		sep = s
	}
	n := arrayLen(ctx, this)
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if v.IsNull() || v.IsUndefined() {
			parts[i] = ""
			continue
		}
		s, err := vmm.ToString(v)
		if err != nil {
			return value.Undefined, err
		}
		parts[i] = s
	}
	return ctx.NewString(joinStrings(parts, sep))
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func arrayReverse(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	n := arrayLen(ctx, this)
	l, r := 0, n-1
	for l < r {
		lv, _ := ctx.GetProperty(this, ctx.IndexAtom(l))
		rv, _ := ctx.GetProperty(this, ctx.IndexAtom(r))
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(l), rv, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(r), lv, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
		l++
		r--
	}
	return this, nil
}

func arrayForEach(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		if _, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this}); err != nil {
			return value.Undefined, err
		}
	}
	return value.Undefined, nil
}

func arrayMap(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	elems := make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		mapped, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		elems[i] = mapped
	}
	return newArray(ctx, elems)
}

func arrayFilter(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	var elems []value.Value
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		keep, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		if vmm.ToBoolean(keep) {
			elems = append(elems, v)
		}
	}
	return newArray(ctx, elems)
}

func arrayReduce(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	i := 0
	var acc value.Value
	if len(args) > 1 {
		acc = args[1]
	} else {
		if n == 0 {
			return value.Undefined, vmm.ThrowTypeErrorf("Reduce of empty array with no initial value")
		}
		acc, _ = ctx.GetProperty(this, ctx.IndexAtom(0))
		i = 1
	}
	for ; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{acc, v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		acc = result
	}
	return acc, nil
}

func arrayReduceRight(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	i := n - 1
	var acc value.Value
	if len(args) > 1 {
		acc = args[1]
	} else {
		if n == 0 {
			return value.Undefined, vmm.ThrowTypeErrorf("Reduce of empty array with no initial value")
		}
		acc, _ = ctx.GetProperty(this, ctx.IndexAtom(n-1))
		i = n - 2
	}
	for ; i >= 0; i-- {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{acc, v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		acc = result
	}
	return acc, nil
}

func arrayFind(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		if vmm.ToBoolean(result) {
			return v, nil
		}
	}
	return value.Undefined, nil
}

func arrayFindIndex(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		if vmm.ToBoolean(result) {
			return value.FromInt(int64(i)), nil
		}
	}
	return value.FromInt(-1), nil
}

func arraySome(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		if vmm.ToBoolean(result) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func arrayEvery(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	callback := arg(args, 0)
	n := arrayLen(ctx, this)
	for i := 0; i < n; i++ {
		v, _ := ctx.GetProperty(this, ctx.IndexAtom(i))
		result, err := vmm.Call(callback, value.Undefined, []value.Value{v, value.FromInt(int64(i)), this})
		if err != nil {
			return value.Undefined, err
		}
		if !vmm.ToBoolean(result) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

// arraySort implements Array.prototype.sort: in-place, using the
// default lexicographic-by-string-conversion comparator unless a
// compare function is supplied (§ECMA-262's Array.prototype.sort),
// stable per sort.SliceStable — unlike crabquick's array.rs, which has
// no sort at all (init.rs registers array_sort_native but the filtered
// retrieval pack's array.rs never got to implementing the body).
func arraySort(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	elems := toElements(ctx, this)
	compare := arg(args, 0)

	var sortErr error
	less := func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		a, b := elems[i], elems[j]
		if vmm.IsCallable(compare) {
			result, err := vmm.Call(compare, value.Undefined, []value.Value{a, b})
			if err != nil {
				sortErr = err
				return false
			}
			n, err := vmm.ToNumber(result)
			if err != nil {
				sortErr = err
				return false
			}
			return n < 0
		}
		as, err := vmm.ToString(a)
		if err != nil {
			sortErr = err
			return false
		}
		bs, err := vmm.ToString(b)
		if err != nil {
			sortErr = err
			return false
		}
		return as < bs
	}
	sort.SliceStable(elems, less)
	if sortErr != nil {
		return value.Undefined, sortErr
	}

	for i, v := range elems {
		if err := ctx.SetOwnProperty(this, ctx.IndexAtom(i), v, heap.DefaultDataPropFlags); err != nil {
			return value.Undefined, err
		}
	}
	return this, nil
}

func arrayToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return arrayJoin(vmm, this, nil)
}

func arrayIsArray(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	target := arg(args, 0)
	idx, ok := target.ToPtr()
	if !ok || ctx.Arena.KindOf(idx) != heap.KindObject {
		return value.Bool(false), nil
	}
	return value.Bool(valuesEqualPtr(ctx.Arena.ObjectPrototype(idx), ctx.ArrayProto)), nil
}

func valuesEqualPtr(a, b value.Value) bool {
	return value.RawEquals(a, b)
}

func arrayOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return newArray(vmm.Context(), args)
}

func arrayFrom(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	source := arg(args, 0)
	mapFn := arg(args, 1)

	var elems []value.Value
	if s, ok := ctx.GetString(source); ok {
		for _, r := range s {
			ch, err := ctx.NewString(string(r))
			if err != nil {
				return value.Undefined, err
			}
			elems = append(elems, ch)
		}
	} else if vmm.IsObjectLike(source) {
		elems = toElements(ctx, source)
	}

	if vmm.IsCallable(mapFn) {
		for i, v := range elems {
			mapped, err := vmm.Call(mapFn, value.Undefined, []value.Value{v, value.FromInt(int64(i))})
			if err != nil {
				return value.Undefined, err
			}
			elems[i] = mapped
		}
	}
	return newArray(ctx, elems)
}
