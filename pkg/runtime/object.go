package runtime

import (
	"microjs/pkg/atom"
	"microjs/pkg/context"
	"microjs/pkg/heap"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installObject wires Object.prototype's instance methods and the
// Object constructor's static methods (crabquick's
// install_object_constructor, generalized with the statics its
// "TODO"-free static list only partially covers: getPrototypeOf/
// setPrototypeOf/defineProperty were already there, keys/values/entries/
// assign/create round out the set a complete implementation needs).
func installObject(ctx *context.Context, v *vm.VM) error {
	proto := ctx.ObjectProto

	if err := defineMethod(ctx, v, proto, "hasOwnProperty", 1, objectHasOwnProperty); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "toString", 0, objectToString); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, proto, "isPrototypeOf", 1, objectIsPrototypeOf); err != nil {
		return err
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}
	for _, m := range []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"keys", 1, objectKeys},
		{"values", 1, objectValues},
		{"entries", 1, objectEntries},
		{"assign", 2, objectAssign},
		{"create", 1, objectCreate},
		{"getPrototypeOf", 1, objectGetPrototypeOf},
		{"setPrototypeOf", 2, objectSetPrototypeOf},
		{"defineProperty", 3, objectDefineProperty},
		{"freeze", 1, objectFreeze},
		{"isFrozen", 1, objectIsFrozen},
	} {
		if err := defineMethod(ctx, v, ctor, m.name, m.length, m.fn); err != nil {
			return err
		}
	}
	return ctx.SetGlobalProperty("Object", ctor)
}

func objectHasOwnProperty(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	key, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	ctx := vmm.Context()
	_, _, found := ctx.FindOwnProperty(this, ctx.Atoms.Intern(key))
	return value.Bool(found), nil
}

func objectToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return vmm.Context().NewString("[object Object]")
}

func objectIsPrototypeOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	target := arg(args, 0)
	if !vmm.IsObjectLike(target) {
		return value.Bool(false), nil
	}
	cur, ok := target.ToPtr()
	if !ok {
		return value.Bool(false), nil
	}
	for {
		protoVal := ctx.Arena.ObjectPrototype(cur)
		if protoVal.IsNull() || protoVal.IsUndefined() {
			return value.Bool(false), nil
		}
		if eq, _ := vmm.StrictEquals(protoVal, this); eq {
			return value.Bool(true), nil
		}
		next, ok := protoVal.ToPtr()
		if !ok {
			return value.Bool(false), nil
		}
		cur = next
	}
}

// ownEnumerableKeys lists obj's own enumerable property names in
// insertion/table order, skipping numeric-index keys when arrays==false
// is irrelevant here — Object.keys enumerates everything including
// array indices, since this engine represents array elements as
// ordinary own properties (context.Context.NewArray's doc comment).
func ownEnumerableKeys(ctx *context.Context, obj value.Value) []string {
	idx, ok := obj.ToPtr()
	if !ok {
		return nil
	}
	var table value.Value
	switch ctx.Arena.KindOf(idx) {
	case heap.KindObject:
		table = ctx.Arena.ObjectPropertyTable(idx)
	case heap.KindNativeFunction:
		table = ctx.Arena.NativeFunctionPropertyTable(idx)
	case heap.KindBytecodeFunction:
		table = ctx.Arena.BytecodeFunctionPropertyTable(idx)
	case heap.KindClosure:
		table = ctx.Arena.ClosurePropertyTable(idx)
	default:
		return nil
	}
	tableIdx, hasTable := table.ToPtr()
	if !hasTable {
		return nil
	}
	count := ctx.Arena.PropertyTableCount(tableIdx)
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		a, _, flags := ctx.Arena.PropertyTableEntryAt(tableIdx, i)
		if flags&heap.PropEnumerable == 0 {
			continue
		}
		keys = append(keys, ctx.Atoms.String(atom.Atom(a)))
	}
	return keys
}

func objectKeys(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	keys := ownEnumerableKeys(ctx, obj)
	elems := make([]value.Value, len(keys))
	for i, k := range keys {
		s, err := ctx.NewString(k)
		if err != nil {
			return value.Undefined, err
		}
		elems[i] = s
	}
	return newArray(ctx, elems)
}

func objectValues(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	keys := ownEnumerableKeys(ctx, obj)
	elems := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		v, _ := ctx.GetProperty(obj, ctx.Atoms.Intern(k))
		elems = append(elems, v)
	}
	return newArray(ctx, elems)
}

func objectEntries(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	keys := ownEnumerableKeys(ctx, obj)
	elems := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		v, _ := ctx.GetProperty(obj, ctx.Atoms.Intern(k))
		ks, err := ctx.NewString(k)
		if err != nil {
			return value.Undefined, err
		}
		pair, err := newArray(ctx, []value.Value{ks, v})
		if err != nil {
			return value.Undefined, err
		}
		elems = append(elems, pair)
	}
	return newArray(ctx, elems)
}

func objectAssign(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	if len(args) == 0 {
		return value.Undefined, vmm.ThrowTypeErrorf("Object.assign requires a target")
	}
	target := args[0]
	for _, src := range args[1:] {
		if !vmm.IsObjectLike(src) {
			continue
		}
		for _, k := range ownEnumerableKeys(ctx, src) {
			v, _ := ctx.GetProperty(src, ctx.Atoms.Intern(k))
			if err := ctx.SetOwnProperty(target, ctx.Atoms.Intern(k), v, heap.DefaultDataPropFlags); err != nil {
				return value.Undefined, err
			}
		}
	}
	return target, nil
}

func objectCreate(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	proto := arg(args, 0)
	if !proto.IsNull() && !vmm.IsObjectLike(proto) {
		return value.Undefined, vmm.ThrowTypeErrorf("Object prototype may only be an Object or null")
	}
	return ctx.NewObjectWithProto(proto)
}

func objectGetPrototypeOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	idx, ok := obj.ToPtr()
	if !ok {
		return value.Null, nil
	}
	if ctx.Arena.KindOf(idx) != heap.KindObject {
		return ctx.FunctionProto, nil
	}
	return ctx.Arena.ObjectPrototype(idx), nil
}

func objectSetPrototypeOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	proto := arg(args, 1)
	ctx.SetObjectPrototype(obj, proto)
	return obj, nil
}

func objectDefineProperty(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	key, err := vmm.ToString(arg(args, 1))
	if err != nil {
		return value.Undefined, err
	}
	descriptor := arg(args, 2)

	valueAtom := ctx.Atoms.Intern("value")
	writableAtom := ctx.Atoms.Intern("writable")
	enumerableAtom := ctx.Atoms.Intern("enumerable")
	configurableAtom := ctx.Atoms.Intern("configurable")
	getAtom := ctx.Atoms.Intern("get")
	setAtom := ctx.Atoms.Intern("set")

	getter, hasGetter := ctx.GetProperty(descriptor, getAtom)
	setter, hasSetter := ctx.GetProperty(descriptor, setAtom)
	hasGetter = hasGetter && !getter.IsUndefined()
	hasSetter = hasSetter && !setter.IsUndefined()
	if hasGetter || hasSetter {
		if err := ctx.DefineAccessorProperty(obj, ctx.Atoms.Intern(key), getter, setter, hasGetter, hasSetter); err != nil {
			return value.Undefined, err
		}
		return obj, nil
	}

	flags := heap.PropFlags(0)
	if w, found := ctx.GetProperty(descriptor, writableAtom); found && vmm.ToBoolean(w) {
		flags |= heap.PropWritable
	}
	if e, found := ctx.GetProperty(descriptor, enumerableAtom); found && vmm.ToBoolean(e) {
		flags |= heap.PropEnumerable
	}
	if c, found := ctx.GetProperty(descriptor, configurableAtom); found && vmm.ToBoolean(c) {
		flags |= heap.PropConfigurable
	}

	val, _ := ctx.GetProperty(descriptor, valueAtom)
	if err := ctx.SetOwnProperty(obj, ctx.Atoms.Intern(key), val, flags); err != nil {
		return value.Undefined, err
	}
	return obj, nil
}

func objectFreeze(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	if idx, ok := obj.ToPtr(); ok && ctx.Arena.KindOf(idx) == heap.KindObject {
		ctx.Arena.SetObjectExtensible(idx, false)
	}
	return obj, nil
}

func objectIsFrozen(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	obj := arg(args, 0)
	if idx, ok := obj.ToPtr(); ok && ctx.Arena.KindOf(idx) == heap.KindObject {
		return value.Bool(!ctx.Arena.ObjectExtensible(idx)), nil
	}
	return value.Bool(true), nil
}
