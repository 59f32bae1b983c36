// Package context implements the Context type (SPEC_FULL.md §3.4, §3.5):
// process-wide, per-engine-instance state with an explicit lifecycle.
// A Context owns the arena, the atom table, the root set, the global
// object, the Object.prototype/Function.prototype references, and the
// current exception slot. Every heap-visible JavaScript operation goes
// through it, mirroring crabquick's context.rs method surface
// (new_object, new_number, add_root/remove_root, memory_usage, ...)
// translated to Go naming.
package context

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"microjs/pkg/atom"
	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// maxInlineInt is the widest magnitude this Context will inline as a
// tagged integer Value rather than boxing as a BoxedFloat; beyond this
// range double-precision loses the ability to round-trip every integer
// exactly, so boxing goes through NewBoxedFloat instead.
const maxInlineInt = 1 << 53

// Context is the engine's per-instance state.
type Context struct {
	Arena *heap.Arena
	Atoms *atom.Table

	WellKnown [atom.WellKnownCount]atom.Atom

	Global        value.Value
	ObjectProto   value.Value
	FunctionProto value.Value

	// The remaining built-in prototypes are Undefined until pkg/runtime's
	// Install populates them (§4.6); Object.prototype/Function.prototype
	// are created here instead because NewObject/NewObjectWithProto need
	// a valid Object.prototype to exist from the moment a Context is
	// constructed, before any runtime bootstrap has run.
	ArrayProto   value.Value
	StringProto  value.Value
	NumberProto  value.Value
	BooleanProto value.Value
	ErrorProto   value.Value

	// Exception holds the value currently being thrown/propagated, or
	// value.Undefined when execution is not unwinding.
	Exception value.Value

	Log *zap.Logger

	roots      map[uint64]value.Value
	nextRootID uint64
	scanners   []func(visit func(value.Value))
}

// New constructs a Context with a heap of the given size in bytes. If
// logger is nil, diagnostics are discarded (zap.NewNop()), matching
// wippyai's Runtime constructor pattern of accepting a caller-controlled
// logger that costs nothing when absent.
func New(heapSize int, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx := &Context{
		Arena: heap.NewArena(heapSize),
		Atoms: atom.NewTable(),
		Log:   logger,
		roots: make(map[uint64]value.Value),
	}
	ctx.WellKnown = ctx.Atoms.InternWellKnown()

	objProtoIdx, err := ctx.Arena.NewObject(value.Null)
	if err != nil {
		return nil, err
	}
	ctx.ObjectProto = value.FromPtr(objProtoIdx)

	fnProtoIdx, err := ctx.Arena.NewObject(ctx.ObjectProto)
	if err != nil {
		return nil, err
	}
	ctx.FunctionProto = value.FromPtr(fnProtoIdx)

	globalIdx, err := ctx.Arena.NewObject(ctx.ObjectProto)
	if err != nil {
		return nil, err
	}
	ctx.Global = value.FromPtr(globalIdx)

	ctx.ArrayProto = value.Undefined
	ctx.StringProto = value.Undefined
	ctx.NumberProto = value.Undefined
	ctx.BooleanProto = value.Undefined
	ctx.ErrorProto = value.Undefined

	ctx.Exception = value.Undefined
	return ctx, nil
}

// GC runs a full mark+compact collection cycle now.
func (ctx *Context) GC() {
	ctx.Arena.Collect(ctx)
}

// MemoryUsage returns the number of bytes currently occupied by live
// allocations.
func (ctx *Context) MemoryUsage() int { return ctx.Arena.Used() }

// ArenaSize returns the heap's total fixed capacity in bytes.
func (ctx *Context) ArenaSize() int { return ctx.Arena.Size() }

// FreeMemory returns the number of bytes available before the next
// allocation would fail.
func (ctx *Context) FreeMemory() int { return ctx.Arena.Free() }

// AddRoot pins v so GC treats it as reachable even when nothing else
// references it (e.g. a native-code local holding a heap value across
// calls that might trigger a collection). It returns a token to pass to
// RemoveRoot.
func (ctx *Context) AddRoot(v value.Value) uint64 {
	id := ctx.nextRootID
	ctx.nextRootID++
	ctx.roots[id] = v
	return id
}

// RemoveRoot unpins a value previously registered with AddRoot.
func (ctx *Context) RemoveRoot(id uint64) {
	delete(ctx.roots, id)
}

// AddScanner registers an additional root-producing callback, invoked
// on every collection alongside the Context's own fixed roots. The VM
// uses this to expose its value stack and call-frame this/closure
// references (§4.2) without pkg/context importing pkg/vm.
func (ctx *Context) AddScanner(scan func(visit func(value.Value))) {
	ctx.scanners = append(ctx.scanners, scan)
}

// Walk implements heap.Roots: the global object, both prototype
// references, the current exception, every explicit root, and every
// registered scanner's roots.
func (ctx *Context) Walk(visit func(value.Value)) {
	visit(ctx.Global)
	visit(ctx.ObjectProto)
	visit(ctx.FunctionProto)
	visit(ctx.ArrayProto)
	visit(ctx.StringProto)
	visit(ctx.NumberProto)
	visit(ctx.BooleanProto)
	visit(ctx.ErrorProto)
	visit(ctx.Exception)
	for _, v := range ctx.roots {
		visit(v)
	}
	for _, scan := range ctx.scanners {
		scan(visit)
	}
}

// NewObject allocates a plain object whose prototype is Object.prototype.
func (ctx *Context) NewObject() (value.Value, error) {
	return ctx.NewObjectWithProto(ctx.ObjectProto)
}

// NewObjectWithProto allocates a plain object with the given prototype
// (value.Null is valid: it terminates the prototype chain).
func (ctx *Context) NewObjectWithProto(proto value.Value) (value.Value, error) {
	idx, err := ctx.Arena.NewObject(proto)
	if err != nil {
		return value.Undefined, err
	}
	tableIdx, err := ctx.Arena.NewPropertyTable(0)
	if err != nil {
		return value.Undefined, err
	}
	ctx.Arena.SetObjectPropertyTable(idx, value.FromPtr(tableIdx))
	return value.FromPtr(idx), nil
}

// NewArray allocates an empty array: an ordinary Object linked to
// Array.prototype with a zero-initialized "length" own property (§4.5.3).
// JavaScript arrays carry no dedicated heap kind of their own — their
// elements are just numeric-string-atom properties on the Object, the
// same representation crabquick's fast-array path falls back to once an
// array stops being dense.
func (ctx *Context) NewArray() (value.Value, error) {
	v, err := ctx.NewObjectWithProto(ctx.ArrayProto)
	if err != nil {
		return value.Undefined, err
	}
	if err := ctx.SetOwnProperty(v, ctx.WellKnown[atom.WellKnownLength], value.FromInt(0), heap.PropWritable); err != nil {
		return value.Undefined, err
	}
	return v, nil
}

// ArrayLength reads v's "length" property as an int, 0 if absent or not
// a number.
func (ctx *Context) ArrayLength(v value.Value) int {
	lv, ok := ctx.GetProperty(v, ctx.WellKnown[atom.WellKnownLength])
	if !ok {
		return 0
	}
	n, _ := ctx.GetNumber(lv)
	return int(n)
}

// SetArrayLength overwrites v's "length" property.
func (ctx *Context) SetArrayLength(v value.Value, n int) error {
	return ctx.SetOwnProperty(v, ctx.WellKnown[atom.WellKnownLength], value.FromInt(int64(n)), heap.PropWritable)
}

// IndexAtom interns the decimal string form of i, the property key every
// array element access goes through.
func (ctx *Context) IndexAtom(i int) atom.Atom {
	return ctx.Atoms.Intern(strconv.Itoa(i))
}

// NewString interns s onto the heap as a String block. Distinct calls
// with equal content allocate distinct blocks; string identity is
// decided by content comparison in pkg/vm, not by this allocator.
func (ctx *Context) NewString(s string) (value.Value, error) {
	idx, err := ctx.Arena.NewString(s)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromPtr(idx), nil
}

// GetString returns the string content of val, or "", false if val is
// not a heap String.
func (ctx *Context) GetString(val value.Value) (string, bool) {
	idx, ok := val.ToPtr()
	if !ok || ctx.Arena.KindOf(idx) != heap.KindString {
		return "", false
	}
	return ctx.Arena.StringValue(idx), true
}

// NewNumber encodes f as a Value: inline as a tagged integer when f is
// an exactly representable integer within the inline range, else
// boxed as a heap BoxedFloat (mirrors crabquick's new_number: "try to
// inline as integer, otherwise allocate").
func (ctx *Context) NewNumber(f float64) (value.Value, error) {
	if i := int64(f); float64(i) == f && i > -maxInlineInt && i < maxInlineInt && !isNegativeZero(f) {
		return value.FromInt(i), nil
	}
	idx, err := ctx.Arena.NewBoxedFloat(f)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromPtr(idx), nil
}

func isNegativeZero(f float64) bool {
	return f == 0 && math.Signbit(f)
}

// GetNumber returns the float64 value of val, or 0, false if val is not
// a number (inline integer or boxed float).
func (ctx *Context) GetNumber(val value.Value) (float64, bool) {
	if i, ok := val.ToInt(); ok {
		return float64(i), true
	}
	idx, ok := val.ToPtr()
	if !ok || ctx.Arena.KindOf(idx) != heap.KindBoxedFloat {
		return 0, false
	}
	return ctx.Arena.Float(idx), true
}

// NewNativeFunction wraps a registry id (pkg/runtime's Go-function
// table) and declared arity as a callable heap value.
func (ctx *Context) NewNativeFunction(registryID uint32, length int) (value.Value, error) {
	idx, err := ctx.Arena.NewNativeFunction(registryID, length)
	if err != nil {
		return value.Undefined, err
	}
	return value.FromPtr(idx), nil
}

// SetObjectPrototype rewrites obj's prototype link in place.
func (ctx *Context) SetObjectPrototype(obj, proto value.Value) {
	idx, ok := obj.ToPtr()
	if !ok {
		return
	}
	ctx.Arena.SetObjectPrototype(idx, proto)
}

// GlobalProperty looks up name on the global object, searching its
// prototype chain.
func (ctx *Context) GlobalProperty(name string) (value.Value, bool) {
	a, ok := ctx.Atoms.Lookup(name)
	if !ok {
		return value.Undefined, false
	}
	return ctx.GetProperty(ctx.Global, a)
}

// SetGlobalProperty defines or overwrites name as an own, writable,
// enumerable, configurable property of the global object.
func (ctx *Context) SetGlobalProperty(name string, v value.Value) error {
	a := ctx.Atoms.Intern(name)
	return ctx.SetOwnProperty(ctx.Global, a, v, heap.DefaultDataPropFlags)
}

// ownTable returns the property-table slot for idx's kind, and whether
// that kind carries a prototype link of its own (only Object does —
// the three callable kinds share a single implicit prototype,
// Function.prototype, which GetProperty falls back to explicitly).
// Returns ok=false for any kind that isn't an object or callable (a
// String, BoxedFloat, etc — the only heap kinds a JS Value can ever
// observe are these plus callables, so anything else reaching here is
// a defensive no-property-bag case, e.g. the GC's internal kinds).
func (ctx *Context) ownTable(idx value.HeapIndex) (get func() value.Value, set func(value.Value), hasOwnProtoLink bool, ok bool) {
	switch ctx.Arena.KindOf(idx) {
	case heap.KindObject:
		return func() value.Value { return ctx.Arena.ObjectPropertyTable(idx) },
			func(v value.Value) { ctx.Arena.SetObjectPropertyTable(idx, v) }, true, true
	case heap.KindNativeFunction:
		return func() value.Value { return ctx.Arena.NativeFunctionPropertyTable(idx) },
			func(v value.Value) { ctx.Arena.SetNativeFunctionPropertyTable(idx, v) }, false, true
	case heap.KindBytecodeFunction:
		return func() value.Value { return ctx.Arena.BytecodeFunctionPropertyTable(idx) },
			func(v value.Value) { ctx.Arena.SetBytecodeFunctionPropertyTable(idx, v) }, false, true
	case heap.KindClosure:
		return func() value.Value { return ctx.Arena.ClosurePropertyTable(idx) },
			func(v value.Value) { ctx.Arena.SetClosurePropertyTable(idx, v) }, false, true
	default:
		return nil, nil, false, false
	}
}

// GetProperty looks up atom on obj, walking the prototype chain. It
// returns value.Undefined, false when the property is not found
// anywhere on the chain. Every callable kind (NativeFunction,
// BytecodeFunction, Closure) is treated as an object whose implicit
// prototype is FunctionProto, so `fn.call`/`fn.apply`/`fn.bind` resolve
// through the ordinary own-property-miss path pkg/runtime wires up —
// matching JavaScript's "functions are objects too" rather than giving
// callables a second, parallel property-lookup path.
func (ctx *Context) GetProperty(obj value.Value, a atom.Atom) (value.Value, bool) {
	v, _, _, found := ctx.FindPropertyAlongChain(obj, a)
	return v, found
}

// FindPropertyAlongChain is GetProperty's chain-walking implementation,
// additionally surfacing the winning entry's setter slot and flags —
// pkg/vm's getProp/setProp need PropAccessorGet/PropAccessorSet to
// decide whether the returned value is data to use directly or a
// getter/setter function to invoke through the call protocol (accessor
// invocation belongs to pkg/vm, not pkg/context).
func (ctx *Context) FindPropertyAlongChain(obj value.Value, a atom.Atom) (v, setter value.Value, flags heap.PropFlags, found bool) {
	cur := obj
	for {
		idx, ok := cur.ToPtr()
		if !ok {
			return value.Undefined, value.Undefined, 0, false
		}
		get, _, hasOwnProtoLink, tableOK := ctx.ownTable(idx)
		if !tableOK {
			return value.Undefined, value.Undefined, 0, false
		}
		tableIdx, hasTable := get().ToPtr()
		if hasTable {
			if entry, entryFound := ctx.Arena.PropertyTableLookup(tableIdx, uint32(a)); entryFound {
				// The entry's main value slot holds the getter for an
				// accessor property (or the data value for a plain
				// one); PropertyTableSetterAt holds the setter, unused
				// for a plain data property.
				_, val, entryFlags := ctx.Arena.PropertyTableEntryAt(tableIdx, int(entry))
				set := ctx.Arena.PropertyTableSetterAt(tableIdx, int(entry))
				return val, set, entryFlags, true
			}
		}
		if hasOwnProtoLink {
			cur = ctx.Arena.ObjectPrototype(idx)
			continue
		}
		if value.RawEquals(cur, ctx.FunctionProto) {
			return value.Undefined, value.Undefined, 0, false
		}
		cur = ctx.FunctionProto
	}
}

// SetOwnProperty defines or overwrites an own property on obj directly
// (no prototype-chain walk, no setter invocation — that policy belongs
// to pkg/vm's PutField/SetField opcodes).
func (ctx *Context) SetOwnProperty(obj value.Value, a atom.Atom, v value.Value, flags heap.PropFlags) error {
	idx, ok := obj.ToPtr()
	if !ok {
		return errNotAnObject
	}
	get, set, _, tableOK := ctx.ownTable(idx)
	if !tableOK {
		return errNotAnObject
	}
	tableIdx, hasTable := get().ToPtr()
	if !hasTable {
		newIdx, err := ctx.Arena.NewPropertyTable(0)
		if err != nil {
			return err
		}
		tableIdx = newIdx
	}
	newTableIdx, err := ctx.Arena.PropertyTableSet(tableIdx, uint32(a), v, flags)
	if err != nil {
		return err
	}
	set(value.FromPtr(newTableIdx))
	return nil
}

// DefineAccessorProperty installs atom a on obj as an accessor property
// (§4.3.2, §4.5.3): getter and/or setter, per hasGetter/hasSetter,
// merged onto any existing entry for a so that `{get x(){}, set x(v){}}`
// and a two-step Object.defineProperty both end up with both halves
// wired, whichever call installs the second.
func (ctx *Context) DefineAccessorProperty(obj value.Value, a atom.Atom, getter, setter value.Value, hasGetter, hasSetter bool) error {
	idx, ok := obj.ToPtr()
	if !ok {
		return errNotAnObject
	}
	get, set, _, tableOK := ctx.ownTable(idx)
	if !tableOK {
		return errNotAnObject
	}
	tableIdx, hasTable := get().ToPtr()
	if !hasTable {
		newIdx, err := ctx.Arena.NewPropertyTable(0)
		if err != nil {
			return err
		}
		tableIdx = newIdx
	}
	newTableIdx, err := ctx.Arena.PropertyTableDefineAccessor(tableIdx, uint32(a), getter, setter, hasGetter, hasSetter)
	if err != nil {
		return err
	}
	set(value.FromPtr(newTableIdx))
	return nil
}

// FindOwnProperty reports whether obj directly (not via its prototype
// chain) carries atom a.
func (ctx *Context) FindOwnProperty(obj value.Value, a atom.Atom) (value.Value, heap.PropFlags, bool) {
	idx, ok := obj.ToPtr()
	if !ok {
		return value.Undefined, 0, false
	}
	get, _, _, tableOK := ctx.ownTable(idx)
	if !tableOK {
		return value.Undefined, 0, false
	}
	tableIdx, hasTable := get().ToPtr()
	if !hasTable {
		return value.Undefined, 0, false
	}
	entry, found := ctx.Arena.PropertyTableLookup(tableIdx, uint32(a))
	if !found {
		return value.Undefined, 0, false
	}
	_, v, flags := ctx.Arena.PropertyTableEntryAt(tableIdx, int(entry))
	return v, flags, true
}

// DeleteOwnProperty removes atom a from obj's own property table, if
// present. Reports whether anything was removed.
func (ctx *Context) DeleteOwnProperty(obj value.Value, a atom.Atom) bool {
	idx, ok := obj.ToPtr()
	if !ok {
		return false
	}
	get, _, _, tableOK := ctx.ownTable(idx)
	if !tableOK {
		return false
	}
	tableIdx, hasTable := get().ToPtr()
	if !hasTable {
		return false
	}
	return ctx.Arena.PropertyTableDelete(tableIdx, uint32(a))
}

var errNotAnObject = contextError("context: value is not an object")

type contextError string

func (e contextError) Error() string { return string(e) }
