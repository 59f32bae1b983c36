package heap

import (
	"encoding/binary"
	"math"

	"microjs/pkg/value"
)

// This file implements the typed accessors for each heap object kind
// described in SPEC_FULL.md §3.2. Every accessor reads/writes raw bytes
// through the owning Arena at a HeapIndex's current offset; none of them
// hold the offset across a call that might trigger GC.

// ---- String ----------------------------------------------------------

const stringHeaderSize = 8 // length u32, flags u8, pad[3]

const (
	strFlagASCII     = 1 << 0
	strFlagAllDigits = 1 << 1
)

// NewString allocates a String object holding the UTF-8 bytes of s.
func (a *Arena) NewString(s string) (value.HeapIndex, error) {
	idx, err := a.Alloc(stringHeaderSize+len(s), KindString)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint32(p[0:4], uint32(len(s)))
	var flags byte
	if isASCII(s) {
		flags |= strFlagASCII
	}
	if len(s) > 0 && isAllDigits(s) {
		flags |= strFlagAllDigits
	}
	p[4] = flags
	copy(p[stringHeaderSize:], s)
	return idx, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// StringBytes returns the raw UTF-8 payload of a String object.
func (a *Arena) StringBytes(idx value.HeapIndex) []byte {
	p := a.payload(idx)
	n := binary.LittleEndian.Uint32(p[0:4])
	return p[stringHeaderSize : stringHeaderSize+n]
}

// StringValue returns the Go string view of a String object's payload.
func (a *Arena) StringValue(idx value.HeapIndex) string {
	return string(a.StringBytes(idx))
}

// StringIsASCII reports the cached ASCII flag.
func (a *Arena) StringIsASCII(idx value.HeapIndex) bool {
	return a.payload(idx)[4]&strFlagASCII != 0
}

// StringIsAllDigits reports the cached all-digits flag (used to
// fast-path numeric-string coercions and array index detection).
func (a *Arena) StringIsAllDigits(idx value.HeapIndex) bool {
	return a.payload(idx)[4]&strFlagAllDigits != 0
}

// ---- BoxedFloat --------------------------------------------------------

// NewBoxedFloat allocates a 64-bit float for values that don't fit the
// inline integer range or are non-integral.
func (a *Arena) NewBoxedFloat(f float64) (value.HeapIndex, error) {
	idx, err := a.Alloc(8, KindBoxedFloat)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(a.payload(idx), math.Float64bits(f))
	return idx, nil
}

// Float returns the boxed float value.
func (a *Arena) Float(idx value.HeapIndex) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(a.payload(idx)))
}

// ---- ValueArray --------------------------------------------------------

const valueArrayHeaderSize = 8 // capacity u32, count u32

// NewValueArray allocates a packed array of Values with the given fixed
// capacity (used internally — constant pool snapshots, captured-variable
// arrays — not for JavaScript arrays, which are Objects with numeric
// keys).
func (a *Arena) NewValueArray(capacity int) (value.HeapIndex, error) {
	idx, err := a.Alloc(valueArrayHeaderSize+capacity*8, KindValueArray)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(a.payload(idx)[0:4], uint32(capacity))
	return idx, nil
}

func (a *Arena) ValueArrayCapacity(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint32(a.payload(idx)[0:4]))
}

func (a *Arena) ValueArrayCount(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint32(a.payload(idx)[4:8]))
}

func (a *Arena) ValueArraySetCount(idx value.HeapIndex, n int) {
	binary.LittleEndian.PutUint32(a.payload(idx)[4:8], uint32(n))
}

func (a *Arena) ValueArrayGet(idx value.HeapIndex, i int) value.Value {
	p := a.payload(idx)
	off := valueArrayHeaderSize + i*8
	return value.Value(binary.LittleEndian.Uint64(p[off : off+8]))
}

func (a *Arena) ValueArraySet(idx value.HeapIndex, i int, v value.Value) {
	p := a.payload(idx)
	off := valueArrayHeaderSize + i*8
	binary.LittleEndian.PutUint64(p[off:off+8], uint64(v))
}

// ValueArrayPush appends v, growing count by one. The caller is
// responsible for ensuring i < capacity.
func (a *Arena) ValueArrayPush(idx value.HeapIndex, v value.Value) {
	n := a.ValueArrayCount(idx)
	a.ValueArraySet(idx, n, v)
	a.ValueArraySetCount(idx, n+1)
}

// ---- ByteArray ---------------------------------------------------------

const byteArrayHeaderSize = 8 // capacity u32, count u32

// NewByteArray allocates a raw byte buffer, used to hold bytecode
// containers on the heap.
func (a *Arena) NewByteArray(capacity int) (value.HeapIndex, error) {
	idx, err := a.Alloc(byteArrayHeaderSize+capacity, KindByteArray)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(a.payload(idx)[0:4], uint32(capacity))
	return idx, nil
}

// NewByteArrayFrom allocates a ByteArray and copies data into it.
func (a *Arena) NewByteArrayFrom(data []byte) (value.HeapIndex, error) {
	idx, err := a.NewByteArray(len(data))
	if err != nil {
		return 0, err
	}
	copy(a.ByteArrayBytes(idx), data)
	a.ByteArraySetCount(idx, len(data))
	return idx, nil
}

func (a *Arena) ByteArrayCapacity(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint32(a.payload(idx)[0:4]))
}

func (a *Arena) ByteArrayCount(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint32(a.payload(idx)[4:8]))
}

func (a *Arena) ByteArraySetCount(idx value.HeapIndex, n int) {
	binary.LittleEndian.PutUint32(a.payload(idx)[4:8], uint32(n))
}

// ByteArrayBytes returns the full capacity backing slice; callers index
// up to Count() for the logical content.
func (a *Arena) ByteArrayBytes(idx value.HeapIndex) []byte {
	cap := a.ByteArrayCapacity(idx)
	return a.payload(idx)[byteArrayHeaderSize : byteArrayHeaderSize+cap]
}

// ---- Object --------------------------------------------------------

const objectHeaderSize = 24 // prototype Value(8) proptable Value(8) extensible u8 + pad[7]

// NewObject allocates an object with the given prototype (use
// value.Null to terminate the chain) and no property table yet.
func (a *Arena) NewObject(proto value.Value) (value.HeapIndex, error) {
	idx, err := a.Alloc(objectHeaderSize, KindObject)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint64(p[0:8], uint64(proto))
	binary.LittleEndian.PutUint64(p[8:16], uint64(value.Null))
	p[16] = 1 // extensible by default
	return idx, nil
}

func (a *Arena) ObjectPrototype(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[0:8]))
}

func (a *Arena) SetObjectPrototype(idx value.HeapIndex, proto value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx)[0:8], uint64(proto))
}

func (a *Arena) ObjectPropertyTable(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[8:16]))
}

func (a *Arena) SetObjectPropertyTable(idx value.HeapIndex, table value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx)[8:16], uint64(table))
}

func (a *Arena) ObjectExtensible(idx value.HeapIndex) bool {
	return a.payload(idx)[16] != 0
}

func (a *Arena) SetObjectExtensible(idx value.HeapIndex, ext bool) {
	p := a.payload(idx)
	if ext {
		p[16] = 1
	} else {
		p[16] = 0
	}
}

// ---- NativeFunction --------------------------------------------------

const nativeFunctionHeaderSize = 16 // registry id u32, declared length u32, proptable Value(8)

// NewNativeFunction allocates a NativeFunction block that refers to
// registryID in the Context's native function registry (the registry
// itself lives in Go-land, not in the arena, since Go function values
// cannot be serialized into a byte buffer — this is the Go-idiomatic
// reading of spec.md §3.2's "function pointer plus a declared argument
// count hint"). Like every other callable kind, it carries a lazily
// created own-property table (value.Null until first write) so
// JavaScript's "functions are objects too" holds for natives: a native
// constructor installed by pkg/runtime can still be given a "prototype"
// or arbitrary static properties (Array.isArray, Object.keys, ...).
func (a *Arena) NewNativeFunction(registryID uint32, length int) (value.HeapIndex, error) {
	idx, err := a.Alloc(nativeFunctionHeaderSize, KindNativeFunction)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint32(p[0:4], registryID)
	binary.LittleEndian.PutUint32(p[4:8], uint32(length))
	binary.LittleEndian.PutUint64(p[8:16], uint64(value.Null))
	return idx, nil
}

func (a *Arena) NativeFunctionRegistryID(idx value.HeapIndex) uint32 {
	return binary.LittleEndian.Uint32(a.payload(idx)[0:4])
}

func (a *Arena) NativeFunctionLength(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint32(a.payload(idx)[4:8]))
}

func (a *Arena) NativeFunctionPropertyTable(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[8:16]))
}

func (a *Arena) SetNativeFunctionPropertyTable(idx value.HeapIndex, table value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx)[8:16], uint64(table))
}

// ---- BytecodeFunction --------------------------------------------------

const bytecodeFunctionHeaderSize = 24 // container Value(8) paramCount u8 localCount u8 pad[6] proptable Value(8)

// NewBytecodeFunction allocates a function that shares a bytecode
// container but has no captured variables. container is an opaque
// handle pkg/vm hands back from its compiled-container table (an
// inline integer Value, not a heap reference) rather than a decoded
// *bytecode.Container: keeping that table in Go-land is what lets a
// closure's Function.Captures wiring (never part of the on-disk §6.1
// layout) survive for the lifetime of the process that compiled it.
// Like NativeFunction it carries a lazily created own-property table, so
// a user-defined function can hold a "prototype" object and arbitrary
// static properties the way `function F() {}` / `F.prototype.m = ...`
// / `F.staticThing = ...` require.
func (a *Arena) NewBytecodeFunction(container value.Value, paramCount, localCount int) (value.HeapIndex, error) {
	idx, err := a.Alloc(bytecodeFunctionHeaderSize, KindBytecodeFunction)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint64(p[0:8], uint64(container))
	p[8] = byte(paramCount)
	p[9] = byte(localCount)
	binary.LittleEndian.PutUint64(p[16:24], uint64(value.Null))
	return idx, nil
}

func (a *Arena) BytecodeFunctionContainer(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[0:8]))
}

func (a *Arena) BytecodeFunctionParamCount(idx value.HeapIndex) int {
	return int(a.payload(idx)[8])
}

func (a *Arena) BytecodeFunctionLocalCount(idx value.HeapIndex) int {
	return int(a.payload(idx)[9])
}

func (a *Arena) BytecodeFunctionPropertyTable(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[16:24]))
}

func (a *Arena) SetBytecodeFunctionPropertyTable(idx value.HeapIndex, table value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx)[16:24], uint64(table))
}

// ---- Closure --------------------------------------------------------

const closureHeaderSize = 24 // container Value(8) paramCount u8 localCount u8 capturedCount u16 pad[4] proptable Value(8)

// NewClosure allocates a closure: a bytecode function plus an inline
// array of captured VarCell references (§3.2), plus the same lazily
// created own-property table every other callable kind carries. See
// NewBytecodeFunction for what container is.
func (a *Arena) NewClosure(container value.Value, paramCount, localCount, capturedCount int) (value.HeapIndex, error) {
	idx, err := a.Alloc(closureHeaderSize+capturedCount*8, KindClosure)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint64(p[0:8], uint64(container))
	p[8] = byte(paramCount)
	p[9] = byte(localCount)
	binary.LittleEndian.PutUint16(p[10:12], uint16(capturedCount))
	binary.LittleEndian.PutUint64(p[16:24], uint64(value.Null))
	return idx, nil
}

func (a *Arena) ClosurePropertyTable(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[16:24]))
}

func (a *Arena) SetClosurePropertyTable(idx value.HeapIndex, table value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx)[16:24], uint64(table))
}

func (a *Arena) ClosureContainer(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)[0:8]))
}

func (a *Arena) ClosureParamCount(idx value.HeapIndex) int {
	return int(a.payload(idx)[8])
}

func (a *Arena) ClosureLocalCount(idx value.HeapIndex) int {
	return int(a.payload(idx)[9])
}

func (a *Arena) ClosureCapturedCount(idx value.HeapIndex) int {
	return int(binary.LittleEndian.Uint16(a.payload(idx)[10:12]))
}

func (a *Arena) ClosureCapturedGet(idx value.HeapIndex, i int) value.Value {
	p := a.payload(idx)
	off := closureHeaderSize + i*8
	return value.Value(binary.LittleEndian.Uint64(p[off : off+8]))
}

func (a *Arena) ClosureCapturedSet(idx value.HeapIndex, i int, cell value.Value) {
	p := a.payload(idx)
	off := closureHeaderSize + i*8
	binary.LittleEndian.PutUint64(p[off:off+8], uint64(cell))
}

// ---- VarCell --------------------------------------------------------

// NewVarCell allocates a one-slot heap record holding a captured
// variable, shared between the enclosing frame and any closures that
// capture it.
func (a *Arena) NewVarCell(initial value.Value) (value.HeapIndex, error) {
	idx, err := a.Alloc(8, KindVarCell)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(a.payload(idx), uint64(initial))
	return idx, nil
}

func (a *Arena) VarCellGet(idx value.HeapIndex) value.Value {
	return value.Value(binary.LittleEndian.Uint64(a.payload(idx)))
}

func (a *Arena) VarCellSet(idx value.HeapIndex, v value.Value) {
	binary.LittleEndian.PutUint64(a.payload(idx), uint64(v))
}
