// Package heap implements the bump-allocated arena, block headers, and
// mark+compact garbage collector that back every JavaScript heap object in
// microjs (SPEC_FULL.md §4.1, §4.2, §3.2). It also defines the heap object
// kinds themselves (String, BoxedFloat, ValueArray, ByteArray, Object,
// PropertyTable, NativeFunction, BytecodeFunction, Closure, VarCell) since
// the GC's mark phase needs to know each kind's internal layout to trace
// it — the same tight coupling mquickjs's memory module and object module
// share.
//
// Every allocation is reached through a stable, opaque value.HeapIndex
// (really an indirect handle, see Arena) rather than a raw byte offset, so
// Values that reference heap blocks never need to change when GC moves
// the underlying bytes (§4.1's "indirect" strategy).
package heap

// Kind identifies the shape of a heap block's payload.
type Kind uint8

const (
	KindString Kind = iota
	KindBoxedFloat
	KindValueArray
	KindByteArray
	KindObject
	KindPropertyTable
	KindNativeFunction
	KindBytecodeFunction
	KindClosure
	KindVarCell
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindBoxedFloat:
		return "BoxedFloat"
	case KindValueArray:
		return "ValueArray"
	case KindByteArray:
		return "ByteArray"
	case KindObject:
		return "Object"
	case KindPropertyTable:
		return "PropertyTable"
	case KindNativeFunction:
		return "NativeFunction"
	case KindBytecodeFunction:
		return "BytecodeFunction"
	case KindClosure:
		return "Closure"
	case KindVarCell:
		return "VarCell"
	default:
		return "Unknown"
	}
}
