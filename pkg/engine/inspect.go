package engine

import (
	"microjs/pkg/heap"
	"microjs/pkg/value"
)

// This file implements §6.3's value-inspection surface: predicates
// (is_int, is_null, is_undefined, is_bool, is_string, is_object,
// is_callable) and extractors (to_int, to_bool, to_number, to_string).
// Most predicates are one-line forwards to pkg/value/pkg/vm methods
// already built for the interpreter itself; IsString and IsCallable
// need the heap kind, since neither is encoded directly in a bare
// Value the way IsInt/IsBool/IsNull/IsUndefined are.

// IsInt reports whether v is an inline integer.
func (e *Engine) IsInt(v value.Value) bool { return v.IsInt() }

// IsNull reports whether v is null.
func (e *Engine) IsNull(v value.Value) bool { return v.IsNull() }

// IsUndefined reports whether v is undefined.
func (e *Engine) IsUndefined(v value.Value) bool { return v.IsUndefined() }

// IsBool reports whether v is true or false.
func (e *Engine) IsBool(v value.Value) bool { return v.IsBool() }

// IsObject reports whether v is a heap reference of any kind (Object,
// Array, NativeFunction, BytecodeFunction, Closure, ...), matching
// crabquick's broader is_object (it does not distinguish "plain
// object" from "function" the way is_callable does).
func (e *Engine) IsObject(v value.Value) bool { return v.IsObject() }

// IsString reports whether v is a heap string.
func (e *Engine) IsString(v value.Value) bool {
	idx, ok := v.ToPtr()
	if !ok {
		return false
	}
	return e.ctx.Arena.KindOf(idx) == heap.KindString
}

// IsCallable reports whether v can appear on the left of a Call
// expression (native function, bytecode function, or closure).
func (e *Engine) IsCallable(v value.Value) bool { return e.vm.IsCallable(v) }

// ToInt extracts v's integer value, coercing through ToNumber and
// truncating toward zero the way a JavaScript ToInt32 conversion would
// for an embedder that just wants a plain int rather than the
// bit-exact int32 pkg/vm.ToInt32 returns.
func (e *Engine) ToInt(v value.Value) (int, error) {
	n, err := e.vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ToBool coerces v to a boolean (§4.5.4's ToBoolean; never fails).
func (e *Engine) ToBool(v value.Value) bool { return e.vm.ToBoolean(v) }

// ToNumber coerces v to a float64 (§4.5.4's ToNumber).
func (e *Engine) ToNumber(v value.Value) (float64, error) { return e.vm.ToNumber(v) }

// ToString coerces v to a Go string (§4.5.4's ToString), copying the
// heap string's contents into a fresh Go string the way crabquick's
// to_string copies into an embedder-supplied buffer.
func (e *Engine) ToString(v value.Value) (string, error) { return e.vm.ToString(v) }
