package compiler

import (
	"encoding/binary"
	"math"

	"microjs/pkg/bytecode"
)

// emitter is the low-level bytecode-builder half of the compiler: one
// instruction stream, one constant pool, one per-container atom table,
// and the nested function subtable (§6.1), plus a label/backpatch
// mechanism for the 4-byte relative jump displacements §4.5.1 opcodes
// use. compiler.go's statement/expression codegen is the only caller.
type emitter struct {
	code      []byte
	constants []bytecode.Constant
	atoms     []string
	atomIdx   map[string]int
	functions []bytecode.Function
}

// captureSource mirrors bytecode.CaptureInfo during codegen; see that
// type's doc comment for what it records and why it isn't serialized.
type captureSource struct {
	fromOwnCell bool
	index       int
}

func newEmitter() *emitter {
	return &emitter{atomIdx: make(map[string]int)}
}

func (e *emitter) pos() int { return len(e.code) }

func (e *emitter) atom(name string) int {
	if i, ok := e.atomIdx[name]; ok {
		return i
	}
	i := len(e.atoms)
	e.atoms = append(e.atoms, name)
	e.atomIdx[name] = i
	return i
}

func (e *emitter) constant(c bytecode.Constant) int {
	e.constants = append(e.constants, c)
	return len(e.constants) - 1
}

// addFunction registers a compiled nested function and its capture
// wiring, returning its index into this container's function subtable.
func (e *emitter) addFunction(fn bytecode.Function, captures []captureSource) int {
	fn.Captures = make([]bytecode.CaptureInfo, len(captures))
	for i, c := range captures {
		fn.Captures[i] = bytecode.CaptureInfo{FromOwnCell: c.fromOwnCell, Index: c.index}
	}
	e.functions = append(e.functions, fn)
	return len(e.functions) - 1
}

func (e *emitter) container() *bytecode.Container {
	return &bytecode.Container{
		Constants: e.constants,
		Atoms:     e.atoms,
		Functions: e.functions,
		Code:      e.code,
	}
}

// --- raw emission ---

func (e *emitter) op(o bytecode.Opcode) { e.code = append(e.code, byte(o)) }

func (e *emitter) u8(v int) { e.code = append(e.code, byte(v)) }

func (e *emitter) u16(v int) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	e.code = append(e.code, b[:]...)
}

func (e *emitter) u32(v int) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.code = append(e.code, b[:]...)
}

func (e *emitter) opU8(o bytecode.Opcode, v int)  { e.op(o); e.u8(v) }
func (e *emitter) opU16(o bytecode.Opcode, v int) { e.op(o); e.u16(v) }

// --- jumps ---

// jumpPlaceholder emits opcode o followed by a 4-byte zero placeholder
// and returns the placeholder's position, to be resolved later by
// patchHere (displacement relative to the byte immediately following
// the 4-byte operand — spec.md doesn't pin the exact reference point,
// so this is a documented implementation choice, consistent throughout
// this emitter).
func (e *emitter) jumpPlaceholder(o bytecode.Opcode) int {
	e.op(o)
	ph := e.pos()
	e.u32(0)
	return ph
}

// patchHere resolves a placeholder from jumpPlaceholder to the current
// position.
func (e *emitter) patchHere(ph int) {
	e.patchTo(ph, e.pos())
}

// patchTo resolves a placeholder from jumpPlaceholder to an already-
// known target position (used for backward jumps, e.g. loop heads).
func (e *emitter) patchTo(ph, target int) {
	disp := int32(target - (ph + 4))
	binary.LittleEndian.PutUint32(e.code[ph:ph+4], uint32(disp))
}

// jumpBack emits a jump whose target is already known (behind the
// current position), such as a loop condition re-check.
func (e *emitter) jumpBack(o bytecode.Opcode, target int) {
	e.op(o)
	disp := int32(target - (e.pos() + 4))
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(disp))
	e.code = append(e.code, b[:]...)
}

// --- numeric literal emission policy (§4.3.3) ---

// pushNumber emits the narrowest encoding for a numeric literal: the
// inline fast-path opcodes for -1..7, i8/i16/i32 range checks in order,
// and finally a constant-pool push (narrowest index width) for anything
// that doesn't fit or isn't an exact integer.
func (e *emitter) pushNumber(f float64) {
	if i := int64(f); float64(i) == f && !isNegZero(f) {
		switch i {
		case -1:
			e.op(bytecode.OpPushMinus1)
			return
		case 0:
			e.op(bytecode.OpPush0)
			return
		case 1:
			e.op(bytecode.OpPush1)
			return
		case 2:
			e.op(bytecode.OpPush2)
			return
		case 3:
			e.op(bytecode.OpPush3)
			return
		case 4:
			e.op(bytecode.OpPush4)
			return
		case 5:
			e.op(bytecode.OpPush5)
			return
		case 6:
			e.op(bytecode.OpPush6)
			return
		case 7:
			e.op(bytecode.OpPush7)
			return
		}
		if i >= math.MinInt8 && i <= math.MaxInt8 {
			e.op(bytecode.OpPushI8)
			e.code = append(e.code, byte(int8(i)))
			return
		}
		if i >= math.MinInt16 && i <= math.MaxInt16 {
			e.op(bytecode.OpPushI16)
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(int16(i)))
			e.code = append(e.code, b[:]...)
			return
		}
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			e.op(bytecode.OpPushI32)
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(int32(i)))
			e.code = append(e.code, b[:]...)
			return
		}
	}
	if math.IsNaN(f) {
		e.op(bytecode.OpPushNaN)
		return
	}
	if math.IsInf(f, 1) {
		e.op(bytecode.OpPushInfinity)
		return
	}
	if math.IsInf(f, -1) {
		e.op(bytecode.OpPushNegInfinity)
		return
	}
	idx := e.constant(bytecode.NewFloatConstant(f))
	if idx <= 0xff {
		e.opU8(bytecode.OpPushConst8, idx)
	} else {
		e.opU16(bytecode.OpPushConst16, idx)
	}
}

func isNegZero(f float64) bool { return f == 0 && math.Signbit(f) }

// pushString emits a string literal via the container's atom table
// (narrowest index width), reusing the same interning table identifiers
// use — consistent with §6.1's single per-container atom table serving
// both roles.
func (e *emitter) pushString(s string) {
	idx := e.atom(s)
	if idx <= 0xff {
		e.opU8(bytecode.OpPushAtomString8, idx)
	} else {
		e.opU16(bytecode.OpPushAtomString16, idx)
	}
}

// atomRef8or16 emits the narrowest get/put/set-by-atom instruction from
// a pair of opcodes distinguished only by 8-bit vs 16-bit operand width
// (global/field access families, §4.5.3).
func (e *emitter) atomRef8or16(op8, op16 bytecode.Opcode, name string) {
	idx := e.atom(name)
	if idx <= 0xff {
		e.opU8(op8, idx)
	} else {
		e.opU16(op16, idx)
	}
}
