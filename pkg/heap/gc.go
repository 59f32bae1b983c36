package heap

import "microjs/pkg/value"

// This file implements the mark+compact collector (§4.2). It is adapted
// to the indirect-handle strategy chosen in arena.go: instead of a
// generic "rewrite every Value that points into the heap" phase, only
// the handle table itself is remapped, since every Value in the arena
// already refers to a block through a stable HeapIndex rather than a
// raw byte offset.
//
// The four phases run in sequence, stop-the-world:
//
//  1. Mark: DFS from the root set, visiting each block's children per
//     its Kind, setting the Mark bit in its header.
//  2. Compute forwarding: a single linear walk over the arena assigning
//     each marked block its new (lower-or-equal) offset.
//  3. Remap handles: for every live handle, point it at the block's
//     forwarded offset; free the handle slot for every handle whose
//     block did not survive.
//  4. Slide: copy each marked block down to its forwarding offset and
//     reset the bump pointer to the new high-water mark.

// Roots supplies the collector's root set: every Value the embedder or
// VM currently holds outside the heap itself (globals, the VM's value
// stack and call frames, the current exception slot, pinned locals).
type Roots interface {
	// Walk calls visit once for every root Value. Non-pointer Values are
	// ignored by the collector, so Walk need not filter them itself.
	Walk(visit func(value.Value))
}

// Collect runs a full mark+compact cycle using roots as the root set.
func (a *Arena) Collect(roots Roots) {
	a.clearMarks()
	roots.Walk(func(v value.Value) {
		if idx, ok := v.ToPtr(); ok {
			a.mark(idx)
		}
	})
	a.computeForwarding()
	a.remapHandles()
	a.slide()
}

func (a *Arena) clearMarks() {
	var off uint32
	for off < a.used {
		h := readHeader(a.buf, off)
		h.Mark = false
		h.Forward = forwardNone
		writeHeader(a.buf, off, h)
		off += h.Size
	}
}

// mark performs the DFS, using the block header's Mark bit both as the
// "visited" flag and as the collector's worklist guard (no separate
// visited set is needed).
func (a *Arena) mark(idx value.HeapIndex) {
	off := a.handles[idx]
	if off == forwardNone {
		return
	}
	h := readHeader(a.buf, off)
	if h.Mark {
		return
	}
	h.Mark = true
	writeHeader(a.buf, off, h)

	a.markChildren(idx, h.Kind)
}

func (a *Arena) markValue(v value.Value) {
	if idx, ok := v.ToPtr(); ok {
		a.mark(idx)
	}
}

// markChildren dispatches to each kind's traversal, per §4.2's phase-1
// table: String/BoxedFloat/ByteArray are leaves; ValueArray marks every
// slot; Object marks its prototype and property table; PropertyTable
// marks every entry's value and accessor setter; NativeFunction marks
// its own property table (its Go function itself lives outside the
// heap); BytecodeFunction marks its container and own property table;
// Closure marks its container, own property table, and every captured
// VarCell; VarCell marks its held Value.
func (a *Arena) markChildren(idx value.HeapIndex, kind Kind) {
	switch kind {
	case KindString, KindBoxedFloat, KindByteArray:
		// leaves: no heap references held.

	case KindValueArray:
		n := a.ValueArrayCount(idx)
		for i := 0; i < n; i++ {
			a.markValue(a.ValueArrayGet(idx, i))
		}

	case KindObject:
		a.markValue(a.ObjectPrototype(idx))
		a.markValue(a.ObjectPropertyTable(idx))

	case KindPropertyTable:
		n := a.PropertyTableCount(idx)
		for i := 0; i < n; i++ {
			_, v, flags := a.PropertyTableEntryAt(idx, i)
			a.markValue(v)
			if flags&PropAccessorSet != 0 {
				a.markValue(a.PropertyTableSetterAt(idx, i))
			}
		}

	case KindNativeFunction:
		a.markValue(a.NativeFunctionPropertyTable(idx))

	case KindBytecodeFunction:
		a.markValue(a.BytecodeFunctionContainer(idx))
		a.markValue(a.BytecodeFunctionPropertyTable(idx))

	case KindClosure:
		a.markValue(a.ClosureContainer(idx))
		a.markValue(a.ClosurePropertyTable(idx))
		n := a.ClosureCapturedCount(idx)
		for i := 0; i < n; i++ {
			a.markValue(a.ClosureCapturedGet(idx, i))
		}

	case KindVarCell:
		a.markValue(a.VarCellGet(idx))
	}
}

// computeForwarding walks the arena low to high, assigning every marked
// block the offset it will occupy after sliding (a running sum of the
// sizes of the marked blocks seen so far).
func (a *Arena) computeForwarding() {
	var off uint32
	var next uint32
	for off < a.used {
		h := readHeader(a.buf, off)
		if h.Mark {
			h.Forward = next
			writeHeader(a.buf, off, h)
			next += h.Size
		}
		off += h.Size
	}
}

// remapHandles updates every live handle to its block's forwarded
// offset, and frees the handle slots of blocks that did not survive —
// replacing the generic "rewrite every heap reference" phase that a
// direct (non-indirect) strategy would need (§4.1).
func (a *Arena) remapHandles() {
	var off uint32
	for off < a.used {
		h := readHeader(a.buf, off)
		if h.Mark {
			a.handles[h.OwnerHandle] = h.Forward
		} else {
			a.handles[h.OwnerHandle] = forwardNone
			a.freeList = append(a.freeList, h.OwnerHandle)
		}
		off += h.Size
	}
}

// slide copies every marked block down to its forwarding offset (low to
// high, so a block's forward offset is always <= its current offset,
// and the overlapping-region copy behaves like memmove) and resets the
// bump pointer to the new high-water mark.
func (a *Arena) slide() {
	var off uint32
	var high uint32
	for off < a.used {
		h := readHeader(a.buf, off)
		if h.Mark {
			if h.Forward != off {
				copy(a.buf[h.Forward:h.Forward+h.Size], a.buf[off:off+h.Size])
				nh := readHeader(a.buf, h.Forward)
				nh.Forward = forwardNone
				writeHeader(a.buf, h.Forward, nh)
			}
			high = h.Forward + h.Size
		}
		off += h.Size
	}
	a.used = high
}
