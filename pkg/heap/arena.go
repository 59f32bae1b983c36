package heap

import (
	"encoding/binary"
	"errors"

	"microjs/pkg/value"
)

// ErrOutOfMemory is returned by Alloc when the compacted free region is
// too small to satisfy the request (§4.2 "Failure model": collection
// never fails, but a post-collection Alloc can).
var ErrOutOfMemory = errors.New("heap: out of memory")

// headerSize is the fixed block header width: Kind(1) Mark(1) pad(2)
// Size(4) OwnerHandle(4) Forward(4), 16 bytes — keeps payloads starting on
// an 8-byte (Value word) boundary.
const headerSize = 16

const forwardNone = ^uint32(0)

// blockHeader is the fixed-size header every allocation carries,
// preceding its payload (§3.2).
type blockHeader struct {
	Kind        Kind
	Mark        bool
	Size        uint32 // total bytes including header
	OwnerHandle uint32 // handle slot this block is currently referenced by
	Forward     uint32 // scratch: new offset assigned during compaction
}

func readHeader(buf []byte, offset uint32) blockHeader {
	b := buf[offset:]
	return blockHeader{
		Kind:        Kind(b[0]),
		Mark:        b[1] != 0,
		Size:        binary.LittleEndian.Uint32(b[4:8]),
		OwnerHandle: binary.LittleEndian.Uint32(b[8:12]),
		Forward:     binary.LittleEndian.Uint32(b[12:16]),
	}
}

func writeHeader(buf []byte, offset uint32, h blockHeader) {
	b := buf[offset:]
	b[0] = byte(h.Kind)
	if h.Mark {
		b[1] = 1
	} else {
		b[1] = 0
	}
	b[2], b[3] = 0, 0
	binary.LittleEndian.PutUint32(b[4:8], h.Size)
	binary.LittleEndian.PutUint32(b[8:12], h.OwnerHandle)
	binary.LittleEndian.PutUint32(b[12:16], h.Forward)
}

// Arena is a single contiguous byte region of fixed capacity, owned by a
// Context, from which every heap block is bump-allocated (§4.1). There is
// no `free`; reclamation happens only through GC.
type Arena struct {
	buf  []byte
	used uint32

	// handles maps a stable value.HeapIndex (a slot in this table) to the
	// block's current byte offset. This is the "indirect" strategy §4.1
	// describes: Values embed a handle, not a byte offset, so compaction
	// never has to rewrite a Value — only this table.
	handles  []uint32
	freeList []uint32
}

// NewArena constructs an arena with the given fixed capacity in bytes.
func NewArena(capacity int) *Arena {
	return &Arena{buf: make([]byte, capacity)}
}

// Size returns the arena's total capacity in bytes.
func (a *Arena) Size() int { return len(a.buf) }

// Used returns the number of bytes currently occupied by live allocations
// (the bump pointer's position; dead-but-uncollected garbage still counts
// until the next GC).
func (a *Arena) Used() int { return int(a.used) }

// Free returns the number of bytes available before the next Alloc would
// fail. Heap accounting invariant (§8.4): Used()+Free() == Size() always.
func (a *Arena) Free() int { return len(a.buf) - int(a.used) }

func align8(n uint32) uint32 { return (n + 7) &^ 7 }

func (a *Arena) allocHandle(offset uint32) value.HeapIndex {
	if n := len(a.freeList); n > 0 {
		slot := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.handles[slot] = offset
		return value.HeapIndex(slot)
	}
	a.handles = append(a.handles, offset)
	return value.HeapIndex(len(a.handles) - 1)
}

// Alloc reserves size bytes of payload for a block of the given kind and
// returns its stable HeapIndex.
func (a *Arena) Alloc(size int, kind Kind) (value.HeapIndex, error) {
	total := align8(headerSize + uint32(size))
	if uint64(a.used)+uint64(total) > uint64(len(a.buf)) {
		return 0, ErrOutOfMemory
	}
	offset := a.used
	a.used += total

	idx := a.allocHandle(offset)
	writeHeader(a.buf, offset, blockHeader{
		Kind:        kind,
		Size:        total,
		OwnerHandle: uint32(idx),
		Forward:     forwardNone,
	})
	// Zero the payload so every field starts from a well-defined value.
	payload := a.buf[offset+headerSize : offset+total]
	for i := range payload {
		payload[i] = 0
	}
	return idx, nil
}

// offsetOf resolves a stable handle to its current byte offset. Panics on
// a handle that was never allocated or has since been collected — that is
// a use-after-free bug in the engine, not a recoverable runtime condition.
func (a *Arena) offsetOf(idx value.HeapIndex) uint32 {
	off := a.handles[idx]
	if off == forwardNone {
		panic("heap: dangling HeapIndex (use after collection)")
	}
	return off
}

// Header returns the block header for idx.
func (a *Arena) Header(idx value.HeapIndex) blockHeader {
	return readHeader(a.buf, a.offsetOf(idx))
}

// KindOf returns the object kind stored at idx.
func (a *Arena) KindOf(idx value.HeapIndex) Kind {
	return a.Header(idx).Kind
}

// payload returns the mutable payload bytes for idx, sized to the
// block's allocation (not to any logical length field within it).
func (a *Arena) payload(idx value.HeapIndex) []byte {
	off := a.offsetOf(idx)
	h := readHeader(a.buf, off)
	return a.buf[off+headerSize : off+h.Size]
}
