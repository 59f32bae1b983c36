package heap

import (
	"encoding/binary"

	"microjs/pkg/value"
)

// PropFlags is the per-property flags byte: writable, enumerable,
// configurable, accessor-get, accessor-set, is-var-cell (§3.2).
type PropFlags uint8

const (
	PropWritable PropFlags = 1 << iota
	PropEnumerable
	PropConfigurable
	PropAccessorGet
	PropAccessorSet
	PropIsVarCell
)

// DefaultDataPropFlags are the flags ordinary `obj.x = v` / object-literal
// data properties get: writable, enumerable, configurable.
const DefaultDataPropFlags = PropWritable | PropEnumerable | PropConfigurable

// hashBucketThreshold is the property count at and above which a
// PropertyTable carries a hash bucket array in addition to the linear
// property array (§3.2, §9).
const hashBucketThreshold = 8

const propTableHeaderSize = 16 // count u32, capacity u32, hashMask u32, pad u32
const propEntrySize = 32       // atom u32, value u64, setter u64, next i32, flags u8, pad[3]

const noChain = ^uint32(0)

func nextPow2(n int) uint32 {
	p := uint32(1)
	for int(p) < n {
		p <<= 1
	}
	return p
}

// NewPropertyTable allocates a property table with room for capacity
// entries. Tables sized at or above hashBucketThreshold carry a hash
// bucket array sized to the next power of two; smaller tables rely on
// linear scan, avoiding hash overhead for the common small-object case
// (§9 design notes).
func (a *Arena) NewPropertyTable(capacity int) (value.HeapIndex, error) {
	if capacity < 1 {
		capacity = 1
	}
	bucketCount := uint32(0)
	if capacity >= hashBucketThreshold {
		bucketCount = nextPow2(capacity)
	}
	size := propTableHeaderSize + int(bucketCount)*4 + capacity*propEntrySize
	idx, err := a.Alloc(size, KindPropertyTable)
	if err != nil {
		return 0, err
	}
	p := a.payload(idx)
	binary.LittleEndian.PutUint32(p[4:8], uint32(capacity))
	if bucketCount > 0 {
		binary.LittleEndian.PutUint32(p[8:12], bucketCount-1) // hash mask
		buckets := p[propTableHeaderSize : propTableHeaderSize+bucketCount*4]
		for i := uint32(0); i < bucketCount; i++ {
			binary.LittleEndian.PutUint32(buckets[i*4:i*4+4], noChain)
		}
	}
	return idx, nil
}

func (a *Arena) propTableCount(idx value.HeapIndex) uint32 {
	return binary.LittleEndian.Uint32(a.payload(idx)[0:4])
}

func (a *Arena) propTableSetCount(idx value.HeapIndex, n uint32) {
	binary.LittleEndian.PutUint32(a.payload(idx)[0:4], n)
}

func (a *Arena) propTableCapacity(idx value.HeapIndex) uint32 {
	return binary.LittleEndian.Uint32(a.payload(idx)[4:8])
}

func (a *Arena) propTableHashMask(idx value.HeapIndex) uint32 {
	return binary.LittleEndian.Uint32(a.payload(idx)[8:12])
}

func (a *Arena) propTableBucketCount(idx value.HeapIndex) uint32 {
	mask := a.propTableHashMask(idx)
	if mask == 0 && a.propTableCapacity(idx) < hashBucketThreshold {
		return 0
	}
	return mask + 1
}

func (a *Arena) propTableBuckets(idx value.HeapIndex) []byte {
	n := a.propTableBucketCount(idx)
	p := a.payload(idx)
	return p[propTableHeaderSize : propTableHeaderSize+n*4]
}

func (a *Arena) propTableEntries(idx value.HeapIndex) []byte {
	n := a.propTableBucketCount(idx)
	p := a.payload(idx)
	return p[propTableHeaderSize+n*4:]
}

func entryOffset(i uint32) uint32 { return i * propEntrySize }

// PropertyTableCount returns the number of live properties.
func (a *Arena) PropertyTableCount(idx value.HeapIndex) int {
	return int(a.propTableCount(idx))
}

// PropertyTableEntryAt returns the atom, value and flags of the i'th
// entry in insertion order (0 <= i < Count), for enumeration (§8.9).
func (a *Arena) PropertyTableEntryAt(idx value.HeapIndex, i int) (atom uint32, val value.Value, flags PropFlags) {
	e := a.propTableEntries(idx)
	off := entryOffset(uint32(i))
	atom = binary.LittleEndian.Uint32(e[off : off+4])
	val = value.Value(binary.LittleEndian.Uint64(e[off+4 : off+12]))
	flags = PropFlags(e[off+28])
	return
}

// PropertyTableSetterAt returns the accessor setter value of the i'th
// entry (meaningful only when PropAccessorSet is set).
func (a *Arena) PropertyTableSetterAt(idx value.HeapIndex, i int) value.Value {
	e := a.propTableEntries(idx)
	off := entryOffset(uint32(i))
	return value.Value(binary.LittleEndian.Uint64(e[off+12 : off+20]))
}

func (a *Arena) propTableEntryNext(idx value.HeapIndex, i uint32) uint32 {
	e := a.propTableEntries(idx)
	off := entryOffset(i)
	return binary.LittleEndian.Uint32(e[off+20 : off+24])
}

func (a *Arena) propTableSetEntryNext(idx value.HeapIndex, i uint32, next uint32) {
	e := a.propTableEntries(idx)
	off := entryOffset(i)
	binary.LittleEndian.PutUint32(e[off+20:off+24], next)
}

func (a *Arena) writeEntry(idx value.HeapIndex, i uint32, atom uint32, val, setter value.Value, flags PropFlags, next uint32) {
	e := a.propTableEntries(idx)
	off := entryOffset(i)
	binary.LittleEndian.PutUint32(e[off:off+4], atom)
	binary.LittleEndian.PutUint64(e[off+4:off+12], uint64(val))
	binary.LittleEndian.PutUint64(e[off+12:off+20], uint64(setter))
	binary.LittleEndian.PutUint32(e[off+20:off+24], next)
	e[off+28] = byte(flags)
}

func bucketHead(buckets []byte, b uint32) uint32 {
	return binary.LittleEndian.Uint32(buckets[b*4 : b*4+4])
}

func setBucketHead(buckets []byte, b uint32, entry uint32) {
	binary.LittleEndian.PutUint32(buckets[b*4:b*4+4], entry)
}

// atomHash maps an atom id to a bucket index: the id times an odd
// constant, keeping only the bits under mask. Because the multiplier is
// odd and only low bits are kept, the bucket depends on the id's low bits
// alone, so ids spread over the buckets exactly as evenly as they would
// under a bare power-of-two mask.
func atomHash(atom uint32, mask uint32) uint32 {
	return (atom * 2654435761) & mask
}

// PropertyTableLookup finds atom's entry index by linear scan (tables
// below hashBucketThreshold) or hash-chain walk (tables at or above it).
func (a *Arena) PropertyTableLookup(idx value.HeapIndex, atom uint32) (entry uint32, found bool) {
	bucketCount := a.propTableBucketCount(idx)
	count := a.propTableCount(idx)
	if bucketCount == 0 {
		for i := uint32(0); i < count; i++ {
			e := a.propTableEntries(idx)
			off := entryOffset(i)
			if binary.LittleEndian.Uint32(e[off:off+4]) == atom {
				return i, true
			}
		}
		return 0, false
	}
	mask := a.propTableHashMask(idx)
	buckets := a.propTableBuckets(idx)
	i := bucketHead(buckets, atomHash(atom, mask))
	for i != noChain {
		e := a.propTableEntries(idx)
		off := entryOffset(i)
		if binary.LittleEndian.Uint32(e[off:off+4]) == atom {
			return i, true
		}
		i = a.propTableEntryNext(idx, i)
	}
	return 0, false
}

// PropertyTableSet inserts or updates atom's property in place (§9's
// "prefer true in-place updates from day one"), growing to a fresh,
// larger table (preserving insertion order) when capacity is exhausted.
// The returned HeapIndex is the table to keep using — it differs from
// idx exactly when growth occurred, and callers (Context/Object code)
// must store the new table reference back onto the owning Object.
func (a *Arena) PropertyTableSet(idx value.HeapIndex, atom uint32, val value.Value, flags PropFlags) (value.HeapIndex, error) {
	if entry, found := a.PropertyTableLookup(idx, atom); found {
		_, _, oldFlags := a.PropertyTableEntryAt(idx, int(entry))
		next := a.propTableEntryNext(idx, entry)
		a.writeEntry(idx, entry, atom, val, value.Undefined, oldFlags, next)
		return idx, nil
	}

	count := a.propTableCount(idx)
	capacity := a.propTableCapacity(idx)
	if count >= capacity {
		grown, err := a.growPropertyTable(idx)
		if err != nil {
			return idx, err
		}
		idx = grown
	}

	return idx, a.appendEntry(idx, atom, val, value.Undefined, flags)
}

// PropertyTableDefineAccessor installs (or replaces) an accessor
// property's getter and/or setter.
func (a *Arena) PropertyTableDefineAccessor(idx value.HeapIndex, atom uint32, getter, setter value.Value, hasGetter, hasSetter bool) (value.HeapIndex, error) {
	flags := PropEnumerable | PropConfigurable
	if hasGetter {
		flags |= PropAccessorGet
	}
	if hasSetter {
		flags |= PropAccessorSet
	}
	if entry, found := a.PropertyTableLookup(idx, atom); found {
		next := a.propTableEntryNext(idx, entry)
		_, oldGetter, oldFlags := a.PropertyTableEntryAt(idx, int(entry))
		g := getter
		if !hasGetter {
			g = oldGetter
			flags |= oldFlags & PropAccessorGet
		}
		s := setter
		if !hasSetter {
			s = a.PropertyTableSetterAt(idx, int(entry))
			flags |= oldFlags & PropAccessorSet
		}
		a.writeEntry(idx, entry, atom, g, s, flags, next)
		return idx, nil
	}

	count := a.propTableCount(idx)
	capacity := a.propTableCapacity(idx)
	if count >= capacity {
		grown, err := a.growPropertyTable(idx)
		if err != nil {
			return idx, err
		}
		idx = grown
	}
	return idx, a.appendEntry(idx, atom, getter, setter, flags)
}

func (a *Arena) appendEntry(idx value.HeapIndex, atom uint32, val, setter value.Value, flags PropFlags) error {
	count := a.propTableCount(idx)
	bucketCount := a.propTableBucketCount(idx)

	next := noChain
	if bucketCount > 0 {
		mask := a.propTableHashMask(idx)
		buckets := a.propTableBuckets(idx)
		b := atomHash(atom, mask)
		next = bucketHead(buckets, b)
		setBucketHead(buckets, b, count)
	}
	a.writeEntry(idx, count, atom, val, setter, flags, next)
	a.propTableSetCount(idx, count+1)
	return nil
}

// growPropertyTable allocates a new, larger table and copies every live
// entry across in insertion order (preserving §8.9's iteration-order
// invariant), rebuilding the hash chains for the new capacity.
func (a *Arena) growPropertyTable(idx value.HeapIndex) (value.HeapIndex, error) {
	oldCount := int(a.propTableCount(idx))
	newCapacity := oldCount * 2
	if newCapacity < hashBucketThreshold {
		newCapacity = hashBucketThreshold
	}
	newIdx, err := a.NewPropertyTable(newCapacity)
	if err != nil {
		return idx, err
	}
	for i := 0; i < oldCount; i++ {
		atom, val, flags := a.PropertyTableEntryAt(idx, i)
		setter := a.PropertyTableSetterAt(idx, i)
		if err := a.appendEntry(newIdx, atom, val, setter, flags); err != nil {
			return idx, err
		}
	}
	return newIdx, nil
}

// PropertyTableDelete removes atom's property, if present, compacting
// the entry array to keep it dense and preserving relative insertion
// order of the remaining entries. Returns whether a property was
// removed.
func (a *Arena) PropertyTableDelete(idx value.HeapIndex, atom uint32) bool {
	entry, found := a.PropertyTableLookup(idx, atom)
	if !found {
		return false
	}
	count := a.propTableCount(idx)
	for i := entry; i < count-1; i++ {
		na, nv, nf := a.PropertyTableEntryAt(idx, int(i+1))
		ns := a.PropertyTableSetterAt(idx, int(i+1))
		a.writeEntry(idx, i, na, nv, ns, nf, noChain)
	}
	a.propTableSetCount(idx, count-1)
	a.rebuildBuckets(idx)
	return true
}

func (a *Arena) rebuildBuckets(idx value.HeapIndex) {
	bucketCount := a.propTableBucketCount(idx)
	if bucketCount == 0 {
		return
	}
	buckets := a.propTableBuckets(idx)
	for i := uint32(0); i < bucketCount; i++ {
		setBucketHead(buckets, i, noChain)
	}
	count := a.propTableCount(idx)
	mask := a.propTableHashMask(idx)
	for i := uint32(0); i < count; i++ {
		atom, _, _ := a.PropertyTableEntryAt(idx, int(i))
		b := atomHash(atom, mask)
		a.propTableSetEntryNext(idx, i, bucketHead(buckets, b))
		setBucketHead(buckets, b, i)
	}
}
