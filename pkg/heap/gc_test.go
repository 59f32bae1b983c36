package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/value"
)

// sliceRoots is a test-only Roots implementation: a fixed list of Values.
type sliceRoots []value.Value

func (r sliceRoots) Walk(visit func(value.Value)) {
	for _, v := range r {
		visit(v)
	}
}

// TestGCAccountingInvariant covers spec property 4: Used()+Free() ==
// Size() holds before and after a collection.
func TestGCAccountingInvariant(t *testing.T) {
	a := NewArena(4096)
	for i := 0; i < 10; i++ {
		_, err := a.NewString("hello")
		require.NoError(t, err)
		assert.Equal(t, a.Size(), a.Used()+a.Free())
	}
	a.Collect(sliceRoots{})
	assert.Equal(t, a.Size(), a.Used()+a.Free())
}

// TestGCReclaimsUnreachable covers spec property 3: blocks unreachable
// from the root set are reclaimed, shrinking Used().
func TestGCReclaimsUnreachable(t *testing.T) {
	a := NewArena(4096)
	_, err := a.NewString("garbage one")
	require.NoError(t, err)
	_, err = a.NewString("garbage two")
	require.NoError(t, err)
	usedBefore := a.Used()

	kept, err := a.NewString("kept")
	require.NoError(t, err)

	a.Collect(sliceRoots{value.FromPtr(kept)})

	assert.Less(t, a.Used(), usedBefore+16)
	assert.Equal(t, "kept", a.StringValue(kept))
}

// TestGCPreservesReachableGraph builds an object graph (object ->
// property table -> nested object) and checks every reachable node
// survives a collection with its data intact, with an unreachable
// string allocated alongside as garbage.
func TestGCPreservesReachableGraph(t *testing.T) {
	a := NewArena(8192)

	child, err := a.NewObject(value.Null)
	require.NoError(t, err)
	childStr, err := a.NewString("child value")
	require.NoError(t, err)
	table, err := a.NewPropertyTable(4)
	require.NoError(t, err)
	table, err = a.PropertyTableSet(table, 1, value.FromPtr(childStr), DefaultDataPropFlags)
	require.NoError(t, err)
	a.SetObjectPropertyTable(child, value.FromPtr(table))

	root, err := a.NewObject(value.Null)
	require.NoError(t, err)
	rootTable, err := a.NewPropertyTable(4)
	require.NoError(t, err)
	rootTable, err = a.PropertyTableSet(rootTable, 2, value.FromPtr(child), DefaultDataPropFlags)
	require.NoError(t, err)
	a.SetObjectPropertyTable(root, value.FromPtr(rootTable))

	// Unreachable sibling, never rooted.
	_, err = a.NewString("never referenced")
	require.NoError(t, err)

	a.Collect(sliceRoots{value.FromPtr(root)})

	gotRootTable, ok := a.ObjectPropertyTable(root).ToPtr()
	require.True(t, ok)
	gotChildVal, found := a.PropertyTableLookup(gotRootTable, 2)
	require.True(t, found)
	_, childRef, _ := a.PropertyTableEntryAt(gotRootTable, int(gotChildVal))
	childIdx, ok := childRef.ToPtr()
	require.True(t, ok)

	gotChildTable, ok := a.ObjectPropertyTable(childIdx).ToPtr()
	require.True(t, ok)
	entryIdx, found := a.PropertyTableLookup(gotChildTable, 1)
	require.True(t, found)
	_, strRef, _ := a.PropertyTableEntryAt(gotChildTable, int(entryIdx))
	strIdx, ok := strRef.ToPtr()
	require.True(t, ok)
	assert.Equal(t, "child value", a.StringValue(strIdx))
}

// TestGCHandlesSurviveAcrossCompaction covers §4.1's central guarantee:
// a HeapIndex obtained before a collection still resolves to the same
// logical object afterward, even though its byte offset changed.
func TestGCHandlesSurviveAcrossCompaction(t *testing.T) {
	a := NewArena(4096)
	_, err := a.NewString("pad")
	require.NoError(t, err)
	kept, err := a.NewString("stable")
	require.NoError(t, err)

	a.Collect(sliceRoots{value.FromPtr(kept)})

	assert.Equal(t, "stable", a.StringValue(kept))

	// kept should now be compacted, likely at offset 0; allocate again
	// and collect once more to be sure repeated cycles stay sound.
	again, err := a.NewString("second")
	require.NoError(t, err)
	a.Collect(sliceRoots{value.FromPtr(kept), value.FromPtr(again)})
	assert.Equal(t, "stable", a.StringValue(kept))
	assert.Equal(t, "second", a.StringValue(again))
}

func TestAllocFailsWhenArenaFull(t *testing.T) {
	a := NewArena(32)
	_, err := a.NewString("this string alone is already too long for 32 bytes")
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
