package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/value"
)

func TestPropertyTableSetAndLookupSmall(t *testing.T) {
	a := NewArena(4096)
	tbl, err := a.NewPropertyTable(2)
	require.NoError(t, err)

	tbl, err = a.PropertyTableSet(tbl, 10, value.FromInt(1), DefaultDataPropFlags)
	require.NoError(t, err)
	tbl, err = a.PropertyTableSet(tbl, 20, value.FromInt(2), DefaultDataPropFlags)
	require.NoError(t, err)

	entry, found := a.PropertyTableLookup(tbl, 20)
	require.True(t, found)
	_, v, _ := a.PropertyTableEntryAt(tbl, int(entry))
	got, ok := v.ToInt()
	require.True(t, ok)
	assert.Equal(t, int64(2), got)

	_, found = a.PropertyTableLookup(tbl, 99)
	assert.False(t, found)
}

// TestPropertyTableUpdateInPlace covers the "prefer true in-place
// updates" decision: re-setting an existing atom does not grow the
// table or change its HeapIndex.
func TestPropertyTableUpdateInPlace(t *testing.T) {
	a := NewArena(4096)
	tbl, err := a.NewPropertyTable(4)
	require.NoError(t, err)
	tbl, err = a.PropertyTableSet(tbl, 1, value.FromInt(100), DefaultDataPropFlags)
	require.NoError(t, err)

	same, err := a.PropertyTableSet(tbl, 1, value.FromInt(200), DefaultDataPropFlags)
	require.NoError(t, err)
	assert.Equal(t, tbl, same)

	entry, found := a.PropertyTableLookup(same, 1)
	require.True(t, found)
	_, v, _ := a.PropertyTableEntryAt(same, int(entry))
	got, _ := v.ToInt()
	assert.Equal(t, int64(200), got)
}

// TestPropertyTableGrowsAcrossHashThreshold exercises a table crossing
// hashBucketThreshold, where growth must allocate a fresh table with
// buckets and preserve every existing entry.
func TestPropertyTableGrowsAcrossHashThreshold(t *testing.T) {
	a := NewArena(16384)
	tbl, err := a.NewPropertyTable(2)
	require.NoError(t, err)

	for i := uint32(0); i < 20; i++ {
		tbl, err = a.PropertyTableSet(tbl, i+1, value.FromInt(int64(i)), DefaultDataPropFlags)
		require.NoError(t, err)
	}

	assert.Equal(t, 20, a.PropertyTableCount(tbl))
	for i := uint32(0); i < 20; i++ {
		entry, found := a.PropertyTableLookup(tbl, i+1)
		require.Truef(t, found, "atom %d should be present", i+1)
		_, v, _ := a.PropertyTableEntryAt(tbl, int(entry))
		got, _ := v.ToInt()
		assert.Equal(t, int64(i), got)
	}
}

// TestPropertyTableEnumerationOrder covers spec property 9: properties
// enumerate in insertion order regardless of hashing.
func TestPropertyTableEnumerationOrder(t *testing.T) {
	a := NewArena(16384)
	tbl, err := a.NewPropertyTable(2)
	require.NoError(t, err)

	order := []uint32{5, 3, 9, 1, 7, 2, 8, 4, 6, 10}
	for _, atom := range order {
		tbl, err = a.PropertyTableSet(tbl, atom, value.FromInt(int64(atom)), DefaultDataPropFlags)
		require.NoError(t, err)
	}

	for i, want := range order {
		atom, _, _ := a.PropertyTableEntryAt(tbl, i)
		assert.Equal(t, want, atom)
	}
}

func TestPropertyTableDelete(t *testing.T) {
	a := NewArena(4096)
	tbl, err := a.NewPropertyTable(4)
	require.NoError(t, err)
	tbl, err = a.PropertyTableSet(tbl, 1, value.FromInt(1), DefaultDataPropFlags)
	require.NoError(t, err)
	tbl, err = a.PropertyTableSet(tbl, 2, value.FromInt(2), DefaultDataPropFlags)
	require.NoError(t, err)

	assert.True(t, a.PropertyTableDelete(tbl, 1))
	assert.Equal(t, 1, a.PropertyTableCount(tbl))
	_, found := a.PropertyTableLookup(tbl, 1)
	assert.False(t, found)
	entry, found := a.PropertyTableLookup(tbl, 2)
	require.True(t, found)
	_, v, _ := a.PropertyTableEntryAt(tbl, int(entry))
	got, _ := v.ToInt()
	assert.Equal(t, int64(2), got)

	assert.False(t, a.PropertyTableDelete(tbl, 1))
}

func TestPropertyTableAccessor(t *testing.T) {
	a := NewArena(4096)
	tbl, err := a.NewPropertyTable(4)
	require.NoError(t, err)

	getter := value.FromInt(1001)
	setter := value.FromInt(1002)
	tbl, err = a.PropertyTableDefineAccessor(tbl, 1, getter, setter, true, true)
	require.NoError(t, err)

	entry, found := a.PropertyTableLookup(tbl, 1)
	require.True(t, found)
	_, g, flags := a.PropertyTableEntryAt(tbl, int(entry))
	assert.Equal(t, getter, g)
	assert.Equal(t, setter, a.PropertyTableSetterAt(tbl, int(entry)))
	assert.True(t, flags&PropAccessorGet != 0)
	assert.True(t, flags&PropAccessorSet != 0)
}
