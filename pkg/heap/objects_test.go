package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/value"
)

func TestStringRoundTrip(t *testing.T) {
	a := NewArena(4096)
	idx, err := a.NewString("hello, world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", a.StringValue(idx))
	assert.True(t, a.StringIsASCII(idx))
	assert.False(t, a.StringIsAllDigits(idx))

	digits, err := a.NewString("12345")
	require.NoError(t, err)
	assert.True(t, a.StringIsAllDigits(digits))
}

func TestBoxedFloatRoundTrip(t *testing.T) {
	a := NewArena(4096)
	idx, err := a.NewBoxedFloat(3.14159)
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, a.Float(idx), 1e-12)
}

func TestValueArrayPushAndGet(t *testing.T) {
	a := NewArena(4096)
	idx, err := a.NewValueArray(4)
	require.NoError(t, err)
	a.ValueArrayPush(idx, value.FromInt(1))
	a.ValueArrayPush(idx, value.FromInt(2))
	assert.Equal(t, 2, a.ValueArrayCount(idx))
	got, _ := a.ValueArrayGet(idx, 1).ToInt()
	assert.Equal(t, int64(2), got)
}

func TestByteArrayFrom(t *testing.T) {
	a := NewArena(4096)
	idx, err := a.NewByteArrayFrom([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 4, a.ByteArrayCount(idx))
	assert.Equal(t, []byte{1, 2, 3, 4}, a.ByteArrayBytes(idx)[:4])
}

func TestObjectPrototypeAndExtensible(t *testing.T) {
	a := NewArena(4096)
	proto, err := a.NewObject(value.Null)
	require.NoError(t, err)
	obj, err := a.NewObject(value.FromPtr(proto))
	require.NoError(t, err)

	got, ok := a.ObjectPrototype(obj).ToPtr()
	require.True(t, ok)
	assert.Equal(t, proto, got)
	assert.True(t, a.ObjectExtensible(obj))

	a.SetObjectExtensible(obj, false)
	assert.False(t, a.ObjectExtensible(obj))
}

func TestClosureCapturesVarCells(t *testing.T) {
	a := NewArena(4096)
	container, err := a.NewByteArrayFrom([]byte{0x01, 0x02})
	require.NoError(t, err)
	cell, err := a.NewVarCell(value.FromInt(42))
	require.NoError(t, err)

	clo, err := a.NewClosure(value.FromPtr(container), 1, 2, 1)
	require.NoError(t, err)
	a.ClosureCapturedSet(clo, 0, value.FromPtr(cell))

	got, ok := a.ClosureCapturedGet(clo, 0).ToPtr()
	require.True(t, ok)
	assert.Equal(t, cell, got)
	v, _ := a.VarCellGet(got).ToInt()
	assert.Equal(t, int64(42), v)

	a.VarCellSet(cell, value.FromInt(43))
	v2, _ := a.VarCellGet(cell).ToInt()
	assert.Equal(t, int64(43), v2)
}

func TestNativeFunctionFields(t *testing.T) {
	a := NewArena(4096)
	idx, err := a.NewNativeFunction(7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), a.NativeFunctionRegistryID(idx))
	assert.Equal(t, 2, a.NativeFunctionLength(idx))
}

func TestCallableKindsCarryOwnPropertyTable(t *testing.T) {
	a := NewArena(4096)

	nativeIdx, err := a.NewNativeFunction(0, 1)
	require.NoError(t, err)
	_, hasTable := a.NativeFunctionPropertyTable(nativeIdx).ToPtr()
	assert.False(t, hasTable, "a fresh native function has no property table yet")
	table, err := a.NewPropertyTable(0)
	require.NoError(t, err)
	a.SetNativeFunctionPropertyTable(nativeIdx, value.FromPtr(table))
	got, ok := a.NativeFunctionPropertyTable(nativeIdx).ToPtr()
	require.True(t, ok)
	assert.Equal(t, table, got)

	container, err := a.NewByteArrayFrom([]byte{0x00})
	require.NoError(t, err)

	bcIdx, err := a.NewBytecodeFunction(value.FromPtr(container), 1, 0)
	require.NoError(t, err)
	_, hasTable = a.BytecodeFunctionPropertyTable(bcIdx).ToPtr()
	assert.False(t, hasTable)
	bcTable, err := a.NewPropertyTable(0)
	require.NoError(t, err)
	a.SetBytecodeFunctionPropertyTable(bcIdx, value.FromPtr(bcTable))
	got, ok = a.BytecodeFunctionPropertyTable(bcIdx).ToPtr()
	require.True(t, ok)
	assert.Equal(t, bcTable, got)

	cloIdx, err := a.NewClosure(value.FromPtr(container), 1, 0, 0)
	require.NoError(t, err)
	_, hasTable = a.ClosurePropertyTable(cloIdx).ToPtr()
	assert.False(t, hasTable)
	cloTable, err := a.NewPropertyTable(0)
	require.NoError(t, err)
	a.SetClosurePropertyTable(cloIdx, value.FromPtr(cloTable))
	got, ok = a.ClosurePropertyTable(cloIdx).ToPtr()
	require.True(t, ok)
	assert.Equal(t, cloTable, got)
}
