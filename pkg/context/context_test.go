package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microjs/pkg/heap"
	"microjs/pkg/value"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := New(64*1024, nil)
	require.NoError(t, err)
	return ctx
}

func TestNewContextBootstrapsPrototypeChain(t *testing.T) {
	ctx := newTestContext(t)

	objProtoIdx, ok := ctx.ObjectProto.ToPtr()
	require.True(t, ok)
	assert.True(t, ctx.Arena.ObjectPrototype(objProtoIdx).IsNull(), "Object.prototype's own prototype must be null")

	fnProtoIdx, ok := ctx.FunctionProto.ToPtr()
	require.True(t, ok)
	assert.Equal(t, ctx.ObjectProto, ctx.Arena.ObjectPrototype(fnProtoIdx))

	globalIdx, ok := ctx.Global.ToPtr()
	require.True(t, ok)
	assert.Equal(t, ctx.ObjectProto, ctx.Arena.ObjectPrototype(globalIdx))
}

func TestNewNumberInlinesSmallIntegers(t *testing.T) {
	ctx := newTestContext(t)

	v, err := ctx.NewNumber(42)
	require.NoError(t, err)
	assert.True(t, v.IsInt())

	f, ok := ctx.GetNumber(v)
	require.True(t, ok)
	assert.Equal(t, float64(42), f)
}

func TestNewNumberBoxesFractionalValues(t *testing.T) {
	ctx := newTestContext(t)

	v, err := ctx.NewNumber(3.5)
	require.NoError(t, err)
	assert.True(t, v.IsPtr())

	f, ok := ctx.GetNumber(v)
	require.True(t, ok)
	assert.Equal(t, 3.5, f)
}

func TestSetAndGetGlobalProperty(t *testing.T) {
	ctx := newTestContext(t)

	err := ctx.SetGlobalProperty("answer", value.FromInt(42))
	require.NoError(t, err)

	v, ok := ctx.GlobalProperty("answer")
	require.True(t, ok)
	n, _ := v.ToInt()
	assert.Equal(t, int64(42), n)
}

func TestGetPropertyWalksPrototypeChain(t *testing.T) {
	ctx := newTestContext(t)

	parent, err := ctx.NewObject()
	require.NoError(t, err)
	a := ctx.Atoms.Intern("inherited")
	require.NoError(t, ctx.SetOwnProperty(parent, a, value.FromInt(7), heap.DefaultDataPropFlags))

	child, err := ctx.NewObjectWithProto(parent)
	require.NoError(t, err)

	v, found := ctx.GetProperty(child, a)
	require.True(t, found)
	n, _ := v.ToInt()
	assert.Equal(t, int64(7), n)

	_, _, ownFound := ctx.FindOwnProperty(child, a)
	assert.False(t, ownFound, "inherited property must not be reported as child's own")
}

func TestFunctionValueCarriesOwnProperties(t *testing.T) {
	ctx := newTestContext(t)

	id := uint32(0)
	fn, err := ctx.NewNativeFunction(id, 1)
	require.NoError(t, err)

	protoObj, err := ctx.NewObject()
	require.NoError(t, err)

	protoAtom := ctx.Atoms.Intern("prototype")
	require.NoError(t, ctx.SetOwnProperty(fn, protoAtom, protoObj, heap.DefaultDataPropFlags))

	got, found := ctx.GetProperty(fn, protoAtom)
	require.True(t, found)
	n, _ := got.ToPtr()
	pn, _ := protoObj.ToPtr()
	assert.Equal(t, pn, n)
}

func TestDeleteOwnProperty(t *testing.T) {
	ctx := newTestContext(t)

	obj, err := ctx.NewObject()
	require.NoError(t, err)
	a := ctx.Atoms.Intern("x")
	require.NoError(t, ctx.SetOwnProperty(obj, a, value.FromInt(1), heap.DefaultDataPropFlags))

	assert.True(t, ctx.DeleteOwnProperty(obj, a))
	_, _, found := ctx.FindOwnProperty(obj, a)
	assert.False(t, found)
}

func TestAddRootKeepsValueAliveAcrossGC(t *testing.T) {
	ctx := newTestContext(t)

	s, err := ctx.NewString("kept alive only by an explicit root")
	require.NoError(t, err)
	id := ctx.AddRoot(s)

	ctx.GC()

	idx, ok := s.ToPtr()
	require.True(t, ok)
	assert.NotPanics(t, func() { ctx.Arena.KindOf(idx) })

	ctx.RemoveRoot(id)
}

func TestMemoryAccountingInvariant(t *testing.T) {
	ctx := newTestContext(t)
	assert.Equal(t, ctx.ArenaSize(), ctx.MemoryUsage()+ctx.FreeMemory())
}
