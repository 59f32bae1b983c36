package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIntRoundTrip covers spec property 1: for every integer in the
// inline range, to_int(from_int(x)) == x.
func TestIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -100, 1 << 20, -(1 << 20)}
	for _, want := range cases {
		v := FromInt(want)
		got, ok := v.ToInt()
		assert.True(t, ok)
		assert.Equal(t, want, got)
		assert.True(t, v.IsInt())
	}
}

func TestBoolRoundTrip(t *testing.T) {
	for _, want := range []bool{true, false} {
		v := Bool(want)
		got, ok := v.ToBool()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
}

// TestTypeDisjointness covers spec property 2: no Value satisfies more
// than one of {is_int, is_ptr, is_null, is_undefined, is_bool}.
func TestTypeDisjointness(t *testing.T) {
	values := []Value{
		FromInt(0), FromInt(-7), FromInt(123),
		Null, Undefined, True, False, Exception,
		FromPtr(HeapIndex(5)),
	}
	for _, v := range values {
		count := 0
		for _, pred := range []bool{v.IsInt(), v.IsPtr(), v.IsNull(), v.IsUndefined(), v.IsBool()} {
			if pred {
				count++
			}
		}
		assert.LessOrEqualf(t, count, 1, "value %#x satisfied %d predicates", uint64(v), count)
	}
}

func TestPtrRoundTrip(t *testing.T) {
	idx := HeapIndex(4096)
	v := FromPtr(idx)
	got, ok := v.ToPtr()
	assert.True(t, ok)
	assert.Equal(t, idx, got)
	assert.True(t, v.IsPtr())
	assert.True(t, v.IsObject())
}

func TestSpecialValuesDistinct(t *testing.T) {
	specials := []Value{Null, Undefined, True, False, Exception}
	for i, a := range specials {
		for j, b := range specials {
			if i == j {
				continue
			}
			assert.NotEqual(t, a, b)
		}
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindInt, FromInt(1).Classify())
	assert.Equal(t, KindPtr, FromPtr(HeapIndex(1)).Classify())
	assert.Equal(t, KindNull, Null.Classify())
	assert.Equal(t, KindUndefined, Undefined.Classify())
	assert.Equal(t, KindBool, True.Classify())
	assert.Equal(t, KindBool, False.Classify())
	assert.Equal(t, KindException, Exception.Classify())
}

func TestRawEquals(t *testing.T) {
	assert.True(t, RawEquals(FromInt(5), FromInt(5)))
	assert.False(t, RawEquals(FromInt(5), FromInt(6)))
	assert.True(t, RawEquals(FromPtr(HeapIndex(3)), FromPtr(HeapIndex(3))))
}
