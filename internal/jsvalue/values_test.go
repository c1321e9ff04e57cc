package jsvalue_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmrun/gojshost/internal/jsvalue"
)

func TestValues_RoundTripPrimitives(t *testing.T) {
	v := jsvalue.NewValues("global", "self")

	require.Equal(t, jsvalue.Undefined, v.LoadValue(v.StoreValue(jsvalue.Undefined)))
	require.Nil(t, v.LoadValue(v.StoreValue(nil)))
	require.Equal(t, true, v.LoadValue(v.StoreValue(true)))
	require.Equal(t, false, v.LoadValue(v.StoreValue(false)))
	require.Equal(t, "global", v.LoadValue(jsvalue.RefGlobal))
	require.Equal(t, "self", v.LoadValue(jsvalue.RefSelf))
}

func TestValues_UndefinedAndZeroAreDistinctEncodings(t *testing.T) {
	// spec.md §8.2: storeValue(undefined) writes eight zero bytes; the
	// number zero is a separate, NaN-boxed seeded reference (id 1).
	require.EqualValues(t, 0, jsvalue.RefUndefined)
	require.NotEqual(t, jsvalue.RefUndefined, jsvalue.RefZero)
}

func TestValues_NaNEncoding(t *testing.T) {
	v := jsvalue.NewValues(nil, nil)

	ref := v.StoreValue(math.NaN())
	require.Equal(t, jsvalue.RefNaN, ref)

	// spec.md §8.2: NaN writes low=0, high=0x7FF80000.
	require.EqualValues(t, 0, uint32(ref))
	require.EqualValues(t, 0x7FF80000, uint32(ref>>32))

	loaded := v.LoadValue(ref)
	f, ok := loaded.(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
}

func TestValues_StoreNumberZeroResolvesToSeededID(t *testing.T) {
	v := jsvalue.NewValues(nil, nil)

	ref := v.StoreValue(float64(0))
	require.Equal(t, jsvalue.RefZero, ref)
	require.NotEqual(t, jsvalue.RefUndefined, ref)
	require.Equal(t, float64(0), v.LoadValue(ref))
}

func TestValues_NonZeroFloatRoundTrips(t *testing.T) {
	v := jsvalue.NewValues(nil, nil)

	ref := v.StoreValue(3.5)
	require.Equal(t, 3.5, v.LoadValue(ref))

	ref = v.StoreValue(int32(-7))
	require.Equal(t, float64(-7), v.LoadValue(ref))
}

func TestValues_ObjectGetsNewIDWithObjectFlag(t *testing.T) {
	v := jsvalue.NewValues(nil, nil)

	obj := &jsvalue.Object{Properties: map[string]interface{}{"a": float64(1)}}
	ref := v.StoreValue(obj)

	// spec.md §8.2: a freshly-stored object writes (low=new_id, high=0x7FF80001).
	require.EqualValues(t, jsvalue.FirstDynamicID, uint32(ref))
	require.EqualValues(t, 0x7FF80001, uint32(ref>>32))

	require.Same(t, obj, v.LoadValue(ref))
}

func TestValues_RemoveRefRecyclesDynamicIDs(t *testing.T) {
	v := jsvalue.NewValues(nil, nil)

	obj := &jsvalue.Object{Properties: map[string]interface{}{}}
	ref := v.StoreValue(obj)
	id := ref.ID()

	v.RemoveRef(id)
	require.Panics(t, func() { v.LoadValue(ref) })

	ref2 := v.StoreValue(&jsvalue.Object{Properties: map[string]interface{}{}})
	require.Equal(t, id, ref2.ID())
}

func TestValues_RemoveRefOnSeededIDIsNoop(t *testing.T) {
	v := jsvalue.NewValues("global", "self")

	v.RemoveRef(jsvalue.RefGlobal.ID())
	require.Equal(t, "global", v.LoadValue(jsvalue.RefGlobal))
}

func TestValues_Reset(t *testing.T) {
	v := jsvalue.NewValues("global", "self")

	ref := v.StoreValue(&jsvalue.Object{Properties: map[string]interface{}{}})
	v.Reset()

	require.Panics(t, func() { v.LoadValue(ref) })
	require.Equal(t, "global", v.LoadValue(jsvalue.RefGlobal))
}
