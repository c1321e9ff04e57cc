package jsvalue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmrun/gojshost/internal/jsvalue"
)

func TestTable_SeededIDsAreImmortal(t *testing.T) {
	tbl := jsvalue.NewTable("the-global", "the-self")

	require.Equal(t, "the-global", tbl.Get(5))
	require.Equal(t, "the-self", tbl.Get(6))

	// Removing a seeded id is a no-op; the value stays reachable.
	for id := uint32(0); id < jsvalue.FirstDynamicID; id++ {
		tbl.RemoveRef(id)
	}
	require.Equal(t, "the-global", tbl.Get(5))
	require.Equal(t, "the-self", tbl.Get(6))
}

func TestTable_StoreAndRecycle(t *testing.T) {
	tbl := jsvalue.NewTable(nil, nil)

	obj1 := &jsvalue.Object{Properties: map[string]interface{}{}}
	id1 := tbl.Store(obj1)
	require.Equal(t, jsvalue.FirstDynamicID, id1)
	require.Same(t, obj1, tbl.Get(id1))

	obj2 := &jsvalue.Object{Properties: map[string]interface{}{}}
	id2 := tbl.Store(obj2)
	require.Equal(t, jsvalue.FirstDynamicID+1, id2)

	// Dropping id1's only reference recycles it onto the free-list.
	tbl.RemoveRef(id1)
	require.Panics(t, func() { tbl.Get(id1) })

	obj3 := &jsvalue.Object{Properties: map[string]interface{}{}}
	id3 := tbl.Store(obj3)
	require.Equal(t, id1, id3, "freed id should be recycled before growing the table")
}

func TestTable_StoreIsRefCounted(t *testing.T) {
	tbl := jsvalue.NewTable(nil, nil)

	obj := &jsvalue.Object{Properties: map[string]interface{}{}}
	id := tbl.Store(obj)
	tbl.Store(obj) // a second reference to the same identity

	tbl.RemoveRef(id)
	require.Same(t, obj, tbl.Get(id), "value survives while a ref remains")

	tbl.RemoveRef(id)
	require.Panics(t, func() { tbl.Get(id) })
}

func TestTable_EqualPrimitivesShareAnID(t *testing.T) {
	tbl := jsvalue.NewTable(nil, nil)

	id1 := tbl.Store("same-string")
	id2 := tbl.Store("same-string")
	require.Equal(t, id1, id2)
}

func TestTable_Reset(t *testing.T) {
	tbl := jsvalue.NewTable("g", "s")
	id := tbl.Store(&jsvalue.Object{Properties: map[string]interface{}{}})
	require.Equal(t, jsvalue.FirstDynamicID, id)

	tbl.Reset()

	require.Equal(t, "g", tbl.Get(5))
	require.Panics(t, func() { tbl.Get(id) })

	// Ids are handed out from FirstDynamicID again after a reset.
	newID := tbl.Store("fresh")
	require.Equal(t, jsvalue.FirstDynamicID, newID)
}
