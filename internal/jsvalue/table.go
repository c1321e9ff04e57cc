package jsvalue

import "github.com/pkg/errors"

// Table is the host-side registry of values referenced by the guest:
// append-only storage indexed by id, a parallel ref-count vector, an
// inverse lookup for recycling equal values to the same id, and a free-list
// of ids whose ref-count dropped to zero.
//
// Keys in the inverse map compare by identity for reference values and by
// value for primitives — this falls out of using interface{} map keys
// directly: Go's map equality is identity for pointers and structural for
// comparable value types, which is exactly the distinction spec.md §4.3
// requires. Non-comparable values (e.g. a slice-backed *ByteArray) are
// pointers, so two structurally-equal-but-distinct instances correctly get
// distinct ids.
type Table struct {
	values   []interface{}
	refCount []uint32 // infiniteRefCount for seeded ids, which are never collected
	ids      map[interface{}]uint32
	freeList []uint32
}

const infiniteRefCount = ^uint32(0)

// NewTable returns a Table seeded with the fixed ids 0..6 from spec.md §3.
func NewTable(global, self interface{}) *Table {
	t := &Table{
		ids: map[interface{}]uint32{},
	}
	t.values = []interface{}{nanPlaceholder{}, float64(0), nil, true, false, global, self}
	t.refCount = []uint32{infiniteRefCount, infiniteRefCount, infiniteRefCount, infiniteRefCount, infiniteRefCount, infiniteRefCount, infiniteRefCount}
	// Seed the inverse lookup for the one seeded value that is still routed
	// through Store (the number zero falls through storeValue's fast paths
	// per spec.md §4.3, since it is neither "non-zero" nor "undefined").
	t.ids[float64(0)] = idZero
	return t
}

// nanPlaceholder occupies id 0 in the values slice; NaN itself is never
// looked up through the table (LoadValue special-cases RefNaN), but the
// slot must exist so dynamic ids start at FirstDynamicID.
type nanPlaceholder struct{}

// Get returns the value stored at id, panicking if id is out of range or
// was already collected — mirroring the teacher's own values.get, which
// treats both as a host-side programming error, never a guest-observable
// one.
func (t *Table) Get(id uint32) interface{} {
	if id >= uint32(len(t.values)) {
		panic(errors.Errorf("id %d is out of range %d", id, len(t.values)))
	}
	v := t.values[id]
	if v == nil && id >= FirstDynamicID {
		panic(errors.Errorf("value for %d was nil", id))
	}
	return v
}

// Store registers v (if not already present) and increments its ref count,
// returning its id. Equal primitives and identical reference values share
// an id; recycled ids are reused from the free-list before the table grows.
func (t *Table) Store(v interface{}) uint32 {
	id, ok := t.ids[v]
	if !ok {
		if len(t.freeList) == 0 {
			id = uint32(len(t.values))
			t.values = append(t.values, v)
			t.refCount = append(t.refCount, 0)
		} else {
			id, t.freeList = t.freeList[len(t.freeList)-1], t.freeList[:len(t.freeList)-1]
			t.values[id] = v
			t.refCount[id] = 0
		}
		t.ids[v] = id
	}
	if id >= FirstDynamicID {
		t.refCount[id]++
	} // seeded ids carry an infinite count that must never be touched
	return id
}

// RemoveRef decrements id's ref count. At zero, the slot is cleared, the
// inverse mapping is dropped, and the id is pushed onto the free-list for
// reuse. Seeded ids (0..6) have an infinite count and are never collected.
func (t *Table) RemoveRef(id uint32) {
	if id < FirstDynamicID {
		return // seeded ids are immortal
	}
	t.refCount[id]--
	if t.refCount[id] == 0 {
		v := t.values[id]
		delete(t.ids, v)
		t.values[id] = nil
		t.freeList = append(t.freeList, id)
	}
}

// Reset clears all dynamic state. Called when an instance exits; the value
// table does not persist across runs (spec.md §1 Non-goals).
func (t *Table) Reset() {
	t.values = t.values[:FirstDynamicID]
	t.refCount = t.refCount[:FirstDynamicID]
	t.ids = map[interface{}]uint32{float64(0): idZero}
	t.freeList = nil
}
