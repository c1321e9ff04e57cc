package jsvalue

import "math"

// Values combines a Table with the NaN-boxing contract that lets a single
// 8-byte guest slot carry either a real double or a tagged reference,
// implementing spec.md §4.3's storeValue/loadValue/removeRef.
type Values struct {
	table *Table
}

// NewValues seeds a fresh Values, wiring the fixed global and embedder-self
// objects (ids 5 and 6) so they can be returned directly from LoadValue.
func NewValues(global, self interface{}) *Values {
	return &Values{table: NewTable(global, self)}
}

// LoadValue decodes ref back into the Go value it represents.
func (v *Values) LoadValue(ref Ref) interface{} {
	switch ref {
	case RefUndefined:
		return Undefined
	case RefNaN:
		return NaN
	case RefZero:
		return float64(0)
	case RefNull:
		return nil
	case RefTrue:
		return true
	case RefFalse:
		return false
	case RefGlobal:
		return v.table.Get(idGlobal)
	case RefSelf:
		return v.table.Get(idEmbedderSelf)
	default:
		if f, ok := ref.AsFloat64(); ok {
			return f
		}
		return v.table.Get(ref.ID())
	}
}

// StoreValue registers val (if it isn't one of the zero-cost encodings) and
// returns the Ref the guest should receive. Any side effect besides memory
// must be cleaned up on exit (Table.Reset), since the table does not
// persist across runs.
func (v *Values) StoreValue(val interface{}) Ref {
	switch x := val.(type) {
	case nil:
		return RefNull
	case Ref:
		return x // already a ref (e.g. echoing back an id the guest handed us)
	case bool:
		if x {
			return RefTrue
		}
		return RefFalse
	case int32:
		return v.storeNumber(float64(x))
	case uint32:
		return v.storeNumber(float64(x))
	case int64:
		return v.storeNumber(float64(x))
	case uint64:
		return v.storeNumber(float64(x))
	case float64:
		return v.storeNumber(x)
	case string:
		return encodeRef(v.table.Store(x), TypeFlagString)
	}
	if val == Undefined {
		return RefUndefined
	}
	// Everything else is a reference value: object, function, symbol.
	return encodeRef(v.table.Store(val), classify(val))
}

// storeNumber implements spec.md §4.3's elimination order for numbers: a
// non-zero, non-NaN float writes straight through; NaN gets the dedicated
// id-0 encoding; the number zero is neither of those nor `undefined`, so it
// falls through to the table and resolves to the seeded id 1 (RefZero),
// never colliding with the separate all-zero-bits RefUndefined encoding.
func (v *Values) storeNumber(f float64) Ref {
	switch {
	case math.IsNaN(f):
		return RefNaN
	case f != 0:
		return EncodeFloat64(f)
	default:
		return encodeRef(v.table.Store(f), TypeFlagNone)
	}
}

// classify picks the NaN-box type flag for reference values not handled by
// the fast paths in StoreValue (numbers/bool/string/null/undefined).
func classify(val interface{}) TypeFlag {
	switch val.(type) {
	case Callable:
		return TypeFlagFunction
	default:
		return TypeFlagObject
	}
}

// RemoveRef decrements val's ref count, recycling its id once it reaches
// zero. Seeded ids (0..6) are immortal; removing them is a no-op.
func (v *Values) RemoveRef(id uint32) {
	v.table.RemoveRef(id)
}

// Reset drops all dynamic table state. Called on guest exit.
func (v *Values) Reset() {
	v.table.Reset()
}
