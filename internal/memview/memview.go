// Package memview provides typed, little-endian accessors over a guest's
// linear memory. The view wraps api.Memory and must be rebound whenever the
// guest grows its memory (runtime.resetMemoryDataView).
package memview

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"
)

// View is a typed window into a single api.Memory instance.
//
// Note: View itself holds no bytes; it is a thin accessor that always reads
// through to whatever api.Memory it currently wraps. SetBuffer exists only
// so callers that cache a View don't have to also track the current
// api.Memory elsewhere.
type View struct {
	mem api.Memory
}

// New creates a View bound to mem. mem may be nil; callers must SetBuffer
// before first use in that case.
func New(mem api.Memory) *View {
	return &View{mem: mem}
}

// SetBuffer rebinds the view to a new underlying memory, e.g. after the
// guest's linear memory grew.
func (v *View) SetBuffer(mem api.Memory) {
	v.mem = mem
}

func (v *View) mustRead(ctx context.Context, field string, offset, byteCount uint32) []byte {
	buf, ok := v.mem.Read(ctx, offset, byteCount)
	if !ok {
		panic(errors.Errorf("out of memory reading %s (offset=%d, byteCount=%d)", field, offset, byteCount))
	}
	return buf
}

func (v *View) mustWrite(ctx context.Context, field string, offset uint32, val []byte) {
	if ok := v.mem.Write(ctx, offset, val); !ok {
		panic(errors.Errorf("out of memory writing %s (offset=%d, len=%d)", field, offset, len(val)))
	}
}

// GetUint8 reads a single byte at addr.
func (v *View) GetUint8(ctx context.Context, addr uint32) byte {
	b, ok := v.mem.ReadByte(ctx, addr)
	if !ok {
		panic(errors.Errorf("out of memory reading uint8 at %d", addr))
	}
	return b
}

// SetUint8 writes a single byte at addr.
func (v *View) SetUint8(ctx context.Context, addr uint32, val byte) {
	if ok := v.mem.WriteByte(ctx, addr, val); !ok {
		panic(errors.Errorf("out of memory writing uint8 at %d", addr))
	}
}

// GetUint32 reads a little-endian uint32 at addr.
func (v *View) GetUint32(ctx context.Context, addr uint32) uint32 {
	u, ok := v.mem.ReadUint32Le(ctx, addr)
	if !ok {
		panic(errors.Errorf("out of memory reading uint32 at %d", addr))
	}
	return u
}

// SetUint32 writes a little-endian uint32 at addr.
func (v *View) SetUint32(ctx context.Context, addr uint32, val uint32) {
	if ok := v.mem.WriteUint32Le(ctx, addr, val); !ok {
		panic(errors.Errorf("out of memory writing uint32 at %d", addr))
	}
}

// GetInt32 reads a little-endian int32 at addr.
func (v *View) GetInt32(ctx context.Context, addr uint32) int32 {
	return int32(v.GetUint32(ctx, addr))
}

// SetInt32 writes a little-endian int32 at addr.
func (v *View) SetInt32(ctx context.Context, addr uint32, val int32) {
	v.SetUint32(ctx, addr, uint32(val))
}

// GetFloat64 reads a little-endian float64 at addr.
func (v *View) GetFloat64(ctx context.Context, addr uint32) float64 {
	f, ok := v.mem.ReadFloat64Le(ctx, addr)
	if !ok {
		panic(errors.Errorf("out of memory reading float64 at %d", addr))
	}
	return f
}

// SetFloat64 writes a little-endian float64 at addr.
func (v *View) SetFloat64(ctx context.Context, addr uint32, val float64) {
	if ok := v.mem.WriteFloat64Le(ctx, addr, val); !ok {
		panic(errors.Errorf("out of memory writing float64 at %d", addr))
	}
}

// GetUint64 reads a little-endian uint64 at addr.
func (v *View) GetUint64(ctx context.Context, addr uint32) uint64 {
	u, ok := v.mem.ReadUint64Le(ctx, addr)
	if !ok {
		panic(errors.Errorf("out of memory reading uint64 at %d", addr))
	}
	return u
}

// SetUint64 writes a little-endian uint64 at addr.
func (v *View) SetUint64(ctx context.Context, addr uint32, val uint64) {
	if ok := v.mem.WriteUint64Le(ctx, addr, val); !ok {
		panic(errors.Errorf("out of memory writing uint64 at %d", addr))
	}
}

// GetInt64 synthesises a 64-bit read from two little-endian 32-bit halves,
// as the guest ABI (and JS's safe-integer float64 stack slots) expects:
// low + high*2^32, with the sign taken from the high word.
//
// This intentionally does not delegate to GetUint64/ReadUint64Le: the guest
// writes these as two discrete 32-bit stores, and bit-identical behavior
// (rather than byte-range coincidence) is what spec round-trip tests check.
func (v *View) GetInt64(ctx context.Context, addr uint32) int64 {
	low := v.GetUint32(ctx, addr)
	high := v.GetInt32(ctx, addr+4)
	return int64(high)*0x100000000 + int64(low)
}

// SetInt64 writes val as two little-endian 32-bit halves at addr, addr+4.
func (v *View) SetInt64(ctx context.Context, addr uint32, val int64) {
	v.SetUint32(ctx, addr, uint32(val))
	v.SetInt32(ctx, addr+4, int32(val>>32))
}

// LoadSlice reads the (ptr, len) pair at addr, addr+8 and returns a
// write-through view of that range: mutating the returned slice mutates the
// guest's memory directly.
func (v *View) LoadSlice(ctx context.Context, addr uint32) []byte {
	ptr := v.GetUint32(ctx, addr)
	length := v.GetUint32(ctx, addr+8)
	return v.mustRead(ctx, "slice", ptr, length)
}

// LoadString reads the (ptr, len) pair at addr, addr+8 and decodes the bytes
// as UTF-8.
func (v *View) LoadString(ctx context.Context, addr uint32) string {
	ptr := v.GetUint32(ctx, addr)
	length := v.GetUint32(ctx, addr+8)
	return string(v.mustRead(ctx, "string", ptr, length))
}

// ReadBytes reads byteCount bytes at offset, panicking if out of range.
func (v *View) ReadBytes(ctx context.Context, offset, byteCount uint32) []byte {
	return v.mustRead(ctx, "bytes", offset, byteCount)
}

// WriteBytes writes val at offset, panicking if out of range.
func (v *View) WriteBytes(ctx context.Context, offset uint32, val []byte) {
	v.mustWrite(ctx, "bytes", offset, val)
}
