// Package testmem provides a minimal in-process implementation of
// api.Memory (and a thin api.Module around it) for unit tests that need a
// linear memory without instantiating a real wazero runtime or guest
// binary. This mirrors the isolation style of the teacher's own
// internal/gojs/values and internal/gojs/fs_unit_test.go unit tests, which
// exercise host-bridge logic without a compiled wasm fixture.
package testmem

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"
)

// Memory is a growable byte buffer implementing api.Memory.
type Memory struct {
	Bytes []byte
}

// New returns a Memory of the given size, zero-filled.
func New(size uint32) *Memory {
	return &Memory{Bytes: make([]byte, size)}
}

var _ api.Memory = (*Memory)(nil)

func (m *Memory) Size(context.Context) uint32 { return uint32(len(m.Bytes)) }

func (m *Memory) Grow(_ context.Context, deltaPages uint32) (uint32, bool) {
	prevPages := uint32(len(m.Bytes)) / 65536
	m.Bytes = append(m.Bytes, make([]byte, deltaPages*65536)...)
	return prevPages, true
}

func (m *Memory) inRange(offset, byteCount uint32) bool {
	return uint64(offset)+uint64(byteCount) <= uint64(len(m.Bytes))
}

func (m *Memory) ReadByte(_ context.Context, offset uint32) (byte, bool) {
	if !m.inRange(offset, 1) {
		return 0, false
	}
	return m.Bytes[offset], true
}

func (m *Memory) ReadUint16Le(_ context.Context, offset uint32) (uint16, bool) {
	if !m.inRange(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Bytes[offset:]), true
}

func (m *Memory) ReadUint32Le(_ context.Context, offset uint32) (uint32, bool) {
	if !m.inRange(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Bytes[offset:]), true
}

func (m *Memory) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	u, ok := m.ReadUint32Le(ctx, offset)
	return api.DecodeF32(uint64(u)), ok
}

func (m *Memory) ReadUint64Le(_ context.Context, offset uint32) (uint64, bool) {
	if !m.inRange(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Bytes[offset:]), true
}

func (m *Memory) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	u, ok := m.ReadUint64Le(ctx, offset)
	return api.DecodeF64(u), ok
}

func (m *Memory) Read(_ context.Context, offset, byteCount uint32) ([]byte, bool) {
	if !m.inRange(offset, byteCount) {
		return nil, false
	}
	return m.Bytes[offset : offset+byteCount : offset+byteCount], true
}

func (m *Memory) WriteByte(_ context.Context, offset uint32, v byte) bool {
	if !m.inRange(offset, 1) {
		return false
	}
	m.Bytes[offset] = v
	return true
}

func (m *Memory) WriteUint16Le(_ context.Context, offset uint32, v uint16) bool {
	if !m.inRange(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.Bytes[offset:], v)
	return true
}

func (m *Memory) WriteUint32Le(_ context.Context, offset, v uint32) bool {
	if !m.inRange(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Bytes[offset:], v)
	return true
}

func (m *Memory) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, uint32(api.EncodeF32(v)))
}

func (m *Memory) WriteUint64Le(_ context.Context, offset uint32, v uint64) bool {
	if !m.inRange(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Bytes[offset:], v)
	return true
}

func (m *Memory) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, api.EncodeF64(v))
}

func (m *Memory) Write(_ context.Context, offset uint32, v []byte) bool {
	if !m.inRange(offset, uint32(len(v))) {
		return false
	}
	copy(m.Bytes[offset:], v)
	return true
}

// Module is a minimal api.Module exposing a Memory plus whatever fake
// exported functions (see Func) a test registers in Functions.
type Module struct {
	Mem       *Memory
	Functions map[string]api.Function
}

var _ api.Module = (*Module)(nil)

func NewModule(mem *Memory) *Module {
	return &Module{Mem: mem, Functions: map[string]api.Function{}}
}

func (m *Module) Name() string           { return "test" }
func (m *Module) String() string         { return "module[test]" }
func (m *Module) Memory() api.Memory     { return m.Mem }
func (m *Module) ExportedMemory(string) api.Memory { return m.Mem }

func (m *Module) ExportedFunction(name string) api.Function { return m.Functions[name] }
func (m *Module) ExportedGlobal(string) api.Global          { return nil }

func (m *Module) CloseWithExitCode(context.Context, uint32) error { return nil }
func (m *Module) Close(context.Context) error                    { return nil }

// Func is a fake api.Function backed by a plain Go closure, for registering
// exported functions like "getsp"/"resume"/"run" a test needs a guest to
// expose without compiling a real wasm binary.
type Func struct {
	Fn func(ctx context.Context, params []uint64) ([]uint64, error)
}

var _ api.Function = (*Func)(nil)

func (f *Func) Definition() api.FunctionDefinition { return nil }

func (f *Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.Fn(ctx, params)
}
