// Package argsenv serialises argv and envp into a guest's linear memory
// using the fixed layout Go's GOOS=js runtime expects: strings starting at
// offset 4096, 8-byte aligned, followed by a null-terminated pointer array
// for argv then for envp, with the whole region capped at 4096+8192 bytes.
package argsenv

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/wasmrun/gojshost/internal/memview"
)

const (
	// EndOfPageZero is the first address available for argv/env strings;
	// everything below is reserved by the guest's data section.
	EndOfPageZero = uint32(4096)
	// MaxArgsAndEnviron bounds the argv/env region to 8KiB.
	MaxArgsAndEnviron = uint32(8192)
	// WasmMinDataAddr is the first address the guest may use for its own data.
	WasmMinDataAddr = EndOfPageZero + MaxArgsAndEnviron
)

// ErrTooLarge is returned when argv+env don't fit in the 8192-byte window.
var ErrTooLarge = errors.New("arguments/environment too large")

// Write serialises args then sorted "KEY=VALUE" entries from env into the
// guest's memory via view, returning the argc/argv the guest's "run" export
// expects as its two parameters.
//
// Environment keys are sorted lexicographically before writing; this
// ordering is observable by the guest and is part of the contract, not an
// implementation detail.
func Write(ctx context.Context, view *memview.View, args []string, env map[string]string) (argc, argv uint32, err error) {
	argc = uint32(len(args))
	offset := EndOfPageZero

	envLines := make([]string, 0, len(env))
	for k, v := range env {
		envLines = append(envLines, k+"="+v)
	}
	sort.Strings(envLines)

	writeStr := func(s string) uint32 {
		ptr := offset
		b := append([]byte(s), 0)
		view.WriteBytes(ctx, offset, b)
		offset += uint32(len(b))
		if pad := offset % 8; pad != 0 {
			offset += 8 - pad
		}
		return ptr
	}

	ptrs := make([]uint32, 0, len(args)+1+len(envLines)+1)
	for _, a := range args {
		ptrs = append(ptrs, writeStr(a))
	}
	ptrs = append(ptrs, 0)
	for _, e := range envLines {
		ptrs = append(ptrs, writeStr(e))
	}
	ptrs = append(ptrs, 0)

	argv = offset
	for _, ptr := range ptrs {
		view.SetUint64(ctx, offset, uint64(ptr))
		offset += 8
	}

	if offset >= WasmMinDataAddr {
		return 0, 0, ErrTooLarge
	}
	return argc, argv, nil
}
