// Package sysshim implements the minimal console and syscall surface
// described in spec.md §4.5: a line-buffered console writer plus a table of
// filesystem/process entrypoints that all fail with ENOSYS, since the guest
// programs this host runs have no real filesystem or process identity.
//
// This mirrors the ambient-syscall role of the teacher's internal/gojs/fs.go
// and custom/fs.go name tables, minus the VFS those implement (spec.md's
// Non-goals exclude a real filesystem).
package sysshim

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wasmrun/gojshost/internal/obslog"
)

// ENOSYS is the sentinel error every unimplemented entrypoint returns.
var ENOSYS = errors.New("ENOSYS")

// Shim buffers console output per file descriptor and counts hits against
// the stub syscall table, for diagnostics.
type Shim struct {
	log   *logrus.Entry
	runID string

	stdout io.Writer
	stderr io.Writer

	bufOut bytes.Buffer
	bufErr bytes.Buffer

	stubHits map[string]uint64
}

// New returns a Shim writing flushed lines to stdout/stderr.
func New(stdout, stderr io.Writer, log *logrus.Entry) *Shim {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Shim{log: log, stdout: stdout, stderr: stderr, stubHits: map[string]uint64{}}
}

// Write implements runtime.wasmWrite for fd 1 (stdout) or fd 2 (stderr):
// bytes accumulate in a per-fd buffer; every complete line (through the
// last newline) is flushed to the sink and dropped from the buffer.
func (s *Shim) Write(_ context.Context, fd uint32, p []byte) (int, error) {
	var buf *bytes.Buffer
	var sink io.Writer
	switch fd {
	case 1:
		buf, sink = &s.bufOut, s.stdout
	case 2:
		buf, sink = &s.bufErr, s.stderr
	default:
		return 0, errors.Errorf("unexpected fd %d", fd)
	}

	buf.Write(p)
	if idx := bytes.LastIndexByte(buf.Bytes(), '\n'); idx >= 0 {
		flush := buf.Bytes()[:idx+1]
		if _, err := sink.Write(flush); err != nil {
			return 0, errors.Wrap(err, "writing buffered console output")
		}
		remainder := append([]byte(nil), buf.Bytes()[idx+1:]...)
		buf.Reset()
		buf.Write(remainder)
	}
	return len(p), nil
}

// Stats returns a snapshot of how many times each stub entrypoint was
// invoked, keyed by its name (e.g. "fs.open", "process.chdir").
func (s *Shim) Stats() map[string]uint64 {
	out := make(map[string]uint64, len(s.stubHits))
	for k, v := range s.stubHits {
		out[k] = v
	}
	return out
}

// SetRunID attaches the correlation id a Driver stamped this instance's run
// with, so subsequent Stub hits log it alongside the syscall name.
func (s *Shim) SetRunID(runID string) { s.runID = runID }

// Stub records a hit against name and returns ENOSYS, logging at debug
// level since a guest hitting one of these is expected, not exceptional.
func (s *Shim) Stub(name string) error {
	s.stubHits[name]++
	obslog.StubHit(s.log, s.runID, name, s.stubHits[name])
	return ENOSYS
}

// ProcessIdentity values: uid, gid, euid, egid, and similar queries always
// resolve to -1, matching a sandboxed guest with no real process identity.
const ProcessIdentity = -1
