// Package rtstate holds the mutable, per-instance state the Import Table
// (internal/hostimports) reads and writes while a guest module runs: the
// value table, the memory view, the console/syscall shim, the timer
// registry, and the single pending-event slot the Func-Wrapper Factory
// stages before resuming the guest.
//
// This is the generalized, externally-importable analogue of the teacher's
// internal/gojs state.go `State` type; it is deliberately a plain data
// holder so hostimports and bridge (which owns its lifecycle) can both
// depend on it without a package cycle.
package rtstate

import (
	"context"
	"fmt"
	"time"

	"github.com/wasmrun/gojshost/internal/jsvalue"
	"github.com/wasmrun/gojshost/internal/memview"
	"github.com/wasmrun/gojshost/internal/sysshim"
	"github.com/wasmrun/gojshost/internal/timer"
)

// Event is the pending-event record spec.md §3 describes: staged by a
// func-wrapper invocation, read by the guest during resume, and filled in
// with a result before the guest returns control to the host.
type Event struct {
	ID     uint32
	This   jsvalue.Ref
	Args   *jsvalue.ObjectArray
	Result interface{}
}

// Get implements jsvalue.Getter, mirroring the teacher's event.get.
func (e *Event) Get(_ context.Context, propertyKey string) interface{} {
	switch propertyKey {
	case "id":
		return e.ID
	case "this":
		return e.This
	case "args":
		return e.Args
	}
	panic(fmt.Sprintf("TODO: event.%s", propertyKey))
}

// State is the per-run runtime state, seeded as the value table's
// embedder-self entry (id 6) so the guest's own `_makeFuncWrapper` and
// `_pendingEvent` plumbing can address it by reference like any other value.
type State struct {
	View   *memview.View
	Values *jsvalue.Values
	Sys    *sysshim.Shim
	Timers *timer.Service

	TimeOrigin time.Time

	PendingEvent *Event
	LastEvent    *Event

	// MakeFuncWrapper is invoked for the guest's `_makeFuncWrapper` call,
	// constructing a host-callable proxy for the function id the guest
	// passes. Wired by the bridge package post-construction, since building
	// the actual wrapper needs the api.Module (to call "resume").
	MakeFuncWrapper func(id uint32) jsvalue.Callable

}

// New constructs a State; View/Sys/Timers are filled in afterward by the
// bridge driver once the guest module and its exported functions exist.
func New(timeOrigin time.Time) *State {
	return &State{TimeOrigin: timeOrigin}
}

// Get implements jsvalue.Getter for the embedder-self object.
func (s *State) Get(_ context.Context, propertyKey string) interface{} {
	switch propertyKey {
	case "_pendingEvent":
		if s.PendingEvent == nil {
			return jsvalue.Undefined
		}
		return s.PendingEvent
	}
	panic(fmt.Sprintf("TODO: state.%s", propertyKey))
}

// Call implements jsvalue.Caller for the embedder-self object: the only
// method the guest invokes on itself is `_makeFuncWrapper`, used by
// js.FuncOf to mint a callable proxy for a guest-side function id.
func (s *State) Call(_ context.Context, _ jsvalue.Ref, method string, args ...interface{}) (interface{}, error) {
	switch method {
	case "_makeFuncWrapper":
		id := uint32(args[0].(float64))
		return s.MakeFuncWrapper(id), nil
	}
	panic(fmt.Sprintf("TODO: state.%s", method))
}

// Reset drops all per-run state. Called on guest exit; the pending event and
// value table do not persist across runs (spec.md §3 Lifecycles).
func (s *State) Reset() {
	s.Values.Reset()
	s.PendingEvent = nil
	s.LastEvent = nil
}
