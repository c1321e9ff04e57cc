package bridge

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wasmrun/gojshost/internal/jsvalue"
	"github.com/wasmrun/gojshost/internal/obslog"
	"github.com/wasmrun/gojshost/internal/rtstate"
)

// ErrEventPending is returned when a callback fires while another pending
// event is still staged: spec.md §4.9 models a single pending-event slot,
// so concurrent staging is rejected rather than silently clobbering one.
var ErrEventPending = errors.New("bridge: a pending event is already staged")

// FuncWrapper is the host-callable proxy for a guest-side function created
// via the guest's js.FuncOf ("_makeFuncWrapper" on the embedder-self
// object). Invoking it stages a pending event and resumes the guest so its
// registered closure can observe the call and produce a result — this is
// spec.md §4.9's Func-Wrapper Factory.
//
// Grounded on the teacher's internal/gojs/syscall.go funcWrapper type.
type FuncWrapper struct {
	ID    uint32
	State *rtstate.State
	Mod   api.Module

	// RunID/Log are optional; when Log is nil the reentrancy-collision
	// warning falls back to a bare standard-logger entry so FuncWrapper
	// values built directly in tests don't need to supply either.
	RunID string
	Log   *logrus.Entry
}

var _ jsvalue.Callable = (*FuncWrapper)(nil)

// Invoke implements jsvalue.Callable for the common case where the guest is
// invoked with no particular receiver (e.g. a JSVal method dispatch, which
// drops "this"). It is equivalent to InvokeWithThis(ctx, jsvalue.RefUndefined, args...).
func (f *FuncWrapper) Invoke(ctx context.Context, args ...interface{}) (interface{}, error) {
	return f.InvokeWithThis(ctx, jsvalue.RefUndefined, args...)
}

// InvokeWithThis stages {id, this, args} as the pending event, calls the
// guest's exported "resume", and returns whatever the guest wrote into the
// event's result field before returning control to the host. Callers that
// hold a concrete receiver Ref to pass through (e.g. a Promise executor
// invoking a guest-supplied success/failure callback) should call this
// directly rather than going through the generic Callable interface.
func (f *FuncWrapper) InvokeWithThis(ctx context.Context, this jsvalue.Ref, args ...interface{}) (interface{}, error) {
	if f.State.PendingEvent != nil {
		log := f.Log
		if log == nil {
			log = logrus.NewEntry(logrus.StandardLogger())
		}
		obslog.FuncWrapperCollision(log, f.RunID, f.ID, f.State.PendingEvent.ID)
		return nil, ErrEventPending
	}

	e := &rtstate.Event{
		ID:   f.ID,
		This: this,
		Args: &jsvalue.ObjectArray{Slice: append([]interface{}(nil), args...)},
	}

	f.State.PendingEvent = e
	f.State.LastEvent = e

	_, err := f.Mod.ExportedFunction("resume").Call(ctx)
	f.State.PendingEvent = nil
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			// The guest exited (possibly via a panic) while handling this
			// callback; let unwinding continue rather than surface an error
			// from what is, from the guest's perspective, a synchronous call.
			return nil, nil
		}
		return nil, err
	}

	return e.Result, nil
}
