// Package timer implements the Timer Service from spec.md §4.6: host-side
// wall-clock timers that resume a suspended guest instance, with the
// resume-until-deregistered discipline a single-threaded cooperative guest
// requires.
//
// Grounded on spec.md §4.6; the teacher (internal/gojs/runtime.go) stubs
// ScheduleTimeoutEvent/ClearTimeoutEvent entirely since its signal-handling
// story never schedules real timeouts. This package implements the full
// contract the spec demands.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wasmrun/gojshost/internal/obslog"
)

// fireCompensationMs is added to every requested delay to compensate for
// early firing observed in common host timer implementations.
const fireCompensationMs = 1

// Resumer is invoked each time a scheduled timer fires. It resumes guest
// execution and returns once the guest yields control back to the host.
type Resumer interface {
	Resume(ctx context.Context) error
}

// Service allocates monotonically increasing ids for scheduled timeouts and
// drives the resume loop when they fire.
type Service struct {
	log    *logrus.Entry
	resume Resumer
	runID  string

	mu     sync.Mutex
	nextID uint32
	timers map[uint32]*time.Timer
}

// New returns a Service that calls resume.Resume on every fire. runID
// correlates this service's log lines with the Driver instance that owns it.
func New(resume Resumer, log *logrus.Entry, runID string) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{log: log, resume: resume, runID: runID, nextID: 1, timers: map[uint32]*time.Timer{}}
}

// Schedule registers a timer that resumes the guest after delayMs (plus the
// fire compensation), returning the id the guest can later pass to Clear.
func (s *Service) Schedule(ctx context.Context, delayMs int32) uint32 {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	delay := time.Duration(delayMs+fireCompensationMs) * time.Millisecond
	t := time.AfterFunc(delay, func() { s.fire(ctx, id) })
	s.timers[id] = t
	s.mu.Unlock()
	return id
}

// fire invokes resume once, then keeps invoking it as long as the guest has
// not deregistered id via Clear — a guest that forgets to clear a fired,
// one-shot timer must still observe forward progress.
func (s *Service) fire(ctx context.Context, id uint32) {
	for {
		if err := s.resume.Resume(ctx); err != nil {
			s.log.WithField("timerID", id).WithError(err).Warn("resume failed on timer fire")
			return
		}
		s.mu.Lock()
		_, stillPending := s.timers[id]
		s.mu.Unlock()
		if !stillPending {
			return
		}
		obslog.TimerMisbehavior(s.log, s.runID, id)
	}
}

// Clear cancels the host timer for id and removes its registration.
// Clearing an id that already fired (but was not yet deregistered by the
// guest) or one that does not exist is a no-op.
func (s *Service) Clear(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return
	}
	t.Stop()
	delete(s.timers, id)
}

// Pending reports whether id is still registered, for diagnostics and tests.
func (s *Service) Pending(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}
