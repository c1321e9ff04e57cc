// Package obslog provides New, a JSON-formatted sirupsen/logrus logger
// constructor, and a handful of named events (guest exit, timer warnings,
// ENOSYS stub hits, func-wrapper collisions) so the driver, timer service
// and sys shim log those consistently instead of each inventing field names.
// The CLI builds its own logrus logger rather than calling New.
package obslog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a root *logrus.Entry writing to w (os.Stderr if nil) at the
// given level, with the same JSON formatter across every component so log
// aggregation doesn't have to special-case this module's output.
func New(w io.Writer, level logrus.Level) *logrus.Entry {
	if w == nil {
		w = os.Stderr
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(logger)
}

// GuestExit logs a guest module's termination, tagging the correlation id
// a driver run was stamped with (spec.md §5's multi-instance guidance).
func GuestExit(log *logrus.Entry, runID string, code int32) {
	log.WithFields(logrus.Fields{"runID": runID, "exitCode": code}).Info("guest module exited")
}

// TimerMisbehavior logs a guest that failed to deregister a fired timer.
func TimerMisbehavior(log *logrus.Entry, runID string, timerID uint32) {
	log.WithFields(logrus.Fields{"runID": runID, "timerID": timerID}).
		Warn("guest did not deregister fired timer, resuming again")
}

// StubHit logs an ENOSYS stub syscall invocation.
func StubHit(log *logrus.Entry, runID, name string, hits uint64) {
	log.WithFields(logrus.Fields{"runID": runID, "syscall": name, "totalHits": hits}).
		Debug("stub syscall invoked, returning ENOSYS")
}

// FuncWrapperCollision logs a func-wrapper invoked while another event was
// already pending (spec.md §4.9's rejected re-entrant staging).
func FuncWrapperCollision(log *logrus.Entry, runID string, callbackID, collidingID uint32) {
	log.WithFields(logrus.Fields{"runID": runID, "callbackID": callbackID, "collidingWithID": collidingID}).
		Warn("func-wrapper invoked while an event is already pending")
}
