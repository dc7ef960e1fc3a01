// Package deadline provides the one-shot operation timer used to bound a
// single in-flight socket read, write, connect, or accept.
package deadline

import (
	"sync/atomic"
	"time"
)

// Shutter is the subset of pkg/transport.Socket a Timer needs: forcibly
// tearing the connection down so whatever is blocked on it returns an
// error. Go has no cancellation token for a blocking syscall, so expiry
// closes the socket out from under the pending operation instead.
type Shutter interface {
	Shutdown()
	Close() error
}

// Timer is a one-shot deadline attached to a single I/O operation. Arm
// starts it; Cancel stops it. A Timer must not be reused across operations.
type Timer struct {
	t       *time.Timer
	expired atomic.Bool
}

// Arm starts a Timer that shuts down s after d. A zero or negative d means
// "no deadline" and Arm returns nil — callers must tolerate a nil *Timer
// and treat Cancel/Expired on it as a no-op/false.
func Arm(d time.Duration, s Shutter) *Timer {
	if d <= 0 {
		return nil
	}
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		tm.expired.Store(true)
		s.Shutdown()
	})
	return tm
}

// Cancel stops the timer. Callers cancel on every completion path,
// success or failure, unconditionally. Safe to call on a nil Timer.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.t.Stop()
}

// Expired reports whether the deadline fired before Cancel was called, so
// a caller whose blocked read or write returned an error can tell a
// forced shutdown apart from an ordinary I/O failure. Safe to call on a
// nil Timer, which reports false.
func (t *Timer) Expired() bool {
	if t == nil {
		return false
	}
	return t.expired.Load()
}
