package subvisor

import (
	"context"
	"sync"
	"time"
)

// Status represents the lifecycle state of a Subscription.
type Status int

const (
	// StatusInitial is the state of a Subscription that has never been
	// started.
	StatusInitial Status = iota

	// StatusRunning means the listener goroutine is active and
	// delivering events.
	StatusRunning

	// StatusHalting means a stop has been requested and the listener is
	// shutting down cooperatively.
	StatusHalting

	// StatusStopped means the listener has terminated following a stop
	// request. Stopped is terminal: the Subscription cannot be
	// restarted.
	StatusStopped

	// StatusDead means the listener terminated with an error. A dead
	// Subscription can be revived with a new Listen call, typically by
	// a WatchDog.
	StatusDead

	// StatusDisposed means the Subscription has been disposed of and
	// all its internal state cleared. Disposed is terminal.
	StatusDisposed
)

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusRunning:
		return "running"
	case StatusHalting:
		return "halting"
	case StatusStopped:
		return "stopped"
	case StatusDead:
		return "dead"
	case StatusDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

func (s Status) terminal() bool {
	return s == StatusStopped || s == StatusDisposed
}

// waitPollInterval is the fixed interval WaitFor polls the state at.
const waitPollInterval = 20 * time.Millisecond

// State is the mutable lifecycle cell shared by a Subscription, its
// stop monitor and the WatchDog. It records the current Status and the
// last error captured on transition into StatusDead.
//
// Writes follow last-writer-wins semantics: only the owning
// Subscription's goroutines write it, except that terminal states are
// sticky: a failure reported after the Subscription stopped or was
// disposed of is discarded.
type State struct {
	mx      sync.RWMutex
	status  Status
	lastErr error
}

// NewState returns a State in StatusInitial.
func NewState() *State {
	return &State{status: StatusInitial}
}

// Status returns the current status.
func (s *State) Status() Status {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.status
}

// Err returns the error captured on the last transition into
// StatusDead, if any.
func (s *State) Err() error {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.lastErr
}

func (s *State) set(status Status) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.status == StatusDisposed {
		return
	}

	s.status = status
}

// fail transitions into StatusDead, retaining the error. Terminal
// states are unaffected, so a detached listener failing after a forced
// stop cannot resurrect the state.
func (s *State) fail(err error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.status.terminal() {
		return
	}

	s.status = StatusDead
	s.lastErr = err
}

// WaitFor blocks until the state reaches one of the target states,
// polling at a short fixed interval.
//
// It returns nil when a target state has been reached, ErrWaitTimeout
// when the timeout elapsed first, or the context error when the context
// was canceled.
func (s *State) WaitFor(ctx context.Context, timeout time.Duration, targets ...Status) error {
	isTarget := func(status Status) bool {
		for _, target := range targets {
			if status == target {
				return true
			}
		}

		return false
	}

	if isTarget(s.Status()) {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			return ErrWaitTimeout

		case <-ticker.C:
			if isTarget(s.Status()) {
				return nil
			}
		}
	}
}
