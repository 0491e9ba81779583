// Package viewstate composes repository streams into UI-ready state.
// Managers hold independent state slices behind a mutex, apply optimistic
// local edits, and expose coherent snapshots plus a coalescing update
// signal. A failed optimistic mutation always rolls the local flip back
// and records an error message; the next live snapshot is the sole source
// of confirmed state.
package viewstate

import "context"

// subscription tracks one cancellable state-slice listener. Each new
// request supersedes the previous one: the old context is canceled (which
// releases the remote listener) and a generation bump makes any of its
// in-flight emissions non-authoritative.
type subscription struct {
	cancel context.CancelFunc
	gen    uint64
}

// next cancels the current listener and returns the ctx and generation
// for its replacement. Callers must hold the owning manager's mutex.
func (s *subscription) next(parent context.Context) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	return ctx, s.gen
}

// stop cancels the current listener, if any.
func (s *subscription) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
