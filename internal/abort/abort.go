// Package abort provides a one-shot cancellation signal shared between a
// Player's goroutines and anything driving it (session teardown, driver
// disconnect, an explicit stop command).
package abort

import "sync"

// Signal is a broadcastable, idempotent abort flag. The zero value is
// ready to use.
type Signal struct {
	once sync.Once
	ch   chan struct{}
	init sync.Once
}

func (s *Signal) lazyInit() {
	s.init.Do(func() {
		s.ch = make(chan struct{})
	})
}

// Fire trips the signal. Safe to call multiple times and from multiple
// goroutines; only the first call has effect.
func (s *Signal) Fire() {
	s.lazyInit()
	s.once.Do(func() {
		close(s.ch)
	})
}

// Done returns a channel that is closed once Fire has been called.
func (s *Signal) Done() <-chan struct{} {
	s.lazyInit()
	return s.ch
}

// Fired reports whether Fire has already been called.
func (s *Signal) Fired() bool {
	s.lazyInit()
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
