// Package session implements the session registry: UUID-identified
// client connections, each owning one Playback, with a resume grace
// window that survives a socket disconnect.
package session

import (
	"sync"
	"time"

	"nightingale/internal/events"
	"nightingale/internal/playback"
)

// Options configures resume behavior, set from server-wide config at
// registry construction time (the wire protocol has no per-session
// override for these).
type Options struct {
	EnableResume bool
	Timeout      time.Duration
}

// Session is a client's logical connection: identity is a UUID, it owns
// exactly one Playback, and survives a socket disconnect for
// Options.Timeout if Options.EnableResume is set.
type Session struct {
	ID      string
	UserID  uint64
	Options Options

	pb *playback.Playback

	mu      sync.Mutex
	recv    *events.Slot
	cleanup func() // cancels the active resume reaper, if any; nil otherwise
}

// Playback returns this session's Playback container.
func (s *Session) Playback() *playback.Playback { return s.pb }

// attachSocket takes the receiver out of its slot and cancels any
// pending resume reaper; the new socket's own exit handler takes over
// teardown responsibility. ok is false if a socket is already attached.
func (s *Session) attachSocket() (*events.Receiver, bool) {
	s.mu.Lock()
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	s.mu.Unlock()
	return s.recv.Take()
}

// detachSocket reinstalls the receiver. Called by the registry once the
// WebSocketHandler's connection loop exits.
func (s *Session) detachSocket(r *events.Receiver) {
	s.recv.Put(r)
}
