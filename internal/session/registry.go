package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nightingale/internal/apierr"
	"nightingale/internal/concurrent"
	"nightingale/internal/events"
	"nightingale/internal/playback"
	"nightingale/internal/player"
	"nightingale/internal/source"
)

// Registry is the concurrent map of live Sessions: lock-free reads, no
// global lock on the hot path, UUID-keyed sessions each owning a
// Playback.
type Registry struct {
	sessions concurrent.Map[string, *Session]

	sources   *source.Registry
	newDriver playback.DriverFactory
	opts      Options
	counters  player.Counters
}

// SetPlayerCounters installs the lifecycle counter sink handed down to
// every Playback (and thus Player) this registry creates.
func (r *Registry) SetPlayerCounters(c player.Counters) {
	r.counters = c
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.Len()
}

// PlayerCount reports the number of live Players across all sessions.
func (r *Registry) PlayerCount() int {
	n := 0
	r.sessions.Range(func(_ string, s *Session) bool {
		n += s.pb.Count()
		return true
	})
	return n
}

// New creates an empty Registry. sources and newDriver are threaded into
// every Playback this registry creates; opts governs resume behavior for
// every Session.
func New(sources *source.Registry, newDriver playback.DriverFactory, opts Options) *Registry {
	return &Registry{
		sources:   sources,
		newDriver: newDriver,
		opts:      opts,
	}
}

// Create allocates a new Session for userID (the connecting client's bot
// user id, carried into the session's Playback) with a freshly generated
// UUID, rejection-sampled against live keys so it cannot collide.
func (r *Registry) Create(userID uint64) *Session {
	var id string
	for {
		id = uuid.NewString()
		if _, exists := r.sessions.Load(id); !exists {
			break
		}
	}

	ch := events.NewChan()
	sender := events.NewSender(ch)
	pb := playback.New(userID, sender, r.sources, r.newDriver)
	pb.SetCounters(r.counters)

	s := &Session{
		ID:      id,
		UserID:  userID,
		Options: r.opts,
		pb:      pb,
		recv:    events.NewSlot(events.NewReceiver(ch)),
	}
	r.sessions.Store(id, s)
	return s
}

// Get returns the session identified by id, or a NotPresent error.
func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions.Load(id)
	if !ok {
		return nil, apierr.NotPresent(fmt.Sprintf("session %q not found", id))
	}
	return s, nil
}

// AttachSocket attaches a new socket to session id, returning the
// Receiver a WebSocketHandler should drain. Returns Conflict if a socket
// is already attached.
func (r *Registry) AttachSocket(id string) (*Session, *events.Receiver, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, nil, err
	}
	recv, ok := s.attachSocket()
	if !ok {
		return nil, nil, apierr.Conflict(fmt.Sprintf("session %q already has an attached socket", id))
	}
	return s, recv, nil
}

// OnSocketExit reinstalls the receiver, then either destroys the session
// immediately (resume disabled) or starts a cancellable resume-window
// reaper.
func (r *Registry) OnSocketExit(s *Session, recv *events.Receiver) {
	s.mu.Lock()
	s.detachSocket(recv)
	if !s.Options.EnableResume {
		s.mu.Unlock()
		r.Destroy(s.ID)
		return
	}

	stop := make(chan struct{})
	var fired bool
	s.cleanup = func() {
		if !fired {
			fired = true
			close(stop)
		}
	}
	s.mu.Unlock()

	go func() {
		select {
		case <-time.After(s.Options.Timeout):
			r.Destroy(s.ID)
		case <-stop:
			// A resume attached before the window elapsed; nothing to do.
		}
	}()
}

// Destroy tears down session id's Playback and removes it from the
// registry. Idempotent: destroying an already-removed id is a no-op.
func (r *Registry) Destroy(id string) {
	s, ok := r.sessions.Load(id)
	if !ok {
		return
	}
	r.sessions.Delete(id)
	s.pb.DestroyAll(context.Background())
}
