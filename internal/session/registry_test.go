package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"nightingale/internal/apierr"
	"nightingale/internal/driver"
	"nightingale/internal/source"
)

type fakeHandle struct{ id uint64 }

func (h *fakeHandle) ID() uint64                                      { return h.id }
func (h *fakeHandle) Stop()                                           {}
func (h *fakeHandle) SetVolume(float64)                               {}
func (h *fakeHandle) Pause()                                          {}
func (h *fakeHandle) Resume()                                         {}
func (h *fakeHandle) Seek(context.Context, time.Duration) error       { return nil }

type fakeDriver struct {
	events chan driver.Event
	next   atomic.Uint64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{events: make(chan driver.Event, 16)}
}

func (d *fakeDriver) Connect(context.Context, driver.ConnectInfo) error { return nil }
func (d *fakeDriver) Leave(context.Context) error                       { return nil }
func (d *fakeDriver) Events() <-chan driver.Event                       { return d.events }
func (d *fakeDriver) Play(context.Context, io.Reader) (driver.Handle, error) {
	return &fakeHandle{id: d.next.Add(1)}, nil
}

func testRegistry(opts Options) *Registry {
	sources := source.New(nil, nil, nil, nil)
	return New(sources, func(guildID uint64) driver.Driver { return newFakeDriver() }, opts)
}

func TestCreateAllocatesUniqueIDs(t *testing.T) {
	r := testRegistry(Options{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := r.Create(uint64(i + 1))
		if seen[s.ID] {
			t.Fatalf("duplicate session id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if r.Count() != 100 {
		t.Fatalf("expected 100 sessions, got %d", r.Count())
	}
}

func TestAttachSocketConflict(t *testing.T) {
	r := testRegistry(Options{})
	s := r.Create(1)

	if _, _, err := r.AttachSocket(s.ID); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	_, _, err := r.AttachSocket(s.ID)
	if err == nil {
		t.Fatal("second attach should conflict")
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestSocketExitWithoutResumeDestroysSession(t *testing.T) {
	r := testRegistry(Options{EnableResume: false})
	s := r.Create(1)

	_, recv, err := r.AttachSocket(s.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.OnSocketExit(s, recv)

	if _, err := r.Get(s.ID); err == nil {
		t.Fatal("session should be gone immediately when resume is disabled")
	}
}

func TestResumeWindowKeepsSessionDiscoverable(t *testing.T) {
	r := testRegistry(Options{EnableResume: true, Timeout: 200 * time.Millisecond})
	s := r.Create(1)

	_, recv, err := r.AttachSocket(s.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.OnSocketExit(s, recv)

	// Within the window the session is still discoverable and attachable.
	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("session should survive inside the resume window: %v", err)
	}
	if _, _, err := r.AttachSocket(s.ID); err != nil {
		t.Fatalf("resume attach inside the window: %v", err)
	}
}

func TestResumeWindowExpiryDestroysSession(t *testing.T) {
	r := testRegistry(Options{EnableResume: true, Timeout: 50 * time.Millisecond})
	s := r.Create(1)

	_, recv, err := r.AttachSocket(s.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.OnSocketExit(s, recv)

	deadline := time.After(2 * time.Second)
	for {
		if _, err := r.Get(s.ID); err != nil {
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindNotPresent {
				t.Fatalf("expected NotPresent after expiry, got %v", err)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("session was never reaped after the resume window elapsed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestResumeCancelsReaper(t *testing.T) {
	r := testRegistry(Options{EnableResume: true, Timeout: 50 * time.Millisecond})
	s := r.Create(1)

	_, recv, err := r.AttachSocket(s.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.OnSocketExit(s, recv)

	// Resume inside the window cancels the reaper; the session must still
	// exist well past the original deadline.
	if _, _, err := r.AttachSocket(s.ID); err != nil {
		t.Fatalf("resume attach: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("resumed session should not be reaped: %v", err)
	}
}
