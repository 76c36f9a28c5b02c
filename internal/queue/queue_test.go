package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"nightingale/internal/driver"
	"nightingale/internal/track"
)

// fakeHandle is a minimal driver.Handle for queue tests; it does not
// simulate actual playback, only tracks Stop/Resume calls.
type fakeHandle struct {
	id      uint64
	stopped bool
}

func (h *fakeHandle) ID() uint64        { return h.id }
func (h *fakeHandle) Stop()             { h.stopped = true }
func (h *fakeHandle) SetVolume(float64) {}
func (h *fakeHandle) Pause()            {}
func (h *fakeHandle) Resume()           {}
func (h *fakeHandle) Seek(context.Context, time.Duration) error { return nil }

func newCountingMaterialize(fail map[string]bool) (Materialize, *uint64) {
	var n uint64
	return func(src track.PlaySource, startPaused bool) (driver.Handle, track.Meta, error) {
		if fail[src.URL] {
			return nil, track.Meta{}, errors.New("materialize failed")
		}
		n++
		return &fakeHandle{id: n}, track.Meta{Title: src.URL}, nil
	}, &n
}

func link(url string) track.PlaySource {
	return track.PlaySource{Kind: track.KindLink, URL: url}
}

func TestEnqueueOrderingIdle(t *testing.T) {
	m, _ := newCountingMaterialize(nil)
	q := New(m)

	didStart, err := q.Enqueue(link("a"))
	if err != nil || !didStart {
		t.Fatalf("first enqueue: didStart=%v err=%v", didStart, err)
	}
	if _, err := q.Enqueue(link("b")); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(link("c")); err != nil {
		t.Fatal(err)
	}

	if err := q.PlayNext(); err != nil {
		t.Fatal(err)
	}
	if q.Current().Meta.Title != "a" {
		t.Fatalf("expected a current, got %v", q.Current().Meta.Title)
	}

	var order []string
	order = append(order, q.Current().Meta.Title)
	for {
		failed, err := q.PlayLoadNext()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(failed) != 0 {
			t.Fatalf("unexpected failures: %v", failed)
		}
		cur := q.Current()
		if cur == nil {
			break
		}
		order = append(order, cur.Meta.Title)
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestTripleSlotInvariant(t *testing.T) {
	m, _ := newCountingMaterialize(nil)
	q := New(m)
	q.Enqueue(link("a"))
	q.Enqueue(link("b"))
	q.Enqueue(link("c"))

	if q.Current() != nil {
		t.Fatal("current should be nil before first PlayNext")
	}
	// current == nil => next == nil or next materialized; here next is "a", materialized.
	if q.Next() == nil {
		t.Fatal("next should hold a materialized track")
	}

	q.PlayNext()
	q.LoadNext()
	// rest != empty => next != nil
	if len(q.Rest()) > 0 && q.Next() == nil {
		t.Fatal("rest non-empty but next is nil")
	}
}

func TestRepeatFiniteCorrectness(t *testing.T) {
	m, _ := newCountingMaterialize(nil)
	q := New(m)
	q.SetRepeat(Repeat{Kind: RepeatFinite, Count: 2})

	q.Enqueue(link("a"))
	q.Enqueue(link("b"))
	q.Enqueue(link("c"))
	q.PlayNext()

	var starts []string
	starts = append(starts, q.Current().Meta.Title)
	for i := 0; i < 20; i++ {
		failed, err := q.PlayLoadNext()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(failed) != 0 {
			t.Fatalf("unexpected failures: %v", failed)
		}
		cur := q.Current()
		if cur == nil {
			break
		}
		starts = append(starts, cur.Meta.Title)
	}

	const n, k = 3, 2
	if len(starts) != n*(k+1) {
		t.Fatalf("expected %d starts, got %d: %v", n*(k+1), len(starts), starts)
	}
	want := []string{"a", "b", "c", "a", "b", "c", "a", "b", "c"}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("start %d: got %s want %s (full: %v)", i, starts[i], want[i], starts)
		}
	}
}

func TestRepeatSkipsFailedRefillNonFatally(t *testing.T) {
	fail := map[string]bool{"b": true}
	m, _ := newCountingMaterialize(fail)
	q := New(m)
	q.SetRepeat(Repeat{Kind: RepeatInfinite})

	q.Enqueue(link("a"))
	q.Enqueue(link("b"))
	q.PlayNext()

	var starts []string
	starts = append(starts, q.Current().Meta.Title)
	for i := 0; i < 6; i++ {
		failed, err := q.PlayLoadNext()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, f := range failed {
			if f.URL != "b" {
				t.Fatalf("unexpected failed descriptor: %v", f)
			}
		}
		cur := q.Current()
		if cur == nil {
			break
		}
		starts = append(starts, cur.Meta.Title)
	}

	for _, s := range starts {
		if s == "b" {
			t.Fatalf("b should never have started (always fails materialize): %v", starts)
		}
	}
	if len(starts) < 3 {
		t.Fatalf("expected repeat to keep restarting a: %v", starts)
	}
}

func TestSetRepeatOffClearsBackup(t *testing.T) {
	m, _ := newCountingMaterialize(nil)
	q := New(m)
	q.SetRepeat(Repeat{Kind: RepeatInfinite})
	q.Enqueue(link("a"))
	q.SetRepeat(Repeat{Kind: RepeatOff})

	if len(q.backup) != 0 {
		t.Fatalf("expected backup cleared, got %v", q.backup)
	}
}
