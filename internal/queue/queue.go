// Package queue implements the triple-slot track buffer described for a
// Player: a current track, a pre-materialized next, an overflow rest
// buffer, and a repeat engine that replays from stored descriptors rather
// than spent driver handles.
package queue

import (
	"errors"
	"sync"

	"nightingale/internal/driver"
	"nightingale/internal/track"
)

// ErrEmpty is returned by operations that require a current track when
// none is set.
var ErrEmpty = errors.New("queue: no current track")

// RepeatKind discriminates a Repeat mode.
type RepeatKind int

const (
	RepeatOff RepeatKind = iota
	RepeatFinite
	RepeatInfinite
)

// Repeat is the queue's repeat configuration.
type Repeat struct {
	Kind  RepeatKind
	Count uint32 // remaining cycles, meaningful only for RepeatFinite
}

// Track pairs a driver handle with the descriptor that produced it. Handle
// is nil until the track is materialized (made playable): enqueue only
// materializes a track when it becomes the queue's "next" slot or is
// played immediately via ForceTrack.
type Track struct {
	Handle driver.Handle
	Source track.PlaySource
	Meta   track.Meta
}

// Materialize turns a PlaySource into a playable driver Handle. The queue
// calls it exactly once per track, when that track leaves rest and becomes
// next (or is force-played). startPaused controls whether the returned
// handle begins paused (used for preload) or playing immediately.
type Materialize func(src track.PlaySource, startPaused bool) (driver.Handle, track.Meta, error)

// Queue is the triple-slot buffer. It is not safe for concurrent use on its
// own — callers (Player) serialize access through the ticketed mutex.
type Queue struct {
	mu sync.Mutex // guards only fields read by snapshot-style helpers from another goroutine

	current *Track
	next    *Track
	rest    []Track

	backup []track.PlaySource
	repeat Repeat

	materialize Materialize
}

// New creates an empty queue bound to the given Materialize callback.
func New(m Materialize) *Queue {
	return &Queue{materialize: m}
}

// Current returns the currently playing track, or nil.
func (q *Queue) Current() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Next returns the pre-materialized next track, or nil.
func (q *Queue) Next() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next
}

// Rest returns a copy of the pending, not-yet-materialized tail.
func (q *Queue) Rest() []Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Track, len(q.rest))
	copy(out, q.rest)
	return out
}

// Len reports the total number of tracks held across all three slots.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.rest)
	if q.current != nil {
		n++
	}
	if q.next != nil {
		n++
	}
	return n
}

// Enqueue adds a source to the queue, appending its descriptor to backup
// when repeat is active. didStart reports whether the caller must now
// drive promotion (PlayLoadNext) because the queue was empty. Enqueue
// calls Materialize itself, which is appropriate for internal refill
// paths (LoadNext, repeat) that already run under the Player's lock with
// no FIFO-ordering requirement to preserve. User-facing play requests
// should use EnqueueResolved instead: see Player.Enqueue.
func (q *Queue) Enqueue(src track.PlaySource) (didStart bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(src)
}

func (q *Queue) enqueueLocked(src track.PlaySource) (didStart bool, err error) {
	if q.repeat.Kind != RepeatOff {
		q.backup = append(q.backup, src)
	}

	if q.current == nil && q.next == nil {
		h, meta, merr := q.materialize(src, true)
		if merr != nil {
			return false, merr
		}
		q.next = &Track{Handle: h, Source: src, Meta: meta}
		return true, nil
	}

	if q.next == nil && len(q.rest) == 0 {
		h, meta, merr := q.materialize(src, true)
		if merr != nil {
			return false, merr
		}
		q.next = &Track{Handle: h, Source: src, Meta: meta}
		return false, nil
	}

	q.rest = append(q.rest, Track{Source: src})
	return false, nil
}

// EnqueueResolved places a descriptor whose driver handle has already
// been produced by the caller (typically: fetched and played outside the
// Player's ticketed lock, so the slow fetch never holds the queue).
// Unlike Enqueue, it never blocks on Materialize.
func (q *Queue) EnqueueResolved(src track.PlaySource, h driver.Handle, meta track.Meta) (didStart bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.repeat.Kind != RepeatOff {
		q.backup = append(q.backup, src)
	}

	if q.current == nil && q.next == nil {
		q.next = &Track{Handle: h, Source: src, Meta: meta}
		return true
	}
	if q.next == nil && len(q.rest) == 0 {
		q.next = &Track{Handle: h, Source: src, Meta: meta}
		return false
	}
	q.rest = append(q.rest, Track{Handle: h, Source: src, Meta: meta})
	return false
}

// ForceTrack installs src as current immediately, demoting the existing
// next (if any) back to the head of rest and the existing current behind
// it. The caller is responsible for having stopped/paused whatever was
// playing before calling this.
func (q *Queue) ForceTrack(h driver.Handle, src track.PlaySource, meta track.Meta) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next != nil {
		q.rest = append([]Track{*q.next}, q.rest...)
		q.next = nil
	}
	if q.current != nil {
		q.rest = append([]Track{*q.current}, q.rest...)
	}
	q.current = &Track{Handle: h, Source: src, Meta: meta}
}

// PlayNext promotes next to current and starts it playing (Resume on its
// already-materialized, paused handle).
func (q *Queue) PlayNext() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playNextLocked()
}

func (q *Queue) playNextLocked() error {
	if q.next == nil {
		return ErrEmpty
	}
	t := q.next
	q.next = nil
	t.Handle.Resume()
	q.current = t
	return nil
}

// LoadNext pops rest's front, materializes it, and stores it as next.
// loaded reports whether a track was available. Failed materializations
// are skipped (and reported by the caller via an event), not fatal: the
// function keeps trying subsequent rest entries until one succeeds or rest
// is exhausted.
func (q *Queue) LoadNext() (loaded bool, failed []track.PlaySource) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadNextLocked()
}

func (q *Queue) loadNextLocked() (loaded bool, failed []track.PlaySource) {
	if q.next != nil {
		return true, nil
	}
	for len(q.rest) > 0 {
		t := q.rest[0]
		q.rest = q.rest[1:]
		if t.Handle != nil {
			// Already resolved by EnqueueResolved; no fetch needed.
			resolved := t
			q.next = &resolved
			return true, failed
		}
		h, meta, err := q.materialize(t.Source, true)
		if err != nil {
			failed = append(failed, t.Source)
			continue
		}
		q.next = &Track{Handle: h, Source: t.Source, Meta: meta}
		return true, failed
	}
	return false, failed
}

// Skip stops current and returns it; advancement is driven by the
// resulting TrackEnd event, not by Skip itself.
func (q *Queue) Skip() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil
	}
	t := q.current
	t.Handle.Stop()
	return t
}

// ShouldPlay reports whether there is nothing left to advance to: both
// current and next are empty (the queue is drained).
func (q *Queue) ShouldPlay() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current == nil && q.next == nil
}

// ShouldRepeatNow reports whether the repeat engine must refill: repeat is
// active and both next and rest are empty.
func (q *Queue) ShouldRepeatNow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat.Kind != RepeatOff && q.next == nil && len(q.rest) == 0
}

// PlayLoadNext is the advance algorithm run after a track ends: take
// (clear) current; if the queue is now drained (no next either), return.
// Otherwise promote next to current, retrying against backup-refilled
// entries on driver error, then pre-stage the following track. failed
// carries descriptors whose materialization was skipped (non-fatal; the
// caller reports each via a TrackErrored event).
func (q *Queue) PlayLoadNext() (failed []track.PlaySource, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current = nil
	if q.next == nil {
		refilled, rf := q.refillFromBackupLocked()
		failed = append(failed, rf...)
		if !refilled {
			return failed, nil
		}
	}

	for {
		perr := q.playNextLocked()
		if perr == nil {
			break
		}
		if q.next != nil {
			// next was already materialized by a prior LoadNext; a play
			// error here is driver-level, not fixed by reloading.
			return failed, perr
		}
		if loaded, f := q.loadNextLocked(); loaded {
			failed = append(failed, f...)
			continue
		}
		if refilled, rf := q.refillFromBackupLocked(); refilled {
			failed = append(failed, rf...)
			continue
		}
		return failed, perr
	}

	_, f := q.loadNextLocked()
	failed = append(failed, f...)
	return failed, nil
}

// refillFromBackupLocked replays the repeat backup through the normal
// enqueue path when should_repeat_now holds: each descriptor re-populates
// next/rest exactly as a fresh enqueue would, and — if repeat is still
// active after this cycle's decrement — re-appends itself to backup so the
// next cycle (Infinite, or a subsequent Finite count) can run the same
// way. Reports whether a refill happened, plus any descriptor that failed
// to materialize during replay.
func (q *Queue) refillFromBackupLocked() (refilled bool, failed []track.PlaySource) {
	if q.repeat.Kind == RepeatOff || q.next != nil || len(q.rest) > 0 {
		return false, nil
	}
	if len(q.backup) == 0 {
		return false, nil
	}

	if q.repeat.Kind == RepeatFinite {
		if q.repeat.Count <= 1 {
			q.repeat.Kind = RepeatOff
		} else {
			q.repeat.Count--
		}
	}

	replay := q.backup
	q.backup = nil
	for _, src := range replay {
		if _, err := q.enqueueLocked(src); err != nil {
			failed = append(failed, src)
		}
	}
	return true, failed
}

// SetRepeat switches repeat mode. Transitioning Off -> non-Off populates
// backup from the current snapshot (current, next, rest); non-Off -> Off
// clears it.
func (q *Queue) SetRepeat(r Repeat) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wasOff := q.repeat.Kind == RepeatOff
	isOff := r.Kind == RepeatOff
	q.repeat = r

	if wasOff && !isOff {
		var backup []track.PlaySource
		if q.current != nil {
			backup = append(backup, q.current.Source)
		}
		if q.next != nil {
			backup = append(backup, q.next.Source)
		}
		for _, t := range q.rest {
			backup = append(backup, t.Source)
		}
		q.backup = backup
	} else if !wasOff && isOff {
		q.backup = nil
	}
}

// Repeat returns the current repeat configuration.
func (q *Queue) Repeat() Repeat {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetVolume applies v to current and next; rest inherits it on
// materialization (handled by the caller's Materialize closure, which
// captures the Player's volume field).
func (q *Queue) SetVolume(v float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		q.current.Handle.SetVolume(v)
	}
	if q.next != nil {
		q.next.Handle.SetVolume(v)
	}
}

// Clear stops all three slots and drains rest.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		q.current.Handle.Stop()
		q.current = nil
	}
	if q.next != nil {
		q.next.Handle.Stop()
		q.next = nil
	}
	q.rest = nil
	q.backup = nil
}
