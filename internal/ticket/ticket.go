// Package ticket provides a FIFO-fair exclusive lock.
//
// Unlike sync.Mutex, which makes no ordering guarantee between competing
// goroutines, a ticket lets a caller reserve its place in line before doing
// slow work and only block on acquisition once it is ready to commit. Two
// callers that grab a ticket in order A, B are guaranteed to acquire the
// lock in order A, B, regardless of how long each one's pre-ticket work
// takes.
package ticket

import "sync"

// Mutex is a FIFO-ordered exclusive lock.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// New creates an unlocked ticketed mutex.
func New() *Mutex {
	return &Mutex{}
}

// Guard represents ownership of the lock. Call Unlock to release it.
type Guard struct {
	m *Mutex
}

// Unlock releases the lock, waking the next FIFO waiter if any.
func (g Guard) Unlock() {
	g.m.release()
}

// Ticket is a reservation obtained before the holder is ready to wait.
type Ticket struct {
	m        *Mutex
	ch       chan struct{}
	resolved bool
}

// Ticket reserves a place in the FIFO queue and returns immediately.
func (m *Mutex) Ticket() *Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	if !m.locked {
		m.locked = true
		ch <- struct{}{}
	} else {
		m.waiters = append(m.waiters, ch)
	}
	return &Ticket{m: m, ch: ch}
}

// Wait blocks until this ticket is at the front of the queue and returns a
// Guard. Calling Wait twice on the same ticket panics.
func (t *Ticket) Wait() Guard {
	if t.resolved {
		panic("ticket: Wait called twice")
	}
	t.resolved = true
	<-t.ch
	return Guard{m: t.m}
}

// Drop abandons an un-awaited ticket, releasing its slot so the next waiter
// proceeds. Calling Drop after Wait is a no-op; calling Wait after Drop
// panics.
func (t *Ticket) Drop() {
	if t.resolved {
		return
	}
	t.resolved = true

	select {
	case <-t.ch:
		// Already granted the slot (race with the releaser); hand it off.
		t.m.release()
	default:
		t.m.mu.Lock()
		for i, w := range t.m.waiters {
			if w == t.ch {
				t.m.waiters = append(t.m.waiters[:i], t.m.waiters[i+1:]...)
				break
			}
		}
		t.m.mu.Unlock()
	}
}

// Lock acquires the mutex without reserving a place in advance. Equivalent
// to Ticket().Wait().
func (m *Mutex) Lock() Guard {
	return m.Ticket().Wait()
}

func (m *Mutex) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		next <- struct{}{}
		return
	}
	m.locked = false
}
