package ticket

import (
	"sync"
	"testing"
)

func TestFIFOOrdering(t *testing.T) {
	m := New()
	g := m.Lock()

	const n = 10
	order := make([]int, 0, n)
	var mu sync.Mutex
	tickets := make([]*Ticket, n)
	for i := 0; i < n; i++ {
		tickets[i] = m.Ticket()
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tg := tickets[i].Wait()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			tg.Unlock()
		}(i)
	}

	g.Unlock()
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("ticket acquired out of order: got %v", order)
		}
	}
}

func TestLockUnlock(t *testing.T) {
	m := New()
	g := m.Lock()
	done := make(chan struct{})
	go func() {
		g2 := m.Lock()
		g2.Unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock acquired before first Unlock")
	default:
	}

	g.Unlock()
	<-done
}

func TestDropReleasesSlot(t *testing.T) {
	m := New()
	g := m.Lock()

	dropped := m.Ticket()
	waiting := m.Ticket()

	dropped.Drop()

	done := make(chan struct{})
	go func() {
		wg := waiting.Wait()
		wg.Unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waiter acquired before holder released")
	default:
	}

	g.Unlock()
	<-done
}
