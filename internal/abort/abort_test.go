package abort

import (
	"testing"
	"time"
)

func TestFireIsIdempotent(t *testing.T) {
	var s Signal
	s.Fire()
	s.Fire()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed")
	}

	if !s.Fired() {
		t.Fatal("Fired() returned false after Fire()")
	}
}

func TestNotFiredByDefault(t *testing.T) {
	var s Signal
	if s.Fired() {
		t.Fatal("zero-value Signal reports fired")
	}
	select {
	case <-s.Done():
		t.Fatal("Done channel closed before Fire")
	default:
	}
}
