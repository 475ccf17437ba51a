package service

import (
	"sync"
	"testing"
)

// TestMissTracker_BeginEnd verifies Begin counts in-flight misses per key and End
// releases them until the key is removed.
func TestMissTracker_BeginEnd(t *testing.T) {
	m := newMissTracker()
	key := "51.51,-0.13"

	if got := m.Begin(key); got != 1 {
		t.Errorf("Begin first = %d, want 1", got)
	}
	if got := m.Begin(key); got != 2 {
		t.Errorf("Begin second = %d, want 2", got)
	}
	m.End(key)
	if got := m.InFlight(key); got != 1 {
		t.Errorf("InFlight after one End = %d, want 1", got)
	}
	m.End(key)
	if got := m.InFlight(key); got != 0 {
		t.Errorf("InFlight after all End = %d, want 0", got)
	}
	m.End(key)
	if got := m.Begin(key); got != 1 {
		t.Errorf("Begin after extra End = %d, want 1", got)
	}
}

// TestMissTracker_Concurrent verifies concurrent Begin/End leave the tracker empty.
func TestMissTracker_Concurrent(t *testing.T) {
	m := newMissTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Begin("k")
			m.End("k")
		}()
	}
	wg.Wait()
	if got := m.InFlight("k"); got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
}
