package service

import "sync"

// missTracker counts in-flight misses per cache key. Without coalescing, two callers
// that miss the same key both fetch; the count makes that visible in metrics.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// Begin records a miss for key and returns the number of misses now in flight for it.
// Callers must defer End(key).
func (m *missTracker) Begin(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[key]++
	return m.active[key]
}

// End records that a miss for key finished.
func (m *missTracker) End(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[key] <= 1 {
		delete(m.active, key)
		return
	}
	m.active[key]--
}

// InFlight returns the number of misses in flight for key.
func (m *missTracker) InFlight(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[key]
}
