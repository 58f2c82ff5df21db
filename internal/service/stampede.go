package service

import (
	"sync"
)

// stampedeTracker counts in-progress misses per cache key. Misses are never
// merged; the count only feeds cacheStampedeDetectedTotal.
type stampedeTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		active: make(map[string]int),
	}
}

// RecordMiss registers a miss for key and returns how many are now in progress.
// Callers defer RecordHit(key) once their upstream fetch returns.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active[key]++
	return st.active[key]
}

// RecordHit marks one miss for key as resolved.
func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	count, ok := st.active[key]
	if !ok {
		return
	}
	if count <= 1 {
		delete(st.active, key)
		return
	}
	st.active[key] = count - 1
}

// inProgress reports the outstanding misses for key.
func (st *stampedeTracker) inProgress(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active[key]
}
