// Package traffic keeps sliding windows of request outcomes for the health check.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back outcomes are kept. Windows longer than this see only the retained tail.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(nil)

// RecordSuccess records a served request on the process-wide tracker.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records an upstream failure or timeout.
func RecordError() { defaultTracker.RecordError() }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.RecordDenied() }

// Window returns the process-wide counts within window.
func Window(window time.Duration) Stats { return defaultTracker.Window(window) }

// Reset clears the process-wide tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// Stats are outcome counts within one window.
type Stats struct {
	Successes int
	Errors    int
	Denied    int
}

// Requests is every outcome, denials included.
func (s Stats) Requests() int { return s.Successes + s.Errors + s.Denied }

// ErrorPct is errors over served requests (denials excluded) as a percentage.
// It is 0 when nothing was served.
func (s Stats) ErrorPct() float64 {
	served := s.Successes + s.Errors
	if served == 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(served)
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu        sync.Mutex
	now       func() time.Time
	successes []time.Time
	errors    []time.Time
	denied    []time.Time
}

// NewTracker returns an empty tracker. A nil clock uses time.Now.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{now: clock}
}

func (t *Tracker) RecordSuccess() { t.record(&t.successes) }

func (t *Tracker) RecordError() { t.record(&t.errors) }

func (t *Tracker) RecordDenied() { t.record(&t.denied) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Window counts outcomes not older than window.
func (t *Tracker) Window(window time.Duration) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return Stats{
		Successes: countSince(t.successes, cutoff),
		Errors:    countSince(t.errors, cutoff),
		Denied:    countSince(t.denied, cutoff),
	}
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.errors, t.denied = nil, nil, nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Slices are append-ordered.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, slice := range []*[]time.Time{&t.successes, &t.errors, &t.denied} {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
}
