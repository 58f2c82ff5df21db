// Package circuitbreaker stops calling a failing provider for a cool-down
// period, then lets probe calls through to decide whether it has recovered.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit rejects requests.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker position. The numeric values are the gauge encoding.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// GaugeValue is the metric encoding of s: 0 closed, 1 open, 2 half-open.
func (s State) GaugeValue() float64 {
	return float64(s)
}

// Config holds breaker parameters. Zero thresholds and timeout select 5, 2 and 30s.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// Ignore marks errors that say nothing about upstream health, e.g. caller cancellation.
	Ignore        func(error) bool
	OnStateChange func(from, to State)
	// Now defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker opens after FailureThreshold consecutive failures and
// rejects calls until Timeout has passed since the last failure. It then
// half-opens; SuccessThreshold successes close it and any failure reopens it.
// Ignored errors count as neither.
type CircuitBreaker struct {
	cfg Config

	mu        sync.RWMutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New returns a closed breaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Call runs fn unless the circuit is open and returns fn's error unchanged.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if !cb.admit() {
		return ErrOpen
	}
	err := fn()
	if err != nil && cb.cfg.Ignore != nil && cb.cfg.Ignore(err) {
		return err
	}
	cb.record(err)
	return err
}

// admit reports whether a call may proceed, half-opening an expired open circuit.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return true
	}
	if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Timeout {
		cb.mu.Unlock()
		return false
	}
	from := cb.transitionLocked(StateHalfOpen)
	cb.mu.Unlock()
	cb.notify(from, StateHalfOpen)
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from, to := cb.state, cb.state
	if err != nil {
		cb.failures++
		cb.openedAt = cb.cfg.Now()
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			to = StateOpen
		}
	} else {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
			to = StateClosed
		}
	}
	if to != from {
		cb.transitionLocked(to)
	}
	cb.mu.Unlock()
	if to != from {
		cb.notify(from, to)
	}
}

// transitionLocked moves to s and resets both counters. cb.mu must be held.
func (cb *CircuitBreaker) transitionLocked(s State) State {
	from := cb.state
	cb.state = s
	cb.failures = 0
	cb.successes = 0
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// Component returns the name used in metric labels.
func (cb *CircuitBreaker) Component() string {
	return cb.cfg.Component
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
