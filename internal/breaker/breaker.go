// Package breaker implements a circuit breaker for calls to external
// services. After a run of consecutive failures the breaker opens and
// rejects calls until a recovery timeout has elapsed, then allows a
// single trial call before closing again.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker's position in its lifecycle.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker guards a single external dependency. It is safe for
// concurrent use; state changes happen only through CanCall,
// RecordSuccess and RecordFailure.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
}

// New creates a breaker in the closed state. Non-positive threshold or
// timeout fall back to 5 failures / 60s, matching the defaults we run
// against rate-limited search providers.
func New(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// NewWithClock creates a breaker with an injected clock for tests.
func NewWithClock(failureThreshold int, recoveryTimeout time.Duration, now func() time.Time) *Breaker {
	b := New(failureThreshold, recoveryTimeout)
	b.now = now
	return b
}

// CanCall reports whether a call may be attempted. When the breaker is
// open and the recovery timeout has elapsed since the last failure it
// moves to half-open and allows one trial call.
func (b *Breaker) CanCall() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) > b.recoveryTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	default: // half-open: the trial call is in flight
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = StateClosed
}

// RecordFailure counts a failure and opens the breaker once the
// threshold is reached. A failed half-open trial reopens immediately
// and restarts the recovery timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = b.now()
	if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
