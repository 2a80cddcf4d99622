package vindi

import (
	"sync"
	"time"
)

// CircuitState is the state of the client's circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker opens after a run of failures and lets a probe through once the
// recovery timeout has passed. A successful probe closes it again.
type breaker struct {
	mu sync.Mutex

	threshold int
	recovery  time.Duration
	now       func() time.Time

	state       CircuitState
	failures    int
	lastFailure time.Time
}

func newBreaker(threshold int, recovery time.Duration, now func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &breaker{threshold: threshold, recovery: recovery, now: now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) >= b.recovery {
			b.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case CircuitHalfOpen:
		b.state = CircuitOpen
	case CircuitClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = CircuitOpen
		}
	}
}

func (b *breaker) current() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) >= b.recovery {
		return CircuitHalfOpen
	}
	return b.state
}
