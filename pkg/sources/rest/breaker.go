package rest

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState string

const (
	// BreakerClosed allows requests through; failures are counted.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen rejects requests without touching the endpoint.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen lets a single trial request through to test recovery.
	BreakerHalfOpen BreakerState = "half-open"
)

// ErrBreakerOpen is returned when the breaker rejects a request.
var ErrBreakerOpen = fmt.Errorf("circuit breaker is open")

// breaker is a consecutive-failure circuit breaker. After failureThreshold
// consecutive failures it opens; after resetTimeout it admits one trial
// request, and that request's outcome decides between closing again and
// re-opening.
type breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	openedAt         time.Time

	logger *slog.Logger
}

func newBreaker(failureThreshold int, resetTimeout time.Duration, logger *slog.Logger) *breaker {
	return &breaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger,
	}
}

// allow reports whether a request may proceed, transitioning to half-open
// when the reset timeout has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = BreakerHalfOpen
			b.logger.Info("circuit breaker half-open, probing endpoint")
			return true
		}
		return false
	}
	return true
}

// recordSuccess resets the failure count and closes the breaker.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerClosed {
		b.logger.Info("circuit breaker closed")
	}
	b.state = BreakerClosed
	b.failures = 0
}

// recordFailure counts a failure and opens the breaker when the threshold
// is reached. Any failure in half-open re-opens immediately.
func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	switch b.state {
	case BreakerHalfOpen:
		b.open()
	case BreakerClosed:
		if b.failures >= b.failureThreshold {
			b.open()
		}
	}
}

// open transitions to the open state. Caller holds the lock.
func (b *breaker) open() {
	b.state = BreakerOpen
	b.openedAt = time.Now()
	b.logger.Warn("circuit breaker opened",
		"consecutive_failures", b.failures,
		"reset_timeout", b.resetTimeout,
	)
}

// State returns the breaker's current mode.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
