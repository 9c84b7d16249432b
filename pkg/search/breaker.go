package search

import (
	"fmt"
	"sync"
	"time"
)

type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half-open"
)

// circuitBreaker shields the search provider from hammering a failing
// upstream. After enough consecutive failures the circuit opens and
// lookups fail fast until a cooldown passes; a few probe successes in
// half-open close it again.
type circuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	lastFailure time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

func newCircuitBreaker(failureThreshold int, cooldown time.Duration) *circuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &circuitBreaker{
		state:            breakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		cooldown:         cooldown,
	}
}

// allow reports whether a lookup may proceed, moving an open circuit to
// half-open once the cooldown has passed
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailure) > cb.cooldown {
			cb.state = breakerHalfOpen
			cb.successes = 0
			return true
		}
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = breakerClosed
			cb.failures = 0
			cb.successes = 0
		}
	case breakerClosed:
		cb.failures = 0
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == breakerHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = breakerOpen
		cb.successes = 0
	}
}

func (cb *circuitBreaker) currentState() breakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// errCircuitOpen is returned on lookups attempted while the circuit is open
var errCircuitOpen = fmt.Errorf("search provider circuit open")
