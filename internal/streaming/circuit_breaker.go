package streaming

import (
	"sync"
	"time"
)

// CircuitState represents the state of the spawn circuit breaker
type CircuitState int

const (
	// StateClosed indicates normal operation
	StateClosed CircuitState = iota
	// StateOpen indicates spawn attempts are blocked
	StateOpen
	// StateHalfOpen indicates a single probe attempt is allowed
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
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

// CircuitBreaker guards transcoder spawning: repeated consecutive spawn
// failures (missing binary, exec errors) open the circuit and block further
// attempts until the reset timeout elapses, at which point one probe attempt
// is allowed through.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	mu               sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker that opens after
// failureThreshold consecutive failures and probes again after resetTimeout
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// CanAttempt reports whether a spawn attempt is currently allowed
func (cb *CircuitBreaker) CanAttempt() bool {
	state := cb.GetState()
	return state == StateClosed || state == StateHalfOpen
}

// RecordSuccess resets the failure count and closes a half-open circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
	}
}

// RecordFailure counts a spawn failure, opening the circuit at the threshold
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()
	if cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// GetState returns the current state, transitioning Open to HalfOpen once
// the reset timeout has elapsed
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.failures = 0
	}

	return cb.state
}

// GetFailures returns the current consecutive failure count
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
