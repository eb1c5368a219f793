package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed means calls flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the generator is considered down and calls are refused.
	CircuitOpen
	// CircuitHalfOpen means one probe call is in flight.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
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

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	// Zero or less disables the breaker.
	Threshold int
	// ResetAfter is how long the circuit stays open before a probe is allowed.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and probes after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker stops a batch from hammering a generator that is down.
// It trips open after N consecutive failures and half-opens after ResetAfter.
type CircuitBreaker struct {
	mu               sync.RWMutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
	}
}

// Allow reports whether a call may proceed. An open circuit moves to
// half-open once ResetAfter has elapsed and lets exactly one call through.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.threshold <= 0 {
		return true, nil
	}

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("generator appears to be down (failed %d times, last failure %v ago)",
			cb.consecutiveFails, time.Since(cb.lastFailure).Round(time.Second))
	case CircuitHalfOpen:
		return false, fmt.Errorf("probing whether generator has recovered")
	default:
		return false, fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure increments the failure count and trips the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return
	}

	if cb.threshold > 0 && cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFails
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// breakerGenerator guards a Generator with a CircuitBreaker.
type breakerGenerator struct {
	next    Generator
	breaker *CircuitBreaker
}

// WithCircuitBreaker returns a Generator that refuses calls while cb is open.
// Each call outcome is recorded on cb. Caller cancellation is not counted as a failure.
func WithCircuitBreaker(next Generator, cb *CircuitBreaker) Generator {
	return &breakerGenerator{next: next, breaker: cb}
}

func (g *breakerGenerator) Generate(ctx context.Context, sourceText, instructions string) (string, error) {
	if ok, err := g.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeCircuitOpen, "call refused", false, err)
	}

	out, err := g.next.Generate(ctx, sourceText, instructions)
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case ctx.Err() != nil:
		// Release a half-open probe without judging the generator.
		g.breaker.mu.Lock()
		if g.breaker.state == CircuitHalfOpen {
			g.breaker.state = CircuitOpen
		}
		g.breaker.mu.Unlock()
	default:
		g.breaker.RecordFailure()
	}
	return out, err
}

func (g *breakerGenerator) Model() string {
	return g.next.Model()
}
