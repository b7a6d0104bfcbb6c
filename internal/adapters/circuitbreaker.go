// Package adapters implements the external-service contracts
// (archive, search, LLM, SEO metrics). The archive and SEO adapters
// retry through their own rehttp transports; CircuitBreaker guards the
// SEO adapter only.
package adapters

import "sync"

// CircuitBreaker trips open after a configured number of consecutive
// failures and stays open until a call succeeds again. It classifies
// "open" as an Operational condition (adapter_unavailable), not an
// error: callers should check Open() before attempting a call.
type CircuitBreaker struct {
	mu              sync.Mutex
	failureCeiling  int
	consecutiveFail int
}

func NewCircuitBreaker(failureCeiling int) *CircuitBreaker {
	if failureCeiling <= 0 {
		failureCeiling = 5
	}
	return &CircuitBreaker{failureCeiling: failureCeiling}
}

// Open reports whether the breaker currently rejects calls.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFail >= b.failureCeiling
}

// RecordSuccess resets the consecutive-failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
}

// RecordFailure increments the consecutive-failure counter.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail++
}
