// Package resilience provides the per-call circuit breaker and retry helpers
// used around the routing and geocoding services.
package resilience

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// TripReason records which counter opened a CallBreaker.
type TripReason string

const (
	NotTripped   TripReason = ""
	TripFailures TripReason = "failures"
	TripTimeouts TripReason = "timeouts"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker tripped.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CallBreaker guards the network calls made during one top-level invocation.
// It counts total failures and consecutive timeouts; once either reaches its
// threshold the breaker trips and stays tripped. Create a new one per call.
type CallBreaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	failures            int
	consecutiveTimeouts int
	reason              TripReason
}

// NewCallBreaker creates a closed breaker. Non-positive thresholds fall back
// to the defaults.
func NewCallBreaker(cfg BreakerConfig) *CallBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.TimeoutThreshold <= 0 {
		cfg.TimeoutThreshold = def.TimeoutThreshold
	}
	return &CallBreaker{cfg: cfg}
}

// Allow reports whether a network call may be attempted.
func (cb *CallBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.reason == NotTripped
}

// Record feeds the outcome of one call into the counters.
func (cb *CallBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveTimeouts = 0
		return
	}

	cb.failures++
	if IsTimeout(err) {
		cb.consecutiveTimeouts++
	} else {
		cb.consecutiveTimeouts = 0
	}

	if cb.reason != NotTripped {
		return
	}
	switch {
	case cb.consecutiveTimeouts >= cb.cfg.TimeoutThreshold:
		cb.trip(TripTimeouts)
	case cb.failures >= cb.cfg.FailureThreshold:
		cb.trip(TripFailures)
	}
}

// Tripped reports whether the breaker has opened.
func (cb *CallBreaker) Tripped() bool {
	return !cb.Allow()
}

// Reason returns why the breaker tripped, or NotTripped.
func (cb *CallBreaker) Reason() TripReason {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.reason
}

// Counters returns the total failure and consecutive timeout counts.
func (cb *CallBreaker) Counters() (failures, consecutiveTimeouts int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.consecutiveTimeouts
}

func (cb *CallBreaker) trip(reason TripReason) {
	cb.reason = reason
	if cb.cfg.OnTrip != nil {
		cb.cfg.OnTrip(reason)
	}
}

// Call runs fn unless the breaker has tripped, then records the result.
func Call[T any](ctx context.Context, cb *CallBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !cb.Allow() {
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	cb.Record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}
