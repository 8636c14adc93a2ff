package resilience

import (
	"time"
)

// BreakerConfig controls CallBreaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the total number of failed calls that trips the
	// breaker. Default: 5.
	FailureThreshold int

	// TimeoutThreshold is the number of consecutive timeouts that trips the
	// breaker. Default: 3.
	TimeoutThreshold int

	// OnTrip is called once, when the breaker opens.
	OnTrip func(reason TripReason)
}

// DefaultBreakerConfig returns the routing defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		TimeoutThreshold: 3,
	}
}

// FromBreakerConfig converts config values to a BreakerConfig.
func FromBreakerConfig(failureThreshold, timeoutThreshold int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if timeoutThreshold > 0 {
		cfg.TimeoutThreshold = timeoutThreshold
	}
	return cfg
}

// FromRetryConfig converts config values to a RetryConfig.
func FromRetryConfig(maxAttempts int, initialBackoff, maxBackoff time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoff > 0 {
		cfg.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		cfg.MaxBackoff = maxBackoff
	}
	return cfg
}
