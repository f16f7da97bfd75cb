package httpclient

import (
	"time"
)

// Core policy constants.
const (
	// MaxRetryAttempts is the default retry ceiling. A request is dispatched
	// at most 1+MaxRetryAttempts times in total.
	MaxRetryAttempts = 3

	// RetryDelay is the base backoff unit. The delay before retry attempt k
	// is k*RetryDelay (linear, deliberately not exponential, so worst-case
	// latency stays predictable for a small attempt ceiling).
	RetryDelay = 1 * time.Second

	// DefaultTimeout is the per-request time budget enforced by the
	// underlying http.Client. Timeouts surface as the 408/504 timeout
	// family to the outcome classifier.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryAfter is the wait reported on a 429 response whose
	// Retry-After header is absent or unparsable.
	DefaultRetryAfter = 60 * time.Second
)

// RetryConfig holds the retry behavior configuration.
// Use DefaultRetryConfig() for the standard policy, then modify as needed.
//
// The default policy is linear backoff: the delay before attempt k is
// k*Interval (1s, 2s, 3s). Jitter is off by default so retry timing is
// deterministic; switch it on for high-fanout deployments where
// synchronized retries against a recovering service matter more than
// predictable latency.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Set to 0 to disable retries entirely.
	// The initial request is not counted as a retry.
	// Default: 3
	MaxRetries uint

	// Interval is the linear backoff unit: attempt k waits k*Interval.
	// Default: 1s
	Interval time.Duration

	// MaxInterval caps the computed backoff delay.
	// Default: 30s
	MaxInterval time.Duration

	// MaxElapsedTime is the total time budget for the entire retry
	// sequence. 0 means no budget (only MaxRetries applies).
	// Default: 0
	MaxElapsedTime time.Duration

	// JitterFactor randomizes each delay by ±(factor*delay).
	// 0 keeps delays exact. Default: 0.
	JitterFactor float64
}

// DefaultRetryConfig returns the standard policy: 3 retries with linear
// 1s/2s/3s backoff and no jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  MaxRetryAttempts,
		Interval:    RetryDelay,
		MaxInterval: 30 * time.Second,
	}
}

// AggressiveRetryConfig returns a policy for operations that must succeed:
// 5 retries on a faster 500ms linear ramp with 20% jitter.
//
// More retries mean more load on a struggling upstream; make sure the
// target can absorb it.
func AggressiveRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		Interval:       500 * time.Millisecond,
		MaxInterval:    10 * time.Second,
		MaxElapsedTime: 2 * time.Minute,
		JitterFactor:   0.2,
	}
}

// ConservativeRetryConfig returns a policy for expensive or rate-limited
// upstreams: 2 retries on a 2s linear ramp.
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		Interval:       2 * time.Second,
		MaxInterval:    10 * time.Second,
		MaxElapsedTime: 30 * time.Second,
	}
}

// NoRetryConfig disables retries entirely. Use for non-idempotent
// operations or when retries are handled at a higher level.
func NoRetryConfig() RetryConfig {
	return RetryConfig{}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// interval returns the configured backoff unit, defaulting to RetryDelay.
func (c RetryConfig) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return RetryDelay
}
