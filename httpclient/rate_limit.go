package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the client-side token bucket. This is outbound
// self-limiting, distinct from the server saying 429; that case surfaces as
// *RateLimitError with the server's Retry-After.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate. Zero or
	// negative disables limiting.
	RequestsPerSecond float64

	// Burst is how many requests may fire back-to-back above the
	// sustained rate.
	Burst int

	// WaitOnLimit selects the behavior at the limit: wait for a token
	// (respecting the context deadline) or fail fast with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig allows 100 requests per second with a burst of 10,
// waiting at the limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is returned when the local limiter rejects a request.
// It is a terminal outcome: the retry engine will not retry it.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitTransport applies the client-wide token bucket before handing
// the request down the chain.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

var _ ChainedTransport = (*rateLimitTransport)(nil)

// newRateLimitTransport wraps next with the token bucket, or returns next
// unchanged when limiting is disabled.
func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return &rateLimitTransport{
		next:    next,
		limiter: limiter,
		wait:    cfg.WaitOnLimit,
	}
}

// Unwrap returns the wrapped transport.
func (t *rateLimitTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			// Context errors keep their identity so deadline handling
			// upstream still works.
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
	} else {
		if !t.limiter.Allow() {
			return nil, ErrRateLimited
		}
	}

	return t.next.RoundTrip(req)
}

// requestRateLimiter holds the per-operation limiters created through
// RequestBuilder.RateLimit, keyed by client and operation name.
type requestRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

var globalRequestLimiter = &requestRateLimiter{
	limiters: make(map[string]*rate.Limiter),
}

// getOrCreate returns the limiter for key, creating it on first use.
func (r *requestRateLimiter) getOrCreate(key string, rps float64, burst int) *rate.Limiter {
	r.mu.RLock()
	if limiter, ok := r.limiters[key]; ok {
		r.mu.RUnlock()
		return limiter
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check; another goroutine may have created it between the locks.
	if limiter, ok := r.limiters[key]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	r.limiters[key] = limiter
	return limiter
}

// RequestRateLimitConfig configures a per-operation limiter, set through
// RequestBuilder.RateLimit.
type RequestRateLimitConfig struct {
	// RequestsPerSecond for this specific operation.
	RequestsPerSecond float64

	// Burst allows brief spikes above the rate limit.
	Burst int

	// WaitOnLimit determines behavior when the limit is hit.
	WaitOnLimit bool
}

// applyRequestRateLimit enforces an operation-scoped limit before dispatch.
func applyRequestRateLimit(ctx context.Context, key string, cfg RequestRateLimitConfig) error {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	limiter := globalRequestLimiter.getOrCreate(key, cfg.RequestsPerSecond, burst)

	if cfg.WaitOnLimit {
		return limiter.Wait(ctx)
	}

	if !limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

// RateLimitBehavior selects what happens at the limit.
type RateLimitBehavior int

const (
	// RateLimitWait waits for a token to become available (default).
	RateLimitWait RateLimitBehavior = iota
	// RateLimitFailFast immediately returns ErrRateLimited.
	RateLimitFailFast
)

// NewRateLimitConfigWithBehavior builds a RateLimitConfig from a behavior
// constant instead of the WaitOnLimit boolean.
func NewRateLimitConfigWithBehavior(
	rps float64,
	burst int,
	behavior RateLimitBehavior,
) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
		WaitOnLimit:       behavior == RateLimitWait,
	}
}

// RateLimiterStats is a snapshot of the limiter for debugging.
type RateLimiterStats struct {
	// Limit is the maximum rate per second.
	Limit float64
	// Burst is the maximum burst size.
	Burst int
	// TokensAvailable is the current number of tokens.
	TokensAvailable float64
}

// GetStats returns the limiter's current configuration and fill level.
func (t *rateLimitTransport) GetStats() RateLimiterStats {
	return RateLimiterStats{
		Limit:           float64(t.limiter.Limit()),
		Burst:           t.limiter.Burst(),
		TokensAvailable: t.limiter.Tokens(),
	}
}

// ReserveN reserves n tokens without blocking and returns how long the
// caller must wait before acting on the reservation, or -1 when n exceeds
// the burst size.
func (t *rateLimitTransport) ReserveN(n int) time.Duration {
	r := t.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return -1
	}
	return r.Delay()
}
