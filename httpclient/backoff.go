package httpclient

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ensure our backoff strategies implement the backoff.BackOff interface.
var (
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
	_ backoff.BackOff = (*ConstantBackOffWithJitter)(nil)
)

// LinearBackOff grows the delay by a fixed increment per attempt:
//
//	delay(k) = InitialInterval + (k-1)×Increment ± jitter
//
// With InitialInterval = Increment = 1s the waits are 1s, 2s, 3s, which is
// the client's default policy. Linear growth keeps worst-case latency
// predictable for a small retry ceiling, where exponential growth buys
// nothing.
type LinearBackOff struct {
	// InitialInterval is the first backoff delay.
	// Default: 1s
	InitialInterval time.Duration

	// Increment is added to the delay after each attempt.
	// Default: 1s
	Increment time.Duration

	// MaxInterval caps the computed delay.
	// Default: 30s
	MaxInterval time.Duration

	// JitterFactor randomizes each delay by ±(factor*delay), 0.0-1.0.
	// Default: 0 (exact linear delays).
	JitterFactor float64

	currentInterval time.Duration
	attempt         int
}

// NewLinearBackOff creates a LinearBackOff with the default 1s linear ramp
// and no jitter.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: RetryDelay,
		Increment:       RetryDelay,
		MaxInterval:     30 * time.Second,
	}
}

// linearBackOffFromConfig builds the engine's backoff strategy from a
// RetryConfig: delay before attempt k is k*Interval.
func linearBackOffFromConfig(cfg RetryConfig) *LinearBackOff {
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 30 * time.Second
	}
	return &LinearBackOff{
		InitialInterval: cfg.interval(),
		Increment:       cfg.interval(),
		MaxInterval:     maxInterval,
		JitterFactor:    cfg.JitterFactor,
	}
}

// Reset resets the backoff to initial state.
func (b *LinearBackOff) Reset() {
	b.currentInterval = b.InitialInterval
	b.attempt = 0
}

// NextBackOff returns the next backoff interval with jitter applied.
func (b *LinearBackOff) NextBackOff() time.Duration {
	if b.currentInterval == 0 {
		b.currentInterval = b.InitialInterval
	}

	interval := applyJitter(b.currentInterval, b.JitterFactor)

	b.attempt++
	b.currentInterval = b.InitialInterval + time.Duration(b.attempt)*b.Increment
	if b.MaxInterval > 0 && b.currentInterval > b.MaxInterval {
		b.currentInterval = b.MaxInterval
	}

	return interval
}

// DecorrelatedJitterBackOff uses AWS-style decorrelated jitter:
//
//	sleep = random_between(base, min(cap, previous_sleep × 3))
//
// Spreads simultaneous retries across time better than fixed jitter in
// high-contention scenarios.
//
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	// Base is the minimum backoff interval.
	// Default: 500ms
	Base time.Duration

	// Cap is the maximum backoff interval.
	// Default: 30s
	Cap time.Duration

	sleep time.Duration
}

// NewDecorrelatedJitterBackOff creates a DecorrelatedJitterBackOff with
// 500ms base and 30s cap.
func NewDecorrelatedJitterBackOff() *DecorrelatedJitterBackOff {
	return &DecorrelatedJitterBackOff{
		Base: 500 * time.Millisecond,
		Cap:  30 * time.Second,
	}
}

// Reset resets the backoff to initial state.
func (b *DecorrelatedJitterBackOff) Reset() {
	b.sleep = b.Base
}

// NextBackOff returns the next backoff interval using decorrelated jitter.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	if b.sleep == 0 {
		b.sleep = b.Base
	}

	upperBound := b.sleep * 3
	if upperBound > b.Cap {
		upperBound = b.Cap
	}

	b.sleep = randomBetween(b.Base, upperBound)
	return b.sleep
}

// ConstantBackOffWithJitter waits a fixed interval with randomization.
//
// Example with Interval=1s, JitterFactor=0.25:
// each wait is random between 0.75s and 1.25s.
type ConstantBackOffWithJitter struct {
	// Interval is the base backoff interval.
	// Default: 1s
	Interval time.Duration

	// JitterFactor adds randomization (0.0-1.0).
	JitterFactor float64
}

// NewConstantBackOffWithJitter creates a ConstantBackOffWithJitter with a
// 1s interval and 50% jitter.
func NewConstantBackOffWithJitter() *ConstantBackOffWithJitter {
	return &ConstantBackOffWithJitter{
		Interval:     1 * time.Second,
		JitterFactor: 0.5,
	}
}

// Reset is a no-op for constant backoff.
func (b *ConstantBackOffWithJitter) Reset() {}

// NextBackOff returns the interval with jitter applied.
func (b *ConstantBackOffWithJitter) NextBackOff() time.Duration {
	return applyJitter(b.Interval, b.JitterFactor)
}

// applyJitter randomizes an interval: factor 0.5 yields a result in
// [interval*0.5, interval*1.5]. Factor <= 0 returns the interval unchanged.
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return interval
	}
	if jitterFactor > 1 {
		jitterFactor = 1
	}

	delta := float64(interval) * jitterFactor
	minInterval := float64(interval) - delta
	maxInterval := float64(interval) + delta

	//nolint:gosec // intentional weak rand for jitter (not cryptographic)
	return time.Duration(
		minInterval + rand.Float64()*(maxInterval-minInterval),
	)
}

// randomBetween returns a random duration between minDur and maxDur.
//
//nolint:gosec // intentional weak rand for jitter (not cryptographic)
func randomBetween(minDur, maxDur time.Duration) time.Duration {
	if minDur >= maxDur {
		return minDur
	}
	return minDur + time.Duration(
		rand.Int64N(int64(maxDur-minDur)),
	)
}
