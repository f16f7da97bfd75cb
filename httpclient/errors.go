package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRefreshInFlight is returned when a credential refresh is requested
// while another refresh is already active. The losing request is rejected
// rather than queued; it may re-enter the refresh path on a later attempt.
var ErrRefreshInFlight = errors.New("credential refresh already in flight")

// AuthError indicates a request could not be authenticated: the server
// returned 401 and the credential refresh either failed or was rejected
// because another refresh was in flight.
//
// When the underlying refresh operation failed, session teardown (token
// clearing and logout) has already been triggered by the time this error
// surfaces.
type AuthError struct {
	// Err is the underlying cause: the refresh failure, or
	// ErrRefreshInFlight when the request lost the refresh race.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError indicates the server responded 429. It carries the wait
// time parsed from the Retry-After header (or DefaultRetryAfter when the
// header is absent or unparsable). Rate-limited requests are never retried
// automatically; the caller decides when to try again.
type RateLimitError struct {
	// RetryAfter is the server-directed wait before trying again.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %.0f seconds", e.RetryAfter.Seconds())
}

// QueuedError reports that a mutating request could not be delivered while
// the client was offline and has been placed on the offline queue for later
// replay. From the caller's perspective this is a deferred success, not a
// failure; use IsQueued to detect it.
type QueuedError struct {
	Method string
	URL    string
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("%s %s queued for later sync", e.Method, e.URL)
}

// IsQueued reports whether err indicates the request was stored on the
// offline queue instead of being delivered.
func IsQueued(err error) bool {
	var qe *QueuedError
	return errors.As(err, &qe)
}

// StatusError carries an HTTP status code through the retry engine for
// responses classified as transient failures (408, 500, 502, 503, 504).
// When retries are exhausted it is the error wrapped by ExhaustedError.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded %d", e.Code)
}

// ExhaustedError indicates the retry ceiling was reached without a
// successful outcome. Attempts counts every dispatch including the first.
// Unwrap exposes the last classified error, so errors.As(err, &statusErr)
// and friends keep working on the exhausted result.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// isTerminalOutcome reports whether err was already resolved by outcome
// classification (auth, rate limit, offline queueing) or rejected by the
// local rate limiter. Terminal outcomes must never re-enter the retry
// engine.
func isTerminalOutcome(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var (
		authErr  *AuthError
		rateErr  *RateLimitError
		queueErr *QueuedError
	)
	return errors.As(err, &authErr) || errors.As(err, &rateErr) || errors.As(err, &queueErr)
}

// errorKind buckets an error for telemetry. The buckets mirror the error
// taxonomy: terminal outcomes keep their own labels, everything else is a
// transport-level failure.
func errorKind(err error) string {
	var (
		authErr      *AuthError
		rateErr      *RateLimitError
		queueErr     *QueuedError
		statusErr    *StatusError
		exhaustedErr *ExhaustedError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rateErr), errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &queueErr):
		return "queued"
	case errors.As(err, &exhaustedErr):
		return "exhausted"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "network"
	}
}
