package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// RetryClassifier decides whether a failed attempt should be retried.
// Return true to retry, false to stop immediately.
//
// The default rules retry the transient status family
// {408, 429, 500, 502, 503, 504} and transient network errors. Outcomes
// already resolved by classification (authentication, rate limiting,
// offline queueing) are never retried regardless of the classifier in use.
//
// Example classifier that only retries 5xx:
//
//	client := httpclient.New(
//	    httpclient.WithRetryClassifier(func(resp *http.Response, err error) bool {
//	        return resp != nil && resp.StatusCode >= 500
//	    }),
//	)
type RetryClassifier func(resp *http.Response, err error) bool

// RetryableStatusCodes is the transient status family eligible for
// automatic retry. 429 belongs to the set as a matter of policy, but in the
// assembled client it is resolved into a RateLimitError before the retry
// engine sees it; the entry matters for callers using the classifier
// standalone.
var RetryableStatusCodes = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// DefaultClassifier applies the standard retry rules.
//
// Retries on:
//   - statuses 408, 429, 500, 502, 503, 504
//   - transient network errors (timeouts, refused/reset connections,
//     temporary DNS failures)
//
// Does NOT retry on:
//   - outcomes already classified terminal (auth, rate limit, queued)
//   - other 4xx statuses (the request itself is wrong)
//   - context cancellation
//   - permanent transport errors (TLS/certificate, DNS NXDOMAIN)
func DefaultClassifier(resp *http.Response, err error) bool {
	if err == nil && resp != nil && resp.StatusCode < 400 {
		return false
	}

	if err != nil {
		if isTerminalOutcome(err) {
			return false
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if isPermanentError(err) {
			return false
		}
		if isRetryableNetworkError(err) {
			return true
		}
		// Unknown transport-level error: assume transient.
		return true
	}

	if resp != nil {
		return isRetryableStatusCode(resp.StatusCode)
	}

	return false
}

// isRetryableStatusCode reports membership in the transient status family.
func isRetryableStatusCode(statusCode int) bool {
	return RetryableStatusCodes[statusCode]
}

// isTimeoutStatus reports whether the status belongs to the timeout family
// that is eligible for offline queueing (408 request timeout, 504 gateway
// timeout).
func isTimeoutStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout
}

// isNetworkUnreachable reports whether err represents a transport-level
// failure where no response was received at all. Context cancellation and
// permanent local failures (TLS, NXDOMAIN, permissions) are excluded: they
// are not connectivity problems and must not trigger offline queueing.
func isNetworkUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if isTerminalOutcome(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if isPermanentError(err) {
		return false
	}
	return true
}

// isRetryableNetworkError reports whether err is a transient network
// failure worth retrying.
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// NXDOMAIN and friends are permanent; only temporary failures and
		// resolver timeouts recover on retry.
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) {
		return true
	}

	return containsTransientPattern(err)
}

// containsTransientPattern is a string fallback for wrapped errors from
// third-party transports where type checks fail.
func containsTransientPattern(err error) bool {
	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is down",
		"network unreachable",
		"i/o timeout",
		"temporary failure",
		"server closed",
		"broken pipe",
		"eof",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// isPermanentError reports whether err can never succeed on retry.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	if errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EHOSTDOWN) {
		return true
	}

	return containsPermanentPattern(err)
}

func containsPermanentPattern(err error) bool {
	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"x509:",
		"certificate",
		"tls:",
		"protocol error",
		"no route to host",
		"permission denied",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// StatusCodeClassifier returns a classifier that retries on the given
// status codes. Transient network errors are always retried.
func StatusCodeClassifier(codes ...int) RetryClassifier {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}

	return func(resp *http.Response, err error) bool {
		if err != nil {
			if isTerminalOutcome(err) || isPermanentError(err) {
				return false
			}
			return isRetryableNetworkError(err)
		}
		if resp != nil {
			return codeSet[resp.StatusCode]
		}
		return false
	}
}

// AlwaysRetryClassifier returns a classifier that retries every failure:
// any error and any status >= 400. Terminal outcomes (auth, rate limit,
// queued) are still exempt because they are resolved before the classifier
// runs.
func AlwaysRetryClassifier() RetryClassifier {
	return func(resp *http.Response, err error) bool {
		if err != nil {
			return true
		}
		return resp != nil && resp.StatusCode >= 400
	}
}

// NeverRetryClassifier returns a classifier that never retries. Use when
// retries are handled at a higher level.
func NeverRetryClassifier() RetryClassifier {
	return func(_ *http.Response, _ error) bool {
		return false
	}
}
