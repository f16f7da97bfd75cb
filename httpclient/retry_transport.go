package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// retryTransport re-dispatches transient failures with linear backoff.
// It is the outer recovery engine: semantic recovery (auth refresh, rate
// limiting, offline queueing) happens in the wrapped transports below it,
// and outcomes those layers resolve are permanent here.
type retryTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	classifier RetryClassifier
}

var _ ChainedTransport = (*retryTransport)(nil)

func newRetryTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.RetryConfig.IsEnabled() {
		return base
	}

	classifier := cfg.RetryClassifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	return &retryTransport{
		base:       base,
		cfg:        cfg,
		classifier: classifier,
	}
}

// Unwrap returns the wrapped transport.
func (t *retryTransport) Unwrap() http.RoundTripper { return t.base }

// RoundTrip implements http.RoundTripper with bounded, backed-off retries.
//
// A request is dispatched at most MaxRetries+1 times; the delay before
// retry k is k times the configured interval. When the ceiling is reached
// the last classified error is surfaced wrapped in ExhaustedError.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cfg := t.cfg.RetryConfig

	// Capture the body once so each attempt can replay it.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	span := trace.SpanFromContext(ctx)
	b := t.getBackoff()

	var (
		attempts      int
		retries       int
		permanentStop bool
		startTime     = time.Now()
	)

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxRetries + 1), // +1: the initial attempt counts
	}
	if cfg.MaxElapsedTime > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}
	retryOpts = append(retryOpts, backoff.WithNotify(func(err error, next time.Duration) {
		retries++
		t.recordRetryEvent(span, retries, err, next)
		t.cfg.Metrics.recordRetryAttempt(ctx, t.cfg.baseAttributes(), retries)
	}))

	resp, lastErr := backoff.Retry(ctx, func() (*http.Response, error) {
		attempts++
		reqClone := t.cloneRequest(req, bodyBytes)

		resp, err := t.base.RoundTrip(reqClone)

		// Outcomes resolved by classification (auth, rate limit, queued)
		// never re-enter the retry loop.
		if err != nil && isTerminalOutcome(err) {
			permanentStop = true
			return nil, backoff.Permanent(err)
		}

		if t.classifier(resp, err) {
			if err == nil && resp != nil {
				// Carry the status through the engine so exhaustion
				// surfaces the real failure.
				err = &StatusError{Code: resp.StatusCode}
				drainBody(resp)
			}
			return nil, err
		}

		if err != nil {
			permanentStop = true
			return nil, backoff.Permanent(err)
		}

		return resp, nil
	}, retryOpts...)

	totalDuration := time.Since(startTime)
	if retries > 0 {
		span.SetAttributes(
			attribute.Int("http.retry_count", retries),
			attribute.Bool("http.retry_success", lastErr == nil),
		)
		if lastErr != nil {
			t.cfg.Metrics.recordRetryExhausted(ctx, t.cfg.baseAttributes())
		}
	}
	t.cfg.Metrics.recordRetryDuration(ctx, t.cfg.baseAttributes(), totalDuration)

	if lastErr != nil && !permanentStop && ctx.Err() == nil {
		lastErr = &ExhaustedError{Attempts: attempts, Err: lastErr}
	}

	return resp, lastErr
}

// cloneRequest creates a copy of the request with a fresh body. GetBody is
// set on the clone so layers below (auth replay, offline enqueue) can read
// the body again after the attempt consumed it.
func (t *retryTransport) cloneRequest(req *http.Request, bodyBytes []byte) *http.Request {
	clone := req.Clone(req.Context())

	if bodyBytes != nil {
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.ContentLength = int64(len(bodyBytes))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	} else if req.GetBody != nil {
		var err error
		clone.Body, err = req.GetBody()
		if err != nil {
			clone.Body = req.Body
		}
	}

	return clone
}

// drainBody discards and closes a response body so the connection can be
// reused by the next attempt.
func drainBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// getBackoff returns the configured backoff strategy; the default is the
// linear ramp from the retry config.
func (t *retryTransport) getBackoff() backoff.BackOff {
	if t.cfg.RetryBackOff != nil {
		t.cfg.RetryBackOff.Reset()
		return t.cfg.RetryBackOff
	}
	return linearBackOffFromConfig(t.cfg.RetryConfig)
}

// recordRetryEvent adds a span event for the retry attempt.
func (t *retryTransport) recordRetryEvent(
	span trace.Span,
	attempt int,
	err error,
	nextDelay time.Duration,
) {
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", nextDelay.Milliseconds()),
	}

	if err != nil {
		reason := "unknown"
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
			reason = statusErr.Error()
		case isRetryableNetworkError(err):
			reason = "network_error"
		default:
			reason = err.Error()
			if len(reason) > 50 {
				reason = reason[:50] + "..."
			}
		}

		attrs = append(attrs, attribute.String("retry.reason", reason))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.AddEvent("http.retry", trace.WithAttributes(attrs...))
}
