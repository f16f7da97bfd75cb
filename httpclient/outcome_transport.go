package httpclient

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// outcomeTransport is the classification point for failed outcomes. It maps
// raw transport results onto the client's error taxonomy in fixed priority
// order:
//
//  1. 401 is resolved one layer down by authTransport (it owns the replay).
//  2. 429 becomes RateLimitError carrying the server's Retry-After wait.
//     Never auto-retried: hammering a rate limiter makes the wait longer.
//  3. 408/504 while offline: the request is stored on the offline queue and
//     a QueuedError (deferred success) surfaces. Online, the response passes
//     through for the retry engine.
//  4. A transport-level failure with no response while offline: queued the
//     same way. Online, the failure is logged and stays on the retry path.
//  5. Everything else passes through untouched.
//
// Only mutating methods are ever queued; replaying a read later has no
// durability value.
type outcomeTransport struct {
	base http.RoundTripper
	cfg  *internalConfig
}

var _ ChainedTransport = (*outcomeTransport)(nil)

func newOutcomeTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	return &outcomeTransport{base: base, cfg: cfg}
}

// Unwrap returns the wrapped transport.
func (t *outcomeTransport) Unwrap() http.RoundTripper { return t.base }

func (t *outcomeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)

	if err != nil {
		if isTerminalOutcome(err) {
			return nil, err
		}
		if isNetworkUnreachable(err) {
			if t.offline() && t.queueable(req) {
				return nil, t.enqueueForSync(req)
			}
			t.cfg.Logger.Warn().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Err(err).
				Msg("request failed without response")
		}
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get(headerRetryAfter))
		drainBody(resp)
		t.cfg.Metrics.recordRateLimited(req.Context(), t.cfg.baseAttributes())
		return nil, &RateLimitError{RetryAfter: wait}

	case isTimeoutStatus(resp.StatusCode) && t.offline() && t.queueable(req):
		drainBody(resp)
		return nil, t.enqueueForSync(req)
	}

	return resp, nil
}

func (t *outcomeTransport) offline() bool {
	return !t.cfg.Connectivity.Online()
}

// queueable reports whether the request may be stored for later sync: a
// queue must be configured and the method must be in the durable set.
func (t *outcomeTransport) queueable(req *http.Request) bool {
	return t.cfg.OfflineQueue != nil && offlineQueueMethods[req.Method]
}

// enqueueForSync stores (method, url, body) on the offline queue and
// returns the QueuedError outcome. Enqueue failures are logged and
// swallowed; durability is best-effort once connectivity is already gone.
func (t *outcomeTransport) enqueueForSync(req *http.Request) error {
	ctx := req.Context()
	url := req.URL.String()

	if err := t.cfg.OfflineQueue.Enqueue(ctx, req.Method, url, replayableBody(req)); err != nil {
		t.cfg.Logger.Error().
			Str("method", req.Method).
			Str("url", url).
			Err(err).
			Msg("offline enqueue failed")
	} else {
		t.cfg.Metrics.recordOfflineEnqueue(ctx, t.cfg.baseAttributes())
		t.cfg.Logger.Info().
			Str("method", req.Method).
			Str("url", url).
			Msg("request queued for later sync")
	}

	return &QueuedError{Method: req.Method, URL: url}
}

// replayableBody re-reads the request body via GetBody. Returns nil when
// the body is empty or not replayable.
func replayableBody(req *http.Request) []byte {
	if req.GetBody == nil {
		return nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	return body
}

// parseRetryAfter reads a Retry-After value in integer seconds, falling
// back to DefaultRetryAfter when the header is absent or unparsable.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return DefaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
