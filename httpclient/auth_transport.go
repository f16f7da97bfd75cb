package httpclient

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// authTransport resolves 401 responses. On the first 401 of a logical
// request it marks the request as auth-retried, runs the refresh
// coordinator, and replays the request once with the new credential. A 401
// on the replay passes through untouched; a refresh failure (including
// losing the single-flight race) surfaces as AuthError.
//
// The transport sits below the retry engine so a replayed request that
// still fails transiently stays eligible for backed-off retries, while the
// auth-retried flag, living on the logical request, rules out a second
// refresh.
type authTransport struct {
	base        http.RoundTripper
	cfg         *internalConfig
	coordinator *refreshCoordinator
}

var _ ChainedTransport = (*authTransport)(nil)

func newAuthTransport(base http.RoundTripper, cfg *internalConfig, coordinator *refreshCoordinator) http.RoundTripper {
	if coordinator == nil {
		return base
	}
	return &authTransport{
		base:        base,
		cfg:         cfg,
		coordinator: coordinator,
	}
}

// Unwrap returns the wrapped transport.
func (t *authTransport) Unwrap() http.RoundTripper { return t.base }

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	state := requestStateFromContext(req.Context())
	if state == nil || !state.authRetried.CompareAndSwap(false, true) {
		// No per-request state, or this request already spent its one
		// refresh: the 401 is final for this layer.
		return resp, nil
	}

	drainBody(resp)

	ctx := req.Context()
	span := trace.SpanFromContext(ctx)

	token, rerr := t.coordinator.Refresh(ctx)
	if rerr != nil {
		t.cfg.Metrics.recordTokenRefresh(ctx, t.cfg.baseAttributes(), false)
		if span.IsRecording() {
			span.AddEvent("auth.refresh", trace.WithAttributes(
				attribute.Bool("auth.refresh.success", false),
			))
		}
		return nil, &AuthError{Err: rerr}
	}

	t.cfg.Metrics.recordTokenRefresh(ctx, t.cfg.baseAttributes(), true)
	if span.IsRecording() {
		span.AddEvent("auth.refresh", trace.WithAttributes(
			attribute.Bool("auth.refresh.success", true),
		))
	}

	return t.base.RoundTrip(t.cloneForReplay(req, token))
}

// cloneForReplay copies the request with a fresh body and the refreshed
// credential injected. All other headers (CSRF token included) carry over
// from the original dispatch.
func (t *authTransport) cloneForReplay(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())

	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	} else if req.Body == nil || req.Body == http.NoBody {
		clone.Body = http.NoBody
	} else {
		// Original body was a one-shot stream already consumed by the
		// first dispatch; the replay goes out without it.
		t.cfg.Logger.Warn().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Msg("replaying request without body: original body not replayable")
		clone.Body = http.NoBody
		clone.ContentLength = 0
	}

	clone.Header.Set(headerAuthorization, bearerPrefix+token)
	return clone
}
