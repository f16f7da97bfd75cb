package httpclient

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// requestState carries per-logical-request annotations across retry attempt
// clones: the dispatch timestamp for telemetry and the one-shot auth-retry
// flag that keeps a 401 from triggering more than one refresh per request.
//
// The state is installed into the context once per logical request (by the
// request builder, or lazily by the outermost transport for raw http.Client
// use) and shared by every attempt clone, since cloning preserves the
// context.
type requestState struct {
	start       time.Time
	authRetried atomic.Bool
}

type requestStateKey struct{}

func withRequestState(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, requestStateKey{}, st)
}

func requestStateFromContext(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateKey{}).(*requestState)
	return st
}

// ensureRequestState returns the request's state, installing a fresh one on
// a derived request when absent.
func ensureRequestState(req *http.Request) (*http.Request, *requestState) {
	if st := requestStateFromContext(req.Context()); st != nil {
		return req, st
	}
	st := &requestState{start: time.Now()}
	return req.WithContext(withRequestState(req.Context(), st)), st
}
