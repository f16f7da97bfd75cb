package httpclient

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Refresh coordinator states.
const (
	refreshIdle int32 = iota
	refreshActive
)

// refreshCoordinator serializes credential refreshes across all in-flight
// requests. The idle→active transition is a compare-and-swap, so under any
// goroutine interleaving at most one refresh runs at a time. Requests that
// lose the swap are rejected with ErrRefreshInFlight rather than parked; a
// rejected request re-enters the refresh path on its own next attempt.
type refreshCoordinator struct {
	state  atomic.Int32
	auth   AuthService
	tokens TokenStore
	logger zerolog.Logger
}

func newRefreshCoordinator(auth AuthService, tokens TokenStore, logger zerolog.Logger) *refreshCoordinator {
	return &refreshCoordinator{
		auth:   auth,
		tokens: tokens,
		logger: logger,
	}
}

// Refresh obtains a new access credential. Exactly one caller wins the
// idle→active swap and performs the refresh; everyone else fails fast with
// ErrRefreshInFlight.
//
// On success the new token is persisted to the TokenStore before it is
// returned, so requests built after this call pick it up from the store.
// On failure the session is torn down (tokens cleared, logout invoked)
// before the refresh error is returned.
func (rc *refreshCoordinator) Refresh(ctx context.Context) (string, error) {
	if !rc.state.CompareAndSwap(refreshIdle, refreshActive) {
		return "", ErrRefreshInFlight
	}
	defer rc.state.Store(refreshIdle)

	token, err := rc.auth.RefreshAccessToken(ctx)
	if err != nil {
		rc.logger.Warn().Err(err).Msg("credential refresh failed, tearing down session")
		rc.teardown(ctx)
		return "", err
	}

	if rc.tokens != nil {
		if serr := rc.tokens.SetAccessToken(ctx, token); serr != nil {
			// The refreshed token still authenticates the replay; only
			// persistence for future requests is degraded.
			rc.logger.Warn().Err(serr).Msg("failed to persist refreshed credential")
		}
	}

	return token, nil
}

func (rc *refreshCoordinator) teardown(ctx context.Context) {
	if rc.tokens != nil {
		if err := rc.tokens.ClearTokens(ctx); err != nil {
			rc.logger.Warn().Err(err).Msg("failed to clear credentials during teardown")
		}
	}
	if err := rc.auth.Logout(ctx); err != nil {
		rc.logger.Warn().Err(err).Msg("logout failed during session teardown")
	}
}
