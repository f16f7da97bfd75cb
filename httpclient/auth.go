package httpclient

import (
	"context"
	"sync"
)

// TokenStore provides scoped access to the stored access credential.
// Implementations must be safe for concurrent use; the client reads the
// token on every outbound request and writes it after each successful
// refresh.
//
// An empty token with a nil error means "no credential stored": the client
// sends the request without an Authorization header.
type TokenStore interface {
	// AccessToken returns the current access credential, or "" if none
	// is stored.
	AccessToken(ctx context.Context) (string, error)

	// SetAccessToken persists a new access credential.
	SetAccessToken(ctx context.Context, token string) error

	// ClearTokens removes all stored credentials. Called during session
	// teardown after a failed refresh.
	ClearTokens(ctx context.Context) error
}

// AuthService performs the credential operations the client cannot do
// itself: refreshing an expired access token, minting CSRF tokens for
// state-changing requests, and tearing down the session when refresh fails.
type AuthService interface {
	// RefreshAccessToken exchanges the session's refresh credential for a
	// new access token. Called at most once concurrently per client.
	RefreshAccessToken(ctx context.Context) (string, error)

	// CSRFToken returns a token for the X-CSRFToken header. Failures are
	// non-fatal: the request proceeds without the header.
	CSRFToken(ctx context.Context) (string, error)

	// Logout tears down the server-side session. Invoked after a refresh
	// failure, before the authentication error surfaces to the caller.
	Logout(ctx context.Context) error
}

// MemoryTokenStore is an in-process TokenStore backed by a mutex-guarded
// string. Suitable for tests and single-process deployments; production
// callers typically wrap their secret storage instead.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a MemoryTokenStore seeded with token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// AccessToken implements TokenStore.
func (s *MemoryTokenStore) AccessToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetAccessToken implements TokenStore.
func (s *MemoryTokenStore) SetAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// ClearTokens implements TokenStore.
func (s *MemoryTokenStore) ClearTokens(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
