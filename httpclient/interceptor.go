package httpclient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Header names the client reads and writes.
const (
	headerAuthorization = "Authorization"
	headerCSRF          = "X-CSRFToken"
	headerRetryAfter    = "Retry-After"

	bearerPrefix = "Bearer "
)

// csrfMethods is the state-changing set that gets a CSRF token injected.
var csrfMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// offlineQueueMethods is the subset of mutating methods the offline queue
// accepts for later replay.
var offlineQueueMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// RequestInterceptor enriches a request before it is handed to the
// transport chain. Interceptors run in a fixed order: the client's built-in
// enrichment (credential header, CSRF token) first, then user-registered
// client-level interceptors, then per-request interceptors. An error from
// an interceptor is a setup failure: terminal, never retried.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor inspects or mutates a response after receipt, before
// it is returned to the caller. Runs only for outcomes that produced a
// response.
type ResponseInterceptor func(resp *http.Response, req *http.Request) error

// InterceptorChain holds ordered request and response interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates an empty interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends a request interceptor.
func (c *InterceptorChain) AddRequestInterceptor(i RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, i)
}

// AddResponseInterceptor appends a response interceptor.
func (c *InterceptorChain) AddResponseInterceptor(i ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, i)
}

// ApplyRequestInterceptors runs all request interceptors in order, stopping
// at the first error.
func (c *InterceptorChain) ApplyRequestInterceptors(req *http.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(req); err != nil {
			return err
		}
	}
	return nil
}

// ApplyResponseInterceptors runs all response interceptors in order,
// stopping at the first error.
func (c *InterceptorChain) ApplyResponseInterceptors(resp *http.Response, req *http.Request) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(resp, req); err != nil {
			return err
		}
	}
	return nil
}

// bearerTokenInterceptor injects the stored credential as a Bearer
// Authorization header. A request that already carries an Authorization
// header is left alone, and an empty store means the request goes out
// unauthenticated. Store read failures are logged and swallowed: header
// enrichment never fails a request.
func bearerTokenInterceptor(store TokenStore, logger zerolog.Logger) RequestInterceptor {
	return func(req *http.Request) error {
		if req.Header.Get(headerAuthorization) != "" {
			return nil
		}
		token, err := store.AccessToken(req.Context())
		if err != nil {
			logger.Warn().Err(err).Msg("credential read failed, sending request unauthenticated")
			return nil
		}
		if token != "" {
			req.Header.Set(headerAuthorization, bearerPrefix+token)
		}
		return nil
	}
}

// csrfTokenInterceptor injects an X-CSRFToken header on state-changing
// methods. Concurrent fetches are deduplicated through a singleflight
// group. A failed fetch is non-fatal: the request proceeds without the
// header and the server-side check is the backstop.
func csrfTokenInterceptor(auth AuthService, group *singleflight.Group, logger zerolog.Logger) RequestInterceptor {
	return func(req *http.Request) error {
		if !csrfMethods[req.Method] || req.Header.Get(headerCSRF) != "" {
			return nil
		}

		token, err, _ := group.Do("csrf", func() (any, error) {
			return auth.CSRFToken(req.Context())
		})
		if err != nil {
			logger.Warn().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Err(err).
				Msg("csrf token fetch failed, proceeding without header")
			return nil
		}

		if t, ok := token.(string); ok && t != "" {
			req.Header.Set(headerCSRF, t)
		}
		return nil
	}
}

// AuthBearerInterceptor adds a fixed Bearer token to every request.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set(headerAuthorization, bearerPrefix+token)
		return nil
	}
}

// AuthBearerFuncInterceptor adds a Bearer token resolved per request,
// useful for dynamic tokens outside the TokenStore contract.
func AuthBearerFuncInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return func(req *http.Request) error {
		token, err := tokenFunc()
		if err != nil {
			return err
		}
		req.Header.Set(headerAuthorization, bearerPrefix+token)
		return nil
	}
}

// APIKeyInterceptor adds an API key header.
func APIKeyInterceptor(headerName, apiKey string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set(headerName, apiKey)
		return nil
	}
}

// CorrelationIDInterceptor stamps each request with a correlation ID in the
// given header, unless the caller already set one. A nil generator defaults
// to random UUIDs.
func CorrelationIDInterceptor(headerName string, generate func() string) RequestInterceptor {
	if generate == nil {
		generate = uuid.NewString
	}
	return func(req *http.Request) error {
		if req.Header.Get(headerName) == "" {
			req.Header.Set(headerName, generate())
		}
		return nil
	}
}

// UserAgentInterceptor sets the User-Agent header.
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("User-Agent", userAgent)
		return nil
	}
}
