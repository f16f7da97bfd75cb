package httpclient

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Client is a high-level HTTP client with fluent request building,
// automatic credential refresh, bounded retries, offline durability,
// and OpenTelemetry instrumentation.
//
// Create a Client using New():
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
//	resp, err := client.Request("CreateMood").
//	    Path("/moods").
//	    Body(entry).
//	    Post(ctx)
type Client struct {
	// httpClient is the underlying HTTP client with transport chain.
	httpClient *http.Client

	// config holds all client configuration.
	config *internalConfig

	// baseURL is the base URL for all requests.
	baseURL string

	// defaultHeaders are applied to all requests.
	defaultHeaders http.Header

	// debug enables request/response logging.
	debug bool

	// generateCurl enables cURL command generation.
	generateCurl bool

	// enableTrace enables timing trace info collection.
	enableTrace bool

	// id scopes request coalescing to this client instance.
	id string

	// interceptors is the assembled request/response chain: credential and
	// CSRF enrichment first, then user-registered interceptors.
	interceptors *InterceptorChain

	// collector forwards tracker events off the request path.
	// Nil when no tracker is configured.
	collector *trackerCollector
}

// HTTP returns the underlying *http.Client for advanced use cases.
//
// Use this when you need to:
//   - Pass the client to third-party libraries expecting *http.Client
//   - Access transport-level settings
//   - Make requests without the fluent builder
//
// Requests made this way still flow through the full transport chain
// (rate limiting, auth replay, outcome classification, retries, breaker,
// tracing), but skip the builder-level interceptors and telemetry events.
//
// Example:
//
//	rawClient := client.HTTP()
//	resp, err := rawClient.Do(req)
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Request creates a new RequestBuilder for the given operation name.
//
// The operation name is used for:
//   - Request coalescing and per-operation rate limit keys
//   - Debug logging identification
//   - Metrics labeling
//
// Example:
//
//	resp, err := client.Request("CreateMood").
//	    Path("/moods").
//	    Body(entry).
//	    Post(ctx)
func (c *Client) Request(operationName string) *RequestBuilder {
	return &RequestBuilder{
		client:        c,
		operationName: operationName,
		headers:       make(http.Header),
		pathParams:    make(map[string]string),
	}
}

// Close flushes buffered telemetry events and releases client-held
// resources. In-flight requests are unaffected; only tracker delivery
// stops once the drain completes. Safe to call more than once.
func (c *Client) Close() {
	if c.collector != nil {
		c.collector.Close()
	}
	clientCoalesceGroups.remove(c.id)
}

// New creates a Client with production-ready defaults.
//
// The client includes:
//   - Connection pooling and timeouts
//   - Automatic Bearer credential injection and 401 refresh-and-replay
//     (when a TokenStore and AuthService are configured)
//   - Bounded retries with linear backoff for transient failures
//   - Offline durability for mutating requests (when an OfflineQueue
//     is configured)
//   - OpenTelemetry tracing and metrics
//   - Fluent request builder via Request()
//
// Example - Basic usage:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
//	resp, err := client.Request("ListMoods").Get(ctx, "/moods")
//
// Example - With authentication:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithTokenStore(store),
//	    httpclient.WithAuthService(authAPI),
//	)
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	var base http.RoundTripper
	if cfg.MockTransport != nil {
		base = cfg.MockTransport
	} else {
		base = cfg.buildTransport()
	}

	httpClient := &http.Client{
		Transport: assembleTransport(base, cfg),
		Timeout:   cfg.httpConfig.Timeout,
	}

	return newClient(httpClient, cfg)
}

// assembleTransport wraps base with the full transport chain. Innermost
// first: client-level rate limiting, then 401 refresh-and-replay, then
// outcome classification (429, offline queueing), then the retry engine,
// then the circuit breaker, with OTel instrumentation outermost.
//
// Ordering is load-bearing. Auth replay sits below classification so a
// replayed response is still classified; classification sits below retry
// so resolved outcomes are permanent there; the breaker sits above retry
// so one logical request counts once against the trip counters.
func assembleTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	rt := newRateLimitTransport(base, cfg.RateLimit)

	var coordinator *refreshCoordinator
	if cfg.AuthService != nil {
		coordinator = newRefreshCoordinator(cfg.AuthService, cfg.TokenStore, cfg.Logger)
	}
	rt = newAuthTransport(rt, cfg, coordinator)
	rt = newOutcomeTransport(rt, cfg)
	rt = newRetryTransport(rt, cfg)
	rt = newCircuitBreakerTransport(rt, cfg)

	return newOtelTransport(rt, cfg)
}

// newClient builds the Client wrapper around an assembled http.Client.
func newClient(httpClient *http.Client, cfg *internalConfig) *Client {
	c := &Client{
		httpClient:     httpClient,
		config:         cfg,
		baseURL:        cfg.BaseURL,
		defaultHeaders: cfg.DefaultHeaders,
		debug:          cfg.Debug,
		generateCurl:   cfg.GenerateCurl,
		enableTrace:    cfg.EnableTrace,
		id:             uuid.NewString(),
		interceptors:   buildInterceptorChain(cfg),
	}

	if cfg.Tracker != nil {
		c.collector = newTrackerCollector(cfg.Tracker, cfg.TrackerBuffer)
	}

	return c
}

// buildInterceptorChain assembles the fixed-order interceptor chain:
// built-in credential and CSRF enrichment first, then user-registered
// client-level interceptors in registration order.
func buildInterceptorChain(cfg *internalConfig) *InterceptorChain {
	chain := NewInterceptorChain()

	if cfg.TokenStore != nil {
		chain.AddRequestInterceptor(bearerTokenInterceptor(cfg.TokenStore, cfg.Logger))
	}
	if cfg.AuthService != nil {
		chain.AddRequestInterceptor(csrfTokenInterceptor(cfg.AuthService, &singleflight.Group{}, cfg.Logger))
	}

	for _, i := range cfg.RequestInterceptors {
		chain.AddRequestInterceptor(i)
	}
	for _, i := range cfg.ResponseInterceptors {
		chain.AddResponseInterceptor(i)
	}

	return chain
}

// NewTransport creates an instrumented http.RoundTripper that can be used
// with a custom http.Client.
//
// Only tracing and metrics are added; the resilience chain (retries, auth
// replay, offline queueing) is not. Use NewWithTransport when you need the
// full chain over a custom base transport.
//
// Example:
//
//	transport := httpclient.NewTransport(http.DefaultTransport,
//	    httpclient.WithServiceName("mood-sync"),
//	)
//	client := &http.Client{
//	    Transport: transport,
//	    Timeout:   30 * time.Second,
//	}
func NewTransport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	cfg := newConfig(opts...)
	return newOtelTransport(base, cfg)
}

// NewWithTransport creates a Client using a custom base transport with the
// full transport chain wrapped around it.
//
// Use this when you need precise control over the underlying transport
// (custom dialers, test doubles, socket options) but still want the
// client's resilience and observability behavior.
//
// Example:
//
//	transport := &http.Transport{
//	    MaxIdleConnsPerHost: 50,
//	    DisableCompression:  true,
//	}
//	client := httpclient.NewWithTransport(transport,
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("mood-sync"),
//	)
func NewWithTransport(base http.RoundTripper, opts ...Option) *Client {
	cfg := newConfig(opts...)

	httpClient := &http.Client{
		Transport: assembleTransport(base, cfg),
		Timeout:   cfg.httpConfig.Timeout,
	}

	return newClient(httpClient, cfg)
}

// WrapClient wraps an existing http.Client's transport with the full
// transport chain.
//
// This modifies the client in-place and returns a new Client wrapper.
// If the client has no transport, http.DefaultTransport is used.
//
// Example:
//
//	httpClient := &http.Client{Timeout: 30 * time.Second}
//	client := httpclient.WrapClient(httpClient,
//	    httpclient.WithServiceName("mood-sync"),
//	)
func WrapClient(httpClient *http.Client, opts ...Option) *Client {
	cfg := newConfig(opts...)

	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient.Transport = assembleTransport(base, cfg)

	return newClient(httpClient, cfg)
}
