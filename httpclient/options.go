package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

// =============================================================================
// Config - HTTP Transport Configuration
// =============================================================================

// Config holds the HTTP transport configuration parameters.
// Use DefaultConfig() to get a properly initialized configuration,
// then modify specific fields as needed.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//	cfg.MaxIdleConnsPerHost = 25
//
//	client := httpclient.New(
//	    httpclient.WithConfig(cfg),
//	    httpclient.WithServiceName("mood-sync"),
//	)
type Config struct {
	// =======================================================================
	// Request Timeout
	// =======================================================================

	// Timeout specifies a time limit for the entire request lifecycle,
	// including connection establishment, TLS handshake, sending the request,
	// and reading the response body.
	//
	// A Timeout of zero means no timeout. Be cautious with zero timeout
	// in production as it can lead to hanging requests.
	//
	// Example: 30*time.Second for most API calls, 60*time.Second for uploads
	//
	// Default: 30s
	Timeout time.Duration

	// =======================================================================
	// Connection Pool Settings (Transport)
	// =======================================================================

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across ALL hosts combined.
	//
	// Rule of thumb: Set to 2-3x your expected peak concurrent requests.
	// If you typically have 30 concurrent requests, set this to 60-100.
	//
	// Too low: Frequent connection establishment (slow, resource-intensive)
	// Too high: Wasted memory holding unused connections
	//
	// Example:
	//   - Low traffic service: 20-50
	//   - Medium traffic API: 100 (default)
	//   - High traffic gateway: 500-1000
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections to keep
	// for each host (downstream service).
	//
	// This is often the most important setting for performance. If you
	// primarily call one service (common in microservices), set this close
	// to MaxIdleConns.
	//
	// Too low: Connection churn, increased latency from repeated handshakes
	// Too high: Resource waste if you call many different hosts
	//
	// Example:
	//   - Single downstream service: 50-100
	//   - Multiple downstream services: 10-20 each
	//   - Gateway calling many services: 5-10 each
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the TOTAL number of connections (idle + active)
	// per host. This prevents overwhelming a single downstream service.
	//
	// Set this higher than MaxIdleConnsPerHost to allow bursts.
	// A value of 0 means unlimited (not recommended for production).
	//
	// Example:
	//   - Conservative: 50
	//   - Normal: 100 (default)
	//   - High throughput: 0 (unlimited) or 500+
	//
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	// before being closed. Should match or slightly exceed your downstream
	// service's idle timeout to avoid "connection reset" errors.
	//
	// Example:
	//   - Most services: 90s (default)
	//   - AWS ALB default: 60s (set to 55s to close before ALB does)
	//   - Long-lived connections: 300s
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout is the maximum time to wait for a TLS handshake.
	// Increase for services with slow TLS (e.g., mutual TLS with HSM).
	//
	// Example:
	//   - Internal services: 5s
	//   - External APIs: 10s (default)
	//   - Mutual TLS with HSM: 30s
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is how long to wait for a server's
	// "100 Continue" response when using the "Expect: 100-continue" header.
	// This header is sent for large request bodies to check if the server
	// will accept the request before sending the body.
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// ResponseHeaderTimeout is the time to wait for response headers
	// after the request is fully written. Zero means no timeout (uses Timeout).
	//
	// Use this to fail fast on slow backends while still allowing
	// large response body downloads.
	//
	// Example:
	//   - Fast APIs: 5s header timeout + 30s overall timeout
	//   - File downloads: 10s header timeout + 5min overall timeout
	//
	// Default: 0 (disabled, uses overall Timeout)
	ResponseHeaderTimeout time.Duration

	// =======================================================================
	// TCP Dial Settings
	// =======================================================================

	// DialTimeout is the maximum time to wait for a TCP connection
	// to be established (before TLS handshake).
	//
	// Should be less than the overall Timeout. Set lower for fast
	// failover to alternative endpoints.
	//
	// Example:
	//   - Internal services: 2-5s
	//   - External APIs: 5-10s
	//   - Cross-region: 10-15s
	//
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive specifies the TCP keep-alive probe interval.
	// This detects dead connections that weren't properly closed.
	//
	// Lower values detect dead connections faster but use more bandwidth.
	// Higher values are more efficient but slower to detect failures.
	//
	// Example:
	//   - Typical: 30s (default)
	//   - Cloud environments with aggressive NAT: 15s
	//   - Stable internal networks: 60s
	//
	// Default: 30s
	KeepAlive time.Duration

	// FallbackDelay is the RFC 6555 "Happy Eyeballs" delay for dual-stack
	// (IPv4/IPv6) connections. After this delay, a connection attempt to
	// the secondary address family starts in parallel.
	//
	// 300ms is the RFC recommendation. Set to negative to disable Happy Eyeballs.
	//
	// Default: 300ms
	FallbackDelay time.Duration

	// =======================================================================
	// Buffer Settings
	// =======================================================================

	// WriteBufferSize is the size of the write buffer for the connection.
	// Larger buffers improve throughput for large request bodies but use
	// more memory per connection.
	//
	// Example:
	//   - Small requests (JSON API): 4KB (4*1024)
	//   - Medium requests: 32KB (32*1024)
	//   - Large uploads: 64KB (64*1024) or 128KB
	//
	// Default: 64KB
	WriteBufferSize int

	// ReadBufferSize is the size of the read buffer for the connection.
	// Larger buffers improve throughput for large response bodies.
	//
	// Default: 64KB
	ReadBufferSize int

	// MaxResponseHeaderBytes limits the size of response headers.
	// Protects against malicious servers sending huge headers.
	//
	// Default: 0 (uses http.DefaultMaxHeaderBytes, ~1MB)
	MaxResponseHeaderBytes int64

	// =======================================================================
	// Protocol Settings
	// =======================================================================

	// DisableKeepAlives disables HTTP keep-alives, forcing a new connection
	// for each request. Almost never what you want in production.
	//
	// Use only for debugging or when connecting to servers that don't
	// properly support keep-alives.
	//
	// Default: false (keep-alives enabled)
	DisableKeepAlives bool

	// DisableCompression disables the "Accept-Encoding: gzip" header,
	// preventing automatic decompression of responses.
	//
	// This is disabled by default because not all downstream services support
	// compression. Enable compression explicitly when you know the downstream
	// supports it and responses are large enough to benefit.
	//
	// Default: true (compression disabled)
	DisableCompression bool

	// ForceHTTP2 forces HTTP/2 protocol (requires HTTPS).
	// HTTP/2 multiplexes requests over a single connection, reducing latency.
	//
	// Default: false (protocol negotiated automatically via ALPN)
	ForceHTTP2 bool
}

// DefaultConfig returns a balanced configuration suitable for most use cases.
//
// This configuration balances connection reuse, reasonable timeouts,
// and resource efficiency. It's designed for typical API client
// communication patterns.
//
// Example:
//
//	// Use defaults as-is
//	client := httpclient.New(httpclient.WithConfig(httpclient.DefaultConfig()))
//
//	// Or customize specific fields
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 10 * time.Second
//	client := httpclient.New(httpclient.WithConfig(cfg))
func DefaultConfig() Config {
	return Config{
		// Overall timeout for a single logical request
		Timeout: DefaultTimeout,

		// Connection pool tuning (balanced)
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		// TLS and protocol timeouts
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0, // Uses overall Timeout

		// TCP dial settings
		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		// Buffers (64KB for good throughput)
		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,

		// Protocol (defaults)
		DisableKeepAlives:  false,
		DisableCompression: true,
		ForceHTTP2:         false,
	}
}

// HighThroughputConfig returns a configuration optimized for high-concurrency
// scenarios with many concurrent requests to the same downstream services.
//
// Key differences from DefaultConfig:
//   - Higher connection pool limits for more concurrent connections
//   - Larger buffers for better I/O throughput
//   - Unlimited MaxConnsPerHost for burst handling
//
// Best for:
//   - API gateways
//   - Data processing pipelines
//   - High-traffic services
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.HighThroughputConfig()),
//	    httpclient.WithServiceName("api-gateway"),
//	)
func HighThroughputConfig() Config {
	return Config{
		Timeout: 30 * time.Second,

		// Aggressive connection pooling
		MaxIdleConns:        500,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // Unlimited for bursts
		IdleConnTimeout:     120 * time.Second,

		// Standard timeouts
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// TCP settings
		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		// Larger buffers for throughput
		WriteBufferSize: 128 * 1024,
		ReadBufferSize:  128 * 1024,

		DisableKeepAlives:  false,
		DisableCompression: true,
		ForceHTTP2:         false,
	}
}

// LowLatencyConfig returns a configuration optimized for latency-sensitive
// applications where fast response times are critical.
//
// Key differences from DefaultConfig:
//   - Shorter timeouts to fail fast
//   - Quick dial timeout for fast failover
//   - Lower connection pool to reduce connection management overhead
//
// Best for:
//   - Real-time APIs
//   - User-facing services requiring fast responses
//   - Health checks and monitoring
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.LowLatencyConfig()),
//	    httpclient.WithServiceName("realtime-api"),
//	)
func LowLatencyConfig() Config {
	return Config{
		Timeout: 5 * time.Second,

		// Reasonable pool for low latency
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,

		// Fast timeouts
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		ResponseHeaderTimeout: 3 * time.Second,

		// Quick dial
		DialTimeout:   2 * time.Second,
		KeepAlive:     15 * time.Second,
		FallbackDelay: 150 * time.Millisecond,

		// Standard buffers
		WriteBufferSize: 32 * 1024,
		ReadBufferSize:  32 * 1024,

		DisableKeepAlives:  false,
		DisableCompression: true,
		ForceHTTP2:         true, // HTTP/2 reduces latency
	}
}

// ConservativeConfig returns a resource-conscious configuration suitable
// for environments with limited resources or many HTTP clients.
//
// Key differences from DefaultConfig:
//   - Lower connection pool limits to conserve memory
//   - Smaller buffers to reduce per-connection memory
//   - Shorter idle timeout to release resources faster
//
// Best for:
//   - Serverless functions (Lambda, Cloud Run)
//   - Sidecar containers with memory limits
//   - Applications with many HTTP client instances
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.ConservativeConfig()),
//	    httpclient.WithServiceName("lambda-handler"),
//	)
func ConservativeConfig() Config {
	return Config{
		Timeout: 10 * time.Second,

		// Minimal connection pool
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     30 * time.Second,

		// Standard timeouts
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// TCP settings
		DialTimeout:   5 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		// Smaller buffers to save memory
		WriteBufferSize: 4 * 1024,
		ReadBufferSize:  4 * 1024,

		DisableKeepAlives:  false,
		DisableCompression: true,
		ForceHTTP2:         false,
	}
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds all configuration including HTTP transport, resilience,
// authentication, offline durability, and OTel settings.
type internalConfig struct {
	// HTTP transport configuration
	httpConfig Config

	// === OpenTelemetry Configuration ===

	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Tracer is the tracer instance created from TracerProvider.
	Tracer trace.Tracer

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// === Service Identification ===

	// ServiceName identifies the HTTP client for tracing purposes.
	// Added as "http.client.name" attribute on spans.
	ServiceName string

	// === Request Defaults ===

	// BaseURL is prepended to relative request paths.
	BaseURL string

	// DefaultHeaders are applied to every request before request-specific
	// headers.
	DefaultHeaders http.Header

	// Debug enables request/response logging.
	Debug bool

	// GenerateCurl enables cURL command generation on responses.
	GenerateCurl bool

	// EnableTrace enables timing trace collection for all requests.
	EnableTrace bool

	// === Resilience ===

	// RetryConfig controls the bounded retry loop. Zero MaxRetries
	// disables retries.
	RetryConfig RetryConfig

	// RetryClassifier overrides the default retryability decision.
	RetryClassifier RetryClassifier

	// RetryBackOff overrides the linear backoff derived from RetryConfig.
	RetryBackOff backoff.BackOff

	// BreakerConfig enables the circuit breaker when non-nil.
	BreakerConfig *BreakerConfig

	// RateLimit applies client-level request rate limiting when
	// RequestsPerSecond is positive.
	RateLimit RateLimitConfig

	// === Authentication & Offline Durability ===

	// TokenStore supplies the credential attached as a Bearer
	// Authorization header and receives refreshed credentials.
	TokenStore TokenStore

	// AuthService performs credential refresh, CSRF token fetch, and
	// teardown on refresh failure.
	AuthService AuthService

	// OfflineQueue receives mutating requests that failed while the
	// process was offline, for later replay.
	OfflineQueue OfflineQueue

	// Connectivity reports whether the process is online. Consulted when
	// classifying failures as queueable. Defaults to always-online.
	Connectivity Connectivity

	// === Telemetry ===

	// Tracker receives per-request success and error events.
	Tracker Tracker

	// TrackerBuffer is the event buffer size for the tracker collector.
	// Zero uses DefaultTrackerBuffer.
	TrackerBuffer int

	// Logger is the structured logger for client internals.
	// Defaults to a no-op logger.
	Logger zerolog.Logger

	// === Interceptors ===

	// RequestInterceptors run in registration order before dispatch.
	RequestInterceptors []RequestInterceptor

	// ResponseInterceptors run in registration order after a response
	// is received.
	ResponseInterceptors []ResponseInterceptor

	// === Testing ===

	// MockTransport replaces the network transport when set.
	MockTransport *MockTransport

	// === Network Tracing ===

	// EnableNetworkTrace enables httptrace integration for detailed
	// network timing (DNS, TLS, Connect). Default: true
	EnableNetworkTrace bool

	// === Advanced Settings ===

	// TLSConfig specifies the TLS configuration.
	// If nil, the default configuration is used.
	TLSConfig *tls.Config

	// ProxyURL specifies a proxy URL for requests.
	// If nil and ProxyFromEnvironment is true, uses environment variables.
	ProxyURL *url.URL

	// ProxyFromEnvironment uses HTTP_PROXY, HTTPS_PROXY and NO_PROXY
	// environment variables. Default: true
	ProxyFromEnvironment bool

	// === Request Filtering ===

	// Filters determine which requests should be traced.
	// If any filter returns false, the request is not traced.
	// If no filters are set, all requests are traced.
	Filters []Filter

	// === Span Customization ===

	// SpanNameFormatter formats span names from request.
	// Default: "HTTP {method}"
	SpanNameFormatter SpanNameFormatter

	// SpanStartOptions are additional options applied when starting spans.
	SpanStartOptions []trace.SpanStartOption

	// MetricAttributesFn adds dynamic attributes to metrics based on request.
	MetricAttributesFn func(*http.Request) []attribute.KeyValue

	// === Context Propagation ===

	// Propagators configures the context propagators.
	// Default: TraceContext + Baggage (W3C standard)
	Propagators propagation.TextMapPropagator

	// ClientTrace provides a custom httptrace.ClientTrace factory.
	// This can be used to completely customize or replace network tracing.
	// If nil, the default network tracing is used when EnableNetworkTrace is true.
	ClientTrace func(context.Context) *httptrace.ClientTrace
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),

		// Defaults
		EnableNetworkTrace:   true,
		ProxyFromEnvironment: true,
		RetryConfig:          DefaultRetryConfig(),
		Connectivity:         alwaysOnline{},
		Logger:               zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// A nil Connectivity would make every failure classification panic.
	if cfg.Connectivity == nil {
		cfg.Connectivity = alwaysOnline{}
	}

	// Initialize tracer and meter after options are applied
	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// buildTransport creates an http.Transport from the configuration.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:       hc.DialTimeout,
		KeepAlive:     hc.KeepAlive,
		FallbackDelay: hc.FallbackDelay,
	}

	transport := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           hc.MaxIdleConns,
		MaxIdleConnsPerHost:    hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:        hc.MaxConnsPerHost,
		IdleConnTimeout:        hc.IdleConnTimeout,
		TLSHandshakeTimeout:    hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  hc.ResponseHeaderTimeout,
		ExpectContinueTimeout:  hc.ExpectContinueTimeout,
		DisableKeepAlives:      hc.DisableKeepAlives,
		DisableCompression:     hc.DisableCompression,
		WriteBufferSize:        hc.WriteBufferSize,
		ReadBufferSize:         hc.ReadBufferSize,
		MaxResponseHeaderBytes: hc.MaxResponseHeaderBytes,
		TLSClientConfig:        cfg.TLSConfig,
		ForceAttemptHTTP2:      hc.ForceHTTP2,
	}

	// Configure proxy
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else if cfg.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Filter determines whether a request should be traced.
// Return true to trace the request, false to skip tracing.
// All filters must return true for a request to be traced.
//
// Common use cases:
//   - Skip health check endpoints: return !strings.HasPrefix(r.URL.Path, "/health")
//   - Skip static assets: return !strings.HasPrefix(r.URL.Path, "/static/")
//   - Skip internal endpoints: return r.URL.Host != "localhost"
type Filter func(r *http.Request) bool

// SpanNameFormatter formats span names based on the HTTP request.
// The method parameter is the HTTP method (GET, POST, etc.).
// Return the desired span name.
//
// Default behavior produces: "HTTP {method}" (e.g., "HTTP GET")
//
// Example custom formatter:
//
//	func(method string, r *http.Request) string {
//	    return method + " " + r.URL.Path
//	}
type SpanNameFormatter func(method string, r *http.Request) string

// Option configures the HTTP client.
type Option func(*internalConfig)

// WithConfig sets the HTTP transport configuration.
// Use DefaultConfig(), HighThroughputConfig(), LowLatencyConfig(), or
// ConservativeConfig() as a starting point, then customize as needed.
//
// Example - Using a pre-defined config:
//
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.HighThroughputConfig()),
//	)
//
// Example - Customizing the default config:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 10 * time.Second
//	cfg.MaxIdleConnsPerHost = 50
//
//	client := httpclient.New(
//	    httpclient.WithConfig(cfg),
//	)
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithBaseURL sets the base URL prepended to relative request paths.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	)
//
//	// Requests "/moods" -> "https://api.example.com/moods"
//	resp, err := client.Request("ListMoods").Get(ctx, "/moods")
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.BaseURL = baseURL
	}
}

// WithDefaultHeader adds a header applied to every request.
// Request-specific headers with the same name take precedence.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithDefaultHeader("X-API-Key", apiKey),
//	    httpclient.WithDefaultHeader("Accept", "application/json"),
//	)
func WithDefaultHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		if cfg.DefaultHeaders == nil {
			cfg.DefaultHeaders = make(http.Header)
		}
		cfg.DefaultHeaders.Set(key, value)
	}
}

// WithTimeout sets the overall per-request timeout, shorthand for
// customizing Config.Timeout.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithTimeout(10 * time.Second),
//	)
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig.Timeout = timeout
	}
}

// WithDebug enables request/response logging for troubleshooting.
// Not intended for production traffic.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithDebug(true),
//	)
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithGenerateCurl enables cURL command generation for each request.
// The command is available via Response.CurlCommand(). Useful for
// reproducing requests outside the application.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithGenerateCurl(true),
//	)
//	resp, _ := client.Request("Test").Get(ctx, "/api")
//	fmt.Println(resp.CurlCommand())
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.GenerateCurl = enabled
	}
}

// WithEnableTrace enables timing trace collection for all requests.
// Per-request EnableTrace() on the builder does the same for a single call.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithEnableTrace(true),
//	)
//	resp, _ := client.Request("Test").Get(ctx, "/api")
//	fmt.Println(resp.TraceInfo())
func WithEnableTrace(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.EnableTrace = enabled
	}
}

// WithServiceName sets an identifier for this HTTP client in traces.
// The value is added as the "http.client.name" attribute on all spans,
// identifying requests from this specific client in observability tools.
// Lowercase-with-hyphens names read best in trace UIs.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
//	// In your traces:
//	//   Span: HTTP GET
//	//   └── http.client.name: mood-sync
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithRetryConfig sets the retry policy for failed requests.
// Use DefaultRetryConfig(), AggressiveRetryConfig(), or
// ConservativeRetryConfig() as a starting point.
//
// Retries apply only to failures classified as transient: timeouts,
// connection errors, and the retryable status family (408, 429, 500,
// 502, 503, 504). Terminal outcomes such as rate-limit rejections and
// queued offline requests are never retried.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithRetryConfig(httpclient.AggressiveRetryConfig()),
//	)
func WithRetryConfig(rc RetryConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RetryConfig = rc
	}
}

// WithRetryDisabled turns off automatic retries entirely.
// Equivalent to WithRetryConfig(NoRetryConfig()).
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithRetryDisabled(),
//	)
func WithRetryDisabled() Option {
	return func(cfg *internalConfig) {
		cfg.RetryConfig = NoRetryConfig()
	}
}

// WithRetryClassifier overrides the default retryability decision.
// The classifier receives the response (nil on transport error) and the
// error (nil on received response) and returns true to retry.
//
// Example - Retry only on 5xx:
//
//	client := httpclient.New(
//	    httpclient.WithRetryClassifier(func(resp *http.Response, err error) bool {
//	        return err != nil || (resp != nil && resp.StatusCode >= 500)
//	    }),
//	)
func WithRetryClassifier(classifier RetryClassifier) Option {
	return func(cfg *internalConfig) {
		cfg.RetryClassifier = classifier
	}
}

// WithRetryBackOff overrides the backoff strategy derived from RetryConfig.
// The default strategy is linear: attempt k waits k*Interval.
//
// Example - AWS-style decorrelated jitter:
//
//	client := httpclient.New(
//	    httpclient.WithRetryBackOff(httpclient.NewDecorrelatedJitterBackOff()),
//	)
func WithRetryBackOff(b backoff.BackOff) Option {
	return func(cfg *internalConfig) {
		cfg.RetryBackOff = b
	}
}

// WithBreakerConfig enables a circuit breaker around the retry loop.
// When the breaker is open, requests fail fast without reaching the
// network. Use DefaultBreakerConfig() as a starting point.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	)
func WithBreakerConfig(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRateLimit applies client-level rate limiting to all requests.
// Requests beyond the limit either wait for a token (WaitOnLimit true)
// or fail fast with ErrRateLimited.
//
// Example - 50 rps with bursts of 10:
//
//	client := httpclient.New(
//	    httpclient.WithRateLimit(httpclient.RateLimitConfig{
//	        RequestsPerSecond: 50,
//	        Burst:             10,
//	        WaitOnLimit:       true,
//	    }),
//	)
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimit = rl
	}
}

// WithRequestInterceptor adds an interceptor that runs before each request
// is dispatched. Interceptors run in registration order; the first error
// aborts the request without sending it.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithRequestInterceptor(httpclient.AuthBearerInterceptor(token)),
//	    httpclient.WithRequestInterceptor(httpclient.UserAgentInterceptor("MyApp/1.0")),
//	)
func WithRequestInterceptor(i RequestInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.RequestInterceptors = append(cfg.RequestInterceptors, i)
	}
}

// WithResponseInterceptor adds an interceptor that runs after each response
// is received, before decoding. Interceptors run in registration order;
// the first error is returned to the caller.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithResponseInterceptor(func(resp *http.Response, req *http.Request) error {
//	        log.Printf("%s %s -> %d", req.Method, req.URL, resp.StatusCode)
//	        return nil
//	    }),
//	)
func WithResponseInterceptor(i ResponseInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.ResponseInterceptors = append(cfg.ResponseInterceptors, i)
	}
}

// WithTokenStore sets the credential store. When set, every request is
// enriched with an "Authorization: Bearer <token>" header from the store,
// and refreshed credentials are written back to it.
//
// Example:
//
//	store := httpclient.NewMemoryTokenStore(initialToken)
//	client := httpclient.New(
//	    httpclient.WithTokenStore(store),
//	    httpclient.WithAuthService(authAPI),
//	)
func WithTokenStore(store TokenStore) Option {
	return func(cfg *internalConfig) {
		cfg.TokenStore = store
	}
}

// WithAuthService sets the authentication backend used for credential
// refresh and CSRF token fetch. Together with a TokenStore it enables the
// automatic 401 refresh-and-replay flow: on an unauthorized response the
// client refreshes the credential once (deduplicating concurrent refreshes)
// and replays the request with the new token.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithTokenStore(store),
//	    httpclient.WithAuthService(authAPI),
//	)
func WithAuthService(auth AuthService) Option {
	return func(cfg *internalConfig) {
		cfg.AuthService = auth
	}
}

// WithOfflineQueue sets the durable queue for mutating requests that fail
// while the process is offline. Queued requests surface as QueuedError,
// a deferred-success outcome: the request is stored for later replay by a
// separate sync process, not silently dropped.
//
// Only POST, PUT, and DELETE are ever queued.
//
// Example:
//
//	queue := offlinequeue.NewMemory(1000)
//	client := httpclient.New(
//	    httpclient.WithOfflineQueue(queue),
//	    httpclient.WithConnectivity(netStatus),
//	)
func WithOfflineQueue(q OfflineQueue) Option {
	return func(cfg *internalConfig) {
		cfg.OfflineQueue = q
	}
}

// WithConnectivity sets the connectivity signal consulted when deciding
// whether a failed request should be queued for later sync. Without it the
// client assumes it is always online and never queues.
//
// Example:
//
//	status := httpclient.NewNetworkStatus(true)
//	client := httpclient.New(
//	    httpclient.WithConnectivity(status),
//	)
func WithConnectivity(c Connectivity) Option {
	return func(cfg *internalConfig) {
		cfg.Connectivity = c
	}
}

// WithTracker sets the telemetry sink for per-request success and error
// events. Events are delivered through a bounded buffer on a dedicated
// goroutine: a slow tracker drops events instead of blocking requests.
//
// Call Client.Close() to drain buffered events on shutdown.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithTracker(telemetry.NewLogTracker(logger)),
//	)
func WithTracker(t Tracker) Option {
	return func(cfg *internalConfig) {
		cfg.Tracker = t
	}
}

// WithTrackerBuffer sets the tracker event buffer size.
// Zero or negative uses DefaultTrackerBuffer.
func WithTrackerBuffer(size int) Option {
	return func(cfg *internalConfig) {
		cfg.TrackerBuffer = size
	}
}

// WithLogger sets the structured logger for client internals (refresh
// outcomes, queue activity, swallowed enrichment failures). The default
// logger discards everything.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	client := httpclient.New(
//	    httpclient.WithLogger(logger),
//	)
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
// If not called, the global provider from otel.GetTracerProvider() is used.
//
// Use this when you need to:
//   - Use a different TracerProvider than the global one
//   - Configure custom span processors or exporters for HTTP spans
//   - Isolate HTTP tracing from other instrumentation
//
// Example:
//
//	// Create a custom tracer provider
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithSampler(sdktrace.AlwaysSample()),
//	)
//
//	client := httpclient.New(
//	    httpclient.WithTracerProvider(tp),
//	    httpclient.WithServiceName("mood-sync"),
//	)
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
// If not called, the global provider from otel.GetMeterProvider() is used.
//
// Use this when you need to:
//   - Use a different MeterProvider than the global one
//   - Configure custom metric readers or exporters for HTTP metrics
//   - Isolate HTTP metrics from other instrumentation
//
// Example:
//
//	// Create a custom meter provider
//	mp := sdkmetric.NewMeterProvider(
//	    sdkmetric.WithReader(periodicReader),
//	)
//
//	client := httpclient.New(
//	    httpclient.WithMeterProvider(mp),
//	    httpclient.WithServiceName("mood-sync"),
//	)
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithTLSConfig sets a custom TLS configuration.
// Use this for custom certificate verification, client certificates (mTLS),
// or specific TLS version requirements.
//
// Example - Skip certificate verification (NOT for production):
//
//	client := httpclient.New(
//	    httpclient.WithTLSConfig(&tls.Config{
//	        InsecureSkipVerify: true,
//	    }),
//	)
//
// Example - Mutual TLS with client certificate:
//
//	cert, _ := tls.LoadX509KeyPair("client.crt", "client.key")
//	client := httpclient.New(
//	    httpclient.WithTLSConfig(&tls.Config{
//	        Certificates: []tls.Certificate{cert},
//	    }),
//	)
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithProxyURL sets a specific proxy URL for all requests.
// When set, this takes precedence over environment variables.
//
// Example:
//
//	proxyURL, _ := url.Parse("http://proxy.internal:8080")
//	client := httpclient.New(
//	    httpclient.WithProxyURL(proxyURL),
//	)
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyURL = proxyURL
		cfg.ProxyFromEnvironment = false
	}
}

// WithProxyFromEnvironment enables or disables reading proxy settings
// from environment variables (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
//
// Default: true (environment variables are used)
//
// Example - Disable environment proxy:
//
//	client := httpclient.New(
//	    httpclient.WithProxyFromEnvironment(false),
//	)
func WithProxyFromEnvironment(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyFromEnvironment = enabled
	}
}

// WithDisableNetworkTrace disables the httptrace integration that provides
// detailed network-level timing (DNS lookup, TLS handshake, connection time).
//
// You might disable this to:
//   - Reduce tracing overhead in extremely high-throughput scenarios
//   - Simplify trace output when network timing is not needed
//
// Default: Network tracing is enabled
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithDisableNetworkTrace(),
//	)
func WithDisableNetworkTrace() Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = false
	}
}

// WithFilter adds a filter to determine which requests should be traced.
// Filters are called for each request before tracing starts.
// If any filter returns false, the request is not traced.
// Multiple filters can be added by calling WithFilter multiple times.
//
// Use filters to skip tracing for:
//   - Health check endpoints
//   - Metrics endpoints
//   - Static assets
//   - Internal/debug endpoints
//
// Example - Skip health checks:
//
//	client := httpclient.New(
//	    httpclient.WithFilter(func(r *http.Request) bool {
//	        return !strings.HasPrefix(r.URL.Path, "/health")
//	    }),
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
// Example - Skip multiple endpoints:
//
//	client := httpclient.New(
//	    httpclient.WithFilter(func(r *http.Request) bool {
//	        return !strings.HasPrefix(r.URL.Path, "/health")
//	    }),
//	    httpclient.WithFilter(func(r *http.Request) bool {
//	        return !strings.HasPrefix(r.URL.Path, "/metrics")
//	    }),
//	)
func WithFilter(f Filter) Option {
	return func(cfg *internalConfig) {
		cfg.Filters = append(cfg.Filters, f)
	}
}

// WithSpanNameFormatter sets a custom function to generate span names.
// The default formatter produces "HTTP {method}" (e.g., "HTTP GET").
//
// Common patterns:
//   - Include path: func(m string, r *http.Request) string { return m + " " + r.URL.Path }
//   - Fixed operation: func(m string, r *http.Request) string { return "api-call" }
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithSpanNameFormatter(func(method string, r *http.Request) string {
//	        return method + " " + r.URL.Path
//	    }),
//	)
func WithSpanNameFormatter(f SpanNameFormatter) Option {
	return func(cfg *internalConfig) {
		cfg.SpanNameFormatter = f
	}
}

// WithSpanOptions adds trace.SpanStartOption to each new span.
// Use this to set custom attributes, links, or span kinds.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithSpanOptions(
//	        trace.WithAttributes(attribute.String("team", "platform")),
//	    ),
//	)
func WithSpanOptions(opts ...trace.SpanStartOption) Option {
	return func(cfg *internalConfig) {
		cfg.SpanStartOptions = append(cfg.SpanStartOptions, opts...)
	}
}

// WithMetricAttributesFn sets a function to add dynamic attributes to metrics.
// The function is called for each request and the returned attributes
// are added to all metrics recorded for that request.
//
// Use this to add custom dimensions for filtering/grouping metrics.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithMetricAttributesFn(func(r *http.Request) []attribute.KeyValue {
//	        return []attribute.KeyValue{
//	            attribute.String("tenant", r.Header.Get("X-Tenant-ID")),
//	        }
//	    }),
//	)
func WithMetricAttributesFn(f func(*http.Request) []attribute.KeyValue) Option {
	return func(cfg *internalConfig) {
		cfg.MetricAttributesFn = f
	}
}

// WithPropagators sets custom context propagators for trace context injection.
// By default, W3C TraceContext and Baggage propagators are used.
//
// Use this when you need to:
//   - Use different propagation formats (e.g., B3, Jaeger)
//   - Customize which headers are used for trace context
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithPropagators(b3.New()),
//	)
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.Propagators = p
	}
}

// WithClientTrace sets a custom httptrace.ClientTrace factory.
// This completely replaces the built-in network tracing when provided.
//
// Use this when you need full control over HTTP client event tracing,
// or to integrate with custom tracing systems.
//
// Note: When set, EnableNetworkTrace is effectively ignored for the
// custom trace - you control all tracing behavior.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
//	        return &httptrace.ClientTrace{
//	            DNSStart: func(info httptrace.DNSStartInfo) {
//	                log.Printf("DNS lookup: %s", info.Host)
//	            },
//	        }
//	    }),
//	)
func WithClientTrace(f func(context.Context) *httptrace.ClientTrace) Option {
	return func(cfg *internalConfig) {
		cfg.ClientTrace = f
	}
}
