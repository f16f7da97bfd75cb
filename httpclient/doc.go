// Package httpclient provides a resilient HTTP client with coordinated
// credential refresh, bounded linear retries, offline request durability,
// and OpenTelemetry instrumentation.
//
// # Features
//
//   - Single-flighted token refresh: concurrent 401s trigger exactly one
//     refresh; the winner replays, losers fail fast
//   - Bounded retries with linear backoff (1s, 2s, 3s) for transient
//     failures (408, 429, 500, 502-504, network errors)
//   - Rate-limit surfacing: 429 responses yield a typed error carrying the
//     server-directed Retry-After wait instead of being hammered
//   - Offline durability: mutating requests that fail while offline are
//     enqueued for later sync and surfaced as a queued outcome
//   - Fire-and-forget telemetry through a bounded tracker collector
//   - OpenTelemetry tracing and metrics, circuit breaking, client-side
//     rate limiting, request coalescing, connection pooling
//
// # Quick Start
//
// Basic usage with the fluent request builder:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
//	// Simple GET request
//	resp, err := client.Request("ListMoods").Get(ctx, "/moods")
//
//	// POST with JSON body and response decoding
//	var entry MoodEntry
//	resp, err := client.Request("CreateMood").
//	    Body(newEntry).
//	    Decode(&entry).
//	    Post(ctx, "/moods")
//
// For raw http.Client access (advanced usage):
//
//	httpClient := client.HTTP()
//	resp, err := httpClient.Do(req)
//
// # Authentication
//
// Wire a TokenStore and AuthService to get Bearer injection, CSRF headers
// on mutating requests, and automatic refresh-and-replay on 401:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithTokenStore(store),
//	    httpclient.WithAuthService(authSvc),
//	)
//
// A 401 response triggers one RefreshAccessToken call; the request is
// replayed once with the new credential. Concurrent 401s coordinate
// through a single-flight gate: only one refresh runs at a time, and
// requests that lose the race fail with *AuthError wrapping
// ErrRefreshInFlight rather than piling onto the auth server. If the
// refresh itself fails the client clears stored tokens and calls Logout.
//
// # Offline Durability
//
// Wire a Connectivity source and an OfflineQueue to keep mutating
// requests from being lost while offline:
//
//	client := httpclient.New(
//	    httpclient.WithConnectivity(netStatus),
//	    httpclient.WithOfflineQueue(queue),
//	)
//
// A POST, PUT, or DELETE that times out (408/504) or fails at the network
// layer while offline is enqueued exactly once and the call returns a
// *QueuedError, a deferred success detectable with IsQueued(err). GET
// requests are never enqueued. The client never reads the queue; draining
// is the application's job.
//
// # Error Taxonomy
//
// Terminal outcomes are typed and matched with errors.As:
//
//	var rateErr *httpclient.RateLimitError
//	if errors.As(err, &rateErr) {
//	    wait := rateErr.RetryAfter // server-directed, default 60s
//	}
//
//	var authErr *httpclient.AuthError   // 401 unresolved by refresh
//	var queued  *httpclient.QueuedError // enqueued for later sync
//	var exhausted *httpclient.ExhaustedError // retry ceiling hit; unwraps to last failure
//
// # Configuration Presets
//
// The package provides pre-tuned transport configurations:
//
//	// High-throughput: 200 idle conns, 50 per host, 30s timeout
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.HighThroughputConfig()),
//	)
//
//	// Low-latency: 5s timeout, 2s dial, minimal buffers
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.LowLatencyConfig()),
//	)
//
//	// Conservative: 50 idle conns, 10 per host, 30s timeout
//	client := httpclient.New(
//	    httpclient.WithConfig(httpclient.ConservativeConfig()),
//	)
//
// # Retry Configuration
//
// The default policy retries up to 3 times with linear backoff: the delay
// before attempt k is k×1s. Typed terminal errors (auth, rate limit,
// queued) are never retried. On exhaustion the last failure is wrapped in
// *ExhaustedError.
//
//	// Default: 3 retries, 1s/2s/3s linear, no jitter
//	client := httpclient.New(
//	    httpclient.WithRetryConfig(httpclient.DefaultRetryConfig()),
//	)
//
//	// Aggressive: 5 retries on a 500ms ramp with jitter
//	client := httpclient.New(
//	    httpclient.WithRetryConfig(httpclient.AggressiveRetryConfig()),
//	)
//
//	// Custom classifier: retry on specific conditions
//	client := httpclient.New(
//	    httpclient.WithRetryClassifier(func(resp *http.Response, err error) bool {
//	        return resp != nil && resp.StatusCode >= 500
//	    }),
//	)
//
// Alternative backoff strategies can replace the linear default:
//
//	// AWS-style decorrelated jitter for high-contention scenarios
//	client := httpclient.New(
//	    httpclient.WithRetryBackOff(httpclient.NewDecorrelatedJitterBackOff()),
//	)
//
// # Observability
//
// The client automatically emits:
//
// Metrics:
//   - http.client.request.duration (histogram)
//   - http.client.retry.attempts (counter)
//   - http.client.retry.exhausted (counter)
//   - http.client.auth.refresh (counter)
//   - http.client.offline.enqueued (counter)
//   - http.client.rate_limited (counter)
//
// Traces:
//   - Spans for each request with method, URL, status code
//   - Retry events with attempt number and delay
//   - Network timing events (DNS, TLS, connect)
//
// Application-level telemetry flows through a Tracker: API call and error
// events are delivered on a bounded channel by a single consumer
// goroutine, and are dropped (counted) rather than ever blocking or
// failing a request.
//
// # Transport Wrapping
//
// Wrap an existing transport with instrumentation:
//
//	transport := httpclient.NewTransport(http.DefaultTransport,
//	    httpclient.WithServiceName("mood-sync"),
//	)
//	client := &http.Client{Transport: transport}
//
// Or wrap an existing client:
//
//	client := &http.Client{Timeout: 30 * time.Second}
//	httpclient.WrapClient(client,
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
// # Fluent Request Builder
//
// The package provides a fluent API for building requests:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("mood-sync"),
//	)
//
//	var moods []MoodEntry
//	resp, err := client.Request("ListMoods").
//	    Query("page", "1").
//	    Header("X-Client-Version", "1.4.2").
//	    Decode(&moods).
//	    Get(ctx, "/moods")
//
//	if resp.IsSuccess() {
//	    fmt.Printf("fetched %d mood entries\n", len(moods))
//	}
//
// File uploads are also supported:
//
//	resp, err := client.Request("ExportReport").
//	    File("report", "/path/to/report.pdf").
//	    FormField("title", "Weekly Report").
//	    Post(ctx, "/exports")
//
// Identical concurrent GETs can share one upstream call:
//
//	resp, err := client.Request("GetStreak").
//	    Coalesce().
//	    Get(ctx, "/streak")
//
// # Debug Utilities
//
// Enable debug logging and cURL command generation:
//
//	client := httpclient.New(
//	    httpclient.WithDebug(true),       // Logs requests/responses with zerolog
//	    httpclient.WithGenerateCurl(true), // Generates cURL commands
//	)
//
//	resp, err := client.Request("GetMood").
//	    EnableTrace().  // Capture timing info
//	    Get(ctx, "/moods/1")
//
//	fmt.Println(resp.TraceInfo())   // DNS, connect, TLS, server timing
//	fmt.Println(resp.CurlCommand()) // Equivalent cURL command
package httpclient
