package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	type args struct {
		config      *Config
		serviceName string
	}

	tests := []struct {
		name        string
		args        args
		wantTimeout time.Duration
	}{
		{
			name:        "given no options, then uses default timeout",
			args:        args{},
			wantTimeout: 30 * time.Second,
		},
		{
			name: "given custom config, then uses that timeout",
			args: args{
				config: &Config{Timeout: 10 * time.Second},
			},
			wantTimeout: 10 * time.Second,
		},
		{
			name: "given service name, then creates instrumented client",
			args: args{
				serviceName: "test-service",
			},
			wantTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.args.config != nil {
				opts = append(opts, WithConfig(*tt.args.config))
			}
			if tt.args.serviceName != "" {
				opts = append(opts, WithServiceName(tt.args.serviceName))
			}

			client := New(opts...)

			assert.NotNil(t, client)
			assert.NotNil(t, client.HTTP().Transport)
			assert.Equal(t, tt.wantTimeout, client.HTTP().Timeout)

			// Instrumentation is the outermost layer of the chain.
			_, isOtel := client.HTTP().Transport.(*otelTransport)
			assert.True(t, isOtel, "expected otelTransport outermost")
		})
	}
}

func TestNew_RequestExecution(t *testing.T) {
	type args struct {
		serverStatus int
	}

	tests := []struct {
		name           string
		args           args
		wantStatusCode int
		wantSpanCount  int
	}{
		{
			name:           "given server returns 200, then succeeds",
			args:           args{serverStatus: http.StatusOK},
			wantStatusCode: http.StatusOK,
			wantSpanCount:  1,
		},
		{
			name:           "given server returns 404, then records status",
			args:           args{serverStatus: http.StatusNotFound},
			wantStatusCode: http.StatusNotFound,
			wantSpanCount:  1,
		},
		{
			name:           "given server returns 500, then records status",
			args:           args{serverStatus: http.StatusInternalServerError},
			wantStatusCode: http.StatusInternalServerError,
			wantSpanCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tt.args.serverStatus)
				}),
			)
			defer server.Close()

			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			mp := sdkmetric.NewMeterProvider()
			defer tp.Shutdown(context.Background())
			defer mp.Shutdown(context.Background())

			client := New(
				WithTracerProvider(tp),
				WithMeterProvider(mp),
				WithServiceName("test-service"),
			)

			req, err := http.NewRequest(http.MethodGet, server.URL+"/test", nil)
			require.NoError(t, err)

			resp, err := client.HTTP().Do(req)
			require.NoError(t, err)

			// Must consume and close body before checking spans
			// (span ends when body is closed, not immediately after RoundTrip)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatusCode, resp.StatusCode)

			spans := exporter.GetSpans()
			assert.Len(t, spans, tt.wantSpanCount)
			if tt.wantSpanCount > 0 {
				assert.Equal(t, "HTTP GET", spans[0].Name)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	type args struct {
		serviceName string
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "given base transport, then wraps with instrumentation",
			args: args{serviceName: "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewTransport(
				http.DefaultTransport,
				WithServiceName(tt.args.serviceName),
			)

			assert.NotNil(t, transport)
			_, ok := transport.(*otelTransport)
			assert.True(t, ok)
		})
	}
}

func TestNewWithTransport(t *testing.T) {
	type args struct {
		maxIdlePerHost int
		serviceName    string
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "given custom transport, then creates client with it",
			args: args{
				maxIdlePerHost: 50,
				serviceName:    "test",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseTransport := &http.Transport{
				MaxIdleConnsPerHost: tt.args.maxIdlePerHost,
			}

			client := NewWithTransport(
				baseTransport,
				WithServiceName(tt.args.serviceName),
			)

			assert.NotNil(t, client)
			assert.NotNil(t, client.HTTP().Transport)
		})
	}
}

func TestClient_Close(t *testing.T) {
	t.Run("given tracker configured, then close drains and is idempotent", func(t *testing.T) {
		tracker := &captureTracker{}
		client := New(WithTracker(tracker))

		client.Close()
		client.Close()
	})

	t.Run("given no tracker, then close is a no-op", func(t *testing.T) {
		client := New()
		client.Close()
	})
}

func TestClient_RefreshReplayFlow(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer t2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := NewMemoryTokenStore("t1")
	auth := &fakeAuthService{refreshToken: "t2"}
	client := New(
		WithBaseURL(server.URL),
		WithTokenStore(store),
		WithAuthService(auth),
	)

	// Stale credential: 401, one refresh, transparent replay.
	resp, err := client.Request("GetMoods").Get(context.Background(), "/moods")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, 1, auth.RefreshCalls())

	stored, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", stored)

	// Follow-up requests pick the refreshed credential from the store.
	resp, err = client.Request("GetMoods").Get(context.Background(), "/moods")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, 1, auth.RefreshCalls())
}

func TestClient_RateLimitOutcome(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	_, err := client.Request("GetMoods").Get(context.Background(), "/moods")

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 45*time.Second, rle.RetryAfter)

	// Server-directed backpressure is never hammered with retries.
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_OfflineDurability(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	queue := &recordingQueue{}
	status := NewNetworkStatus(false)
	client := New(
		WithBaseURL(server.URL),
		WithOfflineQueue(queue),
		WithConnectivity(status),
		WithRetryConfig(fastRetryConfig(3)),
	)

	// Offline: the mutation is stored exactly once, with no retry churn.
	_, err := client.Request("CreateMood").
		Body(`{"mood":"calm"}`).
		Post(context.Background(), "/moods")

	require.True(t, IsQueued(err), "want queued outcome, got %v", err)
	assert.EqualValues(t, 1, hits.Load())

	entries := queue.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.MethodPost, entries[0].method)
	assert.Equal(t, server.URL+"/moods", entries[0].url)
	assert.Equal(t, `{"mood":"calm"}`, entries[0].body)

	// Back online, the same failure stays on the retry path instead.
	status.SetOnline(true)

	_, err = client.Request("CreateMood").
		Body(`{"mood":"calm"}`).
		Post(context.Background(), "/moods")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, queue.Entries(), 1, "online failures must not enqueue")
	assert.EqualValues(t, 5, hits.Load())
}

func TestClient_RetryExhaustion(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithRetryConfig(fastRetryConfig(3)),
	)

	_, err := client.Request("GetMoods").Get(context.Background(), "/moods")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.EqualValues(t, 4, hits.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestClient_TrackerEvents(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.StubPath("/ok", http.StatusOK, `{"status":"ok"}`)
	mock.StubPath("/limited", http.StatusTooManyRequests, "")

	tracker := &captureTracker{}
	client := New(
		WithMockTransport(mock),
		WithTracker(tracker),
	)

	_, err := client.Request("GetOK").Get(context.Background(), "http://upstream.test/ok")
	require.NoError(t, err)

	_, err = client.Request("GetLimited").Get(context.Background(), "http://upstream.test/limited")
	require.Error(t, err)

	client.Close()

	calls := tracker.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, http.StatusOK, calls[0].Status)
	assert.Equal(t, "http://upstream.test/ok", calls[0].URL)

	failures := tracker.Errors()
	require.Len(t, failures, 1)
	assert.Equal(t, "rate_limited", failures[0].Kind)
	assert.Equal(t, "http://upstream.test/limited", failures[0].URL)
}

func TestWrapClient(t *testing.T) {
	type args struct {
		timeout      time.Duration
		hasTransport bool
		serviceName  string
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "given client with transport, then wraps it",
			args: args{
				timeout:      15 * time.Second,
				hasTransport: true,
				serviceName:  "test",
			},
		},
		{
			name: "given client without transport, then uses default",
			args: args{
				timeout:      20 * time.Second,
				hasTransport: false,
				serviceName:  "test",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Timeout: tt.args.timeout}
			if tt.args.hasTransport {
				client.Transport = http.DefaultTransport
			}

			wrapped := WrapClient(client, WithServiceName(tt.args.serviceName))

			assert.Equal(t, client, wrapped.HTTP())
			assert.NotNil(t, wrapped.HTTP().Transport)
			_, ok := wrapped.HTTP().Transport.(*otelTransport)
			assert.True(t, ok)
		})
	}
}
