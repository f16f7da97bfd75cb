package telemetry

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

func TestPrometheusTracker_CountsCallsAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracker, err := NewPrometheusTracker(reg)
	require.NoError(t, err)

	tracker.TrackAPICall(httpclient.APICallEvent{
		Method: "GET", Status: 200, Duration: 80 * time.Millisecond, ResponseSize: 2048,
	})
	tracker.TrackAPICall(httpclient.APICallEvent{
		Method: "GET", Status: 200, Duration: 40 * time.Millisecond, ResponseSize: 1024,
	})
	tracker.TrackAPICall(httpclient.APICallEvent{
		Method: "POST", Status: 201, Duration: 60 * time.Millisecond, ResponseSize: 64,
	})
	tracker.TrackError(httpclient.ErrorEvent{Method: "POST", Kind: "rate_limited"})
	tracker.TrackError(httpclient.ErrorEvent{Method: "PUT", Kind: "queued"})

	assert.InEpsilon(t, 2.0, testutil.ToFloat64(tracker.calls.WithLabelValues("GET", "200")), 0.001)
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(tracker.calls.WithLabelValues("POST", "201")), 0.001)
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(tracker.errors.WithLabelValues("POST", "rate_limited")), 0.001)
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(tracker.errors.WithLabelValues("PUT", "queued")), 0.001)

	// One duration and one size series per method observed.
	assert.Equal(t, 2, testutil.CollectAndCount(tracker.duration))
	assert.Equal(t, 2, testutil.CollectAndCount(tracker.size))
}

func TestPrometheusTracker_SkipsNegativeResponseSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracker, err := NewPrometheusTracker(reg)
	require.NoError(t, err)

	tracker.TrackAPICall(httpclient.APICallEvent{Method: "GET", Status: 204, ResponseSize: -1})

	assert.Equal(t, 1, testutil.CollectAndCount(tracker.duration))
	assert.Equal(t, 0, testutil.CollectAndCount(tracker.size))
}

func TestPrometheusTracker_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewPrometheusTracker(reg)
	require.NoError(t, err)

	_, err = NewPrometheusTracker(reg)
	assert.ErrorContains(t, err, "failed to register client metrics")
}

func TestPrometheusTracker_WithClient(t *testing.T) {
	mock := httpclient.NewMockTransport()
	mock.StubPath("/moods", http.StatusOK, `{"status":"ok"}`)
	mock.StubPath("/limited", http.StatusTooManyRequests, "")

	reg := prometheus.NewRegistry()
	tracker, err := NewPrometheusTracker(reg)
	require.NoError(t, err)

	client := httpclient.New(
		httpclient.WithMockTransport(mock),
		httpclient.WithTracker(tracker),
	)

	_, err = client.Request("ListMoods").Get(context.Background(), "http://upstream.test/moods")
	require.NoError(t, err)

	_, err = client.Request("CreateMood").
		Body(`{"mood":"calm"}`).
		Post(context.Background(), "http://upstream.test/limited")
	require.Error(t, err)

	// Close drains the tracker collector, so counts are final afterwards.
	client.Close()

	assert.InEpsilon(t, 1.0, testutil.ToFloat64(tracker.calls.WithLabelValues("GET", "200")), 0.001)
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(tracker.errors.WithLabelValues("POST", "rate_limited")), 0.001)
}
