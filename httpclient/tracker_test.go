package httpclient

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureTracker records every delivered event for assertions.
type captureTracker struct {
	mu     sync.Mutex
	calls  []APICallEvent
	errors []ErrorEvent
}

func (c *captureTracker) TrackAPICall(ev APICallEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, ev)
}

func (c *captureTracker) TrackError(ev ErrorEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, ev)
}

func (c *captureTracker) Calls() []APICallEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]APICallEvent{}, c.calls...)
}

func (c *captureTracker) Errors() []ErrorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ErrorEvent{}, c.errors...)
}

// gateTracker parks the consumer inside the first TrackAPICall until
// released, so tests can fill the buffer deterministically.
type gateTracker struct {
	captureTracker
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func (g *gateTracker) TrackAPICall(ev APICallEvent) {
	g.startOnce.Do(func() { close(g.started) })
	<-g.release
	g.captureTracker.TrackAPICall(ev)
}

// panicTracker explodes on API call events but records error events.
type panicTracker struct {
	captureTracker
}

func (p *panicTracker) TrackAPICall(APICallEvent) {
	panic("tracker exploded")
}

func TestTrackerCollector_DeliversEvents(t *testing.T) {
	t.Parallel()

	tracker := &captureTracker{}
	collector := newTrackerCollector(tracker, 8)

	collector.trackAPICall(APICallEvent{
		Method:       http.MethodGet,
		URL:          "http://upstream.test/resource",
		Status:       http.StatusOK,
		Duration:     42 * time.Millisecond,
		ResponseSize: 128,
	})
	collector.trackError(ErrorEvent{
		Method:  http.MethodPost,
		URL:     "http://upstream.test/resource",
		Kind:    "rate_limited",
		Message: "rate limited: retry after 60 seconds",
	})

	collector.Close()

	calls := tracker.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, http.StatusOK, calls[0].Status)
	assert.Equal(t, 42*time.Millisecond, calls[0].Duration)
	assert.Equal(t, int64(128), calls[0].ResponseSize)

	failures := tracker.Errors()
	require.Len(t, failures, 1)
	assert.Equal(t, "rate_limited", failures[0].Kind)
	assert.Contains(t, failures[0].Message, "retry after 60")

	assert.Zero(t, collector.Dropped())
}

func TestTrackerCollector_OverflowDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	tracker := &gateTracker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	collector := newTrackerCollector(tracker, 1)

	// First event parks the consumer inside the tracker.
	collector.trackAPICall(APICallEvent{Method: http.MethodGet, URL: "http://upstream.test/1"})
	<-tracker.started

	// Second fills the buffer, third has nowhere to go.
	collector.trackAPICall(APICallEvent{Method: http.MethodGet, URL: "http://upstream.test/2"})
	collector.trackAPICall(APICallEvent{Method: http.MethodGet, URL: "http://upstream.test/3"})

	assert.EqualValues(t, 1, collector.Dropped())

	close(tracker.release)
	collector.Close()

	assert.Len(t, tracker.Calls(), 2)
}

func TestTrackerCollector_CloseDrainsBufferedEvents(t *testing.T) {
	t.Parallel()

	tracker := &captureTracker{}
	collector := newTrackerCollector(tracker, 64)

	for i := 0; i < 10; i++ {
		collector.trackAPICall(APICallEvent{Method: http.MethodGet, Status: http.StatusOK})
	}

	collector.Close()

	assert.Len(t, tracker.Calls(), 10)
	assert.Zero(t, collector.Dropped())
}

func TestTrackerCollector_SendAfterCloseDrops(t *testing.T) {
	t.Parallel()

	tracker := &captureTracker{}
	collector := newTrackerCollector(tracker, 8)

	collector.Close()
	collector.trackAPICall(APICallEvent{Method: http.MethodGet})

	assert.EqualValues(t, 1, collector.Dropped())
	assert.Empty(t, tracker.Calls())
}

func TestTrackerCollector_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	collector := newTrackerCollector(&captureTracker{}, 8)

	collector.Close()
	collector.Close()
}

func TestTrackerCollector_SurvivesTrackerPanic(t *testing.T) {
	t.Parallel()

	tracker := &panicTracker{}
	collector := newTrackerCollector(tracker, 8)

	collector.trackAPICall(APICallEvent{Method: http.MethodGet})
	collector.trackError(ErrorEvent{Kind: "network", Message: "connection refused"})

	collector.Close()

	// The panic on the first event must not kill the consumer.
	failures := tracker.Errors()
	require.Len(t, failures, 1)
	assert.Equal(t, "network", failures[0].Kind)
}

func TestTrackerCollector_ZeroBufferUsesDefault(t *testing.T) {
	t.Parallel()

	collector := newTrackerCollector(&captureTracker{}, 0)
	defer collector.Close()

	assert.Equal(t, DefaultTrackerBuffer, cap(collector.events))
}
