package telemetry

import (
	"bytes"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogTracker_TrackAPICall(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogTracker(zerolog.New(&buf))

	tracker.TrackAPICall(httpclient.APICallEvent{
		Method:       "GET",
		URL:          "https://api.example.com/moods",
		Status:       200,
		Duration:     120 * time.Millisecond,
		ResponseSize: 512,
	})

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "api call", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "https://api.example.com/moods", entry["url"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(512), entry["response_size"])
	assert.Contains(t, entry, "duration")
}

func TestLogTracker_TrackError(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogTracker(zerolog.New(&buf))

	tracker.TrackError(httpclient.ErrorEvent{
		Method:  "POST",
		URL:     "https://api.example.com/moods",
		Kind:    "rate_limited",
		Message: "rate limited: retry after 45 seconds",
	})

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "api call failed", entry["message"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "rate_limited", entry["kind"])
	assert.Equal(t, "rate limited: retry after 45 seconds", entry["error"])
}
