package offlinequeue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

// Every backend must satisfy the client-side contract.
var (
	_ httpclient.OfflineQueue = (*Memory)(nil)
	_ httpclient.OfflineQueue = (*Redis)(nil)
	_ httpclient.OfflineQueue = (*SQL)(nil)
	_ httpclient.OfflineQueue = (*AMQP)(nil)
)

func TestEntryRoundTrip(t *testing.T) {
	entry := newEntry(
		"POST",
		"https://api.example.com/moods",
		[]byte(`{"mood":"calm"}`),
	)

	payload, err := encodeEntry(entry)
	require.NoError(t, err)

	decoded, err := DecodeEntry(payload)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, "POST", decoded.Method)
	assert.Equal(t, "https://api.example.com/moods", decoded.URL)
	assert.Equal(t, []byte(`{"mood":"calm"}`), decoded.Body)
	assert.True(t, entry.EnqueuedAt.Equal(decoded.EnqueuedAt))
}

func TestDecodeEntry_RejectsGarbage(t *testing.T) {
	_, err := DecodeEntry([]byte("not json"))
	assert.ErrorContains(t, err, "failed to decode queue entry")
}

func TestNewEntry(t *testing.T) {
	t.Run("given two entries, then IDs are unique", func(t *testing.T) {
		a := newEntry("POST", "https://x", nil)
		b := newEntry("POST", "https://x", nil)
		require.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("given a new entry, then enqueue time is recent UTC", func(t *testing.T) {
		e := newEntry("PUT", "https://x", nil)
		assert.Equal(t, time.UTC, e.EnqueuedAt.Location())
		assert.WithinDuration(t, time.Now().UTC(), e.EnqueuedAt, time.Minute)
	})
}
