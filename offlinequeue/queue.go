package offlinequeue

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Entry is the durable record of a mutating request that failed while the
// client was offline. Backends serialize it as JSON; sync processes decode
// stored payloads with DecodeEntry and replay them against the origin.
type Entry struct {
	ID         string    `json:"id" db:"id"`
	Method     string    `json:"method" db:"method"`
	URL        string    `json:"url" db:"url"`
	Body       []byte    `json:"body,omitempty" db:"body"`
	EnqueuedAt time.Time `json:"enqueued_at" db:"enqueued_at"`
}

// newEntry stamps a request with a fresh ID and the enqueue time.
func newEntry(method, url string, body []byte) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Method:     method,
		URL:        url,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	}
}

// encodeEntry renders the JSON wire form shared by the Redis and AMQP
// backends.
func encodeEntry(e Entry) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue entry: %w", err)
	}
	return payload, nil
}

// DecodeEntry parses the JSON wire form produced by the queue backends.
func DecodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode queue entry: %w", err)
	}
	return e, nil
}
