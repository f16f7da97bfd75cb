package offlinequeue

import (
	"context"
	"sync"
)

// DefaultMemoryLimit bounds the in-memory queue when no explicit limit is
// given.
const DefaultMemoryLimit = 1024

// Memory is a bounded in-process queue. When full it evicts the oldest entry
// to admit the newest: the most recent user action is the one worth syncing.
//
// Memory is safe for concurrent use. Entries do not survive a restart; use
// the Redis, SQL, or AMQP backend when durability matters.
type Memory struct {
	mu      sync.Mutex
	limit   int
	evicted uint64
	entries []Entry
}

// NewMemory returns a queue holding at most limit entries. Non-positive
// limits fall back to DefaultMemoryLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

// Enqueue implements the offline queue contract.
func (m *Memory) Enqueue(_ context.Context, method, url string, body []byte) error {
	// Detach from the caller's buffer; the entry outlives the request.
	entry := newEntry(method, url, append([]byte(nil), body...))

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == m.limit {
		m.entries = m.entries[1:]
		m.evicted++
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a snapshot of the queued entries, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports the number of queued entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Evicted reports how many entries were dropped to admit newer ones.
func (m *Memory) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}
