package offlinequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list key entries are pushed onto when no key is
// configured.
const DefaultRedisKey = "pending_requests"

// RedisOption customizes a Redis queue.
type RedisOption func(*Redis)

// WithRedisKey stores entries under the given list key instead of
// DefaultRedisKey.
func WithRedisKey(key string) RedisOption {
	return func(q *Redis) {
		if key != "" {
			q.key = key
		}
	}
}

// WithRedisTTL refreshes the list's expiry on every enqueue so abandoned
// queues age out instead of accumulating forever. Zero disables expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(q *Redis) { q.ttl = ttl }
}

// Redis appends JSON entries to a Redis list with RPUSH, preserving enqueue
// order for a FIFO drainer (LPOP). Single-node, cluster, and sentinel
// deployments all work through redis.UniversalClient.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedis returns a Redis-backed queue. The client is borrowed, not owned:
// closing it remains the caller's responsibility.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	q := &Redis{client: client, key: DefaultRedisKey}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue implements the offline queue contract.
func (q *Redis) Enqueue(ctx context.Context, method, url string, body []byte) error {
	payload, err := encodeEntry(newEntry(method, url, body))
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push queue entry: %w", err)
	}
	if q.ttl > 0 {
		if err := q.client.Expire(ctx, q.key, q.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh queue ttl: %w", err)
		}
	}
	return nil
}
