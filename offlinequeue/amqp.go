package offlinequeue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultAMQPQueue is the queue entries are published to when none is
// configured.
const DefaultAMQPQueue = "pending_requests"

// AMQPChannel is the subset of *amqp091.Channel the queue uses, extracted so
// tests can substitute a recording fake without a broker.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type amqpConfig struct {
	queue    string
	confirms bool
}

// AMQPOption customizes an AMQP queue.
type AMQPOption func(*amqpConfig)

// WithAMQPQueue publishes to the given queue instead of DefaultAMQPQueue.
func WithAMQPQueue(name string) AMQPOption {
	return func(cfg *amqpConfig) {
		if name != "" {
			cfg.queue = name
		}
	}
}

// WithAMQPConfirms puts the channel in confirm mode: each Enqueue then waits
// for the broker to acknowledge the publish before returning, trading
// latency for a delivery guarantee.
func WithAMQPConfirms() AMQPOption {
	return func(cfg *amqpConfig) { cfg.confirms = true }
}

// AMQP publishes entries as persistent JSON messages to a durable queue on
// the default exchange, so the broker keeps them across restarts until a
// sync consumer drains them.
type AMQP struct {
	ch    AMQPChannel
	queue string

	// mu serializes publishes; broker acknowledgements arrive in publish
	// order, so confirm matching needs one in-flight publish per channel.
	mu       sync.Mutex
	confirms <-chan amqp.Confirmation
}

// NewAMQP declares the durable queue and returns a queue publishing to it.
// The channel is borrowed, not owned.
func NewAMQP(ch AMQPChannel, opts ...AMQPOption) (*AMQP, error) {
	cfg := amqpConfig{queue: DefaultAMQPQueue}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := ch.QueueDeclare(cfg.queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %q: %w", cfg.queue, err)
	}

	q := &AMQP{ch: ch, queue: cfg.queue}
	if cfg.confirms {
		if err := ch.Confirm(false); err != nil {
			return nil, fmt.Errorf("failed to enable confirm mode: %w", err)
		}
		q.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}
	return q, nil
}

// Enqueue implements the offline queue contract.
func (q *AMQP) Enqueue(ctx context.Context, method, url string, body []byte) error {
	entry := newEntry(method, url, body)
	payload, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID,
		Timestamp:    entry.EnqueuedAt,
		Body:         payload,
	}
	if err := q.ch.PublishWithContext(ctx, "", q.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish queue entry: %w", err)
	}

	if q.confirms == nil {
		return nil
	}
	select {
	case confirm := <-q.confirms:
		if !confirm.Ack {
			return fmt.Errorf("broker rejected queue entry %s", entry.ID)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
