package httpclient

import (
	"sync"
	"sync/atomic"
	"time"
)

// APICallEvent describes a completed request for telemetry.
type APICallEvent struct {
	Method       string
	URL          string
	Status       int
	Duration     time.Duration
	ResponseSize int64
}

// ErrorEvent describes a terminal failure for telemetry. Kind is the
// classified outcome: "auth", "rate_limited", "queued", "exhausted",
// "setup", "canceled", "network" or "status".
type ErrorEvent struct {
	Method  string
	URL     string
	Kind    string
	Message string
}

// Tracker consumes telemetry events emitted by the client. Implementations
// must not block: events are delivered from a dedicated consumer goroutine
// and a slow tracker only delays other telemetry, never a request.
//
// Tracker failures can never affect request outcomes; panics from an
// implementation are swallowed by the collector.
type Tracker interface {
	TrackAPICall(ev APICallEvent)
	TrackError(ev ErrorEvent)
}

// NopTracker discards all events.
type NopTracker struct{}

func (NopTracker) TrackAPICall(APICallEvent) {}
func (NopTracker) TrackError(ErrorEvent)     {}

// DefaultTrackerBuffer is the event buffer size used when none is configured.
const DefaultTrackerBuffer = 256

type trackerEvent struct {
	call   APICallEvent
	fail   ErrorEvent
	isCall bool
}

// trackerCollector decouples request goroutines from the Tracker. Producers
// enqueue with a non-blocking send and drop on overflow; one consumer
// goroutine delivers events in order. Close drains buffered events before
// stopping.
type trackerCollector struct {
	tracker Tracker
	events  chan trackerEvent
	quit    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

func newTrackerCollector(tracker Tracker, buffer int) *trackerCollector {
	if buffer <= 0 {
		buffer = DefaultTrackerBuffer
	}
	c := &trackerCollector{
		tracker: tracker,
		events:  make(chan trackerEvent, buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.consume()
	return c
}

func (c *trackerCollector) consume() {
	defer close(c.done)
	for {
		select {
		case ev := <-c.events:
			c.dispatch(ev)
		case <-c.quit:
			for {
				select {
				case ev := <-c.events:
					c.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (c *trackerCollector) dispatch(ev trackerEvent) {
	defer func() {
		// Telemetry must never mask or alter the primary outcome.
		_ = recover()
	}()
	if ev.isCall {
		c.tracker.TrackAPICall(ev.call)
		return
	}
	c.tracker.TrackError(ev.fail)
}

func (c *trackerCollector) trackAPICall(ev APICallEvent) {
	c.send(trackerEvent{call: ev, isCall: true})
}

func (c *trackerCollector) trackError(ev ErrorEvent) {
	c.send(trackerEvent{fail: ev})
}

func (c *trackerCollector) send(ev trackerEvent) {
	select {
	case <-c.quit:
		c.dropped.Add(1)
		return
	default:
	}
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was
// full or the collector was closed.
func (c *trackerCollector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops the consumer after draining buffered events. Safe to call
// more than once.
func (c *trackerCollector) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}
