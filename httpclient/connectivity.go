package httpclient

import (
	"context"
	"sync/atomic"
)

// Connectivity reports whether the process currently has network
// connectivity. The client consults it when a request fails with a timeout
// or an unreachable-network error to decide between queueing the request
// for later sync and surfacing a retryable failure.
type Connectivity interface {
	Online() bool
}

// OfflineQueue stores mutating requests that failed while offline so a
// separate sync process can replay them once connectivity returns. The
// client only ever enqueues; draining and replay live outside the request
// path.
//
// Enqueue must not block on network availability: implementations backed
// by remote storage should fail fast and let the client log and move on.
// The offlinequeue package provides memory, Redis, SQL, and AMQP backends.
type OfflineQueue interface {
	Enqueue(ctx context.Context, method, url string, body []byte) error
}

// ConnectivityFunc adapts a plain function to the Connectivity interface.
type ConnectivityFunc func() bool

// Online implements Connectivity.
func (f ConnectivityFunc) Online() bool { return f() }

// NetworkStatus is an atomic Connectivity implementation. External watchers
// (OS signals, heartbeat probes) flip it with SetOnline; the client reads it
// on every failure classification.
//
// The zero value reports offline; use NewNetworkStatus(true) for the usual
// online-until-told-otherwise start state.
type NetworkStatus struct {
	online atomic.Bool
}

// NewNetworkStatus returns a NetworkStatus with the given initial state.
func NewNetworkStatus(online bool) *NetworkStatus {
	ns := &NetworkStatus{}
	ns.online.Store(online)
	return ns
}

// Online implements Connectivity.
func (ns *NetworkStatus) Online() bool { return ns.online.Load() }

// SetOnline records a connectivity change.
func (ns *NetworkStatus) SetOnline(online bool) { ns.online.Store(online) }

// alwaysOnline is the default Connectivity when none is injected: every
// failure stays on the retry path and nothing is ever queued.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }
