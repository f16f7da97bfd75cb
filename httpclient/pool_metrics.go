package httpclient

import (
	"net/http"
	"time"
)

// PoolStats is a snapshot of the connection pool configuration the client
// is actually running with, read from the base transport underneath the
// wrapper chain.
//
//	stats := client.PoolStats()
//	fmt.Printf("max idle conns: %d\n", stats.MaxIdleConns)
type PoolStats struct {
	// MaxIdleConns is the maximum idle connections across all hosts.
	// Zero means Go's default (currently 100).
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	// Zero means Go's default (currently 2).
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps total connections per host. Zero means
	// unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept before
	// closing. Zero keeps them indefinitely.
	IdleConnTimeout time.Duration

	// DisableKeepAlives reports whether HTTP keep-alives are off.
	DisableKeepAlives bool
}

// PoolStats returns the connection pool configuration of the underlying
// transport. It returns a zero PoolStats when the base transport is not an
// *http.Transport, which is the case for mock-backed clients.
func (c *Client) PoolStats() PoolStats {
	if c.httpClient == nil || c.httpClient.Transport == nil {
		return PoolStats{}
	}

	transport := unwrapTransport(c.httpClient.Transport)
	if transport == nil {
		return PoolStats{}
	}

	return PoolStats{
		MaxIdleConns:        transport.MaxIdleConns,
		MaxIdleConnsPerHost: transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     transport.MaxConnsPerHost,
		IdleConnTimeout:     transport.IdleConnTimeout,
		DisableKeepAlives:   transport.DisableKeepAlives,
	}
}

// unwrapTransport walks the wrapper chain down to the base *http.Transport,
// or nil when the chain bottoms out on something else (a mock, a custom
// round tripper).
func unwrapTransport(rt http.RoundTripper) *http.Transport {
	for {
		switch t := rt.(type) {
		case *http.Transport:
			return t
		case ChainedTransport:
			rt = t.Unwrap()
		default:
			return nil
		}
	}
}
