package httpclient

import "net/http"

// ChainedTransport is implemented by every wrapper in the client's
// transport chain (rate limiting, auth, outcome classification, retry,
// circuit breaking, instrumentation). Unwrap exposes the next layer down,
// so helpers can walk any assembled chain to the base *http.Transport.
type ChainedTransport interface {
	http.RoundTripper
	Unwrap() http.RoundTripper
}
