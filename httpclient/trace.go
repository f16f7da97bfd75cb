package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http/httptrace"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// error.type attribute values. The first group mirrors the errorKind
// buckets so spans and metric attributes agree on terminology for
// resolved outcomes; the second group is transport-level detail.
const (
	ErrorTypeAuth        = "auth"
	ErrorTypeRateLimited = "rate_limited"
	ErrorTypeQueued      = "queued"
	ErrorTypeExhausted   = "exhausted"

	ErrorTypeTimeout           = "timeout"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeEOF               = "eof"
	ErrorTypeUnknown           = "unknown"
)

// networkTrace accumulates timestamps from httptrace.ClientTrace hooks
// for one request. It is written by the hooks and read after the round
// trip completes, so no locking is needed.
type networkTrace struct {
	dnsStart time.Time
	dnsDone  time.Time

	connectStart time.Time
	connectDone  time.Time

	tlsStart time.Time
	tlsDone  time.Time

	getConnTime       time.Time
	gotConnTime       time.Time
	wroteRequestTime  time.Time
	firstResponseTime time.Time

	connReused  bool
	connRemote  string
	connLocal   string
	connIdle    bool
	protocolVer string

	dnsAddrs []string
}

// createClientTrace returns an httptrace.ClientTrace whose hooks fill nt.
func createClientTrace(nt *networkTrace) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(_ string) {
			nt.getConnTime = time.Now()
		},
		GotConn: func(info httptrace.GotConnInfo) {
			nt.gotConnTime = time.Now()
			nt.connReused = info.Reused
			nt.connIdle = info.WasIdle
			if info.Conn != nil {
				if addr := info.Conn.RemoteAddr(); addr != nil {
					nt.connRemote = addr.String()
				}
				if addr := info.Conn.LocalAddr(); addr != nil {
					nt.connLocal = addr.String()
				}
			}
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			nt.dnsStart = time.Now()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			nt.dnsDone = time.Now()
			if info.Addrs != nil {
				nt.dnsAddrs = make([]string, 0, len(info.Addrs))
				for _, addr := range info.Addrs {
					nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
				}
			}
		},
		ConnectStart: func(_, _ string) {
			nt.connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, _ error) {
			nt.connectDone = time.Now()
		},
		TLSHandshakeStart: func() {
			nt.tlsStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.tlsDone = time.Now()
			nt.protocolVer = state.NegotiatedProtocol
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			nt.wroteRequestTime = time.Now()
		},
		GotFirstResponseByte: func() {
			nt.firstResponseTime = time.Now()
		},
	}
}

// addTraceEvents attaches span events for each network phase that was
// actually observed. Phases with zero timestamps (cached DNS, reused
// connections, plain HTTP) are skipped.
func (nt *networkTrace) addTraceEvents(span trace.Span) {
	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		span.AddEvent("dns.start", trace.WithTimestamp(nt.dnsStart))
		span.AddEvent("dns.done", trace.WithTimestamp(nt.dnsDone),
			trace.WithAttributes(
				attribute.Float64(
					"dns.duration_ms",
					float64(nt.dnsDone.Sub(nt.dnsStart).Milliseconds()),
				),
				attribute.StringSlice("dns.addresses", nt.dnsAddrs),
			))
	}

	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		span.AddEvent("connect.start", trace.WithTimestamp(nt.connectStart))
		span.AddEvent("connect.done", trace.WithTimestamp(nt.connectDone),
			trace.WithAttributes(
				attribute.Float64(
					"connect.duration_ms",
					float64(nt.connectDone.Sub(nt.connectStart).Milliseconds()),
				),
			))
	}

	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		span.AddEvent("tls.start", trace.WithTimestamp(nt.tlsStart))
		span.AddEvent("tls.done", trace.WithTimestamp(nt.tlsDone),
			trace.WithAttributes(
				attribute.Float64(
					"tls.duration_ms",
					float64(nt.tlsDone.Sub(nt.tlsStart).Milliseconds()),
				),
				attribute.String("tls.protocol", nt.protocolVer),
			))
	}

	if !nt.gotConnTime.IsZero() {
		span.AddEvent("got_conn", trace.WithTimestamp(nt.gotConnTime),
			trace.WithAttributes(
				attribute.Bool("connection.reused", nt.connReused),
				attribute.Bool("connection.was_idle", nt.connIdle),
				attribute.String("network.peer.address", nt.connRemote),
			))
	}

	if !nt.wroteRequestTime.IsZero() {
		span.AddEvent("wrote_request", trace.WithTimestamp(nt.wroteRequestTime))
	}

	if !nt.firstResponseTime.IsZero() {
		var ttfbMs float64
		if !nt.wroteRequestTime.IsZero() {
			ttfbMs = float64(nt.firstResponseTime.Sub(nt.wroteRequestTime).Milliseconds())
		}
		span.AddEvent("got_first_response_byte", trace.WithTimestamp(nt.firstResponseTime),
			trace.WithAttributes(
				attribute.Float64("ttfb_ms", ttfbMs),
			))
	}
}

// recordTimingMetrics feeds the observed phase durations into the client
// metrics. Same skipping rules as addTraceEvents.
func (nt *networkTrace) recordTimingMetrics(
	ctx context.Context,
	m *metrics,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}

	// A connect start on a non-reused connection means a new socket
	// was opened rather than taken from the pool.
	if !nt.connReused && !nt.connectStart.IsZero() {
		m.recordConnectionOpened(ctx, attrs)
	}

	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		m.recordDNSDuration(ctx, nt.dnsDone.Sub(nt.dnsStart), attrs)
	}

	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		m.recordConnectionDuration(ctx, nt.connectDone.Sub(nt.connectStart), attrs)
	}

	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		m.recordTLSDuration(ctx, nt.tlsDone.Sub(nt.tlsStart), attrs)
	}

	if !nt.wroteRequestTime.IsZero() && !nt.firstResponseTime.IsZero() {
		m.recordTTFB(ctx, nt.firstResponseTime.Sub(nt.wroteRequestTime), attrs)
	}
}

// classifyError maps an error to an error.type value for the request span.
//
// Resolved outcomes from the resilience chain (auth failures, rate
// limiting, offline queueing, retry exhaustion) are checked first and keep
// the errorKind labels, so a span tagged rate_limited lines up with the
// http.client.rate_limited counter. Everything else falls through to
// transport-level classification.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	var (
		authErr   *AuthError
		rateErr   *RateLimitError
		queueErr  *QueuedError
		exhausted *ExhaustedError
		statusErr *StatusError
	)
	switch {
	case errors.As(err, &authErr):
		return ErrorTypeAuth
	case errors.As(err, &rateErr), errors.Is(err, ErrRateLimited):
		return ErrorTypeRateLimited
	case errors.As(err, &queueErr):
		return ErrorTypeQueued
	case errors.As(err, &exhausted):
		return ErrorTypeExhausted
	case errors.As(err, &statusErr):
		// A bare status error outside the retry engine is labeled like
		// a response would be.
		return errorTypeFromStatusCode(statusErr.Code)
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeDNSError
	}

	var tlsRecordErr *tls.RecordHeaderError
	if errors.As(err, &tlsRecordErr) {
		return ErrorTypeTLSError
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrorTypeTLSError
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorTypeConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ErrorTypeConnectionReset
	}
	if errors.Is(err, io.EOF) {
		return ErrorTypeEOF
	}

	// Message matching catches errors that were flattened to strings
	// somewhere along the way.
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") {
		return ErrorTypeTimeout
	}
	if strings.Contains(errStr, "connection refused") {
		return ErrorTypeConnectionRefused
	}
	if strings.Contains(errStr, "connection reset") {
		return ErrorTypeConnectionReset
	}
	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "dns") {
		return ErrorTypeDNSError
	}
	if strings.Contains(errStr, "tls") || strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "x509") {
		return ErrorTypeTLSError
	}
	if strings.Contains(errStr, "eof") {
		return ErrorTypeEOF
	}

	return ErrorTypeUnknown
}

// errorTypeFromStatusCode returns the error.type for an HTTP response.
// Per OTel semconv the status code itself is the error type for 4xx/5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode >= 400 {
		return strconv.Itoa(statusCode)
	}
	return ""
}

// setSpanError records err on the span, flips the span status to Error,
// and tags the classified error.type.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
