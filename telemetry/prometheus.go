package telemetry

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

// PrometheusTracker exports telemetry events as Prometheus metrics:
//
//   - http_client_requests_total{method, status}
//   - http_client_request_duration_seconds{method}
//   - http_client_response_size_bytes{method}
//   - http_client_errors_total{method, kind}
//
// The URL is deliberately not a label: per-URL series have unbounded
// cardinality. Use tracing for per-endpoint drill-down.
type PrometheusTracker struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

var _ httpclient.Tracker = (*PrometheusTracker)(nil)

// NewPrometheusTracker builds the tracker's metrics and registers them with
// reg. A nil reg falls back to prometheus.DefaultRegisterer.
func NewPrometheusTracker(reg prometheus.Registerer) (*PrometheusTracker, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	t := &PrometheusTracker{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Completed HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "End-to-end request duration including retries and auth replays.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_client_response_size_bytes",
			Help:    "Response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 6),
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_client_errors_total",
			Help: "Terminal request failures by method and classified kind.",
		}, []string{"method", "kind"}),
	}

	for _, c := range []prometheus.Collector{t.calls, t.duration, t.size, t.errors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register client metrics: %w", err)
		}
	}
	return t, nil
}

// TrackAPICall implements httpclient.Tracker.
func (t *PrometheusTracker) TrackAPICall(ev httpclient.APICallEvent) {
	t.calls.WithLabelValues(ev.Method, strconv.Itoa(ev.Status)).Inc()
	t.duration.WithLabelValues(ev.Method).Observe(ev.Duration.Seconds())
	if ev.ResponseSize >= 0 {
		t.size.WithLabelValues(ev.Method).Observe(float64(ev.ResponseSize))
	}
}

// TrackError implements httpclient.Tracker.
func (t *PrometheusTracker) TrackError(ev httpclient.ErrorEvent) {
	t.errors.WithLabelValues(ev.Method, ev.Kind).Inc()
}
