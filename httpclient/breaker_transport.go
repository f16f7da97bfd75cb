package httpclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// circuitBreakerTransport gates requests through a circuit breaker. It
// sits outside the retry engine, so one exhausted retry run counts as a
// single failure rather than one per attempt.
type circuitBreakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	cfg        *internalConfig
	name       string
}

var _ ChainedTransport = (*circuitBreakerTransport)(nil)

// errSyntheticFailure tells the breaker a request failed when RoundTrip
// itself returned no error (a 5xx response, per the classifier). It never
// escapes this transport.
var errSyntheticFailure = errors.New("synthetic failure")

// Unwrap returns the wrapped transport.
func (t *circuitBreakerTransport) Unwrap() http.RoundTripper { return t.next }

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose

		if t.classifier(resp, err) {
			if err != nil {
				return resp, err
			}
			return resp, errSyntheticFailure
		}

		return resp, nil
	})
	if err != nil {
		// An open-circuit rejection never reached the network; count it
		// apart from real failures.
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "rejected")
		} else {
			t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "failure")
		}

		// The synthetic marker did its job; hand the response back.
		if errors.Is(err, errSyntheticFailure) {
			if resp, ok := res.(*http.Response); ok {
				return resp, nil
			}
		}

		return nil, err
	}

	t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "success")

	if resp, ok := res.(*http.Response); ok {
		return resp, nil
	}

	return nil, errors.New("circuit breaker returned unknown response type")
}

// newCircuitBreakerTransport wraps next in a breaker built from
// cfg.BreakerConfig, or returns next unchanged when breaking is disabled.
func newCircuitBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.BreakerConfig == nil {
		return next
	}

	name := cfg.ServiceName
	if name == "" {
		name = "default-http-client"
	}

	classifier := cfg.BreakerConfig.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerConfig.MaxRequests,
		Interval:    cfg.BreakerConfig.Interval,
		Timeout:     cfg.BreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.BreakerConfig.FailureThreshold > 0 &&
				counts.Requests < cfg.BreakerConfig.FailureThreshold {
				return false
			}
			if cfg.BreakerConfig.ConsecutiveFailures > 0 &&
				counts.ConsecutiveFailures >= cfg.BreakerConfig.ConsecutiveFailures {
				return true
			}
			if cfg.BreakerConfig.FailureRatio > 0 && counts.TotalFailures > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				if ratio >= cfg.BreakerConfig.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.Metrics != nil {
				cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
			}
			if cfg.BreakerConfig.OnStateChange != nil {
				cfg.BreakerConfig.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker

	if cfg.BreakerConfig.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[interface{}](cfg.BreakerConfig.Store, st)
		if err != nil {
			// A broken store must not leave the client unprotected; fall
			// back to a process-local breaker.
			cb = gobreaker.NewCircuitBreaker[interface{}](st)
		} else {
			cb = dcb
		}
	} else {
		cb = gobreaker.NewCircuitBreaker[interface{}](st)
	}

	return &circuitBreakerTransport{
		breaker:    cb,
		next:       next,
		classifier: classifier,
		cfg:        cfg,
		name:       name,
	}
}
