package httpclient

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// MockTransport is a configurable http.RoundTripper for tests. It answers
// requests from matcher stubs, an ordered step sequence, or a default, and
// records every request it sees.
//
// The sequence form is what resilience flows need: "503 twice, then 200"
// exercises the retry engine, "401, then 200" exercises refresh-and-replay,
// and a step with a Retry-After header exercises rate-limit parsing.
//
//	mock := httpclient.NewMockTransport().StubSequence(
//	    httpclient.MockStep{StatusCode: 503},
//	    httpclient.MockStep{StatusCode: 503},
//	    httpclient.MockStep{StatusCode: 200, Body: `[{"id":1,"mood":"calm"}]`},
//	)
type MockTransport struct {
	mu          sync.Mutex
	stubs       []stub
	sequence    []MockStep
	seqIndex    int
	defaultStep *MockStep
	defaultErr  error
	requests    []*http.Request
	requestHook func(*http.Request)
}

// MockStep is one scripted answer: either a response (status, body,
// optional headers) or an error.
type MockStep struct {
	StatusCode int
	Body       string
	Header     http.Header
	Err        error
}

type stub struct {
	matcher func(*http.Request) bool
	step    MockStep
}

// NewMockTransport creates an empty MockTransport. A request that matches
// nothing fails with a descriptive error rather than hanging.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse makes every otherwise-unmatched request return the given
// status and body.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultStep = &MockStep{StatusCode: statusCode, Body: body}
	return m
}

// StubError makes every otherwise-unmatched request fail with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubSequence scripts ordered answers consumed one per request. When the
// script runs out the last step keeps answering, so a trailing success step
// makes the sequence safe for any number of follow-up calls. Matcher stubs
// still take precedence.
func (m *MockTransport) StubSequence(steps ...MockStep) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = steps
	m.seqIndex = 0
	return m
}

// StubPath answers requests for the exact path.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathRegex answers requests whose path matches the pattern.
func (m *MockTransport) StubPathRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, statusCode, body)
}

// StubMethod answers requests with the given HTTP method.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, statusCode, body)
}

// StubFunc answers requests matching the predicate. Stubs are checked in
// registration order; the first match wins.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		step:    MockStep{StatusCode: statusCode, Body: body},
	})
	return m
}

// StubFuncError fails requests matching the predicate with err.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		step:    MockStep{Err: err},
	})
	return m
}

// OnRequest registers a hook invoked for each request before it is
// answered. Useful for capturing headers the transport chain injects.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.stubs {
		if s.matcher(req) {
			return s.step.respond(req)
		}
	}

	if len(m.sequence) > 0 {
		step := m.sequence[m.seqIndex]
		if m.seqIndex < len(m.sequence)-1 {
			m.seqIndex++
		}
		return step.respond(req)
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultStep != nil {
		return m.defaultStep.respond(req)
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
}

// Requests returns a copy of all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all stubs, the sequence, and the recorded requests.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.sequence = nil
	m.seqIndex = 0
	m.defaultStep = nil
	m.defaultErr = nil
	m.requestHook = nil
}

// respond mints a fresh response for each call so bodies are never shared
// between requests.
func (s MockStep) respond(req *http.Request) (*http.Response, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	header := s.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode:    s.StatusCode,
		Status:        http.StatusText(s.StatusCode),
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}, nil
}

// WithMockTransport builds the client on the given mock instead of a real
// network transport. The resilience and instrumentation chain still wraps
// it, so stubbed flows exercise the same code paths as production traffic.
func WithMockTransport(mock *MockTransport) Option {
	return func(cfg *internalConfig) {
		cfg.MockTransport = mock
	}
}
