package httpclient

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// RequestBuilder provides a fluent API for constructing HTTP requests.
//
// Create a RequestBuilder using Client.Request():
//
//	resp, err := client.Request("CreateMood").
//	    Path("/moods").
//	    Body(entry).
//	    Post(ctx)
type RequestBuilder struct {
	client        *Client
	operationName string
	path          string
	pathParams    map[string]string
	queryParams   url.Values
	headers       http.Header
	body          io.Reader
	contentType   string
	result        any
	errorResult   any
	enableTrace   bool

	// Per-request behavior overrides
	interceptors []RequestInterceptor
	coalesce     bool
	timeout      time.Duration
	rateLimit    *RequestRateLimitConfig

	// Multipart upload fields
	fileUploads []FileUpload
	formFields  map[string]string
}

// Path sets the request path.
//
// The path is appended to the client's base URL. Path parameters
// can be specified using {name} syntax and filled with PathParam().
//
// Example:
//
//	client.Request("GetMood").
//	    Path("/moods/{id}").
//	    PathParam("id", moodID).
//	    Get(ctx)
func (rb *RequestBuilder) Path(path string) *RequestBuilder {
	rb.path = path
	return rb
}

// PathParam sets a path parameter value.
//
// Path parameters are replaced in the path string using {name} syntax.
//
// Example:
//
//	client.Request("GetMoodNote").
//	    Path("/moods/{id}/notes/{noteId}").
//	    PathParam("id", moodID).
//	    PathParam("noteId", noteID).
//	    Get(ctx)
func (rb *RequestBuilder) PathParam(key, value string) *RequestBuilder {
	rb.pathParams[key] = value
	return rb
}

// Query adds a single query parameter.
//
// Example:
//
//	client.Request("ListMoods").
//	    Path("/moods").
//	    Query("mood", "calm").
//	    Query("limit", "10").
//	    Get(ctx)
func (rb *RequestBuilder) Query(key, value string) *RequestBuilder {
	if rb.queryParams == nil {
		rb.queryParams = make(url.Values)
	}
	rb.queryParams.Set(key, value)
	return rb
}

// Queries adds multiple query parameters.
//
// Example:
//
//	client.Request("ListMoods").
//	    Path("/moods").
//	    Queries(map[string]string{"mood": "calm", "limit": "10"}).
//	    Get(ctx)
func (rb *RequestBuilder) Queries(params map[string]string) *RequestBuilder {
	if rb.queryParams == nil {
		rb.queryParams = make(url.Values)
	}
	for k, v := range params {
		rb.queryParams.Set(k, v)
	}
	return rb
}

// Header sets a single request header.
//
// Example:
//
//	client.Request("CreateMood").
//	    Header("Idempotency-Key", key).
//	    Header("X-Client-Version", "2.4.0").
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) Header(key, value string) *RequestBuilder {
	rb.headers.Set(key, value)
	return rb
}

// Headers sets multiple request headers.
//
// Example:
//
//	client.Request("CreateMood").
//	    Headers(map[string]string{
//	        "Idempotency-Key":  key,
//	        "X-Client-Version": "2.4.0",
//	    }).
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) Headers(headers map[string]string) *RequestBuilder {
	for k, v := range headers {
		rb.headers.Set(k, v)
	}
	return rb
}

// Body sets the request body with automatic content type detection.
//
// Encoding rules:
//   - struct/map: JSON (Content-Type: application/json)
//   - string: raw text (Content-Type: text/plain)
//   - []byte: raw bytes (Content-Type: application/octet-stream)
//   - io.Reader: passthrough
//   - url.Values: form encoded (Content-Type: application/x-www-form-urlencoded)
//
// Example:
//
//	client.Request("CreateMood").
//	    Body(entry).  // struct -> JSON
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) Body(v any) *RequestBuilder {
	if v == nil {
		return rb
	}

	switch body := v.(type) {
	case string:
		rb.body = strings.NewReader(body)
		rb.contentType = "text/plain; charset=utf-8"
	case []byte:
		rb.body = bytes.NewReader(body)
		rb.contentType = "application/octet-stream"
	case io.Reader:
		rb.body = body
	case url.Values:
		rb.body = strings.NewReader(body.Encode())
		rb.contentType = "application/x-www-form-urlencoded"
	default:
		// struct/map -> JSON
		data, err := json.Marshal(v)
		if err != nil {
			// Store error for later - will be returned on execute
			rb.body = &bodyEncodingError{err: err}
			return rb
		}
		rb.body = bytes.NewReader(data)
		rb.contentType = "application/json"
	}
	return rb
}

// BodyJSON explicitly encodes the body as JSON.
//
// Use this when you want to ensure JSON encoding regardless of the input type.
//
// Example:
//
//	client.Request("CreateMood").
//	    BodyJSON(entry).
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) BodyJSON(v any) *RequestBuilder {
	if v == nil {
		return rb
	}
	data, err := json.Marshal(v)
	if err != nil {
		rb.body = &bodyEncodingError{err: err}
		return rb
	}
	rb.body = bytes.NewReader(data)
	rb.contentType = "application/json"
	return rb
}

// BodyXML explicitly encodes the body as XML.
//
// Example:
//
//	client.Request("ImportMoods").
//	    BodyXML(batch).
//	    Post(ctx, "/imports")
func (rb *RequestBuilder) BodyXML(v any) *RequestBuilder {
	if v == nil {
		return rb
	}
	data, err := xml.Marshal(v)
	if err != nil {
		rb.body = &bodyEncodingError{err: err}
		return rb
	}
	rb.body = bytes.NewReader(data)
	rb.contentType = "application/xml"
	return rb
}

// BodyForm sets form data as the request body.
//
// Example:
//
//	client.Request("Login").
//	    BodyForm(map[string]string{
//	        "username": "maria",
//	        "password": "secret",
//	    }).
//	    Post(ctx, "/login")
func (rb *RequestBuilder) BodyForm(data map[string]string) *RequestBuilder {
	values := make(url.Values)
	for k, v := range data {
		values.Set(k, v)
	}
	rb.body = strings.NewReader(values.Encode())
	rb.contentType = "application/x-www-form-urlencoded"
	return rb
}

// Decode sets the target for automatic response body decoding.
//
// If the response is successful (2xx), the body is decoded into the target.
//
// Example:
//
//	var moods []MoodEntry
//	resp, err := client.Request("ListMoods").
//	    Decode(&moods).
//	    Get(ctx, "/moods")
func (rb *RequestBuilder) Decode(v any) *RequestBuilder {
	rb.result = v
	return rb
}

// DecodeError sets the target for automatic error response decoding.
//
// If the response is not successful (non-2xx), the body is decoded into the target.
//
// Example:
//
//	var apiErr APIError
//	resp, err := client.Request("CreateMood").
//	    Decode(&entry).
//	    DecodeError(&apiErr).
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) DecodeError(v any) *RequestBuilder {
	rb.errorResult = v
	return rb
}

// DecodeAny sets the target for automatic response decoding regardless of status code.
//
// Use this when your API returns the same response structure for both success
// and error responses. The body is always decoded into the target.
//
// Example - Unified response structure:
//
//	// API returns same structure for all responses:
//	// { "data": {...}, "errors": [...] }
//	type APIResponse struct {
//	    Data   *MoodEntry `json:"data"`
//	    Errors []Error    `json:"errors"`
//	}
//
//	var result APIResponse
//	resp, err := client.Request("CreateMood").
//	    DecodeAny(&result).
//	    Post(ctx, "/moods")
//
//	if resp.IsError() {
//	    // Handle result.Errors
//	}
func (rb *RequestBuilder) DecodeAny(v any) *RequestBuilder {
	rb.result = v
	rb.errorResult = v
	return rb
}

// EnableTrace enables timing trace collection for this request.
//
// Example:
//
//	resp, err := client.Request("ExportReport").
//	    EnableTrace().
//	    Get(ctx, "/exports")
//	fmt.Println(resp.TraceInfo())
func (rb *RequestBuilder) EnableTrace() *RequestBuilder {
	rb.enableTrace = true
	return rb
}

// Intercept adds a per-request interceptor.
//
// Per-request interceptors run after the client-level chain (built-in
// credential enrichment first, then interceptors registered with
// WithRequestInterceptor), in the order they were added.
//
// Example:
//
//	client.Request("CreateMood").
//	    Intercept(func(req *http.Request) error {
//	        req.Header.Set("Idempotency-Key", key)
//	        return nil
//	    }).
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) Intercept(i RequestInterceptor) *RequestBuilder {
	rb.interceptors = append(rb.interceptors, i)
	return rb
}

// Coalesce deduplicates identical in-flight requests.
//
// While a request with the same method, URL (query order insensitive) and
// body is in flight on this client, concurrent duplicates share its result
// instead of hitting the server. Each caller receives an independent
// response copy with its own body reader. Sequential requests are never
// deduplicated; there is no caching involved.
//
// Example:
//
//	// Ten concurrent dashboard widgets asking for the same data
//	// produce one upstream call.
//	resp, err := client.Request("GetDashboard").
//	    Coalesce().
//	    Get(ctx, "/dashboard")
func (rb *RequestBuilder) Coalesce() *RequestBuilder {
	rb.coalesce = true
	return rb
}

// Timeout sets a deadline for this request only.
//
// The shortest of the per-request timeout, the caller's context deadline
// and the client-wide timeout wins.
//
// Example:
//
//	resp, err := client.Request("HealthCheck").
//	    Timeout(2 * time.Second).
//	    Get(ctx, "/health")
func (rb *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	rb.timeout = d
	return rb
}

// RateLimit throttles this operation to rps requests per second.
//
// The limiter is shared by all requests on this client carrying the same
// operation name, so repeated calls to the same operation space out while
// unrelated operations proceed independently. When the limit is hit the
// request waits for a token, respecting the context deadline.
//
// Example:
//
//	// The export endpoint allows one call per second.
//	resp, err := client.Request("Export").
//	    RateLimit(1).
//	    Get(ctx, "/exports")
func (rb *RequestBuilder) RateLimit(rps float64) *RequestBuilder {
	rb.rateLimit = &RequestRateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             1,
		WaitOnLimit:       true,
	}
	return rb
}

// Get executes a GET request.
//
// Example:
//
//	resp, err := client.Request("ListMoods").Get(ctx, "/moods")
func (rb *RequestBuilder) Get(ctx context.Context, path ...string) (*Response, error) {
	if len(path) > 0 {
		rb.path = path[0]
	}
	return rb.execute(ctx, http.MethodGet)
}

// Post executes a POST request.
//
// Example:
//
//	resp, err := client.Request("CreateMood").
//	    Body(entry).
//	    Post(ctx, "/moods")
func (rb *RequestBuilder) Post(ctx context.Context, path ...string) (*Response, error) {
	if len(path) > 0 {
		rb.path = path[0]
	}
	return rb.execute(ctx, http.MethodPost)
}

// Put executes a PUT request.
//
// Example:
//
//	resp, err := client.Request("UpdateMood").
//	    Body(entry).
//	    Put(ctx, "/moods/{id}")
func (rb *RequestBuilder) Put(ctx context.Context, path ...string) (*Response, error) {
	if len(path) > 0 {
		rb.path = path[0]
	}
	return rb.execute(ctx, http.MethodPut)
}

// Patch executes a PATCH request.
//
// Example:
//
//	resp, err := client.Request("PatchMood").
//	    Body(patch).
//	    Patch(ctx, "/moods/{id}")
func (rb *RequestBuilder) Patch(ctx context.Context, path ...string) (*Response, error) {
	if len(path) > 0 {
		rb.path = path[0]
	}
	return rb.execute(ctx, http.MethodPatch)
}

// Delete executes a DELETE request.
//
// Example:
//
//	resp, err := client.Request("DeleteMood").Delete(ctx, "/moods/{id}")
func (rb *RequestBuilder) Delete(ctx context.Context, path ...string) (*Response, error) {
	if len(path) > 0 {
		rb.path = path[0]
	}
	return rb.execute(ctx, http.MethodDelete)
}

// execute builds and sends the HTTP request.
func (rb *RequestBuilder) execute(ctx context.Context, method string) (*Response, error) {
	// Build URL
	targetURL, err := rb.buildURL()
	if err != nil {
		rb.emitError(method, rb.path, "setup", err)
		return nil, err
	}

	// Check for body encoding errors
	if er, ok := rb.body.(*bodyEncodingError); ok {
		rb.emitError(method, targetURL, "setup", er.err)
		return nil, er.err
	}

	// Handle multipart file uploads
	reqBody := rb.body
	if len(rb.fileUploads) > 0 {
		body, contentType, err := rb.buildMultipart()
		if err != nil {
			rb.emitError(method, targetURL, "setup", err)
			return nil, err
		}
		reqBody = body
		rb.contentType = contentType
	}

	// Per-request deadline. The caller's context deadline still applies;
	// whichever expires first cancels the request.
	var cancel context.CancelFunc
	if rb.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, rb.timeout)
		defer cancel()
	}

	// Per-operation rate limit, keyed by client and operation name so
	// unrelated operations never contend.
	if rb.rateLimit != nil {
		key := rb.client.id + ":" + rb.operationName
		if err := applyRequestRateLimit(ctx, key, *rb.rateLimit); err != nil {
			rb.emitError(method, targetURL, errorKind(err), err)
			return nil, err
		}
	}

	// Annotate the context with per-request state shared by every retry
	// attempt clone: dispatch timestamp and the one-shot auth-retry flag.
	ctx = withRequestState(ctx, &requestState{start: time.Now()})

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, targetURL, reqBody)
	if err != nil {
		rb.emitError(method, targetURL, "setup", err)
		return nil, err
	}

	// Apply default headers from client
	for k, v := range rb.client.defaultHeaders {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	// Apply request-specific headers (override defaults)
	for k, v := range rb.headers {
		req.Header[k] = v
	}

	// Set content type if body was set
	if rb.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", rb.contentType)
	}

	// Client-level interceptors first, then per-request ones. The first
	// error aborts the request before it reaches the transport chain.
	if err := rb.client.interceptors.ApplyRequestInterceptors(req); err != nil {
		rb.emitError(method, targetURL, "setup", err)
		return nil, err
	}
	for _, interceptor := range rb.interceptors {
		if err := interceptor(req); err != nil {
			rb.emitError(method, targetURL, "setup", err)
			return nil, err
		}
	}

	// Set up request tracing if enabled
	var tracer *requestTracer
	if rb.enableTrace || rb.client.enableTrace {
		tracer = &requestTracer{totalStart: time.Now()}
		ctx = httptrace.WithClientTrace(ctx, tracer.clientTrace())
		req = req.WithContext(ctx)
	}

	// Debug logging
	if rb.client.debug {
		logRequest(debugLogger, req)
	}

	startTime := time.Now()

	// Execute request
	// The caller is responsible for closing the response body.
	// Response.Body() handles this automatically when called.
	//nolint:bodyclose // Caller closes via Response
	httpResp, err := rb.dispatch(req, method, targetURL)
	if err != nil {
		rb.emitError(method, targetURL, errorKind(err), err)
		return nil, err
	}

	duration := time.Since(startTime)

	// Debug logging for response
	if rb.client.debug {
		logResponse(debugLogger, httpResp, duration)
	}

	// Response interceptors run before decoding; an error discards the
	// response.
	if err := rb.client.interceptors.ApplyResponseInterceptors(httpResp, req); err != nil {
		drainBody(httpResp)
		rb.emitError(method, targetURL, "setup", err)
		return nil, err
	}

	rb.emitCall(APICallEvent{
		Method:       method,
		URL:          targetURL,
		Status:       httpResp.StatusCode,
		Duration:     duration,
		ResponseSize: httpResp.ContentLength,
	})

	// Wrap response
	resp := &Response{
		Response:    httpResp,
		request:     req,
		result:      rb.result,
		errorResult: rb.errorResult,
	}

	// Generate cURL command if enabled
	if rb.client.generateCurl {
		var bodyBytes []byte
		if reqBody != nil {
			if buf, ok := reqBody.(*bytes.Buffer); ok {
				bodyBytes = buf.Bytes()
			}
		}
		resp.curlCommand = generateCurlCommand(req, bodyBytes)
	}

	// Capture trace info if enabled
	if tracer != nil {
		resp.traceInfo = tracer.toTraceInfo()
	}

	// A per-request deadline dies with this call, so the body must be
	// buffered before the deferred cancel fires.
	if cancel != nil {
		_, _ = resp.Body()
	}

	// Read and decode body if targets are set
	if rb.result != nil || rb.errorResult != nil {
		if err := resp.decode(); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// dispatch sends the request, deduplicating through the client's
// singleflight group when coalescing was requested.
func (rb *RequestBuilder) dispatch(req *http.Request, method, targetURL string) (*http.Response, error) {
	if !rb.coalesce {
		return rb.client.httpClient.Do(req)
	}

	key := GenerateCoalesceKey(method, targetURL, replayableBody(req))
	group := clientCoalesceGroups.getOrCreateGroup(rb.client.id)

	v, err, _ := group.Do(key, func() (any, error) {
		resp, err := rb.client.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		return newSharedResponse(resp)
	})
	if err != nil {
		return nil, err
	}

	// Every caller gets its own copy, including the one that did the work.
	return v.(*sharedResponse).materialize(), nil
}

// emitCall forwards a completed-request event when a tracker is configured.
func (rb *RequestBuilder) emitCall(ev APICallEvent) {
	if rb.client.collector == nil {
		return
	}
	rb.client.collector.trackAPICall(ev)
}

// emitError forwards a failure event when a tracker is configured.
func (rb *RequestBuilder) emitError(method, url, kind string, err error) {
	if rb.client.collector == nil {
		return
	}
	rb.client.collector.trackError(ErrorEvent{
		Method:  method,
		URL:     url,
		Kind:    kind,
		Message: err.Error(),
	})
}

// buildURL constructs the full URL from base URL, path, and query params.
func (rb *RequestBuilder) buildURL() (string, error) {
	// Start with path
	path := rb.path

	// Replace path parameters
	for k, v := range rb.pathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}

	// Build full URL
	var fullURL string
	if rb.client.baseURL != "" {
		fullURL = strings.TrimSuffix(rb.client.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	} else {
		fullURL = path
	}

	// Parse and add query params
	if len(rb.queryParams) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return "", err
		}
		q := u.Query()
		for k, v := range rb.queryParams {
			for _, vv := range v {
				q.Add(k, vv)
			}
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	return fullURL, nil
}

// bodyEncodingError is an io.Reader that returns an error.
type bodyEncodingError struct {
	err error
}

func (e *bodyEncodingError) Read(_ []byte) (int, error) {
	return 0, e.err
}
