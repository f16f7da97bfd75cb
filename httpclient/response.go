package httpclient

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Response wraps http.Response with cached body access, content-type aware
// decoding, status helpers, and the debugging artifacts (cURL command,
// timing trace) collected while the request ran.
//
// Example usage:
//
//	var moods []MoodEntry
//	resp, err := client.Request("ListMoods").
//	    Decode(&moods).
//	    Get(ctx, "/moods")
//
//	if err != nil {
//	    return err
//	}
//
//	if resp.IsSuccess() {
//	    fmt.Printf("fetched %d mood entries\n", len(moods))
//	} else {
//	    body, _ := resp.String()
//	    fmt.Printf("server said: %s\n", body)
//	}
type Response struct {
	// All http.Response fields remain accessible directly, e.g.
	// resp.StatusCode or resp.Header.Get("Content-Type").
	*http.Response

	// request is the request that produced this response, kept for
	// cURL generation.
	request *http.Request

	// body caches the response body after the first read. The
	// underlying stream is only consumed once.
	body     []byte
	bodyRead bool

	// result and errorResult hold the targets of Decode and
	// DecodeError, filled by decode() based on the status class.
	result      any
	errorResult any

	// curlCommand is set when the client was built with
	// WithGenerateCurl(true).
	curlCommand string

	// traceInfo is set when EnableTrace() was called on the request.
	traceInfo *TraceInfo
}

// Body returns the response body as bytes.
//
// The body is read and cached on first access; subsequent calls return
// the cached value. A response without a body yields nil.
func (r *Response) Body() ([]byte, error) {
	if r.bodyRead {
		return r.body, nil
	}
	if r.Response == nil || r.Response.Body == nil {
		r.bodyRead = true
		return nil, nil
	}

	defer r.Response.Body.Close()
	body, err := io.ReadAll(r.Response.Body)
	if err != nil {
		return nil, err
	}

	r.body = body
	r.bodyRead = true
	return r.body, nil
}

// String returns the response body as a string.
func (r *Response) String() (string, error) {
	body, err := r.Body()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Result returns the decoded success payload. It is only populated when
// Decode() was set on the request and the response was 2xx.
func (r *Response) Result() any {
	return r.result
}

// Error returns the decoded error payload. It is only populated when
// DecodeError() was set on the request and the response was non-2xx.
func (r *Response) Error() any {
	return r.errorResult
}

// IsSuccess returns true if the response status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the response status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// CurlCommand returns the cURL equivalent of the request that produced
// this response. Empty unless WithGenerateCurl(true) was set; credential
// headers are redacted, see generateCurlCommand.
func (r *Response) CurlCommand() string {
	return r.curlCommand
}

// TraceInfo returns timing information for this request, or nil unless
// EnableTrace() was called.
func (r *Response) TraceInfo() *TraceInfo {
	return r.traceInfo
}

// decode reads the body and fills result or errorResult depending on the
// status class. Empty bodies are left undecoded so a 204 with Decode()
// set does not fail.
func (r *Response) decode() error {
	body, err := r.Body()
	if err != nil {
		return err
	}

	if len(body) == 0 {
		return nil
	}

	contentType := r.Header.Get("Content-Type")

	if r.IsSuccess() && r.result != nil {
		return decodeBody(body, contentType, r.result)
	}

	if r.IsError() && r.errorResult != nil {
		return decodeBody(body, contentType, r.errorResult)
	}

	return nil
}

// decodeBody picks a decoder from the content type. Anything that is not
// explicitly XML is treated as JSON, which also covers servers that omit
// the Content-Type header entirely.
func decodeBody(body []byte, contentType string, target any) error {
	isXML := strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "text/xml")
	if isXML {
		return xml.Unmarshal(body, target)
	}
	return json.Unmarshal(body, target)
}

// TraceInfo holds per-phase timings for a single request, formatted as
// human-readable durations.
//
// Example usage:
//
//	resp, err := client.Request("GetStreak").
//	    EnableTrace().
//	    Get(ctx, "/streak")
//
//	if err == nil {
//	    fmt.Println(resp.TraceInfo())
//	}
type TraceInfo struct {
	// DNSLookup is the name resolution time. "0s" for cached entries
	// or IP literals.
	DNSLookup string

	// ConnTime is the TCP connect time, handshake included.
	ConnTime string

	// TLSHandshake is the TLS negotiation time. Empty for plain HTTP.
	TLSHandshake string

	// ServerTime is the time from writing the request to the first
	// response byte.
	ServerTime string

	// TotalTime spans the whole exchange including body transfer.
	TotalTime string
}

// String renders the trace as an aligned block, one phase per line.
func (t *TraceInfo) String() string {
	if t == nil {
		return "TraceInfo: nil (EnableTrace() was not called)"
	}

	return fmt.Sprintf(
		"DNS Lookup:    %s\nTCP Connect:   %s\nTLS Handshake: %s\nServer Time:   %s\nTotal Time:    %s",
		t.DNSLookup,
		t.ConnTime,
		t.TLSHandshake,
		t.ServerTime,
		t.TotalTime,
	)
}
