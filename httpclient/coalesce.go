package httpclient

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// GenerateCoalesceKey creates a unique key for request deduplication.
// Key = SHA256(method + URL + sorted query params + body hash)
func GenerateCoalesceKey(method, rawURL string, body []byte) string {
	// Parse URL to normalize and sort query params
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		// Fallback to raw URL if parsing fails
		return hashString(method + rawURL + string(body))
	}

	// Sort query parameters for consistent key generation
	queryParams := parsedURL.Query()
	var sortedParams []string
	for key := range queryParams {
		values := queryParams[key]
		sort.Strings(values)
		for _, v := range values {
			sortedParams = append(sortedParams, key+"="+v)
		}
	}
	sort.Strings(sortedParams)

	// Build normalized URL without query (we'll add sorted params)
	normalizedURL := fmt.Sprintf("%s://%s%s", parsedURL.Scheme, parsedURL.Host, parsedURL.Path)

	// Create key components
	keyParts := []string{
		method,
		normalizedURL,
		strings.Join(sortedParams, "&"),
	}

	// Add body hash if present
	if len(body) > 0 {
		bodyHash := sha256.Sum256(body)
		keyParts = append(keyParts, hex.EncodeToString(bodyHash[:]))
	}

	return hashString(strings.Join(keyParts, "|"))
}

// hashString creates a SHA256 hash of the input string.
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// perClientCoalesceGroup holds a singleflight group per client.
// This ensures coalescing is scoped to individual clients.
type perClientCoalesceGroup struct {
	mu     sync.RWMutex
	groups map[string]*singleflight.Group
}

var clientCoalesceGroups = &perClientCoalesceGroup{
	groups: make(map[string]*singleflight.Group),
}

// getOrCreateGroup returns the singleflight group for a client.
func (p *perClientCoalesceGroup) getOrCreateGroup(clientID string) *singleflight.Group {
	p.mu.RLock()
	if g, ok := p.groups[clientID]; ok {
		p.mu.RUnlock()
		return g
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if g, ok := p.groups[clientID]; ok {
		return g
	}

	g := &singleflight.Group{}
	p.groups[clientID] = g
	return g
}

// remove drops a client's group. Called from Client.Close so closed
// clients don't accumulate in the registry.
func (p *perClientCoalesceGroup) remove(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.groups, clientID)
}

// sharedResponse is a fully buffered response handed out to every caller of
// a coalesced request. The network body is consumed exactly once; each
// caller materializes an independent copy so body reads cannot interfere.
type sharedResponse struct {
	resp *http.Response
	body []byte
}

func newSharedResponse(resp *http.Response) (*sharedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	return &sharedResponse{resp: resp, body: body}, nil
}

// materialize returns a caller-private copy with its own body reader.
func (s *sharedResponse) materialize() *http.Response {
	clone := *s.resp
	clone.Header = s.resp.Header.Clone()
	clone.Body = io.NopCloser(bytes.NewReader(s.body))
	clone.ContentLength = int64(len(s.body))
	return &clone
}
