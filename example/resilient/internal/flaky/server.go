package flaky

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	// ExpiredToken is the credential the demo client starts with; the
	// upstream rejects it everywhere.
	ExpiredToken = "token-1"

	// ValidToken is the credential handed out by the refresh endpoint.
	ValidToken = "token-2"
)

// Server is a local upstream with deliberately bad manners: it hands out
// expired credentials, rate-limits, times out at the gateway, and recovers
// only after a few attempts. Each endpoint exercises one resilience path in
// the client.
type Server struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

// NewServer starts the upstream on a random local port.
func NewServer() *Server {
	s := &Server{hits: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/limited", s.handleLimited)
	mux.HandleFunc("/api/unstable", s.handleUnstable)
	mux.HandleFunc("/api/moods", s.handleMoods)

	s.Server = httptest.NewServer(mux)
	return s
}

// Hits reports how many requests a path has received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[path]++
	return s.hits[path]
}

// handleRefresh rotates the session credential.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.count(r.URL.Path)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q}`, ValidToken)
}

// handleProfile rejects every credential except the refreshed one.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.count(r.URL.Path)
	if r.Header.Get("Authorization") != "Bearer "+ValidToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"name":"demo user","streak":7}`)
}

// handleLimited always rate-limits, naming its price.
func (s *Server) handleLimited(w http.ResponseWriter, r *http.Request) {
	s.count(r.URL.Path)
	w.Header().Set("Retry-After", "45")
	w.WriteHeader(http.StatusTooManyRequests)
}

// handleUnstable fails twice, then recovers.
func (s *Server) handleUnstable(w http.ResponseWriter, r *http.Request) {
	if s.count(r.URL.Path) <= 2 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"reports":3}`)
}

// handleMoods never answers in time.
func (s *Server) handleMoods(w http.ResponseWriter, r *http.Request) {
	s.count(r.URL.Path)
	w.WriteHeader(http.StatusGatewayTimeout)
}
