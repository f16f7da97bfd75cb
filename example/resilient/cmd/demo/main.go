package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/omar1u7777/Lugn-Trygg-sub004/example/resilient/internal/flaky"
	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
	"github.com/omar1u7777/Lugn-Trygg-sub004/offlinequeue"
	"github.com/omar1u7777/Lugn-Trygg-sub004/telemetry"
)

// authService talks to the upstream's refresh endpoint with a plain HTTP
// client: credential calls must not run through the resilient client they
// authenticate.
type authService struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func newAuthService(baseURL string, logger zerolog.Logger) *authService {
	return &authService{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (a *authService) RefreshAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/refresh", nil)
	if err != nil {
		return "", err
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	a.logger.Info().Msg("access token refreshed")
	return payload.AccessToken, nil
}

func (a *authService) CSRFToken(context.Context) (string, error) {
	return "demo-csrf-token", nil
}

func (a *authService) Logout(context.Context) error {
	a.logger.Warn().Msg("session terminated")
	return nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// 1. Start the flaky upstream.
	upstream := flaky.NewServer()
	defer upstream.Close()
	log.Printf("Flaky upstream listening on %s", upstream.URL)

	// 2. Wire the resilient client: a token store seeded with an expired
	// credential, an auth service that fetches fresh tokens, an offline
	// queue, a connectivity flag, and log-backed telemetry.
	store := httpclient.NewMemoryTokenStore(flaky.ExpiredToken)
	auth := newAuthService(upstream.URL, logger)
	queue := offlinequeue.NewMemory(100)
	status := httpclient.NewNetworkStatus(true)

	client := httpclient.New(
		httpclient.WithBaseURL(upstream.URL),
		httpclient.WithTokenStore(store),
		httpclient.WithAuthService(auth),
		httpclient.WithOfflineQueue(queue),
		httpclient.WithConnectivity(status),
		httpclient.WithTracker(telemetry.NewLogTracker(logger)),
		httpclient.WithLogger(logger),
	)
	defer client.Close()

	ctx := context.Background()

	// 3. Expired credential: the 401 triggers one silent refresh and a
	// replay with the new token.
	var profile struct {
		Name   string `json:"name"`
		Streak int    `json:"streak"`
	}
	_, err := client.Request("GetProfile").Decode(&profile).Get(ctx, "/api/profile")
	if err != nil {
		log.Fatalf("profile request failed: %v", err)
	}
	fmt.Printf("✅ profile fetched after refresh: %s (streak %d), refresh calls: %d\n",
		profile.Name, profile.Streak, upstream.Hits("/auth/refresh"))

	// 4. Rate limit: the 429 surfaces the server's wait time, no retries.
	_, err = client.Request("GetReport").Get(ctx, "/api/limited")
	var rle *httpclient.RateLimitError
	if errors.As(err, &rle) {
		fmt.Printf("✅ rate limited, server asks for %.0fs (requests sent: %d)\n",
			rle.RetryAfter.Seconds(), upstream.Hits("/api/limited"))
	}

	// 5. Transient outage: two 503s absorbed by the linear-backoff retry
	// engine, then success. Takes about three seconds.
	_, err = client.Request("GetStats").Get(ctx, "/api/unstable")
	if err != nil {
		log.Fatalf("unstable request failed: %v", err)
	}
	fmt.Printf("✅ recovered after %d attempts\n", upstream.Hits("/api/unstable"))

	// 6. Offline mutation: the gateway timeout plus offline connectivity
	// queues the POST for later sync instead of losing it.
	status.SetOnline(false)
	_, err = client.Request("CreateMood").
		Body(`{"mood":"calm"}`).
		Post(ctx, "/api/moods")
	if httpclient.IsQueued(err) {
		entries := queue.Entries()
		fmt.Printf("✅ offline POST queued for later sync (%d entry)\n", len(entries))
		for _, e := range entries {
			fmt.Printf("   %s %s %s\n", e.Method, e.URL, e.Body)
		}
	}

	fmt.Println("Done. The tracker lines above came from the client's telemetry collector.")
}
