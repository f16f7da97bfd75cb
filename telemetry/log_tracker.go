package telemetry

import (
	"github.com/rs/zerolog"

	"github.com/omar1u7777/Lugn-Trygg-sub004/httpclient"
)

// LogTracker writes telemetry events as structured zerolog records:
// completed calls at info level, terminal failures at warn.
type LogTracker struct {
	logger zerolog.Logger
}

var _ httpclient.Tracker = (*LogTracker)(nil)

// NewLogTracker returns a tracker logging through logger.
func NewLogTracker(logger zerolog.Logger) *LogTracker {
	return &LogTracker{logger: logger}
}

// TrackAPICall implements httpclient.Tracker.
func (t *LogTracker) TrackAPICall(ev httpclient.APICallEvent) {
	t.logger.Info().
		Str("method", ev.Method).
		Str("url", ev.URL).
		Int("status", ev.Status).
		Dur("duration", ev.Duration).
		Int64("response_size", ev.ResponseSize).
		Msg("api call")
}

// TrackError implements httpclient.Tracker.
func (t *LogTracker) TrackError(ev httpclient.ErrorEvent) {
	t.logger.Warn().
		Str("method", ev.Method).
		Str("url", ev.URL).
		Str("kind", ev.Kind).
		Str("error", ev.Message).
		Msg("api call failed")
}
