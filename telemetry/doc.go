// Package telemetry provides ready-made httpclient.Tracker implementations.
//
// LogTracker writes each event as a structured zerolog record; use it when
// log aggregation is the only sink available. PrometheusTracker exports
// counters and histograms for scraping; expose them with promhttp alongside
// the rest of the process metrics.
//
// Both trackers are cheap enough to call inline, but the client already
// delivers events through its buffered collector, so neither can slow a
// request down.
//
//	reg := prometheus.NewRegistry()
//	tracker, err := telemetry.NewPrometheusTracker(reg)
//	if err != nil {
//	    return err
//	}
//
//	client := httpclient.New(httpclient.WithTracker(tracker))
package telemetry
