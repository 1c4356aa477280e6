// Package metrics provides Prometheus instrumentation for the moderation
// gateway. It exposes counters for pipeline verdicts and fallbacks,
// histograms for backend latency, and gauges for websocket sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VerdictsTotal counts pipeline verdicts, labeled by outcome:
	// "clean", "spam", "suspicious", "unsafe", or "toxic".
	VerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanghive_verdicts_total",
		Help: "Total automod pipeline verdicts by outcome",
	}, []string{"verdict"})

	// GenerationLatency records reply generation latency in seconds,
	// including prompt assembly and post-processing.
	GenerationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hanghive_generation_latency_seconds",
		Help:    "Reply generation latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// GenerationFallbacks counts replies served from a fixed fallback
	// string, labeled by kind: "unavailable" or "failed".
	GenerationFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanghive_generation_fallbacks_total",
		Help: "Replies served from a fallback string instead of the backend",
	}, []string{"kind"})

	// EventLogFailures counts event appends that failed. The verdict is
	// still returned to the caller; this counter is how those best-effort
	// failures stay visible.
	EventLogFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hanghive_eventlog_append_failures_total",
		Help: "Moderation event appends that failed",
	})

	// WSSessions tracks the current number of active websocket chat
	// sessions.
	WSSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hanghive_ws_sessions",
		Help: "Current number of active websocket chat sessions",
	})

	// RequestsTotal counts HTTP requests by endpoint.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanghive_requests_total",
		Help: "Total HTTP requests by endpoint",
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(
		VerdictsTotal,
		GenerationLatency,
		GenerationFallbacks,
		EventLogFailures,
		WSSessions,
		RequestsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
