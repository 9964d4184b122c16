// Package metrics registers the Prometheus metrics exported by the
// resilience layer. Import this package (via blank import if nothing else
// is needed) from the server entry point to register all metrics before
// the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts individual provider call attempts labelled by
	// provider, model, and outcome ("success", "error", "rejected").
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_attempts_total",
			Help: "Total provider call attempts by outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	// AttemptDuration observes per-attempt latency in seconds for
	// successful provider calls.
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "failover_attempt_duration_seconds",
			Help:    "Provider call duration in seconds (successful calls).",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// FailoversTotal counts failed candidates that caused the orchestrator
	// to advance to the next candidate.
	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_advances_total",
			Help: "Total failovers to the next candidate, by failing provider.",
		},
		[]string{"provider"},
	)

	// FallbackResponses counts requests answered by the deterministic
	// fallback responder, labelled by reason.
	FallbackResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_fallback_responses_total",
			Help: "Total requests answered by the fallback responder.",
		},
		[]string{"reason"},
	)

	// CircuitBreakerState tracks per-provider circuit breaker state as a
	// gauge: 0 = closed, 1 = open, 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "failover_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed 1=open 2=half_open).",
		},
		[]string{"provider"},
	)

	// ProbeResults counts diagnostic probe outcomes per provider
	// ("pass", "fail").
	ProbeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failover_probe_results_total",
			Help: "Diagnostic probe outcomes per provider.",
		},
		[]string{"provider", "result"},
	)
)
