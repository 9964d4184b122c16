// Package llmfailover provides a resilience layer over multiple LLM
// backends: priority-ordered failover across candidate models, a circuit
// breaker per provider, per-provider performance tracking, and a
// deterministic fallback responder so callers always receive an answer.
package llmfailover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbus-labs/llmfailover/internal/circuitbreaker"
	"github.com/nimbus-labs/llmfailover/internal/logging"
	"github.com/nimbus-labs/llmfailover/internal/metrics"
	"github.com/nimbus-labs/llmfailover/internal/perf"
	"github.com/nimbus-labs/llmfailover/internal/probelog"
	"github.com/nimbus-labs/llmfailover/providers"
)

// Fallback reasons reported in Meta.FallbackReason.
const (
	FallbackNoProviders        = "no_providers"
	FallbackAllProvidersFailed = "all_providers_failed"
)

// Meta describes how a request was answered.
type Meta struct {
	// Provider and Model identify the backend that produced the text.
	// Model is "fallback" and Provider empty when the fallback responder
	// answered.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	// Success is true when a real backend produced the text.
	Success bool `json:"success"`
	// Attempts is the number of provider calls issued for this request.
	Attempts int `json:"attempts"`
	// LatencyMS is the duration of the successful attempt.
	LatencyMS float64 `json:"latency_ms,omitempty"`
	// FallbackReason is set when the fallback responder answered.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Orchestrator routes generation requests across registered providers. It
// owns one circuit breaker and one performance tracker per provider; both
// maps are built at construction and never modified afterwards, so only
// the individual breakers and trackers lock.
type Orchestrator struct {
	registry  *providers.Registry
	breakers  map[string]*circuitbreaker.CircuitBreaker
	trackers  map[string]*perf.Tracker
	responder *Responder
	journal   probelog.Recorder
}

// New creates an Orchestrator for the given registry. journal may be nil
// to disable event persistence.
func New(cfg Config, registry *providers.Registry, journal probelog.Recorder) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if journal == nil {
		journal = probelog.NoopRecorder{}
	}

	o := &Orchestrator{
		registry:  registry,
		breakers:  make(map[string]*circuitbreaker.CircuitBreaker),
		trackers:  make(map[string]*perf.Tracker),
		responder: NewResponder(),
		journal:   journal,
	}
	for _, name := range registry.Providers() {
		o.breakers[name] = circuitbreaker.New(
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.ProbeLimit,
			cfg.Breaker.Cooldown(),
		)
		o.trackers[name] = perf.New()
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(circuitbreaker.StateClosed))
	}
	return o, nil
}

// Generate answers req. It walks the candidate list in priority order,
// skipping providers whose breaker disallows calls and providers that
// already failed within this request, and returns the first successful
// text. When no candidate succeeds the deterministic fallback responder
// answers instead, so Generate never returns an error.
func (o *Orchestrator) Generate(ctx context.Context, req providers.Request) (string, Meta) {
	log := logging.FromContext(ctx)

	candidates := o.registry.Candidates(o.gate())
	if len(o.registry.Providers()) == 0 {
		return o.fallback(req, FallbackNoProviders, 0)
	}

	attempts := 0
	failed := make(map[string]bool)
	for _, c := range candidates {
		if failed[c.Provider] {
			continue
		}
		breaker := o.breakers[c.Provider]
		if !breaker.Allow() {
			// Lost the race for a half-open probe slot, or the breaker
			// opened since the candidate list was built.
			metrics.AttemptsTotal.WithLabelValues(c.Provider, c.Name, "rejected").Inc()
			continue
		}

		attempts++
		gen, latency, err := o.invoke(ctx, c, req)
		if err == nil {
			breaker.RecordSuccess()
			o.trackers[c.Provider].RecordSuccess(latency)
			o.publishBreakerState(c.Provider)
			metrics.AttemptsTotal.WithLabelValues(c.Provider, c.Name, "success").Inc()
			metrics.AttemptDuration.WithLabelValues(c.Provider, c.Name).Observe(latency.Seconds())

			logging.ForAttempt(ctx, c.Provider, c.Name).Info("provider call succeeded",
				"latency_ms", float64(latency)/float64(time.Millisecond),
				"attempts", attempts)
			return gen.Text, Meta{
				Provider:  c.Provider,
				Model:     gen.Model,
				Success:   true,
				Attempts:  attempts,
				LatencyMS: float64(latency) / float64(time.Millisecond),
			}
		}

		before := breaker.State()
		breaker.RecordFailure()
		o.trackers[c.Provider].RecordFailure()
		o.publishBreakerState(c.Provider)
		metrics.AttemptsTotal.WithLabelValues(c.Provider, c.Name, "error").Inc()
		metrics.FailoversTotal.WithLabelValues(c.Provider).Inc()
		failed[c.Provider] = true

		logging.ForAttempt(ctx, c.Provider, c.Name).Warn("provider call failed",
			"error", err, "attempts", attempts)

		if after := breaker.State(); after != before {
			o.journalBreakerChange(ctx, c.Provider, before, after)
		}
	}

	log.Warn("all candidates exhausted", "attempts", attempts)
	return o.fallback(req, FallbackAllProvidersFailed, attempts)
}

// invoke issues one bounded call against c. The candidate timeout caps the
// attempt; when it fires the error is classified as a timeout and the next
// candidate is tried, the request as a whole is not aborted.
func (o *Orchestrator) invoke(ctx context.Context, c providers.Candidate, req providers.Request) (*providers.Generation, time.Duration, error) {
	inv, ok := o.registry.Invoker(c.Provider)
	if !ok {
		return nil, 0, fmt.Errorf("no invoker for provider %s", c.Provider)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	gen, err := inv.Generate(callCtx, c, req)
	return gen, time.Since(start), err
}

// gate adapts the breaker map to the registry's candidate filter. The gate
// never reserves probe slots; Allow does that right before the call.
func (o *Orchestrator) gate() providers.GateFunc {
	return func(provider string) bool {
		b, ok := o.breakers[provider]
		return ok && b.CanAttempt()
	}
}

func (o *Orchestrator) fallback(req providers.Request, reason string, attempts int) (string, Meta) {
	metrics.FallbackResponses.WithLabelValues(reason).Inc()
	return o.responder.Respond(req), Meta{
		Model:          "fallback",
		Success:        false,
		Attempts:       attempts,
		FallbackReason: reason,
	}
}

func (o *Orchestrator) publishBreakerState(provider string) {
	metrics.CircuitBreakerState.WithLabelValues(provider).Set(float64(o.breakers[provider].State()))
}

func (o *Orchestrator) journalBreakerChange(ctx context.Context, provider string, from, to circuitbreaker.State) {
	logging.FromContext(ctx).Warn("circuit breaker state changed",
		"provider", provider, "from", from.String(), "to", to.String())
	err := o.journal.Record(ctx, probelog.Entry{
		Provider: provider,
		Kind:     probelog.KindBreaker,
		OK:       to == circuitbreaker.StateClosed,
		Detail:   fmt.Sprintf("%s -> %s", from, to),
	})
	if err != nil {
		logging.FromContext(ctx).Error("journal write failed", "error", err)
	}
}
