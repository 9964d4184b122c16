package llmfailover

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nimbus-labs/llmfailover/internal/circuitbreaker"
	"github.com/nimbus-labs/llmfailover/internal/logging"
	"github.com/nimbus-labs/llmfailover/internal/metrics"
	"github.com/nimbus-labs/llmfailover/internal/perf"
	"github.com/nimbus-labs/llmfailover/internal/probelog"
	"github.com/nimbus-labs/llmfailover/providers"
)

// ProviderStatus classifies a provider's recent behaviour.
type ProviderStatus int

const (
	// StatusUnavailable — no calls recorded yet; nothing is known.
	StatusUnavailable ProviderStatus = iota
	// StatusHealthy — calls are flowing and succeeding.
	StatusHealthy
	// StatusDegraded — some failures or the breaker is probing recovery.
	StatusDegraded
	// StatusUnhealthy — the breaker is open or most calls fail.
	StatusUnhealthy
)

// String implements fmt.Stringer.
func (s ProviderStatus) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its string form.
func (s ProviderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ProviderHealth is the health view of one provider.
type ProviderHealth struct {
	Provider     string                  `json:"provider"`
	Status       ProviderStatus          `json:"status"`
	BreakerState string                  `json:"breaker_state"`
	Breaker      circuitbreaker.Snapshot `json:"breaker"`
	Perf         perf.Snapshot           `json:"performance"`
}

// Health is the aggregate health view returned by HealthSnapshot.
type Health struct {
	Status      ProviderStatus   `json:"status"`
	GeneratedAt time.Time        `json:"generated_at"`
	Providers   []ProviderHealth `json:"providers"`
}

// HealthSnapshot derives health from the current breaker and tracker state.
// It is a pure read: repeated snapshots with no intervening traffic are
// identical, and taking one never advances breaker state.
func (o *Orchestrator) HealthSnapshot() Health {
	names := o.registry.Providers()
	out := Health{
		GeneratedAt: time.Now().UTC(),
		Providers:   make([]ProviderHealth, 0, len(names)),
	}
	for _, name := range names {
		bs := o.breakers[name].Snapshot()
		ps := o.trackers[name].Snapshot()
		out.Providers = append(out.Providers, ProviderHealth{
			Provider:     name,
			Status:       deriveStatus(bs, ps),
			BreakerState: bs.State.String(),
			Breaker:      bs,
			Perf:         ps,
		})
	}
	out.Status = deriveOverall(out.Providers)
	return out
}

func deriveStatus(bs circuitbreaker.Snapshot, ps perf.Snapshot) ProviderStatus {
	if ps.TotalCalls == 0 {
		return StatusUnavailable
	}
	if bs.State == circuitbreaker.StateOpen || ps.FailureRate() >= 0.5 {
		return StatusUnhealthy
	}
	if bs.State == circuitbreaker.StateHalfOpen || ps.FailedCalls > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

// deriveOverall aggregates provider statuses. The system reports unhealthy
// only when every provider is unavailable or unhealthy; one working
// provider keeps the system answering real requests.
func deriveOverall(phs []ProviderHealth) ProviderStatus {
	if len(phs) == 0 {
		return StatusUnavailable
	}
	allHealthy := true
	allUnavailable := true
	allBad := true
	for _, ph := range phs {
		if ph.Status != StatusHealthy {
			allHealthy = false
		}
		if ph.Status != StatusUnavailable {
			allUnavailable = false
		}
		if ph.Status != StatusUnavailable && ph.Status != StatusUnhealthy {
			allBad = false
		}
	}
	switch {
	case allHealthy:
		return StatusHealthy
	case allUnavailable:
		return StatusUnavailable
	case allBad:
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}

// ProbeResult is the outcome of one diagnostic probe.
type ProbeResult struct {
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

const probeTimeout = 10 * time.Second

// ProbeAll issues one live test call per provider, in parallel, against the
// provider's highest-priority candidate. Probes are diagnostics: their
// outcomes are journaled and exported as metrics but never fed into the
// circuit breakers or performance trackers, so probing cannot change
// routing decisions.
func (o *Orchestrator) ProbeAll(ctx context.Context) []ProbeResult {
	targets := o.probeTargets()
	results := make([]ProbeResult, len(targets))

	ping := providers.Request{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "ping"}},
	}

	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c providers.Candidate) {
			defer wg.Done()
			results[i] = o.probe(ctx, c, ping)
		}(i, c)
	}
	wg.Wait()

	for _, res := range results {
		outcome := "pass"
		if !res.OK {
			outcome = "fail"
		}
		metrics.ProbeResults.WithLabelValues(res.Provider, outcome).Inc()
		err := o.journal.Record(ctx, probelog.Entry{
			Provider:  res.Provider,
			Kind:      probelog.KindProbe,
			OK:        res.OK,
			LatencyMS: int64(res.LatencyMS),
			Detail:    res.Error,
		})
		if err != nil {
			logging.FromContext(ctx).Error("journal write failed", "error", err)
		}
	}
	return results
}

// probeTargets picks each provider's highest-priority candidate, bypassing
// the breaker gate so open-circuit providers are probed too.
func (o *Orchestrator) probeTargets() []providers.Candidate {
	byProvider := make(map[string]providers.Candidate)
	for _, c := range o.registry.Candidates(nil) {
		if _, seen := byProvider[c.Provider]; !seen {
			byProvider[c.Provider] = c
		}
	}
	out := make([]providers.Candidate, 0, len(byProvider))
	for _, c := range byProvider {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (o *Orchestrator) probe(ctx context.Context, c providers.Candidate, ping providers.Request) ProbeResult {
	inv, ok := o.registry.Invoker(c.Provider)
	if !ok {
		return ProbeResult{Provider: c.Provider, Model: c.Name, Error: "no invoker registered"}
	}

	callCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	_, err := inv.Generate(callCtx, c, ping)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		return ProbeResult{Provider: c.Provider, Model: c.Name, LatencyMS: latency, Error: err.Error()}
	}
	return ProbeResult{Provider: c.Provider, Model: c.Name, OK: true, LatencyMS: latency}
}
