// Package circuitbreaker implements the circuit-breaker pattern for provider
// calls. Each provider has exactly one CircuitBreaker instance, guarded by its
// own mutex so unrelated providers never contend.
//
// State transitions:
//
//	Closed   → Open      when consecutive failures ≥ FailureThreshold
//	Open     → HalfOpen  lazily, on the next Allow check after Cooldown elapses
//	HalfOpen → Closed    when ProbeLimit consecutive successes are recorded
//	HalfOpen → Open      on any failure
//
// While half-open, Allow atomically reserves one of ProbeLimit probe slots so
// that concurrent requests cannot exceed the probe budget. A slot is released
// when the outcome of the probe is recorded.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker's current state.
type State int

const (
	// StateClosed — normal operation; requests pass through.
	StateClosed State = iota
	// StateOpen — provider is considered failing; requests are rejected immediately.
	StateOpen
	// StateHalfOpen — circuit is testing recovery with a bounded number of probes.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker guards a single downstream provider.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	inFlightProbes      int
	failureThreshold    int
	probeLimit          int
	cooldown            time.Duration
	lastFailureAt       time.Time
}

// New creates a CircuitBreaker. Defaults are applied for zero/negative
// values: failureThreshold=5, probeLimit=2, cooldown=60s.
func New(failureThreshold, probeLimit int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if probeLimit <= 0 {
		probeLimit = 2
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		probeLimit:       probeLimit,
		cooldown:         cooldown,
	}
}

// effectiveState must be called with cb.mu held. It returns the state the
// breaker is in once elapsed cooldown is taken into account, without
// mutating anything.
func (cb *CircuitBreaker) effectiveState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailureAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// State returns the effective state. It is a pure read: the Open→HalfOpen
// transition is only committed by Allow.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveState()
}

// CanAttempt reports whether a call would currently be permitted, without
// reserving a probe slot or committing any transition. The candidate
// registry uses this for circuit filtering; callers about to issue a real
// request must use Allow.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.effectiveState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.inFlightProbes < cb.probeLimit
	default:
		return false
	}
}

// Allow returns true if the request should proceed. As a side effect it
// commits the lazy Open→HalfOpen transition, and while half-open it reserves
// one probe slot, returning false when the probe budget is exhausted. Every
// Allow that returns true while half-open must be matched by exactly one
// RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailureAt) >= cb.cooldown {
		cb.state = StateHalfOpen
		cb.halfOpenSuccesses = 0
		cb.inFlightProbes = 0
	}
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.inFlightProbes >= cb.probeLimit {
			return false
		}
		cb.inFlightProbes++
		return true
	default:
		return false
	}
}

// RecordSuccess notifies the breaker that a call succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateHalfOpen:
		if cb.inFlightProbes > 0 {
			cb.inFlightProbes--
		}
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.probeLimit {
			cb.state = StateClosed
			cb.consecutiveFailures = 0
			cb.halfOpenSuccesses = 0
			cb.inFlightProbes = 0
		}
	case StateClosed:
		cb.consecutiveFailures = 0
	}
}

// RecordFailure notifies the breaker that a call failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailureAt = time.Now()
	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		if cb.inFlightProbes > 0 {
			cb.inFlightProbes--
		}
		cb.state = StateOpen
		cb.halfOpenSuccesses = 0
		cb.consecutiveFailures++
	case StateOpen:
		cb.consecutiveFailures++
	}
}

// Snapshot is a point-in-time view of the breaker for health reporting.
type Snapshot struct {
	State               State     `json:"-"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	InFlightProbes      int       `json:"in_flight_probes"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
}

// Snapshot returns the breaker's effective state and counters. Like State,
// it never mutates, so repeated snapshots with no intervening traffic are
// identical.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:               cb.effectiveState(),
		ConsecutiveFailures: cb.consecutiveFailures,
		InFlightProbes:      cb.inFlightProbes,
		LastFailureAt:       cb.lastFailureAt,
	}
}
