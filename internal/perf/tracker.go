// Package perf tracks rolling call statistics per provider: total, success
// and failure counters plus a running mean latency computed over successful
// calls only. Each provider gets its own Tracker with its own mutex.
package perf

import (
	"sync"
	"time"
)

// Tracker accumulates call outcomes for a single provider. The zero value
// is not usable; create with New.
type Tracker struct {
	mu              sync.Mutex
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	avgLatencyMS    float64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// RecordSuccess records a successful call and folds its latency into the
// running mean. Failed calls never influence the mean.
func (t *Tracker) RecordSuccess(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCalls++
	t.successfulCalls++
	ms := float64(latency) / float64(time.Millisecond)
	// Welford-style incremental mean; avoids keeping a latency history.
	t.avgLatencyMS += (ms - t.avgLatencyMS) / float64(t.successfulCalls)
}

// RecordFailure records a failed call.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCalls++
	t.failedCalls++
}

// Snapshot is a point-in-time copy of a provider's counters.
type Snapshot struct {
	TotalCalls      int64   `json:"total_calls"`
	SuccessfulCalls int64   `json:"successful_calls"`
	FailedCalls     int64   `json:"failed_calls"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
}

// Snapshot returns a copy of the current counters. Pure read.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TotalCalls:      t.totalCalls,
		SuccessfulCalls: t.successfulCalls,
		FailedCalls:     t.failedCalls,
		AvgLatencyMS:    t.avgLatencyMS,
	}
}

// FailureRate returns the fraction of all recorded calls that failed,
// or 0 when nothing has been recorded yet.
func (s Snapshot) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.FailedCalls) / float64(s.TotalCalls)
}
