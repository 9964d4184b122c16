package circuitbreaker

import (
	"sync"
	"testing"
	"time"
)

func TestInitialStateClosed(t *testing.T) {
	cb := New(3, 2, 10*time.Second)
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when closed")
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	cb := New(3, 2, 10*time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected Allow=false when open")
	}
}

func TestOpensAtDefaultThreshold(t *testing.T) {
	cb := New(0, 0, 0) // defaults: threshold 5
	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after 4 failures, got %s", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 5 failures, got %s", cb.State())
	}
}

func TestTransitionsToHalfOpenAfterCooldown(t *testing.T) {
	cb := New(1, 2, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open after cooldown, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("expected Allow=true when half_open with free probe slots")
	}
}

func TestStateIsPureRead(t *testing.T) {
	cb := New(1, 2, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	// Reading state repeatedly must not reserve probe slots.
	for i := 0; i < 10; i++ {
		if cb.State() != StateHalfOpen {
			t.Fatalf("read %d: expected half_open, got %s", i, cb.State())
		}
	}
	s := cb.Snapshot()
	if s.InFlightProbes != 0 {
		t.Errorf("in-flight probes = %d after pure reads, want 0", s.InFlightProbes)
	}
}

func TestHalfOpenProbeBudget(t *testing.T) {
	cb := New(1, 2, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("first probe should be allowed")
	}
	if !cb.Allow() {
		t.Fatal("second probe should be allowed")
	}
	if cb.Allow() {
		t.Fatal("third probe should be rejected: budget is 2")
	}

	// Releasing a slot frees budget for another probe.
	cb.RecordSuccess()
	if !cb.Allow() {
		t.Fatal("probe should be allowed again after a slot was released")
	}
}

func TestHalfOpenProbeBudgetConcurrent(t *testing.T) {
	cb := New(1, 3, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 3 {
		t.Fatalf("%d concurrent probes allowed, want exactly 3", allowed)
	}
}

func TestClosesAfterProbeLimitSuccesses(t *testing.T) {
	cb := New(1, 2, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}
	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected still half_open after 1 of 2 successes, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after 2 successes, got %s", cb.State())
	}
	if s := cb.Snapshot(); s.ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d after closing, want 0", s.ConsecutiveFailures)
	}
}

func TestReopensOnFailureInHalfOpen(t *testing.T) {
	cb := New(1, 2, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}
	cb.RecordSuccess()
	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failure in half_open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected Allow=false immediately after reopening")
	}
}

func TestSuccessResetsFailureCountWhileClosed(t *testing.T) {
	cb := New(3, 2, 10*time.Second)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("expected still closed (failure count reset), got %s", cb.State())
	}
}

func TestCanAttemptDoesNotReserve(t *testing.T) {
	cb := New(1, 1, time.Millisecond)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if !cb.CanAttempt() {
			t.Fatalf("CanAttempt %d: expected true", i)
		}
	}
	if !cb.Allow() {
		t.Fatal("probe should still be available after CanAttempt checks")
	}
	if cb.CanAttempt() {
		t.Fatal("CanAttempt should be false with the single probe slot taken")
	}
}
