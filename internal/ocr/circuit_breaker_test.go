package ocr

import (
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker()

	if cb.State() != CBClosed {
		t.Errorf("expected initial state to be closed, got %s", cb.StateString())
	}

	if !cb.Allow() {
		t.Error("expected Allow() to return true in closed state")
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(3, 1*time.Second, 1)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	if cb.State() != CBOpen {
		t.Errorf("expected state to be open after 3 failures, got %s", cb.StateString())
	}

	if cb.Allow() {
		t.Error("expected Allow() to return false in open state")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(3, 1*time.Second, 1)

	cb.RecordFailure()
	cb.RecordFailure()

	cb.RecordSuccess()

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CBClosed {
		t.Errorf("expected state to still be closed, got %s", cb.StateString())
	}
}

func TestCircuitBreaker_HalfOpenToOpenOnFailure(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(2, 100*time.Millisecond, 2)

	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(150 * time.Millisecond)
	cb.Allow() // triggers half-open

	cb.RecordFailure()

	if cb.State() != CBOpen {
		t.Errorf("expected state to be open after failure in half-open, got %s", cb.StateString())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker()

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	if cb.State() != CBOpen {
		t.Fatalf("expected state to be open, got %s", cb.StateString())
	}

	cb.Reset()

	if cb.State() != CBClosed {
		t.Errorf("expected state to be closed after reset, got %s", cb.StateString())
	}

	if !cb.Allow() {
		t.Error("expected Allow() to return true after reset")
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker()

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cb.Allow()
			if i%2 == 0 {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
		}(i)
	}

	wg.Wait()

	state := cb.State()
	if state != CBClosed && state != CBOpen && state != CBHalfOpen {
		t.Errorf("invalid state after concurrent access: %d", state)
	}
}
