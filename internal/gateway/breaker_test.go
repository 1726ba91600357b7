package gateway

import (
	"testing"
	"time"
)

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	if !b.TryAcquire() {
		t.Fatalf("closed breaker should allow calls")
	}
	b.OnFailure()
	if b.State() != open {
		t.Fatalf("expected open after threshold")
	}
	if b.TryAcquire() {
		t.Fatalf("open breaker should reject before cool-down")
	}

	now = now.Add(2 * time.Second)
	if !b.TryAcquire() {
		t.Fatalf("expected a probe after cool-down")
	}
	if b.TryAcquire() {
		t.Fatalf("only one probe may be in flight")
	}

	b.OnNeutral()
	if !b.TryAcquire() {
		t.Fatalf("neutral outcome should release the probe")
	}

	b.OnSuccess()
	if b.State() != closed {
		t.Fatalf("expected closed after successful probe")
	}
}

func TestBreaker_RetryIn(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(1, 3*time.Second)
	b.now = func() time.Time { return now }

	if got := b.RetryIn(); got != 0 {
		t.Fatalf("closed breaker RetryIn = %v, want 0", got)
	}
	b.OnFailure()

	now = now.Add(time.Second)
	if got := b.RetryIn(); got != 2*time.Second {
		t.Fatalf("RetryIn = %v, want 2s", got)
	}
}
