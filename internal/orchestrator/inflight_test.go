package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestInFlightLimiter_AcquireReleaseRoundTrip(t *testing.T) {
	l := NewInFlightLimiter(2)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Remaining() != 1 {
		t.Fatalf("remaining = %d, want 1", l.Remaining())
	}
	l.Release()
	if l.Remaining() != 2 {
		t.Fatalf("remaining = %d, want 2", l.Remaining())
	}
	if l.AcquiredTotal() != 1 || l.ReleasedTotal() != 1 {
		t.Fatalf("unexpected counters: acquired=%d released=%d", l.AcquiredTotal(), l.ReleasedTotal())
	}
}

func TestInFlightLimiter_BlocksAtCapacityUntilCancelled(t *testing.T) {
	l := NewInFlightLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected the second acquire to block until the context expires")
	}
}

func TestInFlightLimiter_CapacityFloorsAtOne(t *testing.T) {
	l := NewInFlightLimiter(0)
	if l.Capacity() != 1 {
		t.Fatalf("capacity = %d, want floor of 1", l.Capacity())
	}
}
