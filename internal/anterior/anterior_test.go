package anterior

import (
	"context"
	"errors"
	"testing"

	"github.com/octoreflex/cognition/internal/resonator"
)

type stubAdapter struct {
	verdict Verdict
	err     error
}

func (s stubAdapter) Reason(ctx context.Context, resonance resonator.Record) (Verdict, error) {
	return s.verdict, s.err
}

func TestReason_NilAdapterFallsBackWithLowConfidence(t *testing.T) {
	r := New(nil)
	v := r.Reason(context.Background(), resonator.Record{ID: "r1", ResonanceScore: 0.8})
	if v.Confidence > 0.5 {
		t.Fatalf("fallback confidence must be <= 0.5, got %v", v.Confidence)
	}
	if v.UpstreamID != "r1" {
		t.Fatalf("upstream_id = %q, want r1", v.UpstreamID)
	}
}

func TestReason_AdapterErrorNeverPropagates(t *testing.T) {
	r := New(stubAdapter{err: errors.New("adapter down")})
	v := r.Reason(context.Background(), resonator.Record{ID: "r1", ResonanceScore: 0.9})
	if v.Confidence > 0.5 {
		t.Fatalf("degraded confidence must be <= 0.5, got %v", v.Confidence)
	}
	if v.Value == "" {
		t.Fatal("expected a diagnostic value on adapter failure")
	}
}

func TestReason_AdapterSuccessPassesThrough(t *testing.T) {
	r := New(stubAdapter{verdict: Verdict{Value: "engaged", Confidence: 0.93}})
	v := r.Reason(context.Background(), resonator.Record{ID: "r1"})
	if v.Value != "engaged" || v.Confidence != 0.93 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if v.UpstreamID != "r1" {
		t.Fatalf("upstream_id = %q, want r1", v.UpstreamID)
	}
}
