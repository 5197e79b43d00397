// Package anterior implements the Anterior Reasoner (C5): it consumes a
// resonance record and produces an initial verdict, optionally consulting
// an external language-model adapter. An adapter failure never propagates
// to the orchestrator — it degrades locally to a low-confidence verdict.
package anterior

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/octoreflex/cognition/internal/resonator"
)

// Adapter is the external reasoning capability C5 may consult. It may
// suspend on ctx.
type Adapter interface {
	Reason(ctx context.Context, resonance resonator.Record) (Verdict, error)
}

// Verdict is C5's output: a free-form value plus a confidence.
type Verdict struct {
	ID         string    `json:"id"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	ProducedAt time.Time `json:"produced_at"`
	UpstreamID string    `json:"upstream_id,omitempty"`
}

// Reasoner produces verdicts from resonance records. A nil Adapter always
// takes the fallback path.
type Reasoner struct {
	adapter Adapter
}

// New builds a Reasoner. adapter may be nil.
func New(adapter Adapter) *Reasoner {
	return &Reasoner{adapter: adapter}
}

// Reason never fails: if the adapter is absent, errors, or produces an
// empty value, the reasoner returns a diagnostic verdict with
// confidence <= 0.5 instead of propagating the failure.
func (r *Reasoner) Reason(ctx context.Context, resonance resonator.Record) Verdict {
	if r.adapter != nil {
		v, err := r.adapter.Reason(ctx, resonance)
		if err == nil && v.Value != "" {
			if v.ID == "" {
				v.ID = uuid.NewString()
			}
			if v.ProducedAt.IsZero() {
				v.ProducedAt = time.Now().UTC()
			}
			v.UpstreamID = resonance.ID
			return v
		}
		return r.fallback(resonance, err)
	}
	return r.fallback(resonance, nil)
}

// fallback produces a deterministic low-confidence verdict derived purely
// from the resonance record, never exceeding confidence 0.5.
func (r *Reasoner) fallback(resonance resonator.Record, cause error) Verdict {
	confidence := resonance.ResonanceScore * 0.5
	if confidence > 0.5 {
		confidence = 0.5
	}

	diagnostic := "no adapter configured"
	if cause != nil {
		diagnostic = fmt.Sprintf("adapter_error: %v", cause)
	}

	return Verdict{
		ID:         uuid.NewString(),
		Value:      "fallback:" + diagnostic,
		Confidence: confidence,
		ProducedAt: time.Now().UTC(),
		UpstreamID: resonance.ID,
	}
}
