// Package articulator implements the Articulator Adapter (C10): a thin,
// stateless wrapper that forwards a harmonized payload to a Speaker
// capability and records what was actually spoken.
package articulator

import (
	"context"
	"fmt"
	"time"
)

// Speaker is the external voice/output capability. It must return quickly
// or respect ctx.
type Speaker interface {
	Speak(ctx context.Context, text string, style string) error
}

// Payload is the harmonized input C9 hands to the articulator.
type Payload struct {
	FinalVerdict string
	Consensus    bool
	Confidence   float64
	VoiceStyle   string
}

// Record is what was actually articulated, or the reason nothing was.
type Record struct {
	Text         string    `json:"text"`
	Consensus    bool      `json:"consensus"`
	Confidence   float64   `json:"confidence"`
	SpeakerError string    `json:"speaker_error,omitempty"`
	ProducedAt   time.Time `json:"produced_at"`
}

// ErrEmptyVerdict is returned when payload.FinalVerdict is empty; the
// caller must not call Articulate in that case.
var ErrEmptyVerdict = fmt.Errorf("articulator: final_verdict is empty")

// Articulator holds the Speaker capability. Stateless beyond that.
type Articulator struct {
	speaker Speaker
}

// New builds an Articulator backed by speaker. speaker must not be nil.
func New(speaker Speaker) *Articulator {
	return &Articulator{speaker: speaker}
}

// Articulate validates payload.FinalVerdict is non-empty, forwards it to
// the Speaker, and returns a Record of what was sent. A speaker error is
// recorded on the Record rather than returned — it never propagates past
// this call.
func (a *Articulator) Articulate(ctx context.Context, payload Payload) (Record, error) {
	if payload.FinalVerdict == "" {
		return Record{}, ErrEmptyVerdict
	}

	record := Record{
		Text:       payload.FinalVerdict,
		Consensus:  payload.Consensus,
		Confidence: payload.Confidence,
		ProducedAt: time.Now().UTC(),
	}

	if err := a.speaker.Speak(ctx, payload.FinalVerdict, payload.VoiceStyle); err != nil {
		record.SpeakerError = err.Error()
	}

	return record, nil
}
