package articulator

import (
	"context"
	"errors"
	"testing"
)

type stubSpeaker struct {
	err        error
	gotText    string
	gotStyle   string
}

func (s *stubSpeaker) Speak(ctx context.Context, text, style string) error {
	s.gotText = text
	s.gotStyle = style
	return s.err
}

func TestArticulate_EmptyVerdictRejected(t *testing.T) {
	a := New(&stubSpeaker{})
	_, err := a.Articulate(context.Background(), Payload{FinalVerdict: ""})
	if !errors.Is(err, ErrEmptyVerdict) {
		t.Fatalf("expected ErrEmptyVerdict, got %v", err)
	}
}

func TestArticulate_ForwardsToSpeaker(t *testing.T) {
	speaker := &stubSpeaker{}
	a := New(speaker)
	rec, err := a.Articulate(context.Background(), Payload{FinalVerdict: "approved: proceed", Consensus: true, Confidence: 0.8, VoiceStyle: "calm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speaker.gotText != "approved: proceed" || speaker.gotStyle != "calm" {
		t.Fatalf("speaker did not receive expected args: %+v", speaker)
	}
	if rec.SpeakerError != "" {
		t.Fatalf("expected no speaker_error, got %q", rec.SpeakerError)
	}
	if rec.Text != "approved: proceed" || !rec.Consensus || rec.Confidence != 0.8 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestArticulate_SpeakerErrorRecordedNotPropagated(t *testing.T) {
	speaker := &stubSpeaker{err: errors.New("tts unavailable")}
	a := New(speaker)
	rec, err := a.Articulate(context.Background(), Payload{FinalVerdict: "denied"})
	if err != nil {
		t.Fatalf("speaker errors must not propagate, got %v", err)
	}
	if rec.SpeakerError == "" {
		t.Fatal("expected speaker_error to be recorded")
	}
}
