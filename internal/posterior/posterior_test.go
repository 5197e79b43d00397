package posterior

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/echoripple"
	"github.com/octoreflex/cognition/internal/harmonizer"
)

func baseConfig() config.PosteriorConfig {
	return config.PosteriorConfig{
		BaseCycles:     5,
		ExtendedCycles: 10,
		IntervalMS:     0,
		DriftThreshold: 0.9,
		MalThreshold:   0.9,
		MalWeight:      1.0,
		HackThreshold:  0.9,
		HackSensitivity: 1.0,
	}
}

func seedBank() []config.Seed {
	return []config.Seed{
		{ID: "phil-1", Family: config.FamilyPhilosopher, Weight: 1.0},
		{ID: "sys-1", Family: config.FamilySystem, Weight: 1.0},
		{ID: "sys-2", Family: config.FamilySystem, Weight: 1.0},
		{ID: "sys-3", Family: config.FamilySystem, Weight: 1.0},
		{ID: "sys-4", Family: config.FamilySystem, Weight: 1.0},
	}
}

func TestRun_SingleCycleNeverEscalates(t *testing.T) {
	cfg := baseConfig()
	cfg.BaseCycles = 1
	cfg.ExtendedCycles = 1
	h := harmonizer.New(0.5, 0.5)

	out, ok := Run(context.Background(), "seq-1", echoripple.StabilizedReflection{Delta: 0.9}, seedBank(), cfg, h, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.CyclesExecuted != 1 {
		t.Fatalf("cycles_executed = %d, want 1", out.CyclesExecuted)
	}
	if out.FinalStability != StabilityValidated || out.EscalationRequired {
		t.Fatalf("a single cycle must never escalate, got %+v", out)
	}
}

func TestRun_ZeroThresholdsForceEscalation(t *testing.T) {
	cfg := baseConfig()
	cfg.MalThreshold = 0
	cfg.HackThreshold = 0
	h := harmonizer.New(0.5, 0.5)

	out, ok := Run(context.Background(), "seq-2", echoripple.StabilizedReflection{Delta: 0.8}, seedBank(), cfg, h, rand.New(rand.NewSource(2)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.FinalStability != StabilityEscalated || !out.EscalationRequired {
		t.Fatalf("expected escalation with zero thresholds, got %+v", out)
	}
	if out.EscalationReason == "" {
		t.Fatal("expected a non-empty escalation_reason")
	}
	if out.HarmonizerVerdict == "" {
		t.Fatal("expected a harmonizer_verdict to be recorded on escalation")
	}
	if out.CyclesExecuted <= cfg.BaseCycles {
		t.Fatalf("expected the run to extend past base cycles, got %d", out.CyclesExecuted)
	}
}

func TestRun_CyclesExecutedMatchesBaseOrExtended(t *testing.T) {
	cfg := baseConfig()
	h := harmonizer.New(0.5, 0.5)
	out, ok := Run(context.Background(), "seq-3", echoripple.StabilizedReflection{Delta: 0.1}, seedBank(), cfg, h, rand.New(rand.NewSource(3)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.CyclesExecuted != cfg.BaseCycles && out.CyclesExecuted != cfg.ExtendedCycles {
		t.Fatalf("cycles_executed = %d, want %d or %d", out.CyclesExecuted, cfg.BaseCycles, cfg.ExtendedCycles)
	}
}

func TestRun_EscalationImpliesFinalStabilityEscalated(t *testing.T) {
	cfg := baseConfig()
	cfg.MalThreshold = 0
	h := harmonizer.New(0.5, 0.5)
	out, ok := Run(context.Background(), "seq-4", echoripple.StabilizedReflection{Delta: 0.6}, seedBank(), cfg, h, rand.New(rand.NewSource(4)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.EscalationRequired != (out.FinalStability == StabilityEscalated) {
		t.Fatalf("escalation_required must track final_stability == escalated, got %+v", out)
	}
}

func TestRun_CancellationDuringDelayDiscardsPartialOutcome(t *testing.T) {
	cfg := baseConfig()
	cfg.IntervalMS = 1000
	h := harmonizer.New(0.5, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	out, ok := Run(ctx, "seq-5", echoripple.StabilizedReflection{Delta: 0.5}, seedBank(), cfg, h, rand.New(rand.NewSource(5)))
	if ok {
		t.Fatal("expected cancellation to discard the partial outcome")
	}
	if out.SequenceID != "" || out.CyclesExecuted != 0 || len(out.CycleResults) != 0 {
		t.Fatalf("expected zero-value outcome on cancellation, got %+v", out)
	}
}
