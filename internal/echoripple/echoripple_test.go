package echoripple

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/echostack"
)

func TestRun_EmptySeedBankReportsNeutralStability(t *testing.T) {
	delta := echostack.ReflectionDelta{VerdictID: "v1", ReflectionDelta: 0.9, DriftMagnitude: 0.2}
	out, ok := Run(context.Background(), delta, nil, 5, time.Millisecond, 3, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("expected completion, got cancellation")
	}
	if out.CyclesCompleted != 5 {
		t.Fatalf("cycles_completed = %d, want 5", out.CyclesCompleted)
	}
	if out.Consensus != ConsensusNeutral {
		t.Fatalf("consensus = %q, want neutral_stability", out.Consensus)
	}
}

func TestRun_StabilityScoreInBounds(t *testing.T) {
	delta := echostack.ReflectionDelta{VerdictID: "v1", ReflectionDelta: 0.6, DriftMagnitude: 0.4}
	seeds := []config.Seed{
		{ID: "s1", Family: config.FamilyHeuristic, Weight: 1.1},
		{ID: "s2", Family: config.FamilyParsimony, Weight: 0.8},
		{ID: "s3", Family: config.FamilyEmpiricist, Weight: 1.0},
	}
	out, ok := Run(context.Background(), delta, seeds, 5, time.Millisecond, 3, rand.New(rand.NewSource(7)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.StabilityScore < 0 || out.StabilityScore > 1 {
		t.Fatalf("stability_score = %v, out of [0,1]", out.StabilityScore)
	}
}

func TestRun_CyclesCompletedMatchesConfiguredCount(t *testing.T) {
	delta := echostack.ReflectionDelta{VerdictID: "v1", ReflectionDelta: 0.3, DriftMagnitude: 0.1}
	seeds := []config.Seed{{ID: "s1", Family: config.FamilyNonmonotonic, Weight: 1.0}}
	out, ok := Run(context.Background(), delta, seeds, 5, time.Millisecond, 3, rand.New(rand.NewSource(3)))
	if !ok {
		t.Fatal("expected completion")
	}
	if out.CyclesCompleted != 5 {
		t.Fatalf("cycles_completed = %d, want 5", out.CyclesCompleted)
	}
}

func TestRun_CancellationDuringDelayDiscardsPartialReflection(t *testing.T) {
	delta := echostack.ReflectionDelta{VerdictID: "v1", ReflectionDelta: 0.5, DriftMagnitude: 0.2}
	seeds := []config.Seed{{ID: "s1", Family: config.FamilyHeuristic, Weight: 1.0}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	out, ok := Run(ctx, delta, seeds, 5, 50*time.Millisecond, 3, rand.New(rand.NewSource(1)))
	if ok {
		t.Fatal("expected cancellation to discard the partial reflection")
	}
	if out != (StabilizedReflection{}) {
		t.Fatalf("expected zero-value reflection on cancellation, got %+v", out)
	}
}

func TestRun_ConsensusClassification(t *testing.T) {
	cases := []struct {
		name      string
		weight    float64
		wantClass Consensus
	}{
		{"strong positive", 5.0, ConsensusPositive},
		{"strong negative", -5.0, ConsensusNegative},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := echostack.ReflectionDelta{VerdictID: "v1", ReflectionDelta: 1.0, DriftMagnitude: 0.1}
			seeds := []config.Seed{{ID: "s1", Family: config.FamilyHeuristic, Weight: tc.weight}}
			out, ok := Run(context.Background(), delta, seeds, 5, time.Millisecond, 1, rand.New(rand.NewSource(1)))
			if !ok {
				t.Fatal("expected completion")
			}
			if out.Consensus != tc.wantClass {
				t.Fatalf("consensus = %q, want %q (final_delta=%v)", out.Consensus, tc.wantClass, out.Delta)
			}
		})
	}
}
