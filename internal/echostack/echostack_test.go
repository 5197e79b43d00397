package echostack

import (
	"math/rand"
	"testing"

	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/config"
)

func TestApply_ZeroSeedsReturnsZero(t *testing.T) {
	verdict := anterior.Verdict{ID: "v1", Confidence: 0.7}
	out := Apply(verdict, nil, rand.New(rand.NewSource(1)))

	if out.ReflectionDelta != 0 || out.DriftMagnitude != 0 || out.ComponentsCount != 0 {
		t.Fatalf("expected {0,0,0}, got %+v", out)
	}
	if out.VerdictID != "v1" {
		t.Fatalf("verdict_id = %q, want v1", out.VerdictID)
	}
}

func TestApply_DeterministicForNonJitteredFamilies(t *testing.T) {
	verdict := anterior.Verdict{ID: "v1", Confidence: 0.6}
	seeds := []config.Seed{
		{ID: "s1", Family: config.FamilyEmpiricist, Weight: 1.0},
		{ID: "s2", Family: config.FamilyParsimony, Weight: 2.0},
	}
	out1 := Apply(verdict, seeds, rand.New(rand.NewSource(1)))
	out2 := Apply(verdict, seeds, rand.New(rand.NewSource(2)))

	if out1.ReflectionDelta != out2.ReflectionDelta {
		t.Fatalf("non-jittered families must be deterministic regardless of seed: %v != %v", out1.ReflectionDelta, out2.ReflectionDelta)
	}
}

func TestApply_NonmonotonicIsReproducibleForSameRNGSeed(t *testing.T) {
	verdict := anterior.Verdict{ID: "v1", Confidence: 0.6}
	seeds := []config.Seed{{ID: "s1", Family: config.FamilyNonmonotonic, Weight: 1.0}}

	out1 := Apply(verdict, seeds, rand.New(rand.NewSource(42)))
	out2 := Apply(verdict, seeds, rand.New(rand.NewSource(42)))

	if out1.ReflectionDelta != out2.ReflectionDelta {
		t.Fatalf("same rng seed must reproduce identical output: %v != %v", out1.ReflectionDelta, out2.ReflectionDelta)
	}
}

func TestApply_SingleComponentHasZeroDriftMagnitude(t *testing.T) {
	verdict := anterior.Verdict{ID: "v1", Confidence: 0.5}
	seeds := []config.Seed{{ID: "s1", Family: config.SeedFamily("unspecified"), Weight: 1.0}}
	out := Apply(verdict, seeds, rand.New(rand.NewSource(1)))
	if out.DriftMagnitude != 0 {
		t.Fatalf("single component must have 0 drift_magnitude, got %v", out.DriftMagnitude)
	}
}

func TestApply_SeedsAppliedPreservesOrder(t *testing.T) {
	verdict := anterior.Verdict{ID: "v1", Confidence: 0.5}
	seeds := []config.Seed{
		{ID: "alpha", Family: config.FamilyHeuristic, Weight: 1.0},
		{ID: "beta", Family: config.FamilyParsimony, Weight: 1.0},
	}
	out := Apply(verdict, seeds, rand.New(rand.NewSource(1)))
	if len(out.SeedsApplied) != 2 || out.SeedsApplied[0] != "alpha" || out.SeedsApplied[1] != "beta" {
		t.Fatalf("seeds_applied must preserve configured order, got %v", out.SeedsApplied)
	}
}
