// Package echostack implements EchoStack (C6): a single synchronous step
// that applies a configured bank of weighted logic seeds to a verdict,
// producing a reflection delta and a drift magnitude.
package echostack

import (
	"math"
	"math/rand"

	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/config"
)

// ReflectionDelta is C6's output (spec data model).
type ReflectionDelta struct {
	VerdictID       string   `json:"verdict_id"`
	ReflectionDelta float64  `json:"reflection_delta"`
	DriftMagnitude  float64  `json:"drift_magnitude"`
	ComponentsCount int      `json:"components_count"`
	SeedsApplied    []string `json:"seeds_applied"`
}

// Apply runs the fixed-ordering seed transform over verdict.Confidence
// (the chosen, literal convention for "base" — see design notes) and
// returns the aggregated reflection delta. rng must be seeded per-request
// by the caller so runs are reproducible; the uniform jitter inside the
// nonmonotonic family transform is the only non-determinism.
//
// With zero seeds, returns the zero value of ReflectionDelta (besides
// VerdictID): reflection_delta = 0, drift_magnitude = 0,
// components_count = 0.
func Apply(verdict anterior.Verdict, seeds []config.Seed, rng *rand.Rand) ReflectionDelta {
	base := verdict.Confidence

	components := make([]float64, 0, len(seeds))
	seedsApplied := make([]string, 0, len(seeds))

	for _, s := range seeds {
		components = append(components, transform(s.Family, base, s.Weight, rng))
		seedsApplied = append(seedsApplied, s.ID)
	}

	var sum float64
	for _, c := range components {
		sum += c
	}

	return ReflectionDelta{
		VerdictID:       verdict.ID,
		ReflectionDelta: sum,
		DriftMagnitude:  populationStdDev(components),
		ComponentsCount: len(components),
		SeedsApplied:    seedsApplied,
	}
}

// transform applies the family-specific component formula.
func transform(family config.SeedFamily, base, weight float64, rng *rand.Rand) float64 {
	switch family {
	case config.FamilyNonmonotonic:
		return (base - 0.5) * weight * uniform(rng, 0.8, 1.2)
	case config.FamilyEmpiricist:
		return base * (1 - base) * weight
	case config.FamilyAntifragile:
		return math.Abs(base-0.5) * weight * 2
	case config.FamilyHeuristic:
		return (base + 0.1) * weight
	case config.FamilyParsimony:
		return math.Min(base, 0.8) * weight
	case config.FamilyEthicalGeometric:
		return base * base * weight
	default:
		return base * weight
	}
}

// uniform draws from U(lo, hi) using rng, or the midpoint if rng is nil.
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if rng == nil {
		return (lo + hi) / 2
	}
	return lo + rng.Float64()*(hi-lo)
}

// populationStdDev returns the population (not sample) standard deviation
// of values. 0 when len(values) <= 1.
func populationStdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
