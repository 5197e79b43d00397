// Package echoripple implements EchoRipple (C7): N time-spaced randomized
// cycles over the EchoStack output, producing a stabilized reflection with
// a consensus label.
package echoripple

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/corekit"
	"github.com/octoreflex/cognition/internal/echostack"
)

// Consensus is the closed set of EchoRipple consensus labels.
type Consensus string

const (
	ConsensusPositive Consensus = "positive_resonance"
	ConsensusNegative Consensus = "negative_resonance"
	ConsensusNeutral  Consensus = "neutral_stability"
)

// StabilizedReflection is C7's output (spec data model).
type StabilizedReflection struct {
	Delta            float64   `json:"delta"`
	Magnitude        float64   `json:"magnitude"`
	StabilityScore   float64   `json:"stability_score"`
	CyclesCompleted  int       `json:"cycles_completed"`
	Consensus        Consensus `json:"consensus"`
	Timestamp        time.Time `json:"timestamp"`
}

// paradoxDampenerThreshold halves any adjustment whose magnitude exceeds it.
const paradoxDampenerThreshold = 2.0

// Run executes cycles cooperative-delay cycles over delta, sampling
// sampleSize seeds without replacement from seeds each cycle. rng must be
// seeded per-request for reproducibility.
//
// If ctx is cancelled during an inter-cycle delay, Run returns
// (zero-value, false): the partially-assembled reflection is discarded and
// the caller must not emit an audit entry for this run.
func Run(ctx context.Context, delta echostack.ReflectionDelta, seeds []config.Seed, cycles int, interval time.Duration, sampleSize int, rng *rand.Rand) (StabilizedReflection, bool) {
	currentDelta := delta.ReflectionDelta
	cycleOutputs := make([]float64, 0, cycles)

	k := sampleSize
	if k > len(seeds) {
		k = len(seeds)
	}

	for i := 0; i < cycles; i++ {
		if i > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return StabilizedReflection{}, false
			}
		}

		var cycleOutput float64
		if k == 0 {
			// Empty seed bank: neutral identity adjustment (spec boundary
			// behavior), independent of currentDelta.
			cycleOutput = 0
		} else {
			chosen := sampleWithoutReplacement(seeds, k, rng)
			var sum float64
			for _, s := range chosen {
				adjustment := currentDelta * s.Weight * uniform(rng, 0.9, 1.1)
				if math.Abs(adjustment) > paradoxDampenerThreshold {
					adjustment /= 2
				}
				sum += adjustment
			}
			cycleOutput = sum / float64(len(chosen))
		}

		currentDelta = cycleOutput
		cycleOutputs = append(cycleOutputs, cycleOutput)
	}

	finalDelta := mean(cycleOutputs)
	stabilityScore := corekit.Clamp(1-delta.DriftMagnitude/math.Max(math.Abs(finalDelta), 0.1), 0, 1)

	return StabilizedReflection{
		Delta:           finalDelta,
		Magnitude:       delta.DriftMagnitude,
		StabilityScore:  stabilityScore,
		CyclesCompleted: len(cycleOutputs),
		Consensus:       classify(finalDelta),
		Timestamp:       time.Now().UTC(),
	}, true
}

func classify(finalDelta float64) Consensus {
	switch {
	case finalDelta > 0.5:
		return ConsensusPositive
	case finalDelta < -0.5:
		return ConsensusNegative
	default:
		return ConsensusNeutral
	}
}

// sampleWithoutReplacement draws k distinct seeds uniformly from seeds.
func sampleWithoutReplacement(seeds []config.Seed, k int, rng *rand.Rand) []config.Seed {
	pool := make([]config.Seed, len(seeds))
	copy(pool, seeds)
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if rng == nil {
		return (lo + hi) / 2
	}
	return lo + rng.Float64()*(hi-lo)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
