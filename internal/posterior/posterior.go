// Package posterior implements the Posterior Reasoner (C8): recursive
// rethinking cycles over a stabilized reflection, with maleficence and
// manipulation detectors that may escalate the outcome for advisory
// harmonizer review. Escalation never blocks articulation.
package posterior

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/corekit"
	"github.com/octoreflex/cognition/internal/echoripple"
	"github.com/octoreflex/cognition/internal/harmonizer"
)

// Stability is the closed set of posterior outcome labels.
type Stability string

const (
	StabilityValidated Stability = "validated"
	StabilityEscalated Stability = "escalated"
)

// CycleResult is one rethinking cycle's output.
type CycleResult struct {
	DriftScore         float64 `json:"drift_score"`
	ConfidenceModifier float64 `json:"confidence_modifier"`
	PhilosopherSeed    string  `json:"philosopher_seed,omitempty"`
	SystemSeeds        []string `json:"system_seeds,omitempty"`
}

// Outcome is C8's output (spec data model).
type Outcome struct {
	SequenceID         string        `json:"sequence_id"`
	CyclesExecuted     int           `json:"cycles_executed"`
	CycleResults       []CycleResult `json:"cycle_results"`
	FinalStability     Stability     `json:"final_stability"`
	EscalationRequired bool          `json:"escalation_required"`
	EscalationReason   string        `json:"escalation_reason,omitempty"`
	HarmonizerVerdict  string        `json:"harmonizer_verdict,omitempty"`
}

const (
	philosopherPerCycle = 1
	systemPerCycle      = 4
)

// Run executes M_base (extending to M_ext when warranted) rethinking
// cycles over ripple, using cfg's thresholds, and consults h for advisory
// escalation logging. rng must be seeded per-request for reproducibility.
//
// Returns (zero-value, false) if ctx is cancelled during an inter-cycle
// delay: the caller discards the partial outcome and emits no audit entry.
func Run(ctx context.Context, sequenceID string, ripple echoripple.StabilizedReflection, seeds []config.Seed, cfg config.PosteriorConfig, h *harmonizer.Harmonizer, rng *rand.Rand) (Outcome, bool) {
	interval := time.Duration(cfg.IntervalMS) * time.Millisecond
	base := corekit.Clamp(absFloat(ripple.Delta), 0, 1)

	philosophers := byFamily(seeds, config.FamilyPhilosopher)
	systems := byFamily(seeds, config.FamilySystem)

	results := make([]CycleResult, 0, cfg.ExtendedCycles)

	runCycles := func(n int) bool {
		for i := 0; i < n; i++ {
			if len(results) > 0 {
				timer := time.NewTimer(interval)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return false
				}
			}
			results = append(results, runCycle(base, philosophers, systems, rng))
		}
		return true
	}

	if !runCycles(cfg.BaseCycles) {
		return Outcome{}, false
	}

	if shouldExtend(results, cfg) && cfg.ExtendedCycles > len(results) {
		if !runCycles(cfg.ExtendedCycles - len(results)) {
			return Outcome{}, false
		}
	}

	malDetected, hackDetected := detect(results, cfg)
	outcome := Outcome{
		SequenceID:     sequenceID,
		CyclesExecuted: len(results),
		CycleResults:   results,
		FinalStability: StabilityValidated,
	}

	if malDetected || hackDetected {
		reasons := make([]string, 0, 2)
		if malDetected {
			reasons = append(reasons, "maleficence")
		}
		if hackDetected {
			reasons = append(reasons, "manipulation")
		}
		outcome.FinalStability = StabilityEscalated
		outcome.EscalationRequired = true
		outcome.EscalationReason = strings.Join(reasons, ",")

		old := map[string]any{"stability": string(StabilityValidated), "moral": 0.0}
		newp := map[string]any{"stability": string(StabilityEscalated), "reason": outcome.EscalationReason, "moral": -float64(len(reasons)) * 0.5}
		drift, adjusted := h.Reflect(old, newp, 0, 1)
		if digest, err := h.DecisionHash(old, newp, drift, adjusted); err == nil {
			outcome.HarmonizerVerdict = digest
		}
	}

	return outcome, true
}

// runCycle computes one rethinking cycle's drift_score and
// confidence_modifier from the seeds sampled for it.
func runCycle(base float64, philosophers, systems []config.Seed, rng *rand.Rand) CycleResult {
	phil := sampleSeeds(philosophers, philosopherPerCycle, rng)
	sys := sampleSeeds(systems, systemPerCycle, rng)

	weights := make([]float64, 0, len(phil)+len(sys))
	names := make([]string, 0, len(phil)+len(sys))
	for _, s := range phil {
		weights = append(weights, s.Weight)
		names = append(names, s.ID)
	}
	for _, s := range sys {
		weights = append(weights, s.Weight)
	}

	avgWeight := 1.0
	if len(weights) > 0 {
		var sum float64
		for _, w := range weights {
			sum += w
		}
		avgWeight = sum / float64(len(weights))
	}

	driftScore := corekit.Clamp(base*avgWeight*uniform(rng, 0.85, 1.15), 0, 1)
	confidenceModifier := corekit.Clamp(uniform(rng, -0.3, 0.3)*avgWeight, -0.3, 0.3)

	result := CycleResult{DriftScore: driftScore, ConfidenceModifier: confidenceModifier}
	if len(phil) > 0 {
		result.PhilosopherSeed = phil[0].ID
	}
	for _, s := range sys {
		result.SystemSeeds = append(result.SystemSeeds, s.ID)
	}
	return result
}

// shouldExtend reports whether any cycle so far exceeds the drift
// threshold, or either detector already fires over the base run.
func shouldExtend(results []CycleResult, cfg config.PosteriorConfig) bool {
	for _, r := range results {
		if r.DriftScore > cfg.DriftThreshold {
			return true
		}
	}
	mal, hack := detect(results, cfg)
	return mal || hack
}

// detect evaluates the maleficence and manipulation detectors over results.
// Fewer than two cycles never trip either detector.
func detect(results []CycleResult, cfg config.PosteriorConfig) (maleficence, manipulation bool) {
	if len(results) < 2 {
		return false, false
	}

	var highDrift, lowConfidence int
	drifts := make([]float64, len(results))
	confidences := make([]float64, len(results))
	for i, r := range results {
		drifts[i] = r.DriftScore
		confidences[i] = r.ConfidenceModifier
		if r.DriftScore > cfg.DriftThreshold {
			highDrift++
		}
		if r.ConfidenceModifier < 0 {
			lowConfidence++
		}
	}

	n := float64(len(results))
	highDriftRate := float64(highDrift) / n
	lowConfidenceRate := float64(lowConfidence) / n
	maleficence = highDriftRate*lowConfidenceRate > cfg.MalThreshold*cfg.MalWeight

	manipulation = (variance(drifts)+variance(confidences))/2 > cfg.HackThreshold*cfg.HackSensitivity

	return maleficence, manipulation
}

func byFamily(seeds []config.Seed, family config.SeedFamily) []config.Seed {
	out := make([]config.Seed, 0, len(seeds))
	for _, s := range seeds {
		if s.Family == family {
			out = append(out, s)
		}
	}
	return out
}

func sampleSeeds(seeds []config.Seed, k int, rng *rand.Rand) []config.Seed {
	if k > len(seeds) {
		k = len(seeds)
	}
	if k == 0 {
		return nil
	}
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

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
