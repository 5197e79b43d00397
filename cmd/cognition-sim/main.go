// Package main — cmd/cognition-sim/main.go
//
// Cognition Loop Monte Carlo harness.
//
// Purpose: exercise EchoRipple (C7) and the Posterior Reasoner (C8) across
// many synthetic verdicts before release, to characterize how ripple
// stability and posterior escalation behave across the confidence range a
// real Anterior Reasoner might hand them — without needing a live pipeline
// or consent wait.
//
// Per trial: a synthetic anterior.Verdict is drawn with confidence sampled
// uniformly from [0, 1), run through
// echostack.Apply using the configured seed bank, then through
// echoripple.Run and posterior.Run using the configured cycle and
// detector parameters.
//
// Output: per-trial CSV to stdout (trial, confidence, reflection_delta,
// drift_magnitude, stability_score, consensus, posterior_cycles,
// escalated).
// Summary: escalation rate and consensus distribution to stderr.
//
// Usage:
//
//	cognition-sim [flags]
//	cognition-sim -trials 10000 -config /etc/cognition/config.yaml
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/echoripple"
	"github.com/octoreflex/cognition/internal/echostack"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/posterior"
)

func main() {
	trials := flag.Int("trials", 10000, "Number of synthetic verdicts to simulate")
	configPath := flag.String("config", "", "Path to config.yaml (optional; defaults applied if empty)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for trial generation")
	maxEscalationRate := flag.Float64("max-escalation-rate", 0.5, "Fail if the observed escalation rate exceeds this fraction")
	flag.Parse()

	if *trials < 1 {
		fmt.Fprintln(os.Stderr, "ERROR: trials must be >= 1")
		os.Exit(1)
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: config load failed: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	rng := rand.New(rand.NewSource(*seed))
	harm := harmonizer.New(cfg.Harmonizer.DriftThreshold, cfg.Harmonizer.MoralThreshold)

	sim := NewSimulator(cfg, harm)
	results := sim.Run(*trials, rng)

	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"trial", "confidence", "reflection_delta", "drift_magnitude", "stability_score", "consensus", "posterior_cycles", "escalated"})
	for _, r := range results {
		_ = w.Write([]string{
			strconv.Itoa(r.Trial),
			strconv.FormatFloat(r.Confidence, 'f', 6, 64),
			strconv.FormatFloat(r.ReflectionDelta, 'f', 6, 64),
			strconv.FormatFloat(r.DriftMagnitude, 'f', 6, 64),
			strconv.FormatFloat(r.StabilityScore, 'f', 6, 64),
			string(r.Consensus),
			strconv.Itoa(r.PosteriorCycles),
			strconv.FormatBool(r.Escalated),
		})
	}
	w.Flush()

	var escalated, timedOut int
	consensusCounts := map[echoripple.Consensus]int{}
	var stabilitySum float64
	for _, r := range results {
		if r.Escalated {
			escalated++
		}
		if r.TimedOut {
			timedOut++
		}
		consensusCounts[r.Consensus]++
		stabilitySum += r.StabilityScore
	}
	escalationRate := float64(escalated) / float64(*trials)

	fmt.Fprintf(os.Stderr, "\n=== COGNITION LOOP SIMULATION SUMMARY ===\n")
	fmt.Fprintf(os.Stderr, "Trials:                %d\n", *trials)
	fmt.Fprintf(os.Stderr, "Mean stability score:  %.4f\n", stabilitySum/float64(*trials))
	fmt.Fprintf(os.Stderr, "Escalation rate:       %.4f (%d/%d)\n", escalationRate, escalated, *trials)
	fmt.Fprintf(os.Stderr, "Timed out / cancelled: %d\n", timedOut)
	for consensus, count := range consensusCounts {
		fmt.Fprintf(os.Stderr, "Consensus %-18s %d (%.1f%%)\n", string(consensus)+":", count, 100*float64(count)/float64(*trials))
	}

	if escalationRate > *maxEscalationRate {
		fmt.Fprintf(os.Stderr, "RESULT: FAIL — escalation rate %.4f exceeds bound %.4f\n", escalationRate, *maxEscalationRate)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "RESULT: PASS — escalation rate within bound\n")
}

// TrialResult holds one simulated verdict's outcome through EchoStack,
// EchoRipple, and the Posterior Reasoner.
type TrialResult struct {
	Trial           int
	Confidence      float64
	ReflectionDelta float64
	DriftMagnitude  float64
	StabilityScore  float64
	Consensus       echoripple.Consensus
	PosteriorCycles int
	Escalated       bool
	TimedOut        bool
}

// Simulator drives synthetic verdicts through EchoStack, EchoRipple, and
// the Posterior Reasoner using one fixed configuration.
type Simulator struct {
	cfg  config.Config
	harm *harmonizer.Harmonizer
}

// NewSimulator builds a Simulator bound to cfg and harm.
func NewSimulator(cfg config.Config, harm *harmonizer.Harmonizer) *Simulator {
	return &Simulator{cfg: cfg, harm: harm}
}

// Run executes n independent trials, each with its own synthetic verdict
// and its own downstream rng draw, and returns one TrialResult per trial.
// Complexity: O(n * (echoripple.cycles + posterior.extended_cycles)).
func (s *Simulator) Run(n int, rng *rand.Rand) []TrialResult {
	results := make([]TrialResult, n)
	ctx := context.Background()

	for i := 0; i < n; i++ {
		confidence := rng.Float64()
		verdict := anterior.Verdict{
			ID:         fmt.Sprintf("sim-%d", i),
			Value:      "synthetic",
			Confidence: confidence,
			ProducedAt: time.Now().UTC(),
		}

		delta := echostack.Apply(verdict, s.cfg.Seeds, rng)

		ripple, ok := echoripple.Run(ctx, delta, s.cfg.Seeds, s.cfg.Ripple.Cycles, s.cfg.RippleInterval(), s.cfg.Ripple.SampleSize, rng)
		if !ok {
			results[i] = TrialResult{Trial: i, Confidence: confidence, TimedOut: true}
			continue
		}

		outcome, ok := posterior.Run(ctx, verdict.ID, ripple, s.cfg.Seeds, s.cfg.Posterior, s.harm, rng)
		if !ok {
			results[i] = TrialResult{Trial: i, Confidence: confidence, TimedOut: true}
			continue
		}

		results[i] = TrialResult{
			Trial:           i,
			Confidence:      confidence,
			ReflectionDelta: delta.ReflectionDelta,
			DriftMagnitude:  delta.DriftMagnitude,
			StabilityScore:  ripple.StabilityScore,
			Consensus:       ripple.Consensus,
			PosteriorCycles: outcome.CyclesExecuted,
			Escalated:       outcome.EscalationRequired,
		}
	}

	return results
}
