// Package main — pipeline-latency/main.go
//
// Measures end-to-end latency of a single orchestrator.Submit() call: the
// full RESONATE -> ANTERIOR -> ECHOSTACK -> ECHORIPPLE -> POSTERIOR ->
// HARMONIZE -> CONSENT -> ARTICULATE run, using an always-approve consent
// mode so no run blocks on a human signal.
//
// Output CSV columns: iteration, latency_us, status
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
	"github.com/octoreflex/cognition/internal/articulator"
	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/consent"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/orchestrator"
	"github.com/octoreflex/cognition/internal/vault"
)

type nullSpeaker struct{}

func (nullSpeaker) Speak(ctx context.Context, text, style string) error { return nil }

func main() {
	iterations := flag.Int("iterations", 1000, "Number of pipeline runs to measure")
	outputFile := flag.String("output", "pipeline_latency.csv", "Output CSV file path")
	flag.Parse()

	cfg := config.Defaults()
	cfg.Consent.Mode = config.ConsentAlwaysYes

	harm := harmonizer.New(cfg.Harmonizer.DriftThreshold, cfg.Harmonizer.MoralThreshold)
	store := vault.NewMemStore(harm)
	auth := consent.New(cfg.Consent.Mode, store, nil, 1)
	reasoner := anterior.New(nil)
	art := articulator.New(nullSpeaker{})

	orch := orchestrator.New(reasoner, auth, harm, art, store, cfg.Seeds, cfg.Orchestrator, cfg.Ripple, cfg.Posterior, cfg.ConsentDefaultTimeout(), nil)

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"iteration", "latency_us", "status"})

	var buckets [1000001]int // histogram in microseconds, 0-1s

	for i := 0; i < *iterations; i++ {
		req := orchestrator.Request{ID: fmt.Sprintf("bench-%d", i), Input: "benchmark stimulus"}
		rng := rand.New(rand.NewSource(int64(i)))

		start := time.Now()
		result, _ := orch.Submit(context.Background(), req, rng)
		latency := time.Since(start)

		latencyUs := int(latency.Microseconds())
		if latencyUs < len(buckets) {
			buckets[latencyUs]++
		}

		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(latencyUs),
			string(result.Status),
		})
	}

	p50, p95, p99 := computePercentiles(buckets[:], *iterations)

	fmt.Printf("Pipeline Latency Results (%d iterations)\n", *iterations)
	fmt.Printf("  p50: %dµs\n", p50)
	fmt.Printf("  p95: %dµs\n", p95)
	fmt.Printf("  p99: %dµs\n", p99)
	fmt.Printf("  Output: %s\n", *outputFile)
}

func computePercentiles(hist []int, total int) (p50, p95, p99 int) {
	targets := []struct {
		pct float64
		out *int
	}{
		{0.50, &p50},
		{0.95, &p95},
		{0.99, &p99},
	}
	cumulative := 0
	ti := 0
	for i, count := range hist {
		cumulative += count
		for ti < len(targets) && float64(cumulative) >= targets[ti].pct*float64(total) {
			*targets[ti].out = i
			ti++
		}
		if ti == len(targets) {
			break
		}
	}
	return
}
