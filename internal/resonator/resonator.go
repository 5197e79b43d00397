// Package resonator implements the Resonator (C4): the pipeline's
// first-stage rapid pattern extractor. It turns a raw stimulus into a
// resonance record using a deterministic fingerprint over the token
// distribution — equivalent inputs always produce equivalent
// resonance_score/patterns within a session.
package resonator

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the resonance record produced by Extract.
type Record struct {
	ID             string    `json:"id"`
	ResonanceScore float64   `json:"resonance_score"`
	Patterns       []string  `json:"patterns"`
	ProducedAt     time.Time `json:"produced_at"`
}

// Extract consumes a stimulus and optional metadata and returns a resonance
// record. ResonanceScore is the normalized Shannon entropy of the token
// distribution over the input (bits of word-choice diversity relative to
// the maximum possible for the token vocabulary observed), clamped to
// [0,1]. Patterns is the deterministic top-5 most frequent tokens, ties
// broken lexicographically.
func Extract(input string, metadata map[string]any) Record {
	tokens := tokenize(input)
	counts := countTokens(tokens)

	return Record{
		ID:             uuid.NewString(),
		ResonanceScore: normalizedEntropy(counts, len(tokens)),
		Patterns:       topPatterns(counts, 5),
		ProducedAt:     time.Now().UTC(),
	}
}

func tokenize(input string) []string {
	fields := strings.Fields(strings.ToLower(input))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
		})
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// normalizedEntropy computes H = -Σ p(t) log2 p(t) over the token
// distribution and normalizes by log2(vocabulary size) so the result lies
// in [0,1]. Returns 0 for an empty or single-token-type input.
func normalizedEntropy(counts map[string]int, total int) float64 {
	if total == 0 || len(counts) <= 1 {
		return 0
	}

	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}

	maxEntropy := math.Log2(float64(len(counts)))
	if maxEntropy <= 0 {
		return 0
	}

	score := h / maxEntropy
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// topPatterns returns the n most frequent tokens, ties broken
// lexicographically for determinism.
func topPatterns(counts map[string]int, n int) []string {
	type kv struct {
		token string
		count int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].token < items[j].token
	})

	if n > len(items) {
		n = len(items)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = items[i].token
	}
	return out
}
