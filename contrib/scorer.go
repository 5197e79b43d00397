// Package contrib — scorer.go
//
// Plugin interface for custom anterior reasoning adapters.
//
// The cognition loop's Anterior Reasoner (C5) may consult an external
// language-model adapter to produce its verdict. contrib/ is the extension
// point for community-contributed adapters: anything from a hosted LLM
// client to a deterministic rule engine can be registered here and selected
// by name via config (anterior.adapter).
//
// Plugin registration:
//   Plugins register themselves in an init() function using
//   RegisterReasoner(). The process selects the active adapter via config:
//
//     anterior:
//       adapter: "keyword-heuristic"  # default
//       # adapter: "my-custom-reasoner"
//
//   Built-in adapters: "keyword-heuristic" (this file's reference
//   implementation).
//   Community adapters: registered via contrib.RegisterReasoner().
//
// Plugin contract:
//   - Reason() must be goroutine-safe (the orchestrator runs one goroutine
//     per in-flight request and may call concurrently).
//   - Reason() must respect ctx and return promptly on cancellation.
//   - Reason() must not panic (use recover() internally if needed) — a
//     panic would defeat C5's own never-fails contract.
//   - Name() must return a stable, unique string (used as config key).
//
// Example plugin (contrib/reasoners/openai/openai.go):
//
//   package openai
//
//   import (
//     "context"
//     "github.com/octoreflex/cognition/contrib"
//     "github.com/octoreflex/cognition/internal/anterior"
//     "github.com/octoreflex/cognition/internal/resonator"
//   )
//
//   func init() {
//     contrib.RegisterReasoner(&ChatReasoner{})
//   }
//
//   type ChatReasoner struct{}
//
//   func (c *ChatReasoner) Name() string { return "openai-chat" }
//
//   func (c *ChatReasoner) Reason(ctx context.Context, resonance resonator.Record) (anterior.Verdict, error) {
//     // ... call out to a hosted model, translate the response to anterior.Verdict
//   }

package contrib

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/resonator"
)

// ─── Reasoner interface ───────────────────────────────────────────────────

// Reasoner is the interface that custom anterior adapters must implement.
// It satisfies anterior.Adapter directly, so any registered Reasoner can be
// passed straight to anterior.New.
//
// Contract:
//   - Reason() must be goroutine-safe.
//   - Reason() must respect ctx cancellation/deadlines.
//   - Reason() must not panic.
//   - Name() must return a stable, unique string.
type Reasoner interface {
	// Name returns the unique identifier for this adapter. Used as the
	// config key (anterior.adapter).
	Name() string

	// Reason produces a verdict for the given resonance record. An error
	// return is expected and handled by the caller (anterior.Reasoner
	// degrades to a low-confidence fallback) — Reason should return an
	// error rather than panic or block indefinitely.
	Reason(ctx context.Context, resonance resonator.Record) (anterior.Verdict, error)
}

var _ anterior.Adapter = Reasoner(nil)

// ─── Registry ─────────────────────────────────────────────────────────────

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Reasoner)
)

// RegisterReasoner registers a custom anterior adapter.
// Panics if an adapter with the same name is already registered.
// Call from init() functions in plugin packages.
func RegisterReasoner(r Reasoner) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[r.Name()]; exists {
		panic(fmt.Sprintf("contrib: reasoner %q already registered", r.Name()))
	}
	registry[r.Name()] = r
}

// GetReasoner returns the registered adapter with the given name.
// Returns an error if no adapter with that name is registered.
func GetReasoner(name string) (Reasoner, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("contrib: reasoner %q not registered (available: %v)", name, listNames())
	}
	return r, nil
}

// ListReasoners returns the names of all registered adapters.
func ListReasoners() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listNames()
}

func listNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ─── Example contrib reasoner: keyword heuristic ─────────────────────────
// This is provided as a reference implementation in the contrib package
// itself. Community reasoners should be in contrib/reasoners/<name>/<name>.go.

// KeywordReasoner is a simple lexicon-weighted heuristic adapter: it scores
// a verdict's confidence from the overlap between resonance.Patterns and a
// small fixed lexicon of affect-bearing keywords: confidence blends the
// weight of the highest-weighted matched keyword with the resonance score,
// and the number of matches does not raise it. Registered as
// "keyword-heuristic".
type KeywordReasoner struct{}

func init() {
	RegisterReasoner(&KeywordReasoner{})
}

func (k *KeywordReasoner) Name() string { return "keyword-heuristic" }

var affectLexicon = map[string]float64{
	"grief":   0.9,
	"sorrow":  0.85,
	"joy":     0.9,
	"wonder":  0.8,
	"fear":    0.75,
	"anger":   0.75,
	"trust":   0.7,
	"hope":    0.8,
	"doubt":   0.6,
	"clarity": 0.7,
}

func (k *KeywordReasoner) Reason(ctx context.Context, resonance resonator.Record) (anterior.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return anterior.Verdict{}, fmt.Errorf("keyword-heuristic: %w", err)
	}

	var best string
	var bestWeight float64
	var matched int
	for _, p := range resonance.Patterns {
		if w, ok := affectLexicon[strings.ToLower(p)]; ok {
			matched++
			if w > bestWeight {
				bestWeight = w
				best = p
			}
		}
	}

	if matched == 0 {
		return anterior.Verdict{}, fmt.Errorf("keyword-heuristic: no lexicon overlap in %d patterns", len(resonance.Patterns))
	}

	confidence := bestWeight*0.6 + resonance.ResonanceScore*0.4
	if confidence > 1.0 {
		confidence = 1.0
	}

	return anterior.Verdict{
		ID:         uuid.NewString(),
		Value:      fmt.Sprintf("lexicon-match:%s", best),
		Confidence: confidence,
		ProducedAt: time.Now().UTC(),
		UpstreamID: resonance.ID,
	}, nil
}
