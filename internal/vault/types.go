// Package vault implements the Memory Vault (C1): the exclusive owner of
// every memory shard and of the append-only audit log. All mutating
// operations serialize behind a single writer; reads proceed concurrently
// with each other.
package vault

import "time"

// Tone is the fixed set of resonance tones a shard may carry.
type Tone string

const (
	ToneJoy      Tone = "joy"
	ToneGrief    Tone = "grief"
	ToneFracture Tone = "fracture"
	ToneWonder   Tone = "wonder"
	ToneNeutral  Tone = "neutral"
)

// ResonanceTag is the four-field subjective label attached to a shard.
// Immutable once attached; re-tagging replaces the whole record under
// consent.
type ResonanceTag struct {
	Tone        Tone      `json:"tone"`
	Symbol      string    `json:"symbol"`
	MoralCharge float64   `json:"moral_charge"`
	Intensity   float64   `json:"intensity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Shard is an immutable, content-addressed memory cell.
//
// Invariants: HashSignature always equals the digest of the current
// Payload's canonical serialization; LastModified >= CreatedAt; a shard is
// never mutated in place without a consent-approved transition.
type Shard struct {
	MemoryID      string         `json:"memory_id"`
	Payload       map[string]any `json:"payload"`
	Resonance     ResonanceTag   `json:"resonance"`
	CreatedAt     time.Time      `json:"created_at"`
	LastModified  time.Time      `json:"last_modified"`
	HashSignature string         `json:"hash_signature"`
}

// Action is the closed set of audit entry actions.
type Action string

const (
	ActionStore      Action = "store"
	ActionModify     Action = "modify"
	ActionDelete     Action = "delete"
	// ActionConsent names the consent audit action literally as
	// "caleon_consent" — the spec's own §4.3 text and end-to-end test
	// scenarios (S2, S3) both assert this exact string, even though the
	// data-model enum elsewhere shorthands it as "consent". Implemented
	// literally per the testable scenarios.
	ActionConsent    Action = "caleon_consent"
	ActionEthicalTest Action = "ethical_test"
	ActionEscalation Action = "escalation"
	// ActionPipeline records a pipeline run's terminal state (done, denied,
	// failed, or canceled) against the request's memory_id.
	ActionPipeline   Action = "pipeline"
)

// Verdict is the closed set of audit entry verdicts.
type Verdict string

const (
	VerdictApproved  Verdict = "approved"
	VerdictDenied    Verdict = "denied"
	VerdictTimeout   Verdict = "timeout"
	VerdictPending   Verdict = "pending"
	VerdictCancelled Verdict = "cancelled"
	// VerdictFailed marks a pipeline run that ended on a stage error rather
	// than a consent outcome.
	VerdictFailed    Verdict = "failed"
)

// AuditEntry is a single append-only audit record. Ordering is strictly
// monotonic with respect to the issuing process's clock.
type AuditEntry struct {
	Timestamp           time.Time     `json:"timestamp"`
	Action              Action        `json:"action"`
	MemoryID            string        `json:"memory_id"`
	Verdict             Verdict       `json:"verdict"`
	Mode                string        `json:"mode,omitempty"`
	Resonance           *ResonanceTag `json:"resonance,omitempty"`
	EthicalDrift        float64       `json:"ethical_drift"`
	AdjustedMoralCharge float64       `json:"adjusted_moral_charge"`
}

// ResonanceFilter narrows query_by_resonance; any subset of its fields may
// be set. A nil field means "no constraint on this dimension".
type ResonanceFilter struct {
	Tone         *Tone
	Symbol       *string
	MinIntensity *float64
	MaxIntensity *float64
}

// matches reports whether tag satisfies every constraint set on f.
func (f ResonanceFilter) matches(tag ResonanceTag) bool {
	if f.Tone != nil && tag.Tone != *f.Tone {
		return false
	}
	if f.Symbol != nil && tag.Symbol != *f.Symbol {
		return false
	}
	if f.MinIntensity != nil && tag.Intensity < *f.MinIntensity {
		return false
	}
	if f.MaxIntensity != nil && tag.Intensity > *f.MaxIntensity {
		return false
	}
	return true
}

// ReflectResult is the read-only "what-if" view returned by Store.Reflect.
type ReflectResult struct {
	CurrentResonance ResonanceTag
	Drift            float64
	AdjustedMoral    float64
	History          []AuditEntry
}
