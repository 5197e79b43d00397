package vault

import "errors"

// ErrAlreadyExists is returned by Store when memory_id is already taken.
var ErrAlreadyExists = errors.New("vault: memory_id already exists")

// ErrNotFound is returned by Get/Modify/Delete/Reflect for an unknown
// memory_id.
var ErrNotFound = errors.New("vault: memory_id not found")

// Store is the Memory Vault's full operation set (spec C1). Implementations
// must serialize mutating operations behind a single writer and allow
// readers to proceed concurrently with each other.
type Store interface {
	// StoreShard computes hash_signature, constructs a new shard with
	// created_at == last_modified == now, and inserts it under memoryID.
	// Returns ErrAlreadyExists if memoryID is taken. Emits a store/approved
	// audit entry.
	StoreShard(memoryID string, payload map[string]any, resonance ResonanceTag) (hashSignature string, err error)

	// Modify applies a consent-gated payload transition. If the shard is
	// absent, returns ErrNotFound. Computes advisory drift/adjusted-moral
	// via the harmonizer regardless of the consent outcome, and replaces
	// payload/resonance only when consentApproved is true. Always emits
	// exactly one modify audit entry carrying the drift values, whatever
	// the outcome.
	Modify(memoryID string, newPayload map[string]any, context map[string]any, consentApproved bool, consentVerdict Verdict, newResonance *ResonanceTag) (ok bool, reason string, err error)

	// Delete has the same structure as Modify but removes the shard on
	// approval. The audit entry's Resonance field is left nil.
	Delete(memoryID string, context map[string]any, consentApproved bool, consentVerdict Verdict) (ok bool, reason string, err error)

	// Get returns a snapshot of the shard, or ErrNotFound.
	Get(memoryID string) (Shard, error)

	// QueryByResonance scans all shards and returns those matching filter.
	// Ordering is unspecified.
	QueryByResonance(filter ResonanceFilter) ([]Shard, error)

	// Reflect computes a read-only what-if drift/adjusted-moral for a
	// hypothetical payload, with no audit side effect beyond optional
	// tracing.
	Reflect(memoryID string, hypotheticalPayload map[string]any) (ReflectResult, error)

	// AuditLog returns every audit entry in monotonic append order. Never
	// truncated by the vault itself.
	AuditLog() ([]AuditEntry, error)

	// AppendAudit appends a single audit entry produced by a collaborator
	// outside the vault (e.g. the Consent Authority's caleon_consent
	// entries). The vault remains the exclusive owner of ordering.
	AppendAudit(entry AuditEntry) error

	// Close releases any underlying resources (no-op for in-memory stores).
	Close() error
}
