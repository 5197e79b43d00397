package vault

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/octoreflex/cognition/internal/corekit"
	"github.com/octoreflex/cognition/internal/harmonizer"
)

// MemStore is an in-memory Store implementation. It backs tests and
// embedding use cases behind the same interface the BoltDB-backed store
// satisfies. Safe for concurrent use: a single writer mutex guards
// mutations, reads take the read side of the same RWMutex.
type MemStore struct {
	mu         sync.RWMutex
	harmonizer *harmonizer.Harmonizer
	shards     map[string]Shard
	audit      []AuditEntry
}

// NewMemStore builds an empty in-memory vault using h for drift
// computation during Modify/Delete/Reflect.
func NewMemStore(h *harmonizer.Harmonizer) *MemStore {
	return &MemStore{
		harmonizer: h,
		shards:     make(map[string]Shard),
	}
}

func (m *MemStore) StoreShard(memoryID string, payload map[string]any, resonance ResonanceTag) (string, error) {
	digest, err := corekit.CanonicalDigest(payload)
	if err != nil {
		return "", fmt.Errorf("vault: digest payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.shards[memoryID]; exists {
		return "", ErrAlreadyExists
	}

	now := time.Now().UTC()
	if resonance.CreatedAt.IsZero() {
		resonance.CreatedAt = now
	}
	shard := Shard{
		MemoryID:      memoryID,
		Payload:       payload,
		Resonance:     resonance,
		CreatedAt:     now,
		LastModified:  now,
		HashSignature: digest,
	}
	m.shards[memoryID] = shard
	m.appendAuditLocked(AuditEntry{
		Timestamp: now,
		Action:    ActionStore,
		MemoryID:  memoryID,
		Verdict:   VerdictApproved,
		Resonance: &resonance,
	})
	return digest, nil
}

func (m *MemStore) Modify(memoryID string, newPayload map[string]any, context map[string]any, consentApproved bool, consentVerdict Verdict, newResonance *ResonanceTag) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shard, ok := m.shards[memoryID]
	if !ok {
		return false, "not_found", ErrNotFound
	}

	drift, adjustedMoral := m.harmonizer.Reflect(shard.Payload, newPayload, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

	entryVerdict := consentVerdict
	reason := string(consentVerdict)
	applied := false

	if consentApproved {
		digest, err := corekit.CanonicalDigest(newPayload)
		if err != nil {
			return false, "digest_error", fmt.Errorf("vault: digest payload: %w", err)
		}
		now := time.Now().UTC()
		shard.Payload = newPayload
		if newResonance != nil {
			shard.Resonance = *newResonance
		}
		shard.LastModified = now
		shard.HashSignature = digest
		m.shards[memoryID] = shard
		applied = true
		reason = "approved"
		entryVerdict = VerdictApproved
	}

	m.appendAuditLocked(AuditEntry{
		Timestamp:           time.Now().UTC(),
		Action:              ActionModify,
		MemoryID:            memoryID,
		Verdict:             entryVerdict,
		Resonance:           &shard.Resonance,
		EthicalDrift:        drift,
		AdjustedMoralCharge: adjustedMoral,
	})
	return applied, reason, nil
}

func (m *MemStore) Delete(memoryID string, context map[string]any, consentApproved bool, consentVerdict Verdict) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shard, ok := m.shards[memoryID]
	if !ok {
		return false, "not_found", ErrNotFound
	}

	drift, adjustedMoral := m.harmonizer.Reflect(shard.Payload, nil, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

	entryVerdict := consentVerdict
	reason := string(consentVerdict)
	applied := false

	if consentApproved {
		delete(m.shards, memoryID)
		applied = true
		reason = "approved"
		entryVerdict = VerdictApproved
	}

	m.appendAuditLocked(AuditEntry{
		Timestamp:           time.Now().UTC(),
		Action:              ActionDelete,
		MemoryID:            memoryID,
		Verdict:             entryVerdict,
		Resonance:           nil,
		EthicalDrift:        drift,
		AdjustedMoralCharge: adjustedMoral,
	})
	return applied, reason, nil
}

func (m *MemStore) Get(memoryID string) (Shard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shard, ok := m.shards[memoryID]
	if !ok {
		return Shard{}, ErrNotFound
	}
	return shard, nil
}

func (m *MemStore) QueryByResonance(filter ResonanceFilter) ([]Shard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Shard
	for _, shard := range m.shards {
		if filter.matches(shard.Resonance) {
			out = append(out, shard)
		}
	}
	return out, nil
}

func (m *MemStore) Reflect(memoryID string, hypotheticalPayload map[string]any) (ReflectResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shard, ok := m.shards[memoryID]
	if !ok {
		return ReflectResult{}, ErrNotFound
	}

	drift, adjustedMoral := m.harmonizer.Reflect(shard.Payload, hypotheticalPayload, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

	history := make([]AuditEntry, 0, len(m.audit))
	for _, e := range m.audit {
		if e.MemoryID == memoryID {
			history = append(history, e)
		}
	}

	return ReflectResult{
		CurrentResonance: shard.Resonance,
		Drift:            drift,
		AdjustedMoral:    adjustedMoral,
		History:          history,
	}, nil
}

func (m *MemStore) AuditLog() ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AuditEntry, len(m.audit))
	copy(out, m.audit)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemStore) AppendAudit(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.appendAuditLocked(entry)
	return nil
}

func (m *MemStore) Close() error { return nil }

// appendAuditLocked must be called with m.mu held for writing.
func (m *MemStore) appendAuditLocked(entry AuditEntry) {
	m.audit = append(m.audit, entry)
}
