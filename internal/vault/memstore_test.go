package vault

import (
	"testing"

	"github.com/octoreflex/cognition/internal/harmonizer"
)

func newTestStore() *MemStore {
	return NewMemStore(harmonizer.New(0.5, 0.5))
}

func TestStoreShard_ComputesHashAndRejectsDuplicate(t *testing.T) {
	s := newTestStore()
	payload := map[string]any{"text": "hello"}
	resonance := ResonanceTag{Tone: ToneNeutral, Symbol: "s1", MoralCharge: 0.1, Intensity: 0.2}

	hash, err := s.StoreShard("m1", payload, resonance)
	if err != nil {
		t.Fatalf("StoreShard: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash_signature")
	}

	shard, err := s.Get("m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if shard.HashSignature != hash {
		t.Fatalf("shard hash_signature %q != returned hash %q", shard.HashSignature, hash)
	}
	if shard.LastModified.Before(shard.CreatedAt) {
		t.Fatal("last_modified must be >= created_at")
	}

	if _, err := s.StoreShard("m1", payload, resonance); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore()
	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModify_AppliesOnlyWhenApproved(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{"text": "a"}, ResonanceTag{Tone: ToneNeutral})

	ok, reason, err := s.Modify("m1", map[string]any{"text": "b"}, nil, false, VerdictDenied, nil)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if ok {
		t.Fatal("Modify must not apply when consent denied")
	}
	if reason != "denied" {
		t.Fatalf("reason = %q, want denied", reason)
	}
	shard, _ := s.Get("m1")
	if shard.Payload["text"] != "a" {
		t.Fatal("payload must be unchanged on denial")
	}

	ok, _, err = s.Modify("m1", map[string]any{"text": "b"}, nil, true, VerdictApproved, nil)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if !ok {
		t.Fatal("Modify must apply when consent approved")
	}
	shard, _ = s.Get("m1")
	if shard.Payload["text"] != "b" {
		t.Fatal("payload must be updated on approval")
	}
}

func TestModify_AlwaysEmitsOneAuditEntryRegardlessOfVerdict(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{"text": "a"}, ResonanceTag{})

	s.Modify("m1", map[string]any{"text": "b"}, nil, false, VerdictDenied, nil)
	log, _ := s.AuditLog()

	var modifyCount int
	for _, e := range log {
		if e.Action == ActionModify {
			modifyCount++
		}
	}
	if modifyCount != 1 {
		t.Fatalf("expected exactly 1 modify audit entry, got %d", modifyCount)
	}
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestStore()
	_, _, err := s.Delete("missing", nil, true, VerdictApproved)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_RemovesOnApproval(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{"text": "a"}, ResonanceTag{})

	ok, _, err := s.Delete("m1", nil, true, VerdictApproved)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Get("m1"); err != ErrNotFound {
		t.Fatal("shard must be gone after approved delete")
	}
}

func TestQueryByResonance_FiltersByTone(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{}, ResonanceTag{Tone: ToneJoy, Intensity: 0.5})
	s.StoreShard("m2", map[string]any{}, ResonanceTag{Tone: ToneGrief, Intensity: 0.5})

	joy := ToneJoy
	results, err := s.QueryByResonance(ResonanceFilter{Tone: &joy})
	if err != nil {
		t.Fatalf("QueryByResonance: %v", err)
	}
	if len(results) != 1 || results[0].MemoryID != "m1" {
		t.Fatalf("expected only m1, got %+v", results)
	}
}

func TestReflect_IsPureAndRepeatable(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{"text": "a", "moral": 0.3}, ResonanceTag{MoralCharge: 0.2, Intensity: 0.5})

	hypothetical := map[string]any{"text": "a much longer text", "moral": 0.5}
	r1, err := s.Reflect("m1", hypothetical)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	r2, err := s.Reflect("m1", hypothetical)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if r1.Drift != r2.Drift || r1.AdjustedMoral != r2.AdjustedMoral {
		t.Fatalf("Reflect not repeatable: %+v != %+v", r1, r2)
	}
}

func TestAuditLog_MonotonicOrder(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{}, ResonanceTag{})
	s.StoreShard("m2", map[string]any{}, ResonanceTag{})
	s.Modify("m1", map[string]any{"x": 1}, nil, true, VerdictApproved, nil)

	log, err := s.AuditLog()
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(log))
	}
	for i := 1; i < len(log); i++ {
		if log[i].Timestamp.Before(log[i-1].Timestamp) {
			t.Fatal("audit log must be monotonic")
		}
	}
}

func TestAppendAudit_ConsentEntry(t *testing.T) {
	s := newTestStore()
	s.StoreShard("m1", map[string]any{}, ResonanceTag{})
	err := s.AppendAudit(AuditEntry{
		Action:   ActionConsent,
		MemoryID: "m1",
		Verdict:  VerdictDenied,
		Mode:     "always_no",
	})
	if err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	log, _ := s.AuditLog()
	var consentCount int
	for _, e := range log {
		if e.Action == ActionConsent {
			consentCount++
			if e.Action != "caleon_consent" {
				t.Fatalf("consent action must literally be caleon_consent, got %q", e.Action)
			}
		}
	}
	if consentCount != 1 {
		t.Fatalf("expected exactly 1 consent audit entry, got %d", consentCount)
	}
}
