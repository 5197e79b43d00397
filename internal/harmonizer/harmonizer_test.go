package harmonizer

import "testing"

func TestComputeDrift_IdenticalPayloadIsZero(t *testing.T) {
	h := New(0.5, 0.5)
	payload := map[string]any{"text": "hello world", "moral": 0.2}
	if d := h.ComputeDrift(payload, payload); d != 0 {
		t.Fatalf("ComputeDrift(p, p) = %v, want 0", d)
	}
}

func TestComputeDrift_GrowthIsPositive(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": "a"}
	newP := map[string]any{"text": "a much longer string than before"}
	if d := h.ComputeDrift(old, newP); d <= 0 {
		t.Fatalf("expected positive drift for payload growth, got %v", d)
	}
}

func TestComputeDrift_DeletionNegatesMoral(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": "a", "moral": 0.4}
	d := h.ComputeDrift(old, nil)
	if d != -0.4 {
		t.Fatalf("ComputeDrift(old, nil) = %v, want -0.4", d)
	}
}

func TestComputeDrift_ClampedToRange(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": ""}
	newP := map[string]any{"text": stringOfLen(10000)}
	d := h.ComputeDrift(old, newP)
	if d < -1 || d > 1 {
		t.Fatalf("ComputeDrift out of range: %v", d)
	}
}

func TestReflect_AdjustedMoralClamped(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": "a", "moral": 1.0}
	newP := map[string]any{"text": stringOfLen(5000), "moral": 1.0}
	_, adjusted := h.Reflect(old, newP, 0.9, 1.0)
	if adjusted < -1 || adjusted > 1 {
		t.Fatalf("adjusted moral out of range: %v", adjusted)
	}
}

func TestApprove_AlwaysTrue(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": "a"}
	newP := map[string]any{"text": "b"}
	approved, _, _ := h.Approve(old, newP, 0, 0.5)
	if !approved {
		t.Fatal("Approve must always return true in the current contract")
	}
}

func TestDecisionHash_Deterministic(t *testing.T) {
	h := New(0.5, 0.5)
	old := map[string]any{"text": "a"}
	newP := map[string]any{"text": "b"}
	drift, moral := h.Reflect(old, newP, 0, 0.5)
	h1, err := h.DecisionHash(old, newP, drift, moral)
	if err != nil {
		t.Fatalf("DecisionHash: %v", err)
	}
	h2, err := h.DecisionHash(old, newP, drift, moral)
	if err != nil {
		t.Fatalf("DecisionHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("DecisionHash not deterministic: %s != %s", h1, h2)
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
