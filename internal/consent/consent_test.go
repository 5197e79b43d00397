package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/vault"
)

func newTestAuthority(mode config.ConsentMode) (*Authority, vault.Store) {
	v := vault.NewMemStore(harmonizer.New(0.5, 0.5))
	return New(mode, v, nil, 42), v
}

func TestGetLiveSignal_AlwaysYes(t *testing.T) {
	a, v := newTestAuthority(config.ConsentAlwaysYes)
	v.StoreShard("m1", map[string]any{}, vault.ResonanceTag{})

	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if !out.Approved || out.Verdict != vault.VerdictApproved {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestGetLiveSignal_AlwaysNo_EmitsAuditEntry(t *testing.T) {
	a, v := newTestAuthority(config.ConsentAlwaysNo)
	v.StoreShard("m1", map[string]any{}, vault.ResonanceTag{})

	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if out.Approved {
		t.Fatal("expected denial")
	}

	log, _ := v.AuditLog()
	var consentEntries int
	for _, e := range log {
		if e.Action == vault.ActionConsent {
			consentEntries++
			if e.Verdict != vault.VerdictDenied {
				t.Fatalf("expected denied verdict, got %v", e.Verdict)
			}
		}
	}
	if consentEntries != 1 {
		t.Fatalf("expected exactly 1 consent audit entry, got %d", consentEntries)
	}
}

func TestGetLiveSignal_ManualTimeout(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentManual)

	start := time.Now()
	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if out.Approved || out.Verdict != vault.VerdictTimeout {
		t.Fatalf("expected timeout denial, got %+v", out)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("must wait out the timeout before denying")
	}
}

func TestGetLiveSignal_ManualResolvedByProvideLiveSignal(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentManual)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
		done <- out
	}()

	time.Sleep(10 * time.Millisecond)
	a.ProvideLiveSignal("m1", true)

	select {
	case out := <-done:
		if !out.Approved || out.Verdict != vault.VerdictApproved {
			t.Fatalf("unexpected outcome: %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("GetLiveSignal did not return after ProvideLiveSignal")
	}
}

func TestProvideLiveSignal_BeforeGetLiveSignal(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentManual)

	a.ProvideLiveSignal("m1", true)
	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if !out.Approved {
		t.Fatal("producer-before-consumer value must not be dropped")
	}
}

func TestGetLiveSignal_Cancellation(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentManual)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		out, _ := a.GetLiveSignal(ctx, Request{MemoryID: "m1"}, time.Second)
		done <- out
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		if !out.Cancelled || out.Verdict != vault.VerdictCancelled {
			t.Fatalf("expected cancelled outcome, got %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("GetLiveSignal did not return after cancel")
	}
}

func TestSetCustomLogic_ForcesCustomModeAndFailsClosedOnError(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentAlwaysYes)
	a.SetCustomLogic(func(ctx context.Context, req Request) (bool, error) {
		return false, errors.New("boom")
	})

	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if out.Approved {
		t.Fatal("a raising custom function must fail closed (deny)")
	}
}

func TestSetVoiceCallback_FallsBackToManualWhenUnset(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentVoice)

	start := time.Now()
	out, _ := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, 20*time.Millisecond)
	if out.Approved {
		t.Fatal("expected timeout denial with no voice callback installed")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("must fall back to the manual timeout discipline")
	}
}

func TestQuorum_RequiresMinimumAgreement(t *testing.T) {
	a, _ := newTestAuthority(config.ConsentCustom)
	q := NewQuorum(2, time.Second)
	a.SetQuorum(q)

	q.Record("m1", "reviewer-a", true)

	out, err := a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if out.Approved {
		t.Fatal("single source must not reach a quorumMin=2 requirement")
	}

	q.Record("m1", "reviewer-b", true)
	out, err = a.GetLiveSignal(context.Background(), Request{MemoryID: "m1"}, time.Second)
	if err != nil {
		t.Fatalf("GetLiveSignal: %v", err)
	}
	if !out.Approved {
		t.Fatal("two distinct agreeing sources must reach quorum")
	}
}
