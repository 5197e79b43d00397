// Package consent implements the Consent Authority (C3): a single-writer,
// multi-reader service producing one authoritative boolean decision per
// (memory_id, request_id) and recording it to the audit log.
//
// State machine of a single consent request:
//
//	         enter
//	           │
//	           ▼
//	       PENDING ──(value provided)──► RESOLVED{true|false}
//	           │
//	           └──(timeout)──► RESOLVED{false, timeout=true}
//
// Terminal states are observed exactly once by the caller and exactly once
// by the audit log. A cancel arriving while PENDING resolves the request as
// RESOLVED{false, cancelled=true} instead of timeout.
package consent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/observability"
	"github.com/octoreflex/cognition/internal/vault"
)

// CustomFunc is the pluggable decision function for custom mode. It may
// itself suspend on ctx. An error is treated as fail-closed (false).
type CustomFunc func(ctx context.Context, req Request) (bool, error)

// VoiceFunc is the pluggable async voice callback for voice mode.
type VoiceFunc func(ctx context.Context) (bool, error)

// Request carries everything a consent decision may need to consult.
type Request struct {
	MemoryID        string
	Context         map[string]any
	ProposedPayload map[string]any
	ReflectionDelta float64
	DriftMagnitude  float64
	AdjustedMoral   float64
}

// Outcome is the resolved decision, its verdict label, and whether it was
// produced via cancellation rather than a normal resolution or timeout.
type Outcome struct {
	Approved  bool
	Verdict   vault.Verdict
	Cancelled bool
}

// Authority is the Consent Authority. One Authority instance serves every
// request in the process; state specific to a single pending wait lives in
// the waiters map, never on the Authority itself.
type Authority struct {
	mu      sync.Mutex
	mode    config.ConsentMode
	rng     *rand.Rand
	custom  CustomFunc
	voice   VoiceFunc
	quorum  *Quorum
	waiters map[string]chan bool

	pending map[string]time.Time

	vault vault.Store
	log   *zap.Logger

	metrics *observability.Metrics
}

// SetMetrics installs an observability.Metrics sink. Optional.
func (a *Authority) SetMetrics(metrics *observability.Metrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = metrics
}

// New builds an Authority in the given mode, auditing every decision to v.
func New(mode config.ConsentMode, v vault.Store, log *zap.Logger, seed int64) *Authority {
	return &Authority{
		mode:    mode,
		rng:     rand.New(rand.NewSource(seed)),
		waiters: make(map[string]chan bool),
		pending: make(map[string]time.Time),
		vault:   v,
		log:     log,
	}
}

// PendingSignals returns the memory_ids currently suspended in manual or
// voice mode, with the time each wait began. For operator inspection only.
func (a *Authority) PendingSignals() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]time.Time, len(a.pending))
	for k, v := range a.pending {
		out[k] = v
	}
	return out
}

// SetCustomLogic installs fn as the custom decision function and forces
// mode to custom.
func (a *Authority) SetCustomLogic(fn CustomFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.custom = fn
	a.mode = config.ConsentCustom
}

// SetVoiceCallback installs fn as the voice mode callback.
func (a *Authority) SetVoiceCallback(fn VoiceFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voice = fn
}

// SetQuorum installs a corroboration evaluator consulted by custom mode
// instead of CustomFunc when configured.
func (a *Authority) SetQuorum(q *Quorum) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quorum = q
}

// GetLiveSignal resolves one boolean consent decision for memoryID and
// unconditionally emits exactly one caleon_consent audit entry recording
// it, whatever the path that produced the decision.
func (a *Authority) GetLiveSignal(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	outcome, err := a.resolve(ctx, req, timeout)

	verdictErr := a.vault.AppendAudit(vault.AuditEntry{
		Action:              vault.ActionConsent,
		MemoryID:            req.MemoryID,
		Verdict:             outcome.Verdict,
		Mode:                string(a.currentMode()),
		EthicalDrift:        req.DriftMagnitude,
		AdjustedMoralCharge: req.AdjustedMoral,
	})
	if verdictErr != nil && a.log != nil {
		a.log.Error("consent: failed to append audit entry", zap.Error(verdictErr), zap.String("memory_id", req.MemoryID))
	}

	a.mu.Lock()
	m := a.metrics
	a.mu.Unlock()
	if m != nil {
		m.ConsentDecisionsTotal.WithLabelValues(string(a.currentMode()), string(outcome.Verdict)).Inc()
		m.ConsentPendingSignals.Set(float64(len(a.PendingSignals())))
	}

	return outcome, err
}

func (a *Authority) currentMode() config.ConsentMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *Authority) resolve(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	switch a.currentMode() {
	case config.ConsentAlwaysYes:
		return Outcome{Approved: true, Verdict: vault.VerdictApproved}, nil

	case config.ConsentAlwaysNo:
		return Outcome{Approved: false, Verdict: vault.VerdictDenied}, nil

	case config.ConsentRandom:
		a.mu.Lock()
		approved := a.rng.Float64() < 0.5
		a.mu.Unlock()
		v := vault.VerdictDenied
		if approved {
			v = vault.VerdictApproved
		}
		return Outcome{Approved: approved, Verdict: v}, nil

	case config.ConsentManual:
		return a.waitManual(ctx, req.MemoryID, timeout)

	case config.ConsentVoice:
		a.mu.Lock()
		voiceFn := a.voice
		a.mu.Unlock()
		if voiceFn == nil {
			return a.waitManual(ctx, req.MemoryID, timeout)
		}
		return a.waitVoice(ctx, voiceFn, timeout)

	case config.ConsentCustom:
		return a.resolveCustom(ctx, req, timeout)

	default:
		return Outcome{Approved: false, Verdict: vault.VerdictDenied}, fmt.Errorf("consent: unknown mode %q", a.mode)
	}
}

func (a *Authority) resolveCustom(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	a.mu.Lock()
	q := a.quorum
	fn := a.custom
	a.mu.Unlock()

	if q != nil {
		approved, cancelled := q.Decide(ctx, req.MemoryID, timeout)
		if cancelled {
			return Outcome{Approved: false, Verdict: vault.VerdictCancelled, Cancelled: true}, nil
		}
		v := vault.VerdictDenied
		if approved {
			v = vault.VerdictApproved
		}
		return Outcome{Approved: approved, Verdict: v}, nil
	}

	if fn == nil {
		return Outcome{Approved: false, Verdict: vault.VerdictDenied}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	approved, err := fn(cctx, req)
	if err != nil {
		// Fail-closed per spec: a raising custom function denies.
		return Outcome{Approved: false, Verdict: vault.VerdictDenied}, nil
	}
	v := vault.VerdictDenied
	if approved {
		v = vault.VerdictApproved
	}
	return Outcome{Approved: approved, Verdict: v}, nil
}

// waitManual registers a one-shot completion slot keyed by memoryID and
// suspends until ProvideLiveSignal resolves it, ctx is cancelled, or
// timeout elapses.
func (a *Authority) waitManual(ctx context.Context, memoryID string, timeout time.Duration) (Outcome, error) {
	ch := a.slot(memoryID)

	a.mu.Lock()
	a.pending[memoryID] = time.Now()
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, memoryID)
		a.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		verdict := vault.VerdictDenied
		if v {
			verdict = vault.VerdictApproved
		}
		return Outcome{Approved: v, Verdict: verdict}, nil
	case <-timer.C:
		return Outcome{Approved: false, Verdict: vault.VerdictTimeout}, nil
	case <-ctx.Done():
		return Outcome{Approved: false, Verdict: vault.VerdictCancelled, Cancelled: true}, nil
	}
}

func (a *Authority) waitVoice(ctx context.Context, voiceFn VoiceFunc, timeout time.Duration) (Outcome, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan bool, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := voiceFn(cctx)
		if err != nil {
			errCh <- err
			return
		}
		result <- v
	}()

	select {
	case v := <-result:
		verdict := vault.VerdictDenied
		if v {
			verdict = vault.VerdictApproved
		}
		return Outcome{Approved: v, Verdict: verdict}, nil
	case <-errCh:
		return Outcome{Approved: false, Verdict: vault.VerdictDenied}, nil
	case <-cctx.Done():
		if ctx.Err() != nil {
			return Outcome{Approved: false, Verdict: vault.VerdictCancelled, Cancelled: true}, nil
		}
		return Outcome{Approved: false, Verdict: vault.VerdictTimeout}, nil
	}
}

// ProvideLiveSignal completes the waiter for memoryID with value. If no
// waiter is registered yet, the value is stored (in a buffered slot of
// capacity 1) so the next GetLiveSignal on that id resolves immediately —
// race-safe producer-before-consumer.
func (a *Authority) ProvideLiveSignal(memoryID string, value bool) {
	ch := a.slot(memoryID)
	select {
	case ch <- value:
	default:
		// A value is already pending; the first producer wins.
	}
}

// slot returns the buffered completion channel for memoryID, creating it
// if absent.
func (a *Authority) slot(memoryID string) chan bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.waiters[memoryID]
	if !ok {
		ch = make(chan bool, 1)
		a.waiters[memoryID] = ch
	}
	return ch
}
