// Package orchestrator implements the Pipeline Orchestrator (C9): the only
// stateful controller in the cognition loop. It owns one goroutine per
// in-flight request and drives RESONATE -> ANTERIOR -> ECHOSTACK ->
// ECHORIPPLE -> POSTERIOR -> HARMONIZE -> CONSENT -> ARTICULATE in strict
// order, with per-stage timeouts, cancellation, and a max-in-flight
// semaphore for backpressure.
package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/articulator"
	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/consent"
	"github.com/octoreflex/cognition/internal/corekit"
	"github.com/octoreflex/cognition/internal/echoripple"
	"github.com/octoreflex/cognition/internal/echostack"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/observability"
	"github.com/octoreflex/cognition/internal/posterior"
	"github.com/octoreflex/cognition/internal/resonator"
	"github.com/octoreflex/cognition/internal/vault"
)

// Stage names the strict pipeline ordering. Used in error reporting and
// audit entries.
type Stage string

const (
	StageResonate  Stage = "RESONATE"
	StageAnterior  Stage = "ANTERIOR"
	StageEchoStack Stage = "ECHOSTACK"
	StageEchoRipple Stage = "ECHORIPPLE"
	StagePosterior Stage = "POSTERIOR"
	StageHarmonize Stage = "HARMONIZE"
	StageConsent   Stage = "CONSENT"
	StageArticulate Stage = "ARTICULATE"
)

// Status is the closed set of terminal request states.
type Status string

const (
	StatusDone     Status = "DONE"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
)

// Request is one stimulus submitted to the pipeline.
type Request struct {
	ID         string
	Input      string
	Metadata   map[string]any
	VoiceStyle string
}

// ReflectionRecord aggregates every stage's sub-record for a single
// request. Assembled incrementally as stages complete.
type ReflectionRecord struct {
	Resonance          *resonator.Record             `json:"resonance,omitempty"`
	Verdict            *anterior.Verdict              `json:"verdict,omitempty"`
	EchoStack          *echostack.ReflectionDelta      `json:"echostack,omitempty"`
	Ripple             *echoripple.StabilizedReflection `json:"ripple,omitempty"`
	Posterior          *posterior.Outcome              `json:"posterior,omitempty"`
	HarmonizerDrift    float64                         `json:"harmonizer_drift"`
	HarmonizerAdjusted float64                         `json:"harmonizer_adjusted_moral"`
}

// Result is a completed (or terminated) request's full outcome.
type Result struct {
	RequestID    string
	Status       Status
	LastStage    Stage
	ErrorKind    corekit.ErrorKind
	Reflection   ReflectionRecord
	Consent      *consent.Outcome
	Articulation *articulator.Record
}

// Orchestrator wires the full component chain together behind one entry
// point, Submit.
type Orchestrator struct {
	anterior    *anterior.Reasoner
	consent     *consent.Authority
	harmonizer  *harmonizer.Harmonizer
	articulator *articulator.Articulator
	store       vault.Store
	seeds       []config.Seed

	cfg     config.OrchestratorConfig
	ripple  config.RippleConfig
	post    config.PosteriorConfig
	consentTimeout time.Duration

	limiter *InFlightLimiter
	log     *zap.Logger
	metrics *observability.Metrics
}

// SetMetrics installs an observability.Metrics sink. Optional; Submit
// records nothing if metrics is nil. Must be called before the first
// concurrent Submit to avoid a data race on the field.
func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	o.metrics = metrics
}

// New builds an Orchestrator. art may be nil, in which case Submit skips
// the ARTICULATE stage entirely (no Speaker configured).
func New(
	reasoner *anterior.Reasoner,
	auth *consent.Authority,
	harm *harmonizer.Harmonizer,
	art *articulator.Articulator,
	store vault.Store,
	seeds []config.Seed,
	cfg config.OrchestratorConfig,
	ripple config.RippleConfig,
	post config.PosteriorConfig,
	consentTimeout time.Duration,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		anterior:       reasoner,
		consent:        auth,
		harmonizer:     harm,
		articulator:    art,
		store:          store,
		seeds:          seeds,
		cfg:            cfg,
		ripple:         ripple,
		post:           post,
		consentTimeout: consentTimeout,
		limiter:        NewInFlightLimiter(cfg.MaxInFlight),
		log:            log,
	}
}

// Limiter exposes the in-flight limiter for metrics and operator
// inspection.
func (o *Orchestrator) Limiter() *InFlightLimiter {
	return o.limiter
}

// Submit runs one request through the full pipeline. It blocks until a
// semaphore slot is free (or ctx is cancelled), then drives every stage in
// order, persisting a terminal pipeline audit entry to the vault for every
// request that obtained a slot, whatever its outcome (cancellation
// included). A request whose ctx ends while waiting for a slot returns
// without any audit entry.
//
// rng seeds EchoStack/EchoRipple/Posterior's non-determinism for this
// request; callers must supply a fresh per-request source for reproducible
// audits.
func (o *Orchestrator) Submit(ctx context.Context, req Request, rng *rand.Rand) (Result, error) {
	if err := o.limiter.Acquire(ctx); err != nil {
		if o.metrics != nil {
			o.metrics.OverloadedTotal.Inc()
		}
		return Result{RequestID: req.ID, Status: StatusCanceled, ErrorKind: corekit.ErrCancelled}, err
	}
	defer o.limiter.Release()
	if o.metrics != nil {
		o.metrics.InFlightRequests.Inc()
		defer o.metrics.InFlightRequests.Dec()
	}

	result := Result{RequestID: req.ID}

	resonateStart := time.Now()
	resonateCtx, resonateCancel := context.WithTimeout(ctx, o.stageTimeout())
	resonance := resonator.Extract(req.Input, req.Metadata)
	resonateErr := resonateCtx.Err()
	resonateCancel()
	o.observeStage(StageResonate, resonateStart)
	result.Reflection.Resonance = &resonance
	result.LastStage = StageResonate
	if resonateErr != nil {
		o.countStageTimeout(StageResonate)
		if ctx.Err() != nil {
			return o.finish(result, StatusCanceled, corekit.ErrCancelled)
		}
		return o.finish(result, StatusFailed, corekit.ErrStageTimeout)
	}

	anteriorStart := time.Now()
	anteriorCtx, anteriorCancel := context.WithTimeout(ctx, o.stageTimeout())
	verdict := o.anterior.Reason(anteriorCtx, resonance)
	anteriorErr := anteriorCtx.Err()
	anteriorCancel()
	o.observeStage(StageAnterior, anteriorStart)
	result.Reflection.Verdict = &verdict
	result.LastStage = StageAnterior
	if anteriorErr != nil {
		o.countStageTimeout(StageAnterior)
		if ctx.Err() != nil {
			return o.finish(result, StatusCanceled, corekit.ErrCancelled)
		}
		return o.finish(result, StatusFailed, corekit.ErrStageTimeout)
	}

	echostackStart := time.Now()
	delta := echostack.Apply(verdict, o.seeds, rng)
	o.observeStage(StageEchoStack, echostackStart)
	if o.metrics != nil {
		o.metrics.ReflectionDeltaHistogram.Observe(delta.ReflectionDelta)
	}
	result.Reflection.EchoStack = &delta
	result.LastStage = StageEchoStack

	rippleStart := time.Now()
	rippleCtx, rippleCancel := context.WithTimeout(ctx, o.stageTimeout())
	ripple, ok := echoripple.Run(rippleCtx, delta, o.seeds, o.ripple.Cycles, time.Duration(o.ripple.IntervalMS)*time.Millisecond, o.ripple.SampleSize, rng)
	rippleCancel()
	o.observeStage(StageEchoRipple, rippleStart)
	if !ok {
		o.countStageTimeout(StageEchoRipple)
		if ctx.Err() != nil {
			return o.finish(result, StatusCanceled, corekit.ErrCancelled)
		}
		return o.finish(result, StatusFailed, corekit.ErrStageTimeout)
	}
	if o.metrics != nil {
		o.metrics.RippleStabilityHistogram.Observe(ripple.StabilityScore)
		o.metrics.RippleConsensusTotal.WithLabelValues(string(ripple.Consensus)).Inc()
	}
	result.Reflection.Ripple = &ripple
	result.LastStage = StageEchoRipple

	postStart := time.Now()
	postCtx, postCancel := context.WithTimeout(ctx, o.stageTimeout())
	postOutcome, ok := posterior.Run(postCtx, req.ID, ripple, o.seeds, o.post, o.harmonizer, rng)
	postCancel()
	o.observeStage(StagePosterior, postStart)
	if !ok {
		o.countStageTimeout(StagePosterior)
		if ctx.Err() != nil {
			return o.finish(result, StatusCanceled, corekit.ErrCancelled)
		}
		return o.finish(result, StatusFailed, corekit.ErrStageTimeout)
	}
	if o.metrics != nil {
		o.metrics.PosteriorCyclesHistogram.Observe(float64(postOutcome.CyclesExecuted))
		if postOutcome.EscalationRequired {
			o.metrics.PosteriorEscalationsTotal.WithLabelValues(postOutcome.EscalationReason).Inc()
		}
	}
	result.Reflection.Posterior = &postOutcome
	result.LastStage = StagePosterior

	oldPayload := map[string]any{"reflection_delta": delta.ReflectionDelta}
	newPayload := map[string]any{"reflection_delta": ripple.Delta, "moral": postOutcome.CyclesExecuted}
	drift, adjusted := o.harmonizer.Reflect(oldPayload, newPayload, 0, ripple.StabilityScore)
	if o.metrics != nil {
		o.metrics.HarmonizerDriftHistogram.Observe(drift)
	}
	result.Reflection.HarmonizerDrift = drift
	result.Reflection.HarmonizerAdjusted = adjusted
	result.LastStage = StageHarmonize

	consentReq := consent.Request{
		MemoryID:        req.ID,
		Context:         req.Metadata,
		ProposedPayload: newPayload,
		ReflectionDelta: ripple.Delta,
		DriftMagnitude:  ripple.Magnitude,
		AdjustedMoral:   adjusted,
	}
	consentStart := time.Now()
	consentOutcome, err := o.consent.GetLiveSignal(ctx, consentReq, o.consentTimeout)
	o.observeStage(StageConsent, consentStart)
	result.LastStage = StageConsent
	result.Consent = &consentOutcome
	if err != nil && o.log != nil {
		o.log.Warn("consent resolution error", zap.Error(err), zap.String("request_id", req.ID))
	}
	if consentOutcome.Cancelled {
		return o.finish(result, StatusCanceled, corekit.ErrCancelled)
	}
	if !consentOutcome.Approved {
		return o.finish(result, StatusDone, "")
	}

	if o.articulator == nil {
		return o.finish(result, StatusDone, "")
	}

	finalVerdict := verdict.Value
	payload := articulator.Payload{
		FinalVerdict: finalVerdict,
		Consensus:    ripple.Consensus == echoripple.ConsensusPositive,
		Confidence:   verdict.Confidence,
		VoiceStyle:   req.VoiceStyle,
	}
	articulateStart := time.Now()
	articulation, artErr := o.articulator.Articulate(ctx, payload)
	o.observeStage(StageArticulate, articulateStart)
	result.LastStage = StageArticulate
	if artErr != nil {
		// Empty final_verdict: articulation skipped, request still
		// completes successfully.
		return o.finish(result, StatusDone, "")
	}
	result.Articulation = &articulation
	if o.metrics != nil {
		outcome := "spoken"
		if articulation.SpeakerError != "" {
			outcome = "speaker_error"
		}
		o.metrics.ArticulationsTotal.WithLabelValues(outcome).Inc()
	}

	return o.finish(result, StatusDone, "")
}

// observeStage records stage wall-clock latency if metrics are installed.
func (o *Orchestrator) observeStage(stage Stage, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// countStageTimeout records a stage_timeout termination if metrics are
// installed.
func (o *Orchestrator) countStageTimeout(stage Stage) {
	if o.metrics != nil {
		o.metrics.StageTimeoutsTotal.WithLabelValues(string(stage)).Inc()
	}
}

// finish sets the terminal status, persists a pipeline audit entry, and
// returns the result.
func (o *Orchestrator) finish(result Result, status Status, kind corekit.ErrorKind) (Result, error) {
	result.Status = status
	result.ErrorKind = kind

	verdict := vault.VerdictApproved
	switch {
	case status == StatusCanceled:
		verdict = vault.VerdictCancelled
	case status == StatusFailed:
		verdict = vault.VerdictFailed
	case result.Consent != nil && !result.Consent.Approved:
		verdict = result.Consent.Verdict
	}

	if err := o.store.AppendAudit(vault.AuditEntry{
		Action:              vault.ActionPipeline,
		MemoryID:            result.RequestID,
		Verdict:             verdict,
		EthicalDrift:        result.Reflection.HarmonizerDrift,
		AdjustedMoralCharge: result.Reflection.HarmonizerAdjusted,
	}); err != nil && o.log != nil {
		o.log.Error("orchestrator: failed to append terminal audit entry", zap.Error(err), zap.String("request_id", result.RequestID))
	}

	if o.metrics != nil {
		o.metrics.RequestsTotal.WithLabelValues(string(status)).Inc()
	}

	switch status {
	case StatusFailed:
		return result, corekit.NewError(kind, string(result.LastStage), context.DeadlineExceeded)
	case StatusCanceled:
		return result, corekit.NewError(kind, string(result.LastStage), context.Canceled)
	default:
		return result, nil
	}
}

func (o *Orchestrator) stageTimeout() time.Duration {
	return time.Duration(o.cfg.StageTimeoutMS) * time.Millisecond
}
