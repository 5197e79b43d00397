// Package observability — metrics.go
//
// Prometheus metrics for the cognition loop service.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only — no external exposure.
//
// Metric naming convention: cognition_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - Stage/status labels use the string name (closed, single-digit set).
//   - request_id is NOT used as a label (unbounded cardinality).
//   - Per-request detail belongs in the audit log, not in a metric label.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for the cognition loop.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Pipeline orchestrator (C9) ──────────────────────────────────────────

	// RequestsTotal counts submit() calls that obtained a slot, by terminal
	// status (DONE, FAILED, CANCELED).
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds records per-stage wall-clock latency.
	// Labels: stage (resonate, anterior, echostack, echoripple, posterior,
	// harmonize, consent, articulate)
	StageDurationSeconds *prometheus.HistogramVec

	// StageTimeoutsTotal counts stage_timeout terminations, by stage.
	StageTimeoutsTotal *prometheus.CounterVec

	// InFlightRequests is the current number of requests holding a
	// semaphore slot.
	InFlightRequests prometheus.Gauge

	// OverloadedTotal counts requests whose ctx ended while they waited for
	// an in-flight slot; such requests return CANCELED with no audit entry.
	// Submit waits for a free slot rather than rejecting a request outright
	// when the in-flight cap is reached.
	OverloadedTotal prometheus.Counter

	// ─── EchoStack / EchoRipple (C6/C7) ──────────────────────────────────────

	// ReflectionDeltaHistogram records the distribution of EchoStack's
	// reflection_delta output.
	ReflectionDeltaHistogram prometheus.Histogram

	// RippleStabilityHistogram records EchoRipple's stability_score output.
	RippleStabilityHistogram prometheus.Histogram

	// RippleConsensusTotal counts EchoRipple runs, by consensus label.
	RippleConsensusTotal *prometheus.CounterVec

	// ─── Posterior reasoner (C8) ─────────────────────────────────────────────

	// PosteriorCyclesHistogram records cycles_executed per run (M_base or
	// M_ext).
	PosteriorCyclesHistogram prometheus.Histogram

	// PosteriorEscalationsTotal counts escalated posterior outcomes, by
	// escalation_reason.
	PosteriorEscalationsTotal *prometheus.CounterVec

	// ─── Drift harmonizer (C2) ───────────────────────────────────────────────

	// HarmonizerDriftHistogram records the advisory drift scalar computed
	// on every pipeline run that reaches the harmonize stage.
	HarmonizerDriftHistogram prometheus.Histogram

	// ─── Consent authority (C3) ──────────────────────────────────────────────

	// ConsentDecisionsTotal counts caleon_consent audit entries, by mode
	// and verdict (approved, denied, timeout, cancelled).
	ConsentDecisionsTotal *prometheus.CounterVec

	// ConsentPendingSignals is the current number of manual/voice waits
	// suspended on an external signal.
	ConsentPendingSignals prometheus.Gauge

	// ─── Memory vault (C1) ───────────────────────────────────────────────────

	// VaultWriteLatency records BoltDB write transaction latency.
	VaultWriteLatency prometheus.Histogram

	// VaultShardsTotal is the current number of shards held by the vault.
	VaultShardsTotal prometheus.Gauge

	// VaultAuditEntries is the current number of audit ledger entries.
	VaultAuditEntries prometheus.Gauge

	// ─── Articulator (C10) ───────────────────────────────────────────────────

	// ArticulationsTotal counts articulator calls, by outcome (spoken,
	// speaker_error).
	ArticulationsTotal *prometheus.CounterVec

	// ─── Process ──────────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the process started.
	UptimeSeconds prometheus.Gauge

	// startTime records when the process started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all cognition-loop Prometheus metrics.
// Returns a *Metrics with all descriptors initialised.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "orchestrator",
			Name:      "requests_total",
			Help:      "Total submit() calls, by terminal status.",
		}, []string{"status"}),

		StageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "orchestrator",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage wall-clock latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		StageTimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "orchestrator",
			Name:      "stage_timeouts_total",
			Help:      "Total stage_timeout terminations, by stage.",
		}, []string{"stage"}),

		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cognition",
			Subsystem: "orchestrator",
			Name:      "in_flight_requests",
			Help:      "Current number of requests holding a semaphore slot.",
		}),

		OverloadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "orchestrator",
			Name:      "overloaded_total",
			Help:      "Total requests rejected because max_in_flight was exceeded.",
		}),

		ReflectionDeltaHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "echostack",
			Name:      "reflection_delta",
			Help:      "Distribution of EchoStack reflection_delta output.",
			Buckets:   []float64{-2, -1, -0.5, -0.1, 0, 0.1, 0.5, 1, 2},
		}),

		RippleStabilityHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "echoripple",
			Name:      "stability_score",
			Help:      "Distribution of EchoRipple stability_score output.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		RippleConsensusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "echoripple",
			Name:      "consensus_total",
			Help:      "Total EchoRipple runs, by consensus label.",
		}, []string{"consensus"}),

		PosteriorCyclesHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "posterior",
			Name:      "cycles_executed",
			Help:      "Distribution of cycles_executed per Posterior run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}),

		PosteriorEscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "posterior",
			Name:      "escalations_total",
			Help:      "Total escalated Posterior outcomes, by escalation_reason.",
		}, []string{"reason"}),

		HarmonizerDriftHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "harmonizer",
			Name:      "drift",
			Help:      "Distribution of the advisory drift scalar.",
			Buckets:   []float64{-1, -0.5, -0.1, 0, 0.1, 0.5, 1},
		}),

		ConsentDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "consent",
			Name:      "decisions_total",
			Help:      "Total caleon_consent audit entries, by mode and verdict.",
		}, []string{"mode", "verdict"}),

		ConsentPendingSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cognition",
			Subsystem: "consent",
			Name:      "pending_signals",
			Help:      "Current number of manual/voice waits suspended on an external signal.",
		}),

		VaultWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cognition",
			Subsystem: "vault",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		VaultShardsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cognition",
			Subsystem: "vault",
			Name:      "shards_total",
			Help:      "Current number of memory shards held by the vault.",
		}),

		VaultAuditEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cognition",
			Subsystem: "vault",
			Name:      "audit_entries",
			Help:      "Current number of audit ledger entries.",
		}),

		ArticulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cognition",
			Subsystem: "articulator",
			Name:      "articulations_total",
			Help:      "Total articulator calls, by outcome.",
		}, []string{"outcome"}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cognition",
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the process started.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.StageDurationSeconds,
		m.StageTimeoutsTotal,
		m.InFlightRequests,
		m.OverloadedTotal,
		m.ReflectionDeltaHistogram,
		m.RippleStabilityHistogram,
		m.RippleConsensusTotal,
		m.PosteriorCyclesHistogram,
		m.PosteriorEscalationsTotal,
		m.HarmonizerDriftHistogram,
		m.ConsentDecisionsTotal,
		m.ConsentPendingSignals,
		m.VaultWriteLatency,
		m.VaultShardsTotal,
		m.VaultAuditEntries,
		m.ArticulationsTotal,
		m.UptimeSeconds,
		// Standard Go runtime metrics.
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given
// address. Blocks until ctx is cancelled or the server fails.
// The server binds to addr (e.g., "127.0.0.1:9091") and serves GET /metrics
// and GET /healthz.
// Returns an error only if the server fails to start or encounters a fatal
// error.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the UptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
