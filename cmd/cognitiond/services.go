package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octoreflex/cognition/contrib"
	"github.com/octoreflex/cognition/internal/anterior"
	"github.com/octoreflex/cognition/internal/articulator"
	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/consent"
	"github.com/octoreflex/cognition/internal/harmonizer"
	"github.com/octoreflex/cognition/internal/observability"
	"github.com/octoreflex/cognition/internal/orchestrator"
	"github.com/octoreflex/cognition/internal/vault"
)

// CoreServices is the fully wired component graph for one cognitiond
// process, built once in main and threaded through every subcommand. It
// replaces the ad-hoc global state the teacher's daemon built up across
// main()'s body with a single injected aggregate.
type CoreServices struct {
	Config      *config.Config
	Log         *zap.Logger
	Metrics     *observability.Metrics
	Store       vault.Store
	Harmonizer  *harmonizer.Harmonizer
	Consent     *consent.Authority
	Quorum      *consent.Quorum
	Operator    *consent.OperatorServer
	Anterior    *anterior.Reasoner
	Articulator *articulator.Articulator
	Orchestrator *orchestrator.Orchestrator
}

// buildServices loads configPath, validates it, and wires every component
// in the cognition loop behind one CoreServices value. Mirrors the
// teacher's daemon startup sequence (config -> logger -> storage ->
// metrics -> workers) but targets the cognition-loop component graph
// instead of BPF/kernel-event plumbing.
func buildServices(configPath string) (*CoreServices, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("cognitiond: config load failed: %w", err)
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("cognitiond: logger init failed: %w", err)
	}

	metrics := observability.NewMetrics()
	harm := harmonizer.New(cfg.Harmonizer.DriftThreshold, cfg.Harmonizer.MoralThreshold)

	store, err := openStore(cfg.Vault, harm)
	if err != nil {
		return nil, fmt.Errorf("cognitiond: vault open failed: %w", err)
	}

	authority := consent.New(cfg.Consent.Mode, store, log, time.Now().UnixNano())
	authority.SetMetrics(metrics)

	quorum := consent.NewQuorum(cfg.Consent.QuorumMin, time.Duration(cfg.Consent.QuorumObservationTTLMS)*time.Millisecond)
	authority.SetQuorum(quorum)

	var operator *consent.OperatorServer
	if cfg.Consent.OperatorEnabled {
		operator = consent.NewOperatorServer(cfg.Consent.OperatorSocketPath, authority, log)
	}

	var adapter anterior.Adapter
	if cfg.Anterior.Adapter != "" {
		reasoner, err := contrib.GetReasoner(cfg.Anterior.Adapter)
		if err != nil {
			log.Warn("anterior: adapter not found, falling back to low-confidence path",
				zap.String("adapter", cfg.Anterior.Adapter), zap.Error(err))
		} else {
			adapter = reasoner
		}
	}
	reasoner := anterior.New(adapter)

	art := articulator.New(&loggingSpeaker{log: log})

	orch := orchestrator.New(
		reasoner,
		authority,
		harm,
		art,
		store,
		cfg.Seeds,
		cfg.Orchestrator,
		cfg.Ripple,
		cfg.Posterior,
		cfg.ConsentDefaultTimeout(),
		log,
	)
	orch.SetMetrics(metrics)

	return &CoreServices{
		Config:       cfg,
		Log:          log,
		Metrics:      metrics,
		Store:        store,
		Harmonizer:   harm,
		Consent:      authority,
		Quorum:       quorum,
		Operator:     operator,
		Anterior:     reasoner,
		Articulator:  art,
		Orchestrator: orch,
	}, nil
}

// Close releases every resource CoreServices owns. Safe to call once,
// after every goroutine consulting these services has stopped.
func (s *CoreServices) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

// pollVaultMetrics periodically samples the vault's audit ledger and
// shard count into the VaultAuditEntries/VaultShardsTotal gauges. Mirrors
// the teacher's updateUptime ticker: cheap, best-effort, and stopped by
// ctx cancellation rather than an explicit shutdown call.
func (s *CoreServices) pollVaultMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if entries, err := s.Store.AuditLog(); err == nil {
				s.Metrics.VaultAuditEntries.Set(float64(len(entries)))
			}
			if shards, err := s.Store.QueryByResonance(vault.ResonanceFilter{}); err == nil {
				s.Metrics.VaultShardsTotal.Set(float64(len(shards)))
			}
		case <-ctx.Done():
			return
		}
	}
}

// openStore opens a BoltDB-backed vault when cfg.DBPath is set, or an
// in-memory one otherwise (tests, local experimentation).
func openStore(cfg config.VaultConfig, harm *harmonizer.Harmonizer) (vault.Store, error) {
	if cfg.DBPath == "" {
		return vault.NewMemStore(harm), nil
	}
	return vault.OpenBoltStore(cfg.DBPath, harm)
}

// buildLogger constructs a zap.Logger from the configured level and
// format, following the daemon's own JSON-by-default convention.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

// loggingSpeaker is the default Articulator Speaker: it writes the
// articulated text to the structured log rather than an actual voice or
// text channel. Sufficient until a real output adapter is configured.
type loggingSpeaker struct {
	log *zap.Logger
}

func (s *loggingSpeaker) Speak(_ context.Context, text string, style string) error {
	s.log.Info("articulation", zap.String("text", text), zap.String("voice_style", style))
	return nil
}
