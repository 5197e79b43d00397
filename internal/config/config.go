// Package config provides configuration loading, validation, and hot-reload
// for the cognition loop service.
//
// Configuration file: /etc/cognition/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - Process listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml.
//   - Apply only the harmonizer's drift and moral thresholds. Every other
//     field (weights, log level, seed bank, timeouts, vault DB path,
//     consent socket path) keeps its startup value until restart.
//   - If the new config is invalid, the old config remains active and an
//     error is logged. The process does NOT crash on invalid hot-reload
//     config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (e.g. weight > 0, cycle counts >= 1).
//   - Invalid config on startup: process refuses to start (config_invalid,
//     fatal).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime may be set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// SeedFamily is a fixed tag identifying a logic seed's transform family
// (spec.md §4.6).
type SeedFamily string

const (
	FamilyNonmonotonic      SeedFamily = "nonmonotonic"
	FamilyEmpiricist        SeedFamily = "empiricist"
	FamilySkeptical         SeedFamily = "skeptical"
	FamilyAntifragile       SeedFamily = "antifragile"
	FamilyHeuristic         SeedFamily = "heuristic"
	FamilyParsimony         SeedFamily = "parsimony"
	FamilyEthicalGeometric  SeedFamily = "ethical_geometric"
	FamilyPhilosopher       SeedFamily = "philosopher" // posterior pool
	FamilySystem            SeedFamily = "system"      // posterior pool
)

// Seed is a single weighted logic seed (spec.md §3, Logic seed).
type Seed struct {
	ID     string     `yaml:"id"`
	Family SeedFamily `yaml:"family"`
	Weight float64    `yaml:"weight"`
}

// ConsentMode enumerates the pluggable Consent Authority sources
// (spec.md §4.3).
type ConsentMode string

const (
	ConsentAlwaysYes ConsentMode = "always_yes"
	ConsentAlwaysNo  ConsentMode = "always_no"
	ConsentRandom    ConsentMode = "random"
	ConsentManual    ConsentMode = "manual"
	ConsentVoice     ConsentMode = "voice"
	ConsentCustom    ConsentMode = "custom"
)

// Config is the root configuration structure for the cognition loop.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// NodeID identifies this process instance in logs.
	// Default: hostname.
	NodeID string `yaml:"node_id"`

	// Seeds is the ordered, immutable logic-seed bank loaded once at
	// startup (spec.md §6, configuration surface).
	Seeds []Seed `yaml:"seeds"`

	// Ripple configures EchoRipple (C7).
	Ripple RippleConfig `yaml:"ripple"`

	// Posterior configures the Posterior Reasoner (C8).
	Posterior PosteriorConfig `yaml:"posterior"`

	// Harmonizer configures the Drift Harmonizer (C2) advisory thresholds.
	Harmonizer HarmonizerConfig `yaml:"harmonizer"`

	// Consent configures the Consent Authority (C3).
	Consent ConsentConfig `yaml:"consent"`

	// Orchestrator configures the Pipeline Orchestrator (C9).
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Anterior configures the Anterior Reasoner's (C5) external adapter.
	Anterior AnteriorConfig `yaml:"anterior"`

	// Vault configures the Memory Vault's (C1) BoltDB-backed store.
	Vault VaultConfig `yaml:"vault"`

	// Observability configures metrics and logging.
	Observability ObservabilityConfig `yaml:"observability"`
}

// RippleConfig holds EchoRipple's cycle parameters (spec.md §4.7).
type RippleConfig struct {
	// Cycles is N, the number of time-spaced randomized cycles. Default: 5.
	Cycles int `yaml:"cycles"`

	// IntervalMS is Δt, the cooperative inter-cycle delay in milliseconds.
	// Default: 20.
	IntervalMS int `yaml:"interval_ms"`

	// SampleSize is k, the number of seeds sampled per cycle (capped at
	// len(seeds)). Default: 3.
	SampleSize int `yaml:"sample_size"`
}

// PosteriorConfig holds the Posterior Reasoner's cycle and detector
// parameters (spec.md §4.8).
type PosteriorConfig struct {
	// BaseCycles is M_base. Default: 5.
	BaseCycles int `yaml:"base_cycles"`

	// ExtendedCycles is M_ext. Default: 10.
	ExtendedCycles int `yaml:"extended_cycles"`

	// IntervalMS is the trailing per-cycle delay in milliseconds. Default: 50.
	IntervalMS int `yaml:"interval_ms"`

	// DriftThreshold is τ_drift: any single cycle's drift_score above this
	// extends the loop. Default: 0.8.
	DriftThreshold float64 `yaml:"drift_threshold"`

	// MalThreshold is τ_mal for the maleficence detector. Default: 0.5.
	MalThreshold float64 `yaml:"mal_threshold"`

	// MalWeight is w_mal. Default: 1.0.
	MalWeight float64 `yaml:"mal_weight"`

	// HackThreshold is τ_hack for the manipulation detector. Default: 0.3.
	HackThreshold float64 `yaml:"hack_threshold"`

	// HackSensitivity scales the manipulation detector. Default: 1.0.
	HackSensitivity float64 `yaml:"hack_sensitivity"`
}

// HarmonizerConfig holds the Drift Harmonizer's advisory (non-gating)
// thresholds (spec.md §4.2).
type HarmonizerConfig struct {
	// DriftThreshold is surfaced for logging/telemetry only.
	DriftThreshold float64 `yaml:"drift_threshold"`

	// MoralThreshold is surfaced for logging/telemetry only.
	MoralThreshold float64 `yaml:"moral_threshold"`
}

// ConsentConfig holds the Consent Authority's mode and timeout
// (spec.md §4.3, §6).
type ConsentConfig struct {
	// Mode selects the pluggable signal source. Default: manual.
	Mode ConsentMode `yaml:"mode"`

	// DefaultTimeoutMS bounds a blocking get_live_signal wait.
	// Default: 5000.
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`

	// QuorumMin is the minimum number of distinct corroborating sources
	// required before `custom` mode's quorum-backed decision resolves true
	// (SPEC_FULL.md supplemental feature, grounded on the teacher's
	// gossip quorum evaluator). Default: 1 (no corroboration required).
	QuorumMin int `yaml:"quorum_min"`

	// QuorumObservationTTLMS bounds how long a corroborating observation
	// remains valid. Default: 30000.
	QuorumObservationTTLMS int `yaml:"quorum_observation_ttl_ms"`

	// OperatorSocketPath is the Unix domain socket the operator side
	// channel listens on. Default: /run/cognition/operator.sock.
	OperatorSocketPath string `yaml:"operator_socket_path"`

	// OperatorEnabled controls whether the operator socket is active.
	// Default: true.
	OperatorEnabled bool `yaml:"operator_enabled"`
}

// OrchestratorConfig holds the Pipeline Orchestrator's timeouts and
// backpressure parameters (spec.md §5, §6).
type OrchestratorConfig struct {
	// StageTimeoutMS bounds the resonate, anterior, echoripple and
	// posterior stages. EchoStack and articulate run without a stage
	// timeout. Default: 2000.
	StageTimeoutMS int `yaml:"stage_timeout_ms"`

	// MaxInFlight bounds concurrent in-flight submit() requests.
	// Default: 64.
	MaxInFlight int `yaml:"max_in_flight"`
}

// AnteriorConfig selects the pluggable contrib.Reasoner adapter consulted
// by the Anterior Reasoner (spec.md §4.5). Empty Adapter means no adapter
// is configured — C5 always takes its low-confidence fallback path.
type AnteriorConfig struct {
	// Adapter names a contrib.Reasoner registered via
	// contrib.RegisterReasoner. Default: "keyword-heuristic".
	Adapter string `yaml:"adapter"`
}

// VaultConfig holds the Memory Vault's BoltDB parameters
// (spec.md §4.1).
type VaultConfig struct {
	// DBPath is the absolute path to the BoltDB file. Empty means
	// in-memory only (no persistence).
	DBPath string `yaml:"db_path"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Seeds: []Seed{
			{ID: "seed-nonmonotonic", Family: FamilyNonmonotonic, Weight: 1.0},
			{ID: "seed-empiricist", Family: FamilyEmpiricist, Weight: 1.0},
			{ID: "seed-antifragile", Family: FamilyAntifragile, Weight: 1.0},
			{ID: "seed-heuristic", Family: FamilyHeuristic, Weight: 1.0},
			{ID: "seed-parsimony", Family: FamilyParsimony, Weight: 1.0},
		},
		Ripple: RippleConfig{
			Cycles:     5,
			IntervalMS: 20,
			SampleSize: 3,
		},
		Posterior: PosteriorConfig{
			BaseCycles:      5,
			ExtendedCycles:  10,
			IntervalMS:      50,
			DriftThreshold:  0.8,
			MalThreshold:    0.5,
			MalWeight:       1.0,
			HackThreshold:   0.3,
			HackSensitivity: 1.0,
		},
		Harmonizer: HarmonizerConfig{
			DriftThreshold:  0.5,
			MoralThreshold:  0.5,
		},
		Consent: ConsentConfig{
			Mode:                   ConsentManual,
			DefaultTimeoutMS:       5000,
			QuorumMin:              1,
			QuorumObservationTTLMS: 30000,
			OperatorSocketPath:     "/run/cognition/operator.sock",
			OperatorEnabled:        true,
		},
		Orchestrator: OrchestratorConfig{
			StageTimeoutMS: 2000,
			MaxInFlight:    64,
		},
		Anterior: AnteriorConfig{
			Adapter: "keyword-heuristic",
		},
		Vault: VaultConfig{
			DBPath: DefaultDBPath,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// DefaultDBPath is the default BoltDB file location for the vault.
const DefaultDBPath = "/var/lib/cognition/vault.db"

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// StageTimeout returns the configured per-stage timeout as a time.Duration.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Orchestrator.StageTimeoutMS) * time.Millisecond
}

// RippleInterval returns the configured EchoRipple inter-cycle delay.
func (c *Config) RippleInterval() time.Duration {
	return time.Duration(c.Ripple.IntervalMS) * time.Millisecond
}

// PosteriorInterval returns the configured Posterior inter-cycle delay.
func (c *Config) PosteriorInterval() time.Duration {
	return time.Duration(c.Posterior.IntervalMS) * time.Millisecond
}

// ConsentDefaultTimeout returns the configured consent wait timeout.
func (c *Config) ConsentDefaultTimeout() time.Duration {
	return time.Duration(c.Consent.DefaultTimeoutMS) * time.Millisecond
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}
	for i, s := range cfg.Seeds {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("seeds[%d].id must not be empty", i))
		}
		if s.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("seeds[%d].weight must be > 0, got %f", i, s.Weight))
		}
	}
	if cfg.Ripple.Cycles < 1 {
		errs = append(errs, fmt.Sprintf("ripple.cycles must be >= 1, got %d", cfg.Ripple.Cycles))
	}
	if cfg.Ripple.IntervalMS < 0 {
		errs = append(errs, fmt.Sprintf("ripple.interval_ms must be >= 0, got %d", cfg.Ripple.IntervalMS))
	}
	if cfg.Ripple.SampleSize < 1 {
		errs = append(errs, fmt.Sprintf("ripple.sample_size must be >= 1, got %d", cfg.Ripple.SampleSize))
	}
	if cfg.Posterior.BaseCycles < 1 {
		errs = append(errs, fmt.Sprintf("posterior.base_cycles must be >= 1, got %d", cfg.Posterior.BaseCycles))
	}
	if cfg.Posterior.ExtendedCycles < cfg.Posterior.BaseCycles {
		errs = append(errs, "posterior.extended_cycles must be >= posterior.base_cycles")
	}
	if cfg.Posterior.IntervalMS < 0 {
		errs = append(errs, fmt.Sprintf("posterior.interval_ms must be >= 0, got %d", cfg.Posterior.IntervalMS))
	}
	if cfg.Posterior.MalThreshold < 0 || cfg.Posterior.HackThreshold < 0 {
		errs = append(errs, "posterior.mal_threshold and hack_threshold must be >= 0")
	}
	if cfg.Consent.DefaultTimeoutMS < 0 {
		errs = append(errs, fmt.Sprintf("consent.default_timeout_ms must be >= 0, got %d", cfg.Consent.DefaultTimeoutMS))
	}
	if cfg.Consent.QuorumMin < 1 {
		errs = append(errs, fmt.Sprintf("consent.quorum_min must be >= 1, got %d", cfg.Consent.QuorumMin))
	}
	switch cfg.Consent.Mode {
	case ConsentAlwaysYes, ConsentAlwaysNo, ConsentRandom, ConsentManual, ConsentVoice, ConsentCustom:
	default:
		errs = append(errs, fmt.Sprintf("consent.mode %q is not one of always_yes|always_no|random|manual|voice|custom", cfg.Consent.Mode))
	}
	if cfg.Consent.OperatorEnabled && cfg.Consent.OperatorSocketPath == "" {
		errs = append(errs, "consent.operator_socket_path must not be empty when operator_enabled is true")
	}
	if cfg.Orchestrator.StageTimeoutMS < 1 {
		errs = append(errs, fmt.Sprintf("orchestrator.stage_timeout_ms must be >= 1, got %d", cfg.Orchestrator.StageTimeoutMS))
	}
	if cfg.Orchestrator.MaxInFlight < 1 {
		errs = append(errs, fmt.Sprintf("orchestrator.max_in_flight must be >= 1, got %d", cfg.Orchestrator.MaxInFlight))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
