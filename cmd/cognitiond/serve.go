package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octoreflex/cognition/internal/config"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run cognitiond as a long-running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	services, err := buildServices(configPath)
	if err != nil {
		return err
	}
	log := services.Log
	defer log.Sync() //nolint:errcheck

	log.Info("cognitiond starting",
		zap.String("node_id", services.Config.NodeID),
		zap.String("config", configPath),
		zap.String("consent_mode", string(services.Config.Consent.Mode)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := services.Metrics.ServeMetrics(ctx, services.Config.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", services.Config.Observability.MetricsAddr))

	if services.Operator != nil {
		go func() {
			if err := services.Operator.ListenAndServe(ctx); err != nil {
				log.Error("operator socket error", zap.Error(err))
			}
		}()
		log.Info("operator socket listening", zap.String("path", services.Config.Consent.OperatorSocketPath))
	} else {
		log.Info("operator socket disabled")
	}

	go services.pollVaultMetrics(ctx)

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config")
			newCfg, err := config.Load(configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			// Only the harmonizer's advisory thresholds are reloaded; every
			// other field keeps its startup value until restart, per the
			// config package's own hot-reload contract.
			services.Harmonizer.DriftThreshold = newCfg.Harmonizer.DriftThreshold
			services.Harmonizer.MoralThreshold = newCfg.Harmonizer.MoralThreshold
			log.Info("config hot-reload applied",
				zap.Float64("harmonizer_drift_threshold", newCfg.Harmonizer.DriftThreshold),
				zap.Float64("harmonizer_moral_threshold", newCfg.Harmonizer.MoralThreshold),
			)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	done := make(chan struct{})
	go func() {
		_ = services.Close()
		close(done)
	}()
	select {
	case <-shutdownTimer.C:
		log.Warn("shutdown drain timeout — forcing exit")
	case <-done:
		log.Info("services closed cleanly")
	}

	log.Info("cognitiond shutdown complete")
	return nil
}
