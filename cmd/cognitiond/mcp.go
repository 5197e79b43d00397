package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octoreflex/cognition/internal/config"
	"github.com/octoreflex/cognition/internal/mcptools"
)

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run cognitiond as an MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(*configPath)
		},
	}
}

func runMCP(configPath string) error {
	services, err := buildServices(configPath)
	if err != nil {
		return err
	}
	log := services.Log
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The metrics server and operator socket still run under mcp mode —
	// they speak their own transports (HTTP, a Unix socket) and never
	// touch stdio, so they cannot interfere with the MCP stdio protocol.
	go func() {
		if err := services.Metrics.ServeMetrics(ctx, services.Config.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	if services.Operator != nil {
		go func() {
			if err := services.Operator.ListenAndServe(ctx); err != nil {
				log.Error("operator socket error", zap.Error(err))
			}
		}()
	}
	go services.pollVaultMetrics(ctx)

	s := server.NewMCPServer(
		"cognitiond",
		config.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(mcpInstructions()),
	)

	submitTool := mcptools.NewSubmitTool(services.Orchestrator)
	s.AddTool(submitTool.Definition(), submitTool.Handle)

	getShardTool := mcptools.NewGetShardTool(services.Store)
	s.AddTool(getShardTool.Definition(), getShardTool.Handle)

	queryTool := mcptools.NewQueryByResonanceTool(services.Store)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	auditTool := mcptools.NewAuditLogTailTool(services.Store)
	s.AddTool(auditTool.Definition(), auditTool.Handle)

	signalTool := mcptools.NewProvideLiveSignalTool(services.Consent)
	s.AddTool(signalTool.Definition(), signalTool.Handle)

	pendingTool := mcptools.NewPendingSignalsTool(services.Consent)
	s.AddTool(pendingTool.Definition(), pendingTool.Handle)

	log.Info("mcp server ready", zap.String("transport", "stdio"))
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("cognitiond: mcp stdio server error: %w", err)
	}
	return nil
}

func mcpInstructions() string {
	return "Unified Cognition Loop. submit_stimulus runs a stimulus through the " +
		"full pipeline (resonate, anterior, echostack, echoripple, posterior, " +
		"harmonize, consent, articulate) and blocks on consent resolution if the " +
		"configured mode is manual or voice. Use provide_live_signal to resolve a " +
		"pending manual request, pending_signals to see what's waiting, and " +
		"get_shard/query_by_resonance/audit_log_tail to inspect the memory vault."
}
