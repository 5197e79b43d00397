// Package main — cmd/cognitiond/main.go
//
// cognitiond is the Unified Cognition Loop's service entrypoint. It wires
// the full C1-C10 component graph behind a CoreServices aggregate
// (services.go) and exposes it two ways:
//
//   - serve: a long-running daemon with a Prometheus metrics endpoint and
//     the consent operator side channel, suitable for embedding the loop
//     behind another front end (HTTP, gRPC, message bus) added later.
//   - mcp: the same services exposed as an MCP stdio server, so any
//     MCP-speaking client (an editor, an agent harness) can drive
//     submit_stimulus and inspect the vault and consent state directly.
//
// Startup/shutdown sequence for both subcommands follows the teacher
// daemon's shape: load+validate config, build the structured logger, wire
// every component, start background services, block until an exit signal,
// drain and close.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/octoreflex/cognition/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cognitiond",
		Short: "Unified Cognition Loop service",
		Long: "cognitiond runs the cognition pipeline (resonate, anterior, echostack,\n" +
			"echoripple, posterior, harmonize, consent, articulate) as either a\n" +
			"long-running daemon or an MCP stdio server.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/cognition/config.yaml", "Path to config.yaml")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(mcpCmd(&configPath))
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("cognitiond %s (commit=%s built=%s)\n", config.Version, config.GitCommit, config.BuildTime)
			return nil
		},
	}
}
