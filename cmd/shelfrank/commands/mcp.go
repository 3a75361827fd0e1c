package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shelfrank/pkg/mcp"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	return newMCPCommandWithDeps(observability.Init)
}

func newMCPCommandWithDeps(initFn observabilityInit) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes one tool:
  - shelf_run: process a command list or a full text stream on a fresh shelf
    and return the query answers with stream statistics`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cobraCmd)
			if err != nil {
				return err
			}

			// Stdout carries the protocol, so logs are always JSON on stderr.
			cfg.Logging.Format = "json"

			tel, err := startTelemetry(withDebug(initFn, debug), cfg, observability.ModeMCP)
			if err != nil {
				return err
			}

			defer tel.shutdown()

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:  tel.providers.Logger,
				Metrics: tel.red,
				Tracer:  tel.providers.Tracer,
				Runner:  tel.runner(),
				Limits: mcp.Limits{
					MaxCommands:  cfg.Run.MaxCommands,
					MaxLineBytes: cfg.Run.MaxLineBytes,
				},
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and tracing to stderr")

	return cmd
}

// withDebug raises logging to debug and enables stderr tracing when debug is set.
func withDebug(initFn observabilityInit, debug bool) observabilityInit {
	if !debug {
		return initFn
	}

	return func(cfg observability.Config, opts ...observability.Options) (observability.Providers, error) {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true

		return initFn(cfg, opts...)
	}
}
