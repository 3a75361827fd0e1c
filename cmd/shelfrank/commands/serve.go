package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/server"
)

// ServeCommand holds the configuration for the serve command.
type ServeCommand struct {
	host string
	port int

	initObservability observabilityInit
}

// NewServeCommand creates and configures the serve command.
func NewServeCommand() *cobra.Command {
	return newServeCommandWithDeps(observability.Init)
}

func newServeCommandWithDeps(initFn observabilityInit) *cobra.Command {
	sc := &ServeCommand{initObservability: initFn}

	cobraCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve command streams over HTTP",
		Long: `Start an HTTP server. Each POST /v1/run request body is processed as
one command stream on a fresh shelf and answered with a JSON document.

Routes:
  POST /v1/run   text stream, or a JSON script with Content-Type application/json
  GET  /healthz  liveness
  GET  /readyz   readiness (fails while shutting down)
  GET  /metrics  Prometheus metrics (when server.metrics_enabled)`,
		Args: cobra.NoArgs,
		RunE: sc.Run,
	}

	cobraCmd.Flags().StringVar(&sc.host, "host", "", "Listen host (default from config)")
	cobraCmd.Flags().IntVar(&sc.port, "port", 0, "Listen port (default from config)")

	return cobraCmd
}

// Run executes the serve command until SIGINT or SIGTERM.
func (sc *ServeCommand) Run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if sc.host != "" {
		cfg.Server.Host = sc.host
	}

	if sc.port != 0 {
		cfg.Server.Port = sc.port
	}

	tel, err := startTelemetry(sc.initObservability, cfg, observability.ModeServe,
		observability.Options{Prometheus: cfg.Server.MetricsEnabled})
	if err != nil {
		return err
	}

	defer tel.shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Telemetry.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		MaxLineBytes:    cfg.Run.MaxLineBytes,
		MaxCommands:     cfg.Run.MaxCommands,
	}, server.Deps{
		Runner:         tel.runner(),
		Logger:         tel.providers.Logger,
		Tracer:         tel.providers.Tracer,
		Metrics:        tel.red,
		MetricsHandler: tel.providers.MetricsHandler,
	})

	return srv.ListenAndServe(ctx)
}
