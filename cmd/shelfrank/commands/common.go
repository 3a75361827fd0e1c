// Package commands implements CLI command handlers for shelfrank.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/shelfrank/pkg/config"
	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/version"
)

// Persistent flag names.
const (
	configFlag  = "config"
	noColorFlag = "no-color"

	otlpEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
	otlpHeadersEnv  = "OTEL_EXPORTER_OTLP_HEADERS"
)

// observabilityInit builds telemetry providers; tests substitute a stub.
type observabilityInit func(observability.Config, ...observability.Options) (observability.Providers, error)

// RegisterPersistentFlags adds the flags shared by every subcommand.
func RegisterPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String(configFlag, "", "Config file (default: shelfrank.yaml in ., ./config or /etc/shelfrank)")
	root.PersistentFlags().Bool(noColorFlag, false, "Disable colored output")
}

// loadConfig reads configuration honoring the --config and --no-color flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if flag := cmd.Flag(noColorFlag); flag != nil && flag.Value.String() == "true" {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	path := ""
	if flag := cmd.Flag(configFlag); flag != nil {
		path = flag.Value.String()
	}

	return config.LoadConfig(path)
}

// observabilityConfig maps loaded configuration onto telemetry settings.
// The standard OTEL_EXPORTER_OTLP_* variables fill in an unset endpoint.
func observabilityConfig(cfg *config.Config, mode observability.AppMode) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.ShutdownTimeoutSec = int(cfg.Telemetry.ShutdownTimeout.Seconds())

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(otlpEndpointEnv)
	}

	if len(obsCfg.OTLPHeaders) == 0 {
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(otlpHeadersEnv))
	}

	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg.LogLevel = level

	return obsCfg, nil
}

// telemetry bundles the providers and instruments one command uses.
type telemetry struct {
	providers observability.Providers
	red       *observability.REDMetrics
	stream    *observability.StreamMetrics
}

func startTelemetry(
	initFn observabilityInit,
	cfg *config.Config,
	mode observability.AppMode,
	opts ...observability.Options,
) (*telemetry, error) {
	obsCfg, err := observabilityConfig(cfg, mode)
	if err != nil {
		return nil, err
	}

	providers, err := initFn(obsCfg, opts...)
	if err != nil {
		return nil, err
	}

	if providers.Logger == nil {
		providers.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if providers.Tracer == nil {
		providers.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if providers.Meter == nil {
		providers.Meter = noopmetric.NewMeterProvider().Meter("")
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	stream, err := observability.NewStreamMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	return &telemetry{providers: providers, red: red, stream: stream}, nil
}

func (t *telemetry) runner() *engine.Runner {
	return engine.NewRunner(engine.Config{
		Logger:  t.providers.Logger,
		Tracer:  t.providers.Tracer,
		Metrics: t.stream,
	})
}

func (t *telemetry) shutdown() {
	if t.providers.Shutdown == nil {
		return
	}

	err := t.providers.Shutdown(context.Background())
	if err != nil {
		t.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
