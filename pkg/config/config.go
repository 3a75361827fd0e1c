// Package config provides configuration loading and validation for shelfrank.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/shelfrank/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidLimit       = errors.New("limit must not be negative")
)

// Default configuration values.
const (
	defaultPort        = 8080
	defaultHost        = "0.0.0.0"
	defaultMaxLineSize = "64KiB"
	defaultMaxBodySize = "8MiB"
	maxPort            = 65535

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "SHELFRANK"
)

// Accepted values for the enumerated settings.
var (
	LogLevels     = []string{"debug", "info", "warn", "error"}
	LogFormats    = []string{"text", "json"}
	OutputFormats = []string{"plain", "json", "yaml"}
	InputFormats  = []string{"auto", "text", "json"}
)

// Config holds all configuration for shelfrank.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Run       RunConfig       `mapstructure:"run"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig holds settings for processing a command stream.
type RunConfig struct {
	OutputFormat string `mapstructure:"output_format"`
	InputFormat  string `mapstructure:"input_format"`
	MaxLineSize  string `mapstructure:"max_line_size"`
	MaxCommands  int64  `mapstructure:"max_commands"`

	// MaxLineBytes is MaxLineSize resolved during validation.
	MaxLineBytes int `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	MaxBodySize    string        `mapstructure:"max_body_size"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Port           int           `mapstructure:"port"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`

	// MaxBodyBytes is MaxBodySize resolved during validation.
	MaxBodyBytes int64 `mapstructure:"-"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint    string        `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string        `mapstructure:"otlp_headers"`
	Environment     string        `mapstructure:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	OTLPInsecure    bool          `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for shelfrank.yaml in the usual locations
// and falls back to defaults when none exists.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("shelfrank")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/shelfrank")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration LoadConfig yields with no file and no
// environment overrides.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode and validate.
	_ = viperCfg.Unmarshal(&config)
	_ = validateConfig(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("run.output_format", "plain")
	viperCfg.SetDefault("run.input_format", "auto")
	viperCfg.SetDefault("run.max_line_size", defaultMaxLineSize)
	viperCfg.SetDefault("run.max_commands", 0)

	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
	viperCfg.SetDefault("server.max_body_size", defaultMaxBodySize)
	viperCfg.SetDefault("server.metrics_enabled", true)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.shutdown_timeout", "5s")
}

func validateConfig(config *Config) error {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))

	if !lo.Contains(LogLevels, config.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if !lo.Contains(LogFormats, config.Logging.Format) {
		return fmt.Errorf("%w: logging.format %q", ErrInvalidFormat, config.Logging.Format)
	}

	if !lo.Contains(OutputFormats, config.Run.OutputFormat) {
		return fmt.Errorf("%w: run.output_format %q", ErrInvalidFormat, config.Run.OutputFormat)
	}

	if !lo.Contains(InputFormats, config.Run.InputFormat) {
		return fmt.Errorf("%w: run.input_format %q", ErrInvalidFormat, config.Run.InputFormat)
	}

	if config.Run.MaxCommands < 0 {
		return fmt.Errorf("%w: run.max_commands %d", ErrInvalidLimit, config.Run.MaxCommands)
	}

	lineBytes, err := parseSize("run.max_line_size", config.Run.MaxLineSize)
	if err != nil {
		return err
	}

	config.Run.MaxLineBytes, err = safeconv.Uint64ToInt(lineBytes)
	if err != nil {
		return fmt.Errorf("%w: run.max_line_size: %w", ErrInvalidSize, err)
	}

	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	bodyBytes, err := parseSize("server.max_body_size", config.Server.MaxBodySize)
	if err != nil {
		return err
	}

	config.Server.MaxBodyBytes, err = safeconv.Uint64ToInt64(bodyBytes)
	if err != nil {
		return fmt.Errorf("%w: server.max_body_size: %w", ErrInvalidSize, err)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

func parseSize(key, value string) (uint64, error) {
	size, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", ErrInvalidSize, key, value, err)
	}

	if size == 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidSize, key)
	}

	return size, nil
}
