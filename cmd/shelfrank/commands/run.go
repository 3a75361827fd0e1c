package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/config"
	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/render"
)

const cliRunOperation = "cli.run"

// RunCommand holds the configuration for the run command.
type RunCommand struct {
	inputFormat string
	format      string
	output      string
	stats       bool
	maxCommands int64

	initObservability observabilityInit
}

// NewRunCommand creates and configures the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(observability.Init)
}

func newRunCommandWithDeps(initFn observabilityInit) *cobra.Command {
	rc := &RunCommand{initObservability: initFn}

	cobraCmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Process a command stream and print query answers",
		Long: `Process a command stream and print one answer per query.

The input is a text stream (a count line followed by that many commands such
as "L 7", "R 3" or "? 7") or a JSON script. Inputs ending in .lz4 are
decompressed transparently. Without an input, or with "-", stdin is read.

Examples:
  shelfrank run commands.txt
  shelfrank run -f json --stats script.json
  cat commands.txt | shelfrank run -o answers.txt.lz4`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.Run,
	}

	cobraCmd.Flags().StringVar(&rc.inputFormat, "input-format", "",
		"Input format: auto, text or json (default from config)")
	cobraCmd.Flags().StringVarP(&rc.format, "format", "f", "",
		"Output format: plain, json or yaml (default from config)")
	cobraCmd.Flags().StringVarP(&rc.output, "output", "o", "",
		"Write answers to a file instead of stdout (.lz4 compresses)")
	cobraCmd.Flags().BoolVar(&rc.stats, "stats", false, "Print stream statistics to stderr")
	cobraCmd.Flags().Int64Var(&rc.maxCommands, "max-commands", -1,
		"Reject streams declaring more commands than this (0 = unlimited)")

	return cobraCmd
}

// Run executes the run command.
func (rc *RunCommand) Run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rc.applyDefaults(cfg)

	tel, err := startTelemetry(rc.initObservability, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}

	defer tel.shutdown()

	ctx := cmd.Context()
	start := time.Now()
	done := tel.red.TrackInflight(ctx, cliRunOperation)

	stats, runErr := rc.process(cmd, args, cfg, tel.runner())

	done()

	status := observability.StatusOK
	if runErr != nil {
		status = observability.StatusError
	}

	tel.red.RecordRequest(ctx, cliRunOperation, status, time.Since(start))

	if rc.stats && stats != nil {
		statsErr := render.WriteStats(cmd.ErrOrStderr(), *stats)
		if statsErr != nil && runErr == nil {
			runErr = statsErr
		}
	}

	return runErr
}

func (rc *RunCommand) applyDefaults(cfg *config.Config) {
	if rc.inputFormat == "" {
		rc.inputFormat = cfg.Run.InputFormat
	}

	if rc.format == "" {
		rc.format = cfg.Run.OutputFormat
	}

	if rc.maxCommands < 0 {
		rc.maxCommands = cfg.Run.MaxCommands
	}
}

// process streams the input through runner. The returned stats are nil when
// the stream never started.
func (rc *RunCommand) process(
	cmd *cobra.Command, args []string, cfg *config.Config, runner *engine.Runner,
) (*engine.Stats, error) {
	inputPath := command.StdStream
	if len(args) > 0 {
		inputPath = args[0]
	}

	format, err := command.ResolveInputFormat(inputPath, rc.inputFormat)
	if err != nil {
		return nil, err
	}

	input, err := openInput(cmd, inputPath)
	if err != nil {
		return nil, err
	}

	defer input.Close()

	output, err := openOutput(cmd, rc.output)
	if err != nil {
		return nil, err
	}

	answers, err := render.NewAnswerWriter(output, rc.format)
	if err != nil {
		return nil, errors.Join(err, output.Close())
	}

	src, err := command.NewSource(input, format,
		command.WithMaxCommands(rc.maxCommands),
		command.WithMaxLineSize(cfg.Run.MaxLineBytes),
	)
	if err != nil {
		return nil, errors.Join(err, answers.Abort(), output.Close())
	}

	stats, err := runner.Run(cmd.Context(), src, answers.Write)
	if err != nil {
		return &stats, errors.Join(err, answers.Abort(), output.Close())
	}

	err = answers.Close()
	if err != nil {
		return &stats, errors.Join(err, output.Close())
	}

	err = output.Close()
	if err != nil {
		return &stats, fmt.Errorf("close output: %w", err)
	}

	return &stats, nil
}

// openInput opens path, reading the command's stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == command.StdStream {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	return command.Open(path)
}

// openOutput creates path, writing to the command's stdout when unset.
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == command.StdStream {
		return nopCloser{Writer: cmd.OutOrStdout()}, nil
	}

	return command.Create(path)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
