package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
	"github.com/Sumatoshi-tech/shelfrank/pkg/engine"
	"github.com/Sumatoshi-tech/shelfrank/pkg/observability"
	"github.com/Sumatoshi-tech/shelfrank/pkg/verify"
)

// CheckCommand holds the configuration for the check command.
type CheckCommand struct {
	inputFormat string

	initObservability observabilityInit
}

// NewCheckCommand creates and configures the check command.
func NewCheckCommand() *cobra.Command {
	return newCheckCommandWithDeps(observability.Init)
}

func newCheckCommandWithDeps(initFn observabilityInit) *cobra.Command {
	cc := &CheckCommand{initObservability: initFn}

	cobraCmd := &cobra.Command{
		Use:   "check <input> <expected>",
		Short: "Compare a stream's answers against an expected answer file",
		Long: `Run a command stream and compare its answers with an expected answer
file holding one integer per line. Differences are printed as a line diff
and the command exits with an error.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // input and expected paths
		RunE: cc.Run,
	}

	cobraCmd.Flags().StringVar(&cc.inputFormat, "input-format", "",
		"Input format: auto, text or json (default from config)")

	return cobraCmd
}

// Run executes the check command.
func (cc *CheckCommand) Run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cc.inputFormat == "" {
		cc.inputFormat = cfg.Run.InputFormat
	}

	tel, err := startTelemetry(cc.initObservability, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}

	defer tel.shutdown()

	want, err := readExpected(cmd, args[1])
	if err != nil {
		return err
	}

	format, err := command.ResolveInputFormat(args[0], cc.inputFormat)
	if err != nil {
		return err
	}

	input, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}

	defer input.Close()

	src, err := command.NewSource(input, format,
		command.WithMaxCommands(cfg.Run.MaxCommands),
		command.WithMaxLineSize(cfg.Run.MaxLineBytes),
	)
	if err != nil {
		return err
	}

	got, stats, err := tel.runner().Collect(cmd.Context(), src)
	if err != nil {
		return err
	}

	return reportCheck(cmd, got, want, stats)
}

func readExpected(cmd *cobra.Command, path string) ([]int64, error) {
	expected, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}

	defer expected.Close()

	return verify.ParseAnswers(expected)
}

func reportCheck(cmd *cobra.Command, got, want []int64, stats engine.Stats) error {
	report, err := verify.Compare(got, want)
	if err != nil {
		diffErr := report.WriteDiff(cmd.ErrOrStderr())
		if diffErr != nil {
			return diffErr
		}

		return err
	}

	ok := color.New(color.FgGreen).Sprint("ok")

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d answers match (%d commands)\n",
		ok, len(got), stats.Commands())
	if err != nil {
		return fmt.Errorf("write check result: %w", err)
	}

	return nil
}
