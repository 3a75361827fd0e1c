// Package main provides the entry point for the shelfrank CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/shelfrank/cmd/shelfrank/commands"
	"github.com/Sumatoshi-tech/shelfrank/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "shelfrank",
		Short: "Shelfrank - double-ended shelf position tracker",
		Long: `Shelfrank places items at either end of a shelf and answers, for any
placed item, how few items must be removed from one side to expose it.

Commands:
  run       Process a command stream and print query answers
  check     Compare a stream's answers against an expected answer file
  serve     Serve streams over HTTP
  mcp       Serve streams as MCP tools over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.RegisterPersistentFlags(rootCmd)

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelfrank %s\n", version.String())
		},
	}
}
