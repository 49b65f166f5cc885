package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"iocheck/internal/version"
)

// errCasesFailed is returned by run when at least one case failed; the
// report has already been printed, so main only sets the exit status.
var errCasesFailed = errors.New("some cases failed")

var rootCmd = &cobra.Command{
	Use:   "iocheck",
	Short: "Golden-file tests for command-line programs",
	Long: `iocheck runs an executable once per test case and compares its exit code,
stdout and stderr with recorded expectations.

A case is a set of sibling files sharing a base name:
  NAME.in    stdin (optional)
  NAME.arg   arguments, one per line (optional)
  NAME.out   expected stdout (optional, unchecked when absent)
  NAME.err   expected stderr (optional, unchecked when absent)
  NAME.exit  expected exit code (optional, defaults to 0)`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareCommand,
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		finishCommand(cmd)
	},
}

func init() {
	rootCmd.Version = version.Get().Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("config", "", "path to iocheck.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (off|error|warn|info|debug|trace); default $IOCHECK_LOG_LEVEL, $LOG_LEVEL or warn")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to a file instead of stderr")
	rootCmd.PersistentFlags().String("log-format", "auto", "log format (auto|text|ndjson)")
}

// main executes the root command. Any error exits with status 1; a failing
// suite exits 1 without repeating the report.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	finishCommand(rootCmd)
	stop()
	if err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintf(os.Stderr, "iocheck: %v\n", err)
		}
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against the given output.
func useColor(cmd *cobra.Command, out *os.File) (bool, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorFlag {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return out != nil && isTerminal(out) && os.Getenv("NO_COLOR") == "", nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
}
