package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"iocheck/internal/casefile"
	"iocheck/internal/config"
	"iocheck/internal/discovery"
	"iocheck/internal/observ"
	"iocheck/internal/report"
	"iocheck/internal/state"
	"iocheck/internal/suite"
	"iocheck/internal/trace"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [executable]",
	Short: "Run every test case against an executable",
	Long: `Discover test cases under the tests directory, run the executable once per
case and compare exit code, stdout and stderr with the recorded expectations.
The executable may also come from [run].executable in iocheck.toml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSuite,
}

func init() {
	addCaseSourceFlags(runCmd)
	runCmd.Flags().StringP("workspace", "W", "", "directory for captured output (default: a new temporary directory)")
	runCmd.Flags().String("timeout", "", "per-case timeout, e.g. 30s or 30 (seconds); default 60s")
	runCmd.Flags().IntP("jobs", "j", 1, "number of cases to run in parallel")
	runCmd.Flags().StringArray("env", nil, "set KEY=VALUE in the target's environment (repeatable)")
	runCmd.Flags().StringArray("prefix", nil, "argument to put before the executable, e.g. --prefix valgrind --prefix -q (repeatable)")
	runCmd.Flags().String("cwd", "", "working directory for the target (default: current directory)")
	runCmd.Flags().Bool("failed", false, "only run cases that failed in the previous run of this tests directory")
	runCmd.Flags().Bool("fail-fast", false, "stop starting new cases after the first failure")
	runCmd.Flags().Bool("update", false, "rewrite existing .out/.err/.exit files from the actual results")
	runCmd.Flags().String("format", "pretty", "report format (pretty|short|json|yaml)")
	runCmd.Flags().String("xlsx", "", "also export the report as an Excel workbook")
	runCmd.Flags().Bool("diff", false, "show inline diffs for small text mismatches")
	runCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

// addCaseSourceFlags registers the flags shared by run and list.
func addCaseSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("tests", "T", "", "tests directory (default: first of ./iotests, ./io_tests, ./tests)")
	cmd.Flags().StringArray("run", nil, "only cases whose name matches a glob or namespace prefix (repeatable)")
	cmd.Flags().String("separator", "", `namespace separator used in case names (default "/")`)
}

// resolveSettings layers defaults, the config file and flags, in that order.
func resolveSettings(cmd *cobra.Command, args []string) (config.Settings, error) {
	s := config.Defaults()
	sessionFrom(cmd).file.Apply(&s)
	if len(args) > 0 {
		s.Executable = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("tests") {
		v, err := flags.GetString("tests")
		if err != nil {
			return s, fmt.Errorf("failed to get tests flag: %w", err)
		}
		s.TestsDir = v
	}
	if flags.Changed("separator") {
		v, err := flags.GetString("separator")
		if err != nil {
			return s, fmt.Errorf("failed to get separator flag: %w", err)
		}
		if v == "" {
			return s, fmt.Errorf("--separator must not be empty")
		}
		s.Separator = v
	}
	if flags.Lookup("workspace") != nil && flags.Changed("workspace") {
		v, err := flags.GetString("workspace")
		if err != nil {
			return s, fmt.Errorf("failed to get workspace flag: %w", err)
		}
		s.Workspace = v
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		v, err := flags.GetString("timeout")
		if err != nil {
			return s, fmt.Errorf("failed to get timeout flag: %w", err)
		}
		d, err := config.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("invalid --timeout: %w", err)
		}
		if d == 0 {
			return s, fmt.Errorf("invalid --timeout: must be positive")
		}
		s.Timeout = d
	}
	if flags.Lookup("jobs") != nil && flags.Changed("jobs") {
		v, err := flags.GetInt("jobs")
		if err != nil {
			return s, fmt.Errorf("failed to get jobs flag: %w", err)
		}
		if v < 1 {
			return s, fmt.Errorf("--jobs must be at least 1")
		}
		s.Jobs = v
	}
	if flags.Lookup("env") != nil && flags.Changed("env") {
		v, err := flags.GetStringArray("env")
		if err != nil {
			return s, fmt.Errorf("failed to get env flag: %w", err)
		}
		env, err := config.ParseEnv(v)
		if err != nil {
			return s, err
		}
		for k, val := range env {
			s.Env[k] = val
		}
	}
	if flags.Lookup("prefix") != nil && flags.Changed("prefix") {
		v, err := flags.GetStringArray("prefix")
		if err != nil {
			return s, fmt.Errorf("failed to get prefix flag: %w", err)
		}
		s.Prefix = v
	}
	if flags.Lookup("cwd") != nil && flags.Changed("cwd") {
		v, err := flags.GetString("cwd")
		if err != nil {
			return s, fmt.Errorf("failed to get cwd flag: %w", err)
		}
		s.Dir = v
	}

	if s.TestsDir == "" {
		dir, err := config.FindTestsDir(".")
		if err != nil {
			return s, err
		}
		s.TestsDir = dir
	}
	return s, nil
}

// absExecutable makes a path-like executable absolute so it does not depend
// on the target's working directory. Bare names are left for PATH lookup.
func absExecutable(exe string) (string, error) {
	if !strings.ContainsAny(exe, "/"+string(filepath.Separator)) {
		return exe, nil
	}
	return filepath.Abs(exe)
}

// selectCases discovers the cases and applies --run and --failed.
func selectCases(cmd *cobra.Command, s config.Settings, store *state.Store) ([]casefile.Case, error) {
	ctx := cmd.Context()
	cases, err := discovery.Discover(ctx, s.TestsDir)
	if err != nil {
		return nil, err
	}
	patterns, err := cmd.Flags().GetStringArray("run")
	if err != nil {
		return nil, fmt.Errorf("failed to get run flag: %w", err)
	}
	cases, err = discovery.Filter(cases, patterns)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Lookup("failed") != nil {
		onlyFailed, err := cmd.Flags().GetBool("failed")
		if err != nil {
			return nil, fmt.Errorf("failed to get failed flag: %w", err)
		}
		if onlyFailed {
			if store == nil {
				return nil, fmt.Errorf("--failed needs the run state cache, which is unavailable")
			}
			rec, ok, err := store.Get(s.TestsDir)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no previous run recorded for %s", s.TestsDir)
			}
			cases = keepIDs(cases, rec.Failed())
		}
	}
	return cases, nil
}

// keepIDs keeps the cases whose canonical ID is listed.
func keepIDs(cases []casefile.Case, ids []string) []casefile.Case {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := cases[:0:0]
	for _, c := range cases {
		if want[c.ID()] {
			out = append(out, c)
		}
	}
	return out
}

func runSuite(cmd *cobra.Command, args []string) error {
	timer := observ.NewTimer()
	tr := trace.FromContext(cmd.Context())

	phase := timer.Begin(observ.PhaseConfig)
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	if s.Executable == "" {
		return fmt.Errorf("no executable given (pass it as an argument or set [run].executable in %s)", config.FileName)
	}
	if s.Executable, err = absExecutable(s.Executable); err != nil {
		return err
	}
	createdWorkspace, err := s.ResolveWorkspace()
	if err != nil {
		return err
	}
	if createdWorkspace {
		trace.Logf(tr, trace.LevelInfo, "workspace", "created %s", s.Workspace)
	}

	format, err := flagString(cmd, "format")
	if err != nil {
		return err
	}
	reportFormat, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	xlsxPath, err := flagString(cmd, "xlsx")
	if err != nil {
		return err
	}
	uiValue, err := flagString(cmd, "ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	failFast, err := cmd.Flags().GetBool("fail-fast")
	if err != nil {
		return fmt.Errorf("failed to get fail-fast flag: %w", err)
	}
	update, err := cmd.Flags().GetBool("update")
	if err != nil {
		return fmt.Errorf("failed to get update flag: %w", err)
	}
	withDiff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return fmt.Errorf("failed to get diff flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	timer.End(phase, "")

	store, err := state.Open("iocheck")
	if err != nil {
		trace.Logf(tr, trace.LevelWarn, "state", "run state disabled: %v", err)
		store = nil
	}

	phase = timer.Begin(observ.PhaseDiscover)
	cases, err := selectCases(cmd, s, store)
	if err != nil {
		timer.End(phase, "error")
		return err
	}
	opts := suite.Options{
		Executable: s.Executable,
		Workspace:  s.Workspace,
		Prefix:     s.Prefix,
		Dir:        s.Dir,
		Env:        s.Env,
		Timeout:    s.Timeout,
		Separator:  s.Separator,
		Jobs:       s.Jobs,
		FailFast:   failFast,
		Update:     update,
	}
	checks, err := suite.Build(cases, opts)
	if err != nil {
		timer.End(phase, "error")
		return err
	}
	timer.End(phase, fmt.Sprintf("%d cases", len(checks)))
	if len(checks) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no cases selected")
		return nil
	}
	for _, c := range checks {
		trace.Logf(tr, trace.LevelDebug, "discover", "case %s", c.Name)
	}
	trace.Logf(tr, trace.LevelInfo, "run", "%d cases from %s, workspace %s", len(checks), s.TestsDir, s.Workspace)

	phase = timer.Begin(observ.PhaseRun)
	var sum suite.Summary
	if !quiet && shouldUseTUI(mode) {
		sum = runSuiteWithUI(cmd.Context(), "iocheck "+filepath.Base(s.Executable), checks, opts)
	} else {
		sum = suite.Run(cmd.Context(), checks, opts)
	}
	timer.End(phase, fmt.Sprintf("%d passed, %d failed", sum.Passed, sum.Failed))
	if err := cmd.Context().Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}

	phase = timer.Begin(observ.PhaseReport)
	if store != nil {
		if err := store.Put(state.NewRecord(s.TestsDir, s.Executable, sum)); err != nil {
			trace.Logf(tr, trace.LevelWarn, "state", "failed to save run state: %v", err)
		}
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	err = report.Write(cmd.OutOrStdout(), sum, report.Options{
		Format: reportFormat,
		Meta:   report.Meta{Executable: s.Executable, TestsDir: s.TestsDir, Workspace: s.Workspace},
		Color:  colored,
		Diff:   withDiff,
		Quiet:  quiet,
	})
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if xlsxPath != "" {
		doc := report.NewDocument(sum, report.Meta{Executable: s.Executable, TestsDir: s.TestsDir, Workspace: s.Workspace}, false)
		if err := report.WriteXLSX(xlsxPath, doc); err != nil {
			return err
		}
	}
	timer.End(phase, "")

	if showTimings {
		printTimings(cmd.ErrOrStderr(), timer)
	}
	if !sum.OK() {
		return errCasesFailed
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) (string, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return v, nil
}
