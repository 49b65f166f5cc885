package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"iocheck/internal/config"
	"iocheck/internal/state"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [workspace]",
	Short: "Remove a workspace of captured output",
	Long: `Remove the workspace directory holding captured stdout/stderr files.
Without an argument the workspace comes from [run].workspace in iocheck.toml.
With --state the recorded results used by "run --failed" are dropped as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("state", false, "also drop the recorded run results")
}

func runClean(cmd *cobra.Command, args []string) error {
	dropState, err := cmd.Flags().GetBool("state")
	if err != nil {
		return fmt.Errorf("failed to get state flag: %w", err)
	}
	s := config.Defaults()
	sessionFrom(cmd).file.Apply(&s)
	workspace := s.Workspace
	if len(args) > 0 && args[0] != "" {
		workspace = args[0]
	}
	out := cmd.OutOrStdout()

	switch {
	case workspace != "":
		removed, err := removeWorkspace(workspace)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(out, "removed %s\n", workspace)
		} else {
			fmt.Fprintf(out, "workspace %s not found\n", workspace)
		}
	case !dropState:
		return fmt.Errorf("no workspace given (pass it as an argument or set [run].workspace in %s)", config.FileName)
	}

	if dropState {
		store, err := state.Open("iocheck")
		if err != nil {
			return err
		}
		if err := store.DropAll(); err != nil {
			return err
		}
		fmt.Fprintf(out, "dropped run state in %s\n", store.Dir())
	}
	return nil
}

// removeWorkspace deletes dir unless it is a filesystem root or the current
// directory. It reports false when dir does not exist.
func removeWorkspace(dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %q: %w", dir, err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return false, fmt.Errorf("failed to get working directory: %w", err)
	}
	if filepath.Dir(abs) == abs || abs == wd {
		return false, fmt.Errorf("refusing to remove %q", dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%q is not a directory", dir)
	}
	if err := os.RemoveAll(abs); err != nil {
		return false, fmt.Errorf("failed to remove %q: %w", dir, err)
	}
	return true, nil
}
