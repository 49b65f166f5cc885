package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"iocheck/internal/config"
	"iocheck/internal/trace"
)

// session carries what every subcommand needs once flags are parsed.
type session struct {
	file *config.File // nil when no iocheck.toml was found
}

type sessionKey struct{}

var (
	cleanupMu sync.Mutex
	cleanups  []func()
)

func sessionFrom(cmd *cobra.Command) *session {
	if s, ok := cmd.Context().Value(sessionKey{}).(*session); ok {
		return s
	}
	return &session{}
}

// prepareCommand loads the configuration file and installs the tracer.
func prepareCommand(cmd *cobra.Command, _ []string) error {
	file, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, sessionKey{}, &session{file: file})
	cmd.SetContext(ctx)

	cleanup, err := setupTracing(cmd, file)
	if err != nil {
		return err
	}
	addCleanup(cleanup)
	if file != nil {
		trace.Logf(trace.FromContext(cmd.Context()), trace.LevelDebug, "config", "loaded %s", file.Path)
	}
	return nil
}

func loadConfigFile(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	file, _, err := config.Discover(wd)
	return file, err
}

func addCleanup(fn func()) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanups = append(cleanups, fn)
}

// finishCommand runs registered cleanups once, newest first. It is called
// after successful commands and again by main, so failures are covered too.
func finishCommand(_ *cobra.Command) {
	cleanupMu.Lock()
	fns := cleanups
	cleanups = nil
	cleanupMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
