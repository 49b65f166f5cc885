package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"iocheck/internal/config"
	"iocheck/internal/trace"
)

const defaultLogLevel = "warn"

// resolveLogLevel picks the first non-empty of the flag, $IOCHECK_LOG_LEVEL,
// $LOG_LEVEL, the config file and the default.
func resolveLogLevel(flagValue string, file *config.File) string {
	candidates := []string{flagValue, os.Getenv("IOCHECK_LOG_LEVEL"), os.Getenv("LOG_LEVEL")}
	if file != nil {
		candidates = append(candidates, file.Log.Level)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return defaultLogLevel
}

// setupTracing inspects logging flags and initializes the tracer.
// It returns a cleanup function and an error if initialization fails.
func setupTracing(cmd *cobra.Command, file *config.File) (func(), error) {
	root := cmd.Root()

	levelStr, err := root.PersistentFlags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	output, err := root.PersistentFlags().GetString("log-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-file flag: %w", err)
	}
	formatStr, err := root.PersistentFlags().GetString("log-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-format flag: %w", err)
	}

	level, err := trace.ParseLevel(resolveLogLevel(levelStr, file))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, ok := trace.ParseFormat(formatStr)
	if !ok {
		return nil, fmt.Errorf("invalid --log-format value %q (expected auto|text|ndjson)", formatStr)
	}
	if output == "" && file != nil {
		s := config.Settings{}
		file.Apply(&s)
		output = s.LogFile
	}

	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Format:     format,
		OutputPath: output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "log: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "log: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
