package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"iocheck/internal/suite"
	"iocheck/internal/trace"
	"iocheck/internal/ui"
)

// runSuiteWithUI runs the suite while a Bubble Tea program renders progress.
// Quitting the UI early cancels the remaining cases.
func runSuiteWithUI(ctx context.Context, title string, checks []suite.Check, opts suite.Options) suite.Summary {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan suite.Event, 256)
	outcomeCh := make(chan suite.Summary, 1)

	go func() {
		runOpts := opts
		runOpts.Progress = suite.ChannelSink{Ch: events}
		outcomeCh <- suite.Run(ctx, checks, runOpts)
		close(events)
	}()

	model := ui.NewProgressModel(title, checks, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	_, uiErr := program.Run()
	if uiErr != nil {
		trace.Logf(trace.FromContext(ctx), trace.LevelWarn, "ui", "progress display stopped: %v", uiErr)
	}

	// The program may stop before the channel is closed; keep the runner
	// from blocking on a full channel.
	go func() {
		for range events {
		}
	}()
	select {
	case sum := <-outcomeCh:
		return sum
	default:
		cancel()
	}
	return <-outcomeCh
}
