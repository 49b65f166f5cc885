package suite

import "time"

// Status captures the state of a single check.
type Status string

const (
	// StatusQueued indicates the check is waiting to start.
	StatusQueued Status = "queued"
	// StatusRunning indicates the target is executing.
	StatusRunning Status = "running"
	// StatusPassed indicates every check held.
	StatusPassed Status = "passed"
	// StatusFailed indicates at least one failure was recorded.
	StatusFailed Status = "failed"
	// StatusUpdated indicates the expectations were rewritten from the actual results.
	StatusUpdated Status = "updated"
	// StatusSkipped indicates the check never ran (fail-fast or cancellation).
	StatusSkipped Status = "skipped"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusUpdated, StatusSkipped:
		return true
	}
	return false
}

// Event reports progress for one check, or for the suite when Case is empty.
type Event struct {
	Case     string
	Index    int
	Status   Status
	Failures int
	Elapsed  time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from several
// goroutines when checks run in parallel.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
