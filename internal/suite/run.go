package suite

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"iocheck/internal/trace"
)

// Summary aggregates the results of a suite run. Results keep the order of
// the checks they came from.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Updated int
	Skipped int
	Results []Result
	Elapsed time.Duration
}

// OK reports whether no check failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Failures returns the failed results in check order.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Run executes every check and returns the summary. Checks are independent:
// a failing or erroring check never prevents its siblings from running,
// unless opts.FailFast is set, in which case no new check starts after the
// first failure and the remaining ones are reported as skipped.
func Run(ctx context.Context, checks []Check, opts Options) Summary {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.LevelInfo, "suite", opts.Executable)
	sink := opts.sink()
	start := time.Now()

	results := make([]Result, len(checks))
	for i, c := range checks {
		results[i] = Result{Name: c.Name, Case: c.Case, Status: StatusSkipped}
		sink.OnEvent(Event{Case: c.Name, Index: i, Status: StatusQueued})
	}

	started := make([]bool, len(checks))
	var failed atomic.Bool
	stop := func() bool {
		return ctx.Err() != nil || (opts.FailFast && failed.Load())
	}
	runAt := func(i int) {
		c := checks[i]
		started[i] = true
		sink.OnEvent(Event{Case: c.Name, Index: i, Status: StatusRunning})
		res := c.Run(ctx, opts)
		if res.Status == StatusFailed {
			failed.Store(true)
		}
		results[i] = res
		sink.OnEvent(Event{Case: c.Name, Index: i, Status: res.Status, Failures: len(res.Failures), Elapsed: res.Elapsed})
	}

	if opts.Jobs <= 1 {
		for i := range checks {
			if stop() {
				break
			}
			runAt(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(min(opts.Jobs, max(len(checks), 1)))
		for i := range checks {
			if stop() {
				break
			}
			g.Go(func() error {
				if stop() {
					return nil
				}
				runAt(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	sum := Summary{Total: len(checks), Results: results, Elapsed: time.Since(start)}
	for i, r := range results {
		switch r.Status {
		case StatusPassed:
			sum.Passed++
		case StatusFailed:
			sum.Failed++
		case StatusUpdated:
			sum.Updated++
		case StatusSkipped:
			sum.Skipped++
			if !started[i] {
				sink.OnEvent(Event{Case: r.Name, Index: i, Status: StatusSkipped})
			}
		}
	}
	final := StatusPassed
	if !sum.OK() {
		final = StatusFailed
	}
	sink.OnEvent(Event{Index: -1, Status: final, Elapsed: sum.Elapsed})
	span.WithExtra("passed", strconv.Itoa(sum.Passed)).WithExtra("failed", strconv.Itoa(sum.Failed)).End("")
	return sum
}
