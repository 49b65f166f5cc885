// Package suite turns discovered cases into named checks, runs them and
// aggregates the outcome into a Summary.
package suite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"iocheck/internal/casefile"
	"iocheck/internal/compare"
	"iocheck/internal/discovery"
	"iocheck/internal/process"
	"iocheck/internal/trace"
)

// Options configures how checks are built and executed.
type Options struct {
	Executable string
	// Workspace receives capture files under workspace/<relative dir>.
	Workspace string
	Prefix    []string
	// Dir is the target's working directory; empty inherits the harness cwd.
	Dir     string
	Env     map[string]string
	Timeout time.Duration
	// Separator joins namespace segments in check names; empty means "/".
	Separator string
	// Jobs bounds concurrent checks; values below 2 run sequentially.
	Jobs     int
	FailFast bool
	// Update rewrites existing .out/.err/.exit files from actual results.
	Update   bool
	Progress ProgressSink
}

func (o Options) separator() string {
	if o.Separator == "" {
		return casefile.DefaultSeparator
	}
	return o.Separator
}

func (o Options) sink() ProgressSink {
	if o.Progress == nil {
		return nopSink{}
	}
	return o.Progress
}

// Check is one named unit of the suite. Every check runs the same function
// parameterised by its case.
type Check struct {
	Name string
	Case casefile.Case
}

// Result is the recorded outcome of one check.
type Result struct {
	Name     string
	Case     casefile.Case
	Status   Status
	Argv     []string
	ExitCode int
	Stdout   string // capture path, empty when the target never ran
	Stderr   string
	Elapsed  time.Duration
	Failures []compare.Failure
	// Updated lists the expectation files rewritten in update mode.
	Updated []string
}

// Build derives one check per case. Names are full names under the
// configured separator and must be unique.
func Build(cases []casefile.Case, opts Options) ([]Check, error) {
	sep := opts.separator()
	if err := discovery.CheckUnique(cases, sep); err != nil {
		return nil, err
	}
	checks := make([]Check, len(cases))
	for i, c := range cases {
		checks[i] = Check{Name: c.FullName(sep), Case: c}
	}
	return checks, nil
}

// Run executes the check once. Per-case errors become failure records;
// only cancellation of ctx leaves the check skipped.
func (c Check) Run(ctx context.Context, opts Options) Result {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.LevelDebug, "check", c.Name)
	res := runCase(ctx, c, opts)
	span.WithExtra("status", string(res.Status)).End("")
	for _, f := range res.Failures {
		trace.Logf(tr, trace.LevelError, "check", "%s: %s", c.Name, f.Title())
	}
	return res
}

func runCase(ctx context.Context, c Check, opts Options) Result {
	res := Result{Name: c.Name, Case: c.Case, Status: StatusFailed}

	fail := func(err error) Result {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			res.Status = StatusSkipped
			return res
		}
		res.Failures = append(res.Failures, compare.FromError(err))
		return res
	}

	args, err := c.Case.Args()
	if err != nil {
		return fail(err)
	}
	stdin, _ := c.Case.Stdin()

	out, err := process.Run(ctx, process.Request{
		Executable: opts.Executable,
		Args:       args,
		Prefix:     opts.Prefix,
		Workspace:  filepath.Join(opts.Workspace, c.Case.RelDir),
		Name:       c.Case.Name + "_" + process.Stamp(),
		Stdin:      stdin,
		Dir:        opts.Dir,
		Env:        opts.Env,
		Timeout:    opts.Timeout,
	})
	if err != nil {
		return fail(err)
	}
	res.Argv = out.Argv
	res.ExitCode = out.ExitCode
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr
	res.Elapsed = out.Elapsed

	failures, err := compare.Compare(out, c.Case)
	if err != nil && !(opts.Update && errors.Is(err, casefile.ErrMalformedExpectation)) {
		return fail(err)
	}
	if err == nil && len(failures) == 0 {
		res.Status = StatusPassed
		return res
	}
	if !opts.Update {
		res.Failures = failures
		return res
	}

	res.Updated, err = bless(c.Case, out)
	if err != nil {
		return fail(fmt.Errorf("update %s: %w", c.Name, err))
	}
	failures, err = compare.Compare(out, c.Case)
	if err != nil {
		return fail(err)
	}
	res.Failures = failures
	if len(failures) == 0 {
		res.Status = StatusUpdated
	}
	return res
}
