// Package process runs a target executable with file-backed stdio, an
// environment overlay and a hard timeout.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"iocheck/internal/trace"
)

// DefaultTimeout bounds a single execution when Request.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// killGrace is how long Wait keeps waiting for I/O after the kill signal.
const killGrace = 2 * time.Second

// traceOutputLimit caps how many captured bytes are echoed at trace level.
const traceOutputLimit = 4096

var (
	// ErrExec is matched by ExecError.
	ErrExec = errors.New("execution error")
	// ErrTimeout is matched by TimeoutError.
	ErrTimeout = errors.New("execution timeout")
)

// ExecError reports a target that could not be started or waited for.
type ExecError struct {
	Argv []string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %s: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is makes every ExecError match ErrExec.
func (e *ExecError) Is(target error) bool { return target == ErrExec }

// TimeoutError reports a target killed after exceeding its time budget.
// The capture files are kept but may hold partial output.
type TimeoutError struct {
	Argv    []string
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exec %s: killed after %s timeout", strings.Join(e.Argv, " "), e.Timeout)
}

// Is makes every TimeoutError match ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Request describes one execution.
type Request struct {
	Executable string
	Args       []string
	// Prefix is prepended to the command line, e.g. {"valgrind", "-q"}.
	Prefix []string
	// Workspace receives the capture files; created when missing.
	Workspace string
	// Name is the capture file stem; derived from the executable and the
	// current time when empty.
	Name string
	// Stdin is a file to connect to the child's stdin. Empty means the null device.
	Stdin string
	// StdoutPath and StderrPath override <Workspace>/<Name>.stdout/.stderr.
	StdoutPath string
	StderrPath string
	// Dir is the child's working directory; empty inherits the harness cwd.
	Dir string
	// Env overlays the inherited environment key by key.
	Env map[string]string
	// Timeout bounds the execution; zero means DefaultTimeout.
	Timeout time.Duration
}

// Result is the outcome of an execution that ran to completion.
type Result struct {
	Argv     []string
	ExitCode int
	Stdout   string // capture file path
	Stderr   string // capture file path
	Elapsed  time.Duration
}

// Argv returns the full command line of a request.
func (r Request) Argv() []string {
	argv := make([]string, 0, len(r.Prefix)+1+len(r.Args))
	argv = append(argv, r.Prefix...)
	argv = append(argv, r.Executable)
	argv = append(argv, r.Args...)
	return argv
}

// Run executes the request and waits for the child to exit. A non-zero exit
// code is a regular Result, not an error.
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Executable == "" {
		return nil, &ExecError{Err: errors.New("no executable given")}
	}
	tr := trace.FromContext(ctx)
	argv := req.Argv()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	name := req.Name
	if name == "" {
		name = DefaultName(req.Executable)
	}
	stdoutPath := req.StdoutPath
	if stdoutPath == "" {
		stdoutPath = filepath.Join(req.Workspace, name+".stdout")
	}
	stderrPath := req.StderrPath
	if stderrPath == "" {
		stderrPath = filepath.Join(req.Workspace, name+".stderr")
	}
	for _, p := range []string{stdoutPath, stderrPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("prepare workspace: %w", err)
		}
	}

	span := trace.Begin(tr, trace.LevelInfo, "exec", strings.Join(argv, " "))
	trace.Logf(tr, trace.LevelDebug, "exec", "stdin=%s", valueOr(req.Stdin, "EMPTY"))
	trace.Logf(tr, trace.LevelTrace, "exec", "timeout=%s cwd=%s", timeout, valueOr(req.Dir, "."))

	fdOut, err := os.Create(stdoutPath)
	if err != nil {
		span.End("error")
		return nil, fmt.Errorf("create stdout capture: %w", err)
	}
	defer fdOut.Close()
	fdErr, err := os.Create(stderrPath)
	if err != nil {
		span.End("error")
		return nil, fmt.Errorf("create stderr capture: %w", err)
	}
	defer fdErr.Close()

	var fdIn *os.File
	if req.Stdin != "" {
		fdIn, err = os.Open(req.Stdin)
		if err != nil {
			span.End("error")
			return nil, fmt.Errorf("open stdin: %w", err)
		}
		defer fdIn.Close()
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdout = fdOut
	cmd.Stderr = fdErr
	if fdIn != nil {
		cmd.Stdin = fdIn
	}
	cmd.Dir = req.Dir
	cmd.Env = MergeEnv(os.Environ(), req.Env)
	cmd.WaitDelay = killGrace
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		trace.Logf(tr, trace.LevelError, "exec", "%s failed to start: %v", argv[0], err)
		span.End("error")
		return nil, &ExecError{Argv: argv, Err: err}
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		span.End("cancelled")
		return nil, ctxErr
	}
	if killedByDeadline(runCtx, waitErr) {
		trace.Logf(tr, trace.LevelError, "exec", "%s timed out after %s", argv[0], timeout)
		span.End("timeout")
		return nil, &TimeoutError{Argv: argv, Timeout: timeout, Stdout: stdoutPath, Stderr: stderrPath}
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		span.End("error")
		return nil, &ExecError{Argv: argv, Err: waitErr}
	}

	res := &Result{
		Argv:     argv,
		ExitCode: exitCode(cmd.ProcessState),
		Stdout:   stdoutPath,
		Stderr:   stderrPath,
		Elapsed:  elapsed,
	}
	span.WithExtra("exit", fmt.Sprint(res.ExitCode)).End("")
	if tr.Level().ShouldEmit(trace.LevelTrace) {
		trace.Logf(tr, trace.LevelTrace, "stdout", "%s: %q", stdoutPath, head(stdoutPath))
		trace.Logf(tr, trace.LevelTrace, "stderr", "%s: %q", stderrPath, head(stderrPath))
	}
	return res, nil
}

// killedByDeadline reports whether Wait failed because runCtx expired. A
// child that exited cleanly as the deadline passed is not a timeout.
func killedByDeadline(runCtx context.Context, waitErr error) bool {
	return waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}

// MergeEnv overlays env on base ("KEY=VALUE" entries). Overridden keys keep
// their position; new keys are appended in sorted order.
func MergeEnv(base []string, overlay map[string]string) []string {
	out := make([]string, 0, len(base)+len(overlay))
	used := make(map[string]bool, len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overlay[key]; ok {
			if used[key] {
				continue
			}
			out = append(out, key+"="+v)
			used[key] = true
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}

const stampLayout = "2006-01-02_15-04-05.000000000"

var (
	stampMu   sync.Mutex
	lastStamp time.Time
)

// Stamp returns the current time formatted for file names. Successive calls
// never return the same value, even on coarse clocks.
func Stamp() string {
	stampMu.Lock()
	defer stampMu.Unlock()
	now := time.Now().Round(0)
	if !now.After(lastStamp) {
		now = lastStamp.Add(time.Nanosecond)
	}
	lastStamp = now
	return now.Format(stampLayout)
}

// DefaultName derives a capture file stem from an executable path.
func DefaultName(executable string) string {
	base := filepath.Base(filepath.FromSlash(executable))
	return base + "_" + Stamp()
}

func head(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	data, _ := io.ReadAll(io.LimitReader(f, traceOutputLimit))
	return string(data)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
