package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"iocheck/internal/casefile"
	"iocheck/internal/compare"
	"iocheck/internal/discovery"
	"iocheck/internal/testkit"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) terminal() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Status)
	for _, e := range s.events {
		if e.Case != "" && e.Status.Done() {
			out[e.Case] = e.Status
		}
	}
	return out
}

// setup materialises a tests tree and returns the checks built from it.
func setup(t *testing.T, archive string, opts *Options) []Check {
	t.Helper()
	testkit.RequireShell(t)
	root := t.TempDir()
	testkit.WriteTree(t, root, archive)
	cases, err := discovery.Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if opts.Workspace == "" {
		opts.Workspace = t.TempDir()
	}
	checks, err := Build(cases, *opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return checks
}

func echoTarget(t *testing.T) string {
	t.Helper()
	return testkit.Script(t, t.TempDir(), "echo", `for a in "$@"; do echo "$a"; done`)
}

func TestRunPassingCase(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	checks := setup(t, `
-- t1.arg --
hi
-- t1.out --
hi
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Total != 1 || sum.Passed != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %d/%d/%d, want 1/1/0", sum.Total, sum.Passed, sum.Failed)
	}
	r := sum.Results[0]
	if r.Name != "t1" || r.Status != StatusPassed {
		t.Fatalf("unexpected result %+v", r)
	}
	if filepath.Dir(r.Stdout) != opts.Workspace || !strings.HasPrefix(filepath.Base(r.Stdout), "t1_") {
		t.Fatalf("capture not under workspace: %s", r.Stdout)
	}
}

func TestRunStatusMismatch(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Executable: testkit.Script(t, dir, "fail", `echo hi; exit 1`)}
	checks := setup(t, `
-- t1.out --
hi
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", sum)
	}
	got := sum.Failures()[0].Failures
	want := []compare.Failure{{Kind: compare.KindStatusMismatch, ExpectedCode: 0, ActualCode: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNamespacedCasesWithSameName(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	checks := setup(t, `
-- a/x.out --
-- b/x.out --
-- b/x.arg --
oops
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Total != 2 || sum.Passed != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Results[0].Name != "a/x" || sum.Results[1].Name != "b/x" {
		t.Fatalf("names = %s, %s", sum.Results[0].Name, sum.Results[1].Name)
	}
	if sum.Results[1].Status != StatusFailed {
		t.Fatalf("b/x should fail on stdout")
	}
	if got := filepath.Dir(sum.Results[0].Stdout); got != filepath.Join(opts.Workspace, "a") {
		t.Fatalf("a/x capture dir = %s", got)
	}
}

func TestRunErroringCaseDoesNotStopSiblings(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	checks := setup(t, `
-- bad.exit --
not a number
-- good.out --
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Passed != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	bad := sum.Failures()[0]
	if bad.Name != "bad" || bad.Failures[0].Kind != compare.KindMalformedExpectation {
		t.Fatalf("unexpected failure %+v", bad)
	}
}

func TestRunMissingExecutableFailsEveryCase(t *testing.T) {
	opts := Options{Executable: filepath.Join(t.TempDir(), "nope")}
	checks := setup(t, `
-- a.out --
-- b.out --
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Failed != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	for _, r := range sum.Results {
		if r.Failures[0].Kind != compare.KindExecutionError {
			t.Fatalf("%s: kind = %s", r.Name, r.Failures[0].Kind)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Executable: testkit.Script(t, dir, "slow", `sleep 30`),
		Timeout:    200 * time.Millisecond,
	}
	checks := setup(t, `
-- slow.out --
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Failed != 1 || sum.Results[0].Failures[0].Kind != compare.KindExecutionTimeout {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	checks := setup(t, `
-- a.arg --
one
-- a.out --
one
-- b.exit --
3
`, &opts)

	first := Run(context.Background(), checks, opts)
	second := Run(context.Background(), checks, opts)
	status := func(s Summary) []Status {
		var out []Status
		for _, r := range s.Results {
			out = append(out, r.Status)
		}
		return out
	}
	if diff := cmp.Diff(status(first), status(second)); diff != "" {
		t.Fatalf("reruns disagree (-first +second):\n%s", diff)
	}
	if first.Passed != 1 || first.Failed != 1 {
		t.Fatalf("summary = %+v", first)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	var archive strings.Builder
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		archive.WriteString("-- " + name + ".arg --\n" + name + "\n")
		out := name
		if name == "d" {
			out = "wrong"
		}
		archive.WriteString("-- " + name + ".out --\n" + out + "\n")
	}
	checks := setup(t, archive.String(), &opts)

	seq := Run(context.Background(), checks, opts)
	sink := &recordingSink{}
	par := opts
	par.Jobs = 4
	par.Progress = sink
	got := Run(context.Background(), checks, par)

	if seq.Passed != got.Passed || seq.Failed != got.Failed || got.Failed != 1 {
		t.Fatalf("sequential %+v vs parallel %+v", seq, got)
	}
	for i := range got.Results {
		if got.Results[i].Name != checks[i].Name {
			t.Fatalf("result %d out of order: %s", i, got.Results[i].Name)
		}
	}
	terminal := sink.terminal()
	if len(terminal) != len(checks) || terminal["d"] != StatusFailed {
		t.Fatalf("terminal events = %v", terminal)
	}
}

func TestRunFailFastSkipsRemaining(t *testing.T) {
	opts := Options{Executable: echoTarget(t), FailFast: true}
	checks := setup(t, `
-- a.exit --
1
-- b.out --
-- c.out --
`, &opts)

	sink := &recordingSink{}
	opts.Progress = sink
	sum := Run(context.Background(), checks, opts)
	if sum.Failed != 1 || sum.Skipped != 2 || sum.Total != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	want := map[string]Status{"a": StatusFailed, "b": StatusSkipped, "c": StatusSkipped}
	if diff := cmp.Diff(want, sink.terminal()); diff != "" {
		t.Fatalf("terminal events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCancelledContextSkips(t *testing.T) {
	opts := Options{Executable: echoTarget(t)}
	checks := setup(t, `
-- a.out --
`, &opts)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := Run(ctx, checks, opts)
	if sum.Skipped != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestBuildDetectsCollisions(t *testing.T) {
	cases := []casefile.Case{
		casefile.New("/t", "a_b", "x"),
		casefile.New("/t", "a/b", "x"),
	}
	if _, err := Build(cases, Options{}); err != nil {
		t.Fatalf("default separator must not collide: %v", err)
	}
	_, err := Build(cases, Options{Separator: "_"})
	if !errors.Is(err, discovery.ErrCollision) {
		t.Fatalf("error = %v, want ErrCollision", err)
	}
}

func TestUpdateRewritesExistingExpectationsOnly(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Executable: testkit.Script(t, dir, "fresh", `echo fresh; echo noise >&2; exit 2`),
		Update:     true,
	}
	checks := setup(t, `
-- a.out --
stale
-- a.exit --
0
`, &opts)
	c := checks[0].Case

	sum := Run(context.Background(), checks, opts)
	if sum.Updated != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	out, err := os.ReadFile(c.Path(casefile.SuffixOut))
	if err != nil || string(out) != "fresh\n" {
		t.Fatalf(".out = %q, %v", out, err)
	}
	code, err := c.ExitCode()
	if err != nil || code != 2 {
		t.Fatalf("exit = %d, %v", code, err)
	}
	if _, ok := c.Stderr(); ok {
		t.Fatalf("update must not create a .err file")
	}
	updated := append([]string(nil), sum.Results[0].Updated...)
	sort.Strings(updated)
	want := []string{c.Path(casefile.SuffixExit), c.Path(casefile.SuffixOut)}
	sort.Strings(want)
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Fatalf("updated files mismatch (-want +got):\n%s", diff)
	}

	opts.Update = false
	if again := Run(context.Background(), checks, opts); again.Passed != 1 {
		t.Fatalf("blessed case should pass, got %+v", again)
	}
}

func TestUpdateCannotFixMissingExitFile(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Executable: testkit.Script(t, dir, "fails", `exit 4`),
		Update:     true,
	}
	checks := setup(t, `
-- a.out --
`, &opts)

	sum := Run(context.Background(), checks, opts)
	if sum.Failed != 1 || sum.Results[0].Failures[0].Kind != compare.KindStatusMismatch {
		t.Fatalf("summary = %+v", sum)
	}
}
