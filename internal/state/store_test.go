package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"iocheck/internal/casefile"
	"iocheck/internal/compare"
	"iocheck/internal/suite"
)

func sampleSummary() suite.Summary {
	return suite.Summary{
		Total:  3,
		Passed: 1,
		Failed: 2,
		Results: []suite.Result{
			{Name: "a/ok", Case: casefile.New("/t", "a", "ok"), Status: suite.StatusPassed, Elapsed: time.Millisecond},
			{Name: "b/bad", Case: casefile.New("/t", "b", "bad"), Status: suite.StatusFailed, ExitCode: 1, Failures: []compare.Failure{
				{Kind: compare.KindStatusMismatch, ExpectedCode: 0, ActualCode: 1},
			}},
			{Name: "a/bad", Case: casefile.New("/t", "a", "bad"), Status: suite.StatusFailed, Failures: []compare.Failure{
				{Kind: compare.KindOutputMismatch, Stream: compare.StreamStdout},
			}},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenDir(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	testsDir := t.TempDir()

	if _, ok, err := store.Get(testsDir); err != nil || ok {
		t.Fatalf("empty store Get = %v, %v", ok, err)
	}

	rec := NewRecord(testsDir, "/bin/target", sampleSummary())
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(testsDir)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !got.Finished.Equal(rec.Finished) {
		t.Fatalf("Finished = %v, want %v", got.Finished, rec.Finished)
	}
	if diff := cmp.Diff(rec.Cases, got.Cases); diff != "" {
		t.Fatalf("cases mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a/bad", "b/bad"}, got.Failed()); diff != "" {
		t.Fatalf("Failed mismatch (-want +got):\n%s", diff)
	}
	if got.Cases["b/bad"].Failures[0] != "status code check failed: expected 0, got 1" {
		t.Fatalf("failure title not persisted: %v", got.Cases["b/bad"].Failures)
	}
}

func TestStoreKeysByTestsDir(t *testing.T) {
	store, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	one, two := t.TempDir(), t.TempDir()
	if err := store.Put(NewRecord(one, "x", sampleSummary())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := store.Get(two); ok {
		t.Fatalf("record leaked to another tests directory")
	}
}

func TestStoreCorruptRecord(t *testing.T) {
	store, err := OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	testsDir := t.TempDir()
	rec := NewRecord(testsDir, "x", sampleSummary())
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(store.pathFor(testsDir), []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Get(testsDir); err == nil {
		t.Fatalf("expected decode error for corrupt record")
	}
}

func TestStoreDropAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	testsDir := t.TempDir()
	if err := store.Put(NewRecord(testsDir, "x", sampleSummary())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, ok, err := store.Get(testsDir); err != nil || ok {
		t.Fatalf("Get after DropAll = %v, %v", ok, err)
	}
	if err := store.DropAll(); err != nil {
		t.Fatalf("second DropAll: %v", err)
	}
}

func TestOpenHonoursXDGCacheHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	store, err := Open("iocheck")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Dir() != filepath.Join(base, "iocheck") {
		t.Fatalf("Dir = %q", store.Dir())
	}
}

func TestRecordKeysByCanonicalID(t *testing.T) {
	sum := suite.Summary{Results: []suite.Result{
		{Name: "x::y::bad", Case: casefile.New("/t", filepath.Join("x", "y"), "bad"), Status: suite.StatusFailed},
		{Name: "x::ok", Case: casefile.New("/t", "x", "ok"), Status: suite.StatusPassed},
	}}
	rec := NewRecord("/t", "x", sum)
	if diff := cmp.Diff([]string{"x/y/bad"}, rec.Failed()); diff != "" {
		t.Fatalf("Failed mismatch (-want +got):\n%s", diff)
	}
}
