// Package state remembers the outcome of the last run per tests directory,
// so a later run can select only the cases that failed.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"iocheck/internal/suite"
)

// Current schema version; bump when Record changes incompatibly.
const schemaVersion uint16 = 2

// Store keeps run records under a cache directory, one file per tests root.
// Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// Record is the persisted outcome of one run. Cases are keyed by canonical
// case ID so lookups do not depend on the separator of the run.
type Record struct {
	Schema     uint16
	TestsDir   string
	Executable string
	Finished   time.Time
	Cases      map[string]CaseRecord
}

// CaseRecord is the persisted outcome of one case.
type CaseRecord struct {
	Status   string
	ExitCode int
	Elapsed  time.Duration
	Failures []string
}

// Open returns a store rooted at the standard cache location for app.
func Open(app string) (*Store, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir returns a store rooted at dir, creating it when missing.
func OpenDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir is the directory holding the records.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(testsDir string) string {
	abs, err := filepath.Abs(testsDir)
	if err != nil {
		abs = testsDir
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(s.dir, "runs", hex.EncodeToString(sum[:])+".mp")
}

// NewRecord captures a suite summary for persistence.
func NewRecord(testsDir, executable string, sum suite.Summary) *Record {
	rec := &Record{
		Schema:     schemaVersion,
		TestsDir:   testsDir,
		Executable: executable,
		Finished:   time.Now().UTC(),
		Cases:      make(map[string]CaseRecord, len(sum.Results)),
	}
	for _, r := range sum.Results {
		cr := CaseRecord{Status: string(r.Status), ExitCode: r.ExitCode, Elapsed: r.Elapsed}
		for _, f := range r.Failures {
			cr.Failures = append(cr.Failures, f.Title())
		}
		rec.Cases[r.Case.ID()] = cr
	}
	return rec
}

// Failed returns the IDs of cases that failed, sorted.
func (r *Record) Failed() []string {
	var out []string
	for name, c := range r.Cases {
		if c.Status == string(suite.StatusFailed) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Put writes the record for its tests directory, replacing any previous one.
func (s *Store) Put(rec *Record) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(rec.TestsDir)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	rec.Schema = schemaVersion
	if err := msgpack.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		return fmt.Errorf("encode run state: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get loads the last record for testsDir. A missing or outdated record
// reports false without an error.
func (s *Store) Get(testsDir string) (*Record, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.pathFor(testsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var rec Record
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, false, fmt.Errorf("decode run state: %w", err)
	}
	if rec.Schema != schemaVersion {
		return nil, false, nil
	}
	return &rec, true, nil
}

// DropAll removes every stored record.
func (s *Store) DropAll() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(s.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
