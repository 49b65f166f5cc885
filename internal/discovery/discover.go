// Package discovery reconstructs logical test cases from the sidecar files
// found under a tests root.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"iocheck/internal/casefile"
	"iocheck/internal/trace"
)

var (
	// ErrDiscovery is matched by every DiscoveryError.
	ErrDiscovery = errors.New("discovery failed")
	// ErrNoCases reports a tests root without a single recognised sidecar file.
	ErrNoCases = errors.New("no test cases found")
	// ErrCollision is matched by CollisionError.
	ErrCollision = errors.New("case name collision")
)

// DiscoveryError is fatal: it aborts the run before any case executes.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Is makes every DiscoveryError match ErrDiscovery.
func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// CollisionError reports two cases that render to the same full name.
type CollisionError struct {
	Name  string
	First string // directory of the first case
	Other string // directory of the colliding case
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("case name %q is used by both %s and %s", e.Name, e.First, e.Other)
}

// Is makes every CollisionError match ErrCollision.
func (e *CollisionError) Is(target error) bool { return target == ErrCollision }

// Discover walks root recursively (root included) and returns one case per
// distinct (directory, base name) pair among files with a recognised
// suffix. Symlinked directories are followed; a directory already visited
// under another path is skipped. Sub-directories are never cases themselves. Cases are sorted by
// identifier; the order carries no meaning beyond stable output.
func Discover(ctx context.Context, root string) ([]casefile.Case, error) {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.LevelDebug, "discover", root)

	info, err := os.Stat(root)
	if err != nil {
		span.End("error")
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		span.End("error")
		return nil, &DiscoveryError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	type key struct{ dir, name string }
	seen := make(map[key]struct{})
	visited := make(map[string]bool)
	var cases []casefile.Case

	// walk visits the real directory dir, reporting paths under the
	// logical directory as the user sees them through symlinks.
	var walk func(dir, logical string) error
	walk = func(dir, logical string) error {
		return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			lp := filepath.Join(logical, rel)
			if d.IsDir() {
				resolved, err := filepath.EvalSymlinks(p)
				if err != nil {
					return err
				}
				if visited[resolved] {
					trace.Logf(tr, trace.LevelDebug, "discover", "skip %s: already visited as %s", lp, resolved)
					return fs.SkipDir
				}
				visited[resolved] = true
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				target, err := os.Stat(p)
				if err != nil {
					trace.Logf(tr, trace.LevelWarn, "discover", "skip broken link %s: %v", lp, err)
					return nil
				}
				if target.IsDir() {
					resolved, err := filepath.EvalSymlinks(p)
					if err != nil {
						return err
					}
					return walk(resolved, lp)
				}
			}
			name, ok := caseName(d.Name())
			if !ok {
				trace.Logf(tr, trace.LevelTrace, "discover", "skip %s", lp)
				return nil
			}
			relDir, err := filepath.Rel(root, filepath.Dir(lp))
			if err != nil {
				return err
			}
			k := key{dir: relDir, name: name}
			if _, dup := seen[k]; dup {
				return nil
			}
			seen[k] = struct{}{}
			cases = append(cases, casefile.New(root, relDir, name))
			return nil
		})
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err == nil {
		err = walk(realRoot, root)
	}
	if err != nil {
		span.End("error")
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if len(cases) == 0 {
		span.End("empty")
		return nil, &DiscoveryError{Root: root, Err: ErrNoCases}
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].ID() < cases[j].ID()
	})
	span.WithExtra("cases", fmt.Sprint(len(cases))).End("")
	return cases, nil
}

// caseName strips a recognised sidecar suffix from a file name.
func caseName(file string) (string, bool) {
	ext := filepath.Ext(file)
	if _, ok := casefile.ParseSuffix(ext); !ok {
		return "", false
	}
	name := strings.TrimSuffix(file, ext)
	if name == "" {
		return "", false
	}
	return name, true
}

// CheckUnique fails with a CollisionError when two cases share a full name
// under sep.
func CheckUnique(cases []casefile.Case, sep string) error {
	owners := make(map[string]casefile.Case, len(cases))
	for _, c := range cases {
		name := c.FullName(sep)
		if prev, ok := owners[name]; ok {
			return &CollisionError{Name: name, First: prev.Dir(), Other: c.Dir()}
		}
		owners[name] = c
	}
	return nil
}

// Filter keeps cases whose identifier matches any pattern. A pattern matches
// when it is a path.Match glob for the identifier, or when it names the
// identifier or one of its namespace prefixes. No patterns keeps everything.
func Filter(cases []casefile.Case, patterns []string) ([]casefile.Case, error) {
	if len(patterns) == 0 {
		return cases, nil
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid case pattern %q: %w", p, err)
		}
	}
	out := make([]casefile.Case, 0, len(cases))
	for _, c := range cases {
		if matchesAny(c.ID(), patterns) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matchesAny(id string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if p == id || strings.HasPrefix(id, p+"/") {
			return true
		}
		if ok, _ := path.Match(p, id); ok {
			return true
		}
	}
	return false
}
