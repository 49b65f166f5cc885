package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"iocheck/internal/casefile"
	"iocheck/internal/testkit"
)

func ids(cases []casefile.Case) []string {
	out := make([]string, 0, len(cases))
	for _, c := range cases {
		out = append(out, c.ID())
	}
	return out
}

func TestDiscoverGroupsSidecarsIntoOneCase(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- foo.in --
hi
-- foo.out --
hi
`)
	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("expected exactly one case, got %v", ids(cases))
	}
	c := cases[0]
	if c.Name != "foo" || c.RelDir != "" || c.RootDir != root {
		t.Fatalf("unexpected case %#v", c)
	}
	code, err := c.ExitCode()
	if err != nil || code != 0 {
		t.Fatalf("ExitCode() = %d, %v", code, err)
	}
	args, err := c.Args()
	if err != nil || len(args) != 0 {
		t.Fatalf("Args() = %q, %v", args, err)
	}
	if _, ok := c.Stderr(); ok {
		t.Fatalf("stderr expectation should be absent")
	}
}

func TestDiscoverNestedNamespaces(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- a/x.out --
a
-- b/x.exit --
1
-- b/deep/y.arg --
-v
-- top.err --
-- README.md --
ignored
-- b/notes.txt --
ignored
`)
	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"a/x", "b/deep/y", "b/x", "top"}
	if diff := cmp.Diff(want, ids(cases)); diff != "" {
		t.Fatalf("case ids mismatch (-want +got):\n%s", diff)
	}
	if err := CheckUnique(cases, "_"); err != nil {
		t.Fatalf("a_x and b_x must not collide: %v", err)
	}
	for _, c := range cases {
		if c.Name == "y" && c.Namespace("_") != "b_deep" {
			t.Fatalf("namespace of y = %q", c.Namespace("_"))
		}
	}
}

func TestDiscoverSingleSidecarRegistersCase(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- only.arg --
--help
`)
	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if diff := cmp.Diff([]string{"only"}, ids(cases)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverDottedBaseNames(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- v1.2.out --
x
-- v1.2.in --
x
-- .out --
hidden, no base name
`)
	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if diff := cmp.Diff([]string{"v1.2"}, ids(cases)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrDiscovery) {
			t.Fatalf("error = %v, want ErrDiscovery", err)
		}
	})
	t.Run("empty root", func(t *testing.T) {
		root := t.TempDir()
		testkit.WriteTree(t, root, `
-- notes.txt --
nothing here
`)
		_, err := Discover(context.Background(), root)
		if !errors.Is(err, ErrDiscovery) || !errors.Is(err, ErrNoCases) {
			t.Fatalf("error = %v, want ErrDiscovery wrapping ErrNoCases", err)
		}
	})
	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		p := filepath.Join(root, "file.out")
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Discover(context.Background(), p); !errors.Is(err, ErrDiscovery) {
			t.Fatalf("error = %v, want ErrDiscovery", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		root := t.TempDir()
		testkit.WriteTree(t, root, "-- a.out --\nx\n")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Discover(ctx, root); !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}

func TestCheckUniqueDetectsCollision(t *testing.T) {
	cases := []casefile.Case{
		casefile.New("/r", "a_b", "x"),
		casefile.New("/r", filepath.Join("a", "b"), "x"),
	}
	if err := CheckUnique(cases, "/"); err != nil {
		t.Fatalf("slash-separated names must not collide: %v", err)
	}
	err := CheckUnique(cases, "_")
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("error = %v, want ErrCollision", err)
	}
	var ce *CollisionError
	if !errors.As(err, &ce) || ce.Name != "a_b_x" {
		t.Fatalf("unexpected collision error %#v", err)
	}
}

func TestFilter(t *testing.T) {
	cases := []casefile.Case{
		casefile.New("/r", "", "echo"),
		casefile.New("/r", "math", "add"),
		casefile.New("/r", "math", "sub"),
		casefile.New("/r", filepath.Join("math", "big"), "mul"),
	}
	tests := []struct {
		patterns []string
		want     []string
	}{
		{nil, []string{"echo", "math/add", "math/sub", "math/big/mul"}},
		{[]string{"math"}, []string{"math/add", "math/sub", "math/big/mul"}},
		{[]string{"math/*"}, []string{"math/add", "math/sub"}},
		{[]string{"echo", "math/s*"}, []string{"echo", "math/sub"}},
		{[]string{"nothing"}, []string{}},
	}
	for _, tc := range tests {
		got, err := Filter(cases, tc.patterns)
		if err != nil {
			t.Fatalf("Filter(%q): %v", tc.patterns, err)
		}
		if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
			t.Fatalf("Filter(%q) mismatch (-want +got):\n%s", tc.patterns, diff)
		}
	}
	if _, err := Filter(cases, []string{"["}); err == nil {
		t.Fatalf("expected error for malformed pattern")
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestDiscoverFollowsSymlinkedDirectories(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	testkit.WriteTree(t, root, `
-- top.out --
top
`)
	testkit.WriteTree(t, shared, `
-- x.in --
x
-- deeper/y.exit --
0
`)
	symlink(t, shared, filepath.Join(root, "linked"))

	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"linked/deeper/y", "linked/x", "top"}
	if diff := cmp.Diff(want, ids(cases)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	for _, c := range cases {
		if c.ID() != "linked/x" {
			continue
		}
		if p, ok := c.Stdin(); !ok || p != filepath.Join(root, "linked", "x.in") {
			t.Fatalf("Stdin() = %q, %v", p, ok)
		}
	}
}

func TestDiscoverSymlinkLoopTerminates(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, `
-- sub/case.out --
ok
`)
	symlink(t, root, filepath.Join(root, "sub", "back"))

	cases, err := Discover(context.Background(), root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if diff := cmp.Diff([]string{"sub/case"}, ids(cases)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}
