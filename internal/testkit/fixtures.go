// Package testkit holds fixtures shared by package tests: case trees
// materialised from txtar archives and small shell-script targets.
package testkit

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"golang.org/x/tools/txtar"
)

// WriteTree extracts a txtar archive under root. File names may contain
// slashes; parent directories are created as needed.
func WriteTree(t testing.TB, root, archive string) {
	t.Helper()
	a := txtar.Parse([]byte(archive))
	for _, f := range a.Files {
		p := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, f.Data, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// WriteFile writes data to root/name verbatim, for content txtar cannot
// express (no trailing newline, raw bytes).
func WriteFile(t testing.TB, root, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// Script writes an executable /bin/sh script into dir and returns its path.
// Tests calling it are skipped where /bin/sh is unavailable.
func Script(t testing.TB, dir, name, body string) string {
	t.Helper()
	RequireShell(t)
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", p, err)
	}
	return p
}

// RequireShell skips the test on platforms without a POSIX shell.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
}
