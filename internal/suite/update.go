package suite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"iocheck/internal/casefile"
	"iocheck/internal/process"
)

// bless rewrites the case's existing .out, .err and .exit files from an
// actual result. Missing sidecars stay missing.
func bless(c casefile.Case, res *process.Result) ([]string, error) {
	var updated []string
	if p, ok := c.Stdout(); ok {
		if err := copyAtomic(res.Stdout, p); err != nil {
			return updated, err
		}
		updated = append(updated, p)
	}
	if p, ok := c.Stderr(); ok {
		if err := copyAtomic(res.Stderr, p); err != nil {
			return updated, err
		}
		updated = append(updated, p)
	}
	if p, ok := c.Resolve(casefile.SuffixExit); ok {
		data := []byte(fmt.Sprintf("%d\n", res.ExitCode))
		if err := writeAtomic(p, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return updated, err
		}
		updated = append(updated, p)
	}
	return updated, nil
}

func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeAtomic replaces path with the content produced by fill, keeping the
// original permissions.
func writeAtomic(path string, fill func(io.Writer) error) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".iocheck-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
