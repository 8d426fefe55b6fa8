// Package artifact manages the chart files produced by query runs.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDir is used when a Store has no directory configured.
const DefaultDir = "output_plots"

// Store hands out unique artifact paths under Dir.
type Store struct {
	Dir string
	// Now is overridable in tests.
	Now func() time.Time
}

func (s Store) dir() string {
	if strings.TrimSpace(s.Dir) == "" {
		return DefaultDir
	}
	return s.Dir
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewPath returns a fresh path of the form
// <dir>/plot_<YYYYmmdd_HHMMSS_ffffff>_<8 hex>.png and ensures the directory exists.
func (s Store) NewPath() (string, error) {
	dir := s.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	ts := s.now().Format("20060102_150405.000000")
	ts = strings.Replace(ts, ".", "_", 1)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return filepath.Join(dir, fmt.Sprintf("plot_%s_%s.png", ts, id)), nil
}

// Exists reports whether a regular file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path exists.
func (s Store) Exists(path string) bool { return Exists(path) }

// Remove deletes path idempotently.
func (s Store) Remove(path string) error { return Remove(path) }

// Resolve maps a bare artifact file name to its path inside the store,
// rejecting anything that is not a plain base name.
func (s Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir(), name), nil
}

// Prune removes plot files in the store older than olderThan and returns
// the number removed.
func (s Store) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output dir: %w", err)
	}
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "plot_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := Remove(filepath.Join(s.dir(), e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
