// Package staging creates isolated working copies of package directories.
//
// Every install, payload build and message exchange runs inside a staged copy
// so the package at rest is never mutated and no two invocations ever share a
// working directory.
package staging

import (
	"errors"
	"fmt"
	"os"
)

// ErrSourceMissing is returned when the package directory to stage does not
// exist.
var ErrSourceMissing = errors.New("source package directory does not exist")

// WorkDir is an exclusive staged copy of a package directory. Callers must
// release it on every exit path.
type WorkDir struct {
	path string
}

// Stage copies the full contents of sourceDir into a freshly created
// temporary directory and returns a handle to it.
func Stage(sourceDir string) (*WorkDir, error) {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, sourceDir)
	}

	dir, err := os.MkdirTemp("", "deaddrop-stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	if err := os.CopyFS(dir, os.DirFS(sourceDir)); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to stage %s: %w", sourceDir, err)
	}

	return &WorkDir{path: dir}, nil
}

// Path returns the staged directory path.
func (w *WorkDir) Path() string {
	return w.path
}

// Release recursively deletes the staged directory. Safe to call more than
// once.
func (w *WorkDir) Release() {
	if w.path != "" {
		os.RemoveAll(w.path)
		w.path = ""
	}
}
