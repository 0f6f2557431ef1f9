// Package fileutil provides shared file operation helpers.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned when the target exists and overwriting was not requested.
var ErrExists = errors.New("output already exists")

// AtomicFile is a temporary file next to its target that replaces the target on Commit.
// Readers of the target never observe a partial write.
type AtomicFile struct {
	*os.File

	target string
	perm   os.FileMode
}

// CreateAtomic creates the temporary file for target. The temporary name ends in suffix,
// which lets tools that infer a format from the extension write into it.
// Callers must defer CleanupOnError.
func CreateAtomic(target string, perm os.FileMode, suffix string, overwrite bool) (*AtomicFile, error) {
	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return nil, fmt.Errorf("%w: %q", ErrExists, target)
		}
	}

	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &AtomicFile{File: tmp, target: target, perm: perm}, nil
}

// CleanupOnError closes the temp file and removes it if the write failed.
func (a *AtomicFile) CleanupOnError(errp *error) {
	a.File.Close() //nolint:gosec // best-effort cleanup

	if *errp != nil {
		os.Remove(a.Name()) //nolint:gosec // best-effort cleanup
	}
}

// Commit closes the temporary file, applies the permissions and renames it over the target.
// It returns the size of the committed file.
func (a *AtomicFile) Commit() (int64, error) {
	if err := a.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return 0, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Chmod(a.Name(), a.perm); err != nil {
		return 0, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(a.Name(), a.target); err != nil {
		return 0, fmt.Errorf("renaming output file: %w", err)
	}

	info, err := os.Stat(a.target)
	if err != nil {
		return 0, fmt.Errorf("stat output %q: %w", a.target, err)
	}

	return info.Size(), nil
}

// Target returns the final path.
func (a *AtomicFile) Target() string {
	return a.target
}
