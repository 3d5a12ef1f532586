package resource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts as regular files. Relative locations are
// resolved against Root when it is set, else against the working directory.
type LocalStore struct {
	Root string
}

func (s LocalStore) path(location string) string {
	if s.Root == "" || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(s.Root, location)
}

// Exists implements Store. Only regular files count as existing.
func (s LocalStore) Exists(_ context.Context, location string) (bool, error) {
	info, err := os.Stat(s.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Open implements Store.
func (s LocalStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return f, err
}

// Write implements Store. Data goes to a temporary file in the target
// directory, is synced, and is then renamed over the final path, so readers
// either see the previous state or the complete new artifact.
func (s LocalStore) Write(_ context.Context, location string, fn func(w io.Writer) error) error {
	path := s.path(location)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := fn(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// Remove implements Store.
func (s LocalStore) Remove(_ context.Context, location string) error {
	err := os.Remove(s.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return err
}
