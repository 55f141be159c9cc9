// Package local provides a core.FileStore rooted in a directory on the local
// filesystem. Writes go through a temporary file and an atomic rename so
// readers never observe a partially written memory blob.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/storage"
)

// Options configures the local store.
type Options struct {
	// DirPerm is used when creating parent directories.
	DirPerm os.FileMode
	// FilePerm is applied to written files.
	FilePerm os.FileMode
}

// Store is a directory-rooted FileStore.
type Store struct {
	root string
	opts Options
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{DirPerm: 0o755, FilePerm: 0o644}
	for _, fn := range optFns {
		fn(&opts)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local: resolve root %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, opts.DirPerm); err != nil {
		return nil, fmt.Errorf("local: create root %q: %w", abs, err)
	}
	return &Store{root: abs, opts: opts}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) resolve(p string) (string, string, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Read implements core.FileStore.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("local: read %s: %w", key, err)
	}
	return data, nil
}

// Write implements core.FileStore.
func (s *Store) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, full, err := s.resolve(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, s.opts.DirPerm); err != nil {
		return fmt.Errorf("local: mkdir for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("local: temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("local: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("local: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local: close %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, s.opts.FilePerm); err != nil {
		return fmt.Errorf("local: chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("local: rename %s: %w", key, err)
	}
	return nil
}

// Delete implements core.FileStore.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, full, err := s.resolve(p)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("local: delete %s: %w", key, err)
	}
	return nil
}

// List implements core.FileStore. Temporary files from in-flight writes and
// directories are skipped.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(os.DirFS(s.root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("local: list %q: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if isTemp(m) {
			continue
		}
		out = append(out, m)
	}
	return storage.FilterSorted(pattern, out), nil
}

func isTemp(p string) bool {
	base := filepath.Base(p)
	return len(base) > 5 && base[:5] == ".tmp-"
}
