// Package filestore persists each key as a JSON file in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".json"

// Store writes one file per key below Dir. Writes go to a temporary file in
// the same directory which is synced and renamed over the target, so readers
// see either the old or the new value.
type Store struct {
	dir  string
	perm fs.FileMode
}

// Option configures a Store.
type Option func(*Store)

// WithFileMode sets the permission bits of written files. Defaults to 0o644.
func WithFileMode(perm fs.FileMode) Option {
	return func(s *Store) {
		s.perm = perm
	}
}

// New creates dir when missing and returns a store rooted at it.
func New(dir string, opts ...Option) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("filestore: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %q: %w", abs, err)
	}
	s := &Store{dir: abs, perm: 0o644}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Dir returns the absolute directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file key is stored in.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

// Get reads the file for key. A missing file reports ok=false.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filestore: read %q: %w", key, err)
	}
	return data, true, nil
}

// Set atomically replaces the file for key with value.
func (s *Store) Set(ctx context.Context, key string, value []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(value); err != nil {
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("filestore: sync %q: %w", key, err)
	}
	if err = tmp.Chmod(s.perm); err != nil {
		return fmt.Errorf("filestore: chmod %q: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %q: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("filestore: rename %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists the keys currently stored, in directory order.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list %q: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
