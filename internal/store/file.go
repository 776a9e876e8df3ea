package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dirPerm  = 0700
	filePerm = 0600
)

// FileBackend stores records as files below a root directory
type FileBackend struct {
	root string
}

// NewFileBackend creates a file backend rooted at dir, creating dir if needed
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("store root directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileBackend{root: dir}, nil
}

// Root returns the directory the backend is rooted at
func (b *FileBackend) Root() string {
	return b.root
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// EnsureNamespace creates the directory for prefix
func (b *FileBackend) EnsureNamespace(_ context.Context, prefix string) error {
	prefix = strings.TrimSuffix(prefix, "/")
	if err := validateKey(prefix); err != nil {
		return err
	}
	if err := os.MkdirAll(b.path(prefix), dirPerm); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", prefix, err)
	}
	return nil
}

// Exists reports whether a record file exists under key
func (b *FileBackend) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	info, err := os.Stat(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat record %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Get reads the record file under key
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return data, nil
}

// Put writes value to a temporary file and renames it over key
func (b *FileBackend) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	tmp, err := b.writeTemp(key, value)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, b.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit record %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent hard-links a fully written temporary file to key. The link
// fails if key already exists, which makes creation atomic across processes.
func (b *FileBackend) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	tmp, err := b.writeTemp(key, value)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, b.path(key)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create record %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the record file under key
func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// List walks the namespace directory for prefix
func (b *FileBackend) List(_ context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if err := validateKey(prefix); err != nil {
		return nil, err
	}

	var keys []string
	base := b.path(prefix)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the file backend
func (b *FileBackend) Close() error {
	return nil
}

// writeTemp writes value to a synced temporary file next to key
func (b *FileBackend) writeTemp(key string, value []byte) (string, error) {
	dir := filepath.Dir(b.path(key))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	name := f.Name()

	if err := f.Chmod(filePerm); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to set permissions for %s: %w", key, err)
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close %s: %w", key, err)
	}
	return name, nil
}
