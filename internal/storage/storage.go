// Package storage persists plain JSON-serialisable values under string keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get for keys that were never set or were deleted.
var ErrNotFound = errors.New("storage: key not found")

// Store is a key-value store of JSON documents.
type Store interface {
	// Get decodes the value stored under key into v.
	Get(ctx context.Context, key string, v any) error
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, v any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// BaseDir returns the root data directory (~/.tally).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tally"), nil
}

// Open returns the store for backend rooted at path. An empty path selects
// the default location below BaseDir.
func Open(backend, path string) (Store, error) {
	if path == "" {
		base, err := BaseDir()
		if err != nil {
			return nil, err
		}
		switch backend {
		case BackendSQLite:
			path = filepath.Join(base, "tally.db")
		default:
			path = filepath.Join(base, "data")
		}
	}
	switch backend {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", backend, BackendFile, BackendSQLite)
}
