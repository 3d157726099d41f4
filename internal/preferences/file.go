package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// FileStore persists preferences as a flat TOML table in a single file.
// Every write rewrites the file atomically.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// NewFile opens, or prepares to create, the preference file at path.
func NewFile(path string) (*FileStore, error) {
	store := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}

		return nil, fmt.Errorf("failed to read preference file '%s': %w", path, err)
	}

	err = toml.Unmarshal(data, &store.values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preference file '%s': %w", path, err)
	}

	return store, nil
}

// Get returns the value stored under key.
func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value, found := f.values[key]

	return value, found, nil
}

// Set stores value under key and flushes the file.
func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.values[key]
	f.values[key] = value

	err := f.flush()
	if err != nil {
		if existed {
			f.values[key] = previous
		} else {
			delete(f.values, key)
		}

		return err
	}

	return nil
}

// Delete removes key and flushes the file.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.values[key]
	if !existed {
		return nil
	}

	delete(f.values, key)

	err := f.flush()
	if err != nil {
		f.values[key] = previous

		return err
	}

	return nil
}

// Close is a no-op; every write is already flushed.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) flush() error {
	data, err := toml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(f.path)

	err = os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create preference directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".preferences-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp preference file: %w", err)
	}

	tempName := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()

	if writeErr == nil && closeErr == nil {
		writeErr = os.Chmod(tempName, filePermissions)
	}

	if writeErr == nil && closeErr == nil {
		writeErr = os.Rename(tempName, f.path)
	}

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("failed to write preference file '%s': %w", f.path, errors.Join(writeErr, closeErr))
	}

	return nil
}
