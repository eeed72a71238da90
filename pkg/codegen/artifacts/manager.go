package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Manager handles writing and removing generated files
type Manager interface {
	// Write stores data at path, creating parent directories
	Write(ctx context.Context, path string, data []byte) (*GeneratedFile, error)

	// Remove deletes path and everything below it
	Remove(ctx context.Context, path string) error

	// RemoveIfEmpty deletes the directory at path when it holds nothing
	RemoveIfEmpty(ctx context.Context, path string) (bool, error)

	// Exists checks if path exists
	Exists(ctx context.Context, path string) (bool, error)
}

// FSManager implements Manager on the local filesystem
type FSManager struct {
	config *Config
}

// NewFSManager creates a new filesystem artifact manager
func NewFSManager(cfg *Config) *FSManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &FSManager{config: cfg}
}

// Write stores data at path. Files already holding identical bytes are left
// untouched and reported with Changed false.
func (m *FSManager) Write(ctx context.Context, path string, data []byte) (*GeneratedFile, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), m.config.DirMode); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}

	changed, err := WriteFileAtomic(path, data, m.config.FileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}

	return &GeneratedFile{
		Path:    path,
		Hash:    Hash(data),
		Size:    int64(len(data)),
		Changed: changed,
	}, nil
}

// Remove deletes path recursively. A missing path is not an error.
func (m *FSManager) Remove(ctx context.Context, path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoveFailed, path, err)
	}
	return nil
}

// RemoveIfEmpty deletes the directory at path and reports true when it had
// no entries. A missing or non-empty directory is left alone.
func (m *FSManager) RemoveIfEmpty(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrRemoveFailed, path, err)
	}
	if len(entries) > 0 {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrRemoveFailed, path, err)
	}
	return true, nil
}

// Exists checks if path exists
func (m *FSManager) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteFileAtomic replaces path with data through a temporary file in the
// same directory and a rename. It returns false without writing when path
// already holds data.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	return true, nil
}

// Hash returns the hex encoded sha256 of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
