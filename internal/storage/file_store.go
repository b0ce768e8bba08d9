package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"osnova/go-core/internal/securestore"
)

var (
	ErrNotFound    = errors.New("storage entry not found")
	ErrInvalidPath = errors.New("storage path escapes the store root")
)

// FileStore persists encrypted blobs under a base directory. It knows nothing
// about identities or keys; every call takes the caller's 256-bit key.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory (0700) if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Write encrypts data under key and stores it at the relative path, creating
// parent directories.
func (s *FileStore) Write(relPath string, data, key []byte) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	return securestore.WriteEncryptedFile(full, key, data)
}

// Read loads and decrypts the entry at the relative path.
func (s *FileStore) Read(relPath string, key []byte) ([]byte, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := securestore.ReadDecryptedFile(full, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}
	return data, err
}

func (s *FileStore) Exists(relPath string) bool {
	full, err := s.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Delete removes the entry and reports whether anything was removed.
func (s *FileStore) Delete(relPath string) (bool, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns store-relative paths of every file under relPath, recursively.
func (s *FileStore) List(relPath string) ([]string, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var files []string
	err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ClearDir removes the directory at relPath and everything under it.
func (s *FileStore) ClearDir(relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

func (s *FileStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
	}
	return filepath.Join(s.basePath, cleaned), nil
}
