package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemStore persists generated report files under a base directory.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore prepares the base directory and returns the store.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// Save writes the payload and returns the path relative to the base dir.
func (s *FilesystemStore) Save(filename string, data []byte) (string, error) {
	clean := sanitize(filename)
	full := filepath.Join(s.baseDir, clean)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return clean, nil
}

// Open returns a handle to a stored file.
func (s *FilesystemStore) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(s.baseDir, sanitize(relPath)))
}

// Delete removes a stored file.
func (s *FilesystemStore) Delete(relPath string) error {
	return os.Remove(filepath.Join(s.baseDir, sanitize(relPath)))
}

// CleanupOlderThan deletes files whose modification time exceeds the TTL and
// returns the removed relative paths.
func (s *FilesystemStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}
	cutoff := time.Now().Add(-ttl)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err == nil {
				removed = append(removed, entry.Name())
			}
		}
	}
	return removed, nil
}

func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.ReplaceAll(name, "..", "")
}
