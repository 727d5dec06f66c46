package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/edgehive/device-registry/interfaces"
)

// FileStore persists a snapshot as a single file on the local filesystem.
// Saves go through a temp file and an atomic rename so a crashed save never
// leaves a truncated snapshot behind.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore creates a file-backed persistent store at the given path. The
// parent directory is created if necessary.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{path: path, log: log}, nil
}

// Load reads the snapshot file. A missing file reports interfaces.ErrAbsent.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	s.log.Debug("loaded snapshot from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))
	return data, nil
}

// Save writes the snapshot, replacing any previous one.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	s.log.Debug("saved snapshot to file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))
	return nil
}

// Name returns a unique identifier for this backend.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.path))
}
