package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dblog/app/storage"
)

// Store keeps blobs as files, sharded into sub-directories by the next-to-last
// two characters of the identifier.
type Store struct {
	baseDir string
}

// New creates a filesystem content store rooted at baseDir
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) path(id string) string {
	shard := id[len(id)-3 : len(id)-1]
	return filepath.Join(s.baseDir, shard, id)
}

// Put writes data atomically; an existing blob is left untouched.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := storage.ComputeID(data)
	filePath := s.path(id)

	if _, err := os.Stat(filePath); err == nil {
		return id, nil
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return id, nil
}

// Get reads a blob and checks it against its identifier.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if err := storage.Verify(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes a blob and its shard directory once empty.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	filePath := s.path(id)
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	dir := filepath.Dir(filePath)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
	return nil
}
