package memory

import (
	"context"
	"sync"

	"dblog/app/storage"
)

// Store is an in-memory content store
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates a new in-memory content store
func New() *Store {
	return &Store{
		blobs: make(map[string][]byte),
	}
}

// Put stores a copy of data under its content identifier
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := storage.ComputeID(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[id]; !exists {
		s.blobs[id] = append([]byte{}, data...)
	}
	return id, nil
}

// Get returns a copy of the blob stored under id
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.blobs[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, data...), nil
}

// Delete removes a blob
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.blobs, id)
	return nil
}

// Len returns the number of stored blobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
