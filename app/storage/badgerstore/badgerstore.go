package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"dblog/app/storage"

	"github.com/dgraph-io/badger/v4"
)

// BlobKeyPrefix namespaces blobs inside a shared database.
const BlobKeyPrefix = "blob:"

// Store keeps blobs in a badger database, usually the node's own.
type Store struct {
	db *badger.DB
}

func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func key(id string) []byte {
	return []byte(BlobKeyPrefix + id)
}

func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := storage.ComputeID(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key(id), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
}
