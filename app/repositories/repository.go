package repositories

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnauthorized  = errors.New("caller is not the author")
	ErrInvalidCaller = errors.New("invalid caller address")
)

// OpenDB opens the badger database backing the node. An empty path opens an
// in-memory instance.
func OpenDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithLogger(nil).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}
	return db, nil
}
