package repositories

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const (
	// Key prefixes for different entity types
	PostKeyPrefix  = "post:"
	HashKeyPrefix  = "hash:"
	EventKeyPrefix = "event:"
	MetaKeyPrefix  = "meta:"

	// Sequence keys for auto-incrementing IDs
	PostSeqKey  = "seq:post"
	EventSeqKey = "seq:event"

	nameKey = MetaKeyPrefix + "name"
)

// getNextID gets the next available ID for a given sequence key
func getNextID(txn *badger.Txn, seqKey string) (uint64, error) {
	current, err := currentID(txn, seqKey)
	if err != nil {
		return 0, err
	}
	id := current + 1

	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	if err := txn.Set([]byte(seqKey), idBytes); err != nil {
		return 0, err
	}
	return id, nil
}

// currentID returns the last value handed out for seqKey, zero if none.
func currentID(txn *badger.Txn, seqKey string) (uint64, error) {
	item, err := txn.Get([]byte(seqKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var id uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence %q: %d bytes", seqKey, len(val))
		}
		id = binary.BigEndian.Uint64(val)
		return nil
	})
	return id, err
}

func postKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", PostKeyPrefix, id))
}

func hashKey(contentHash string) []byte {
	return []byte(HashKeyPrefix + contentHash)
}

func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", EventKeyPrefix, seq))
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %v", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %v", err)
	}
	return nil
}

func getEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, entity)
	})
}

func setEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	data, err := marshalEntity(entity)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
