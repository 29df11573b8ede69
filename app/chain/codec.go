package chain

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

func set(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %v", key, err)
	}
	return txn.Set(key, data)
}

func unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %v", err)
	}
	return nil
}
