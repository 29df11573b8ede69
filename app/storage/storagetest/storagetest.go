// Package storagetest holds the behaviour every ContentStore backend must share.
package storagetest

import (
	"context"
	"testing"

	"dblog/app/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the ContentStore contract.
func Run(t *testing.T, store storage.ContentStore) {
	ctx := context.Background()
	body := []byte(`{"title":"my first blog","content":"# Hello"}`)

	t.Run("put and get", func(t *testing.T) {
		id, err := store.Put(ctx, body)
		require.NoError(t, err)
		assert.Equal(t, storage.ComputeID(body), id)

		data, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, body, data)
	})

	t.Run("put is idempotent", func(t *testing.T) {
		first, err := store.Put(ctx, body)
		require.NoError(t, err)
		second, err := store.Put(ctx, body)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("returned bytes are a copy", func(t *testing.T) {
		id, err := store.Put(ctx, []byte("immutable"))
		require.NoError(t, err)
		data, err := store.Get(ctx, id)
		require.NoError(t, err)
		data[0] = 'X'

		again, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, storage.ComputeID([]byte("never stored")))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	deleter, ok := store.(storage.Deleter)
	if !ok {
		return
	}
	t.Run("delete", func(t *testing.T) {
		id, err := store.Put(ctx, []byte("short lived"))
		require.NoError(t, err)
		require.NoError(t, deleter.Delete(ctx, id))

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
