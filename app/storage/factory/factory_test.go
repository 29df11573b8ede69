package factory

import (
	"context"
	"path/filepath"
	"testing"

	"dblog/app/repositories"
	"dblog/app/storage/badgerstore"
	"dblog/app/storage/cache"
	"dblog/app/storage/fs"
	"dblog/app/storage/memory"
	"dblog/app/storage/s3"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	db, err := repositories.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, "memory://", Options{})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("file", func(t *testing.T) {
		store, err := Open(ctx, "file://"+filepath.Join(t.TempDir(), "blobs"), Options{})
		require.NoError(t, err)
		assert.IsType(t, &fs.Store{}, store)
	})

	t.Run("badger", func(t *testing.T) {
		store, err := Open(ctx, "badger://", Options{DB: db})
		require.NoError(t, err)
		assert.IsType(t, &badgerstore.Store{}, store)

		_, err = Open(ctx, "badger://", Options{})
		assert.Error(t, err)
	})

	t.Run("s3", func(t *testing.T) {
		store, err := Open(ctx, "s3://dblog?region=eu-west-1&path_style=true&endpoint=http://localhost:9000", Options{
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		})
		require.NoError(t, err)
		assert.IsType(t, &s3.Store{}, store)

		_, err = Open(ctx, "s3://", Options{})
		assert.Error(t, err)
	})

	t.Run("cached", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
		defer rdb.Close()
		store, err := Open(ctx, "memory://", Options{Redis: rdb})
		require.NoError(t, err)
		assert.IsType(t, &cache.Store{}, store)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := Open(ctx, "ipfs://whatever", Options{})
		assert.Error(t, err)
	})
}
