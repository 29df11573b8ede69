package memory

import (
	"context"
	"testing"

	"dblog/app/storage"
	"dblog/app/storage/storagetest"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, New())
}

func TestMemoryStoreDeleteMissing(t *testing.T) {
	store := New()
	assert.ErrorIs(t, store.Delete(context.Background(), "bafkreimissing"), storage.ErrNotFound)
	assert.Zero(t, store.Len())
}
