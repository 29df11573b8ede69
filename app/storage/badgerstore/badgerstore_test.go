package badgerstore

import (
	"testing"

	"dblog/app/repositories"
	"dblog/app/storage/storagetest"

	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	db, err := repositories.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storagetest.Run(t, New(db))
}
