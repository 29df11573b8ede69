package chain

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"dblog/app/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestNode(t *testing.T, cfg Config) (*Node, *badger.DB) {
	t.Helper()
	db, err := repositories.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry, err := repositories.NewBadgerRegistry(db, "")
	require.NoError(t, err)
	node, err := NewNode(db, registry, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return node, db
}

func TestNodeMinesTransactions(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}
	node, _ := newTestNode(t, Config{Clock: clock.Now})
	key := testKey(1)

	hash, err := node.SendTransaction(ctx, signedTx(t, key, 0, Intent{Kind: CreatePost, Title: "my first blog", ContentHash: "first blog content hash"}))
	require.NoError(t, err)

	_, err = node.TransactionReceipt(ctx, hash)
	assert.ErrorIs(t, err, ErrReceiptNotFound)

	mined, err := node.ProduceBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mined)
	assert.Equal(t, uint64(1), node.Height())

	receipt, err := node.TransactionReceipt(ctx, hash)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, int64(1), receipt.PostID)
	assert.Equal(t, uint64(1), receipt.Block)

	post, err := node.Registry().GetPost(ctx, "first blog content hash")
	require.NoError(t, err)
	assert.Equal(t, "my first blog", post.Title)
	assert.Equal(t, clock.now.UTC(), post.CreatedAt.UTC())

	events, err := node.Registry().EventsSince(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, hash, events[0].TxHash)
}

func TestNodeRejectsBadTransactions(t *testing.T) {
	ctx := context.Background()
	node, _ := newTestNode(t, Config{MempoolSize: 2})
	key := testKey(1)

	t.Run("wrong chain", func(t *testing.T) {
		tx := &Transaction{ChainID: 137, Intent: Intent{Kind: CreatePost}}
		require.NoError(t, tx.Sign(key))
		_, err := node.SendTransaction(ctx, tx)
		assert.ErrorIs(t, err, ErrWrongChain)
	})

	t.Run("bad signature", func(t *testing.T) {
		tx := signedTx(t, key, 0, Intent{Kind: CreatePost})
		tx.Signature[0] ^= 0xff
		_, err := node.SendTransaction(ctx, tx)
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("nonce gap", func(t *testing.T) {
		_, err := node.SendTransaction(ctx, signedTx(t, key, 5, Intent{Kind: CreatePost}))
		assert.ErrorIs(t, err, ErrInvalidNonce)
	})

	t.Run("duplicate", func(t *testing.T) {
		tx := signedTx(t, key, 0, Intent{Kind: CreatePost, Title: "once"})
		_, err := node.SendTransaction(ctx, tx)
		require.NoError(t, err)
		_, err = node.SendTransaction(ctx, tx)
		assert.ErrorIs(t, err, ErrKnownTransaction)
	})

	t.Run("mempool full", func(t *testing.T) {
		_, err := node.SendTransaction(ctx, signedTx(t, key, 1, Intent{Kind: CreatePost}))
		require.NoError(t, err)
		_, err = node.SendTransaction(ctx, signedTx(t, key, 2, Intent{Kind: CreatePost}))
		assert.ErrorIs(t, err, ErrMempoolFull)
	})

	t.Run("mined transaction stays known", func(t *testing.T) {
		_, err := node.ProduceBlock(ctx)
		require.NoError(t, err)
		_, err = node.SendTransaction(ctx, signedTx(t, key, 0, Intent{Kind: CreatePost, Title: "once"}))
		assert.ErrorIs(t, err, ErrKnownTransaction)
	})
}

func TestNodeRevertedReceipts(t *testing.T) {
	ctx := context.Background()
	node, _ := newTestNode(t, Config{})
	alice, bob := testKey(1), testKey(2)

	_, err := node.SendTransaction(ctx, signedTx(t, alice, 0, Intent{Kind: CreatePost, Title: "mine", ContentHash: "h1"}))
	require.NoError(t, err)
	missing, err := node.SendTransaction(ctx, signedTx(t, alice, 1, Intent{Kind: UpdatePost, PostID: 9, ContentHash: "h2"}))
	require.NoError(t, err)
	stolen, err := node.SendTransaction(ctx, signedTx(t, bob, 0, Intent{Kind: UpdatePost, PostID: 1, Title: "stolen", ContentHash: "h3"}))
	require.NoError(t, err)

	mined, err := node.ProduceBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, mined)

	receipt, err := node.TransactionReceipt(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, StatusReverted, receipt.Status)
	assert.ErrorIs(t, receipt.Err(), repositories.ErrNotFound)

	receipt, err = node.TransactionReceipt(ctx, stolen)
	require.NoError(t, err)
	assert.ErrorIs(t, receipt.Err(), repositories.ErrUnauthorized)

	post, err := node.Registry().GetPostByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "mine", post.Title)

	// reverted transactions still consume the nonce
	nonce, err := node.PendingNonce(ctx, AddressFromPublicKey(bob.Public().(ed25519.PublicKey)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestNodeBlockLimitsAndTime(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Unix(1700000100, 0)}
	node, _ := newTestNode(t, Config{MaxBlockTxs: 2, Clock: clock.Now})
	key := testKey(1)

	for i := uint64(0); i < 3; i++ {
		_, err := node.SendTransaction(ctx, signedTx(t, key, i, Intent{Kind: CreatePost}))
		require.NoError(t, err)
	}

	mined, err := node.ProduceBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mined)
	first := node.Info().BlockTime

	clock.now = clock.now.Add(-time.Hour)
	mined, err = node.ProduceBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mined)
	assert.Equal(t, first, node.Info().BlockTime, "block time must not go backwards")

	mined, err = node.ProduceBlock(ctx)
	require.NoError(t, err)
	assert.Zero(t, mined)
	assert.Equal(t, uint64(2), node.Height())
}

func TestNodeWaitForReceipt(t *testing.T) {
	node, _ := newTestNode(t, Config{BlockInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	hash, err := node.SendTransaction(ctx, signedTx(t, testKey(1), 0, Intent{Kind: CreatePost, Title: "t"}))
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	receipt, err := node.WaitForReceipt(waitCtx, hash)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())

	shortCtx, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	_, err = node.WaitForReceipt(shortCtx, "0xunknown")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNodeRestoresState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := testKey(1)

	open := func() (*Node, *badger.DB) {
		db, err := repositories.OpenDB(dir)
		require.NoError(t, err)
		registry, err := repositories.NewBadgerRegistry(db, "")
		require.NoError(t, err)
		node, err := NewNode(db, registry, Config{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		return node, db
	}

	node, db := open()
	_, err := node.SendTransaction(ctx, signedTx(t, key, 0, Intent{Kind: CreatePost}))
	require.NoError(t, err)
	_, err = node.ProduceBlock(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	node, db = open()
	defer db.Close()
	assert.Equal(t, uint64(1), node.Height())
	nonce, err := node.PendingNonce(ctx, AddressFromPublicKey(key.Public().(ed25519.PublicKey)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}
