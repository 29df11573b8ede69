package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dblog/app/chain"
	"dblog/app/indexer"
	"dblog/app/repositories"
	"dblog/app/routes"
	"dblog/app/services"
	"dblog/app/storage"
	"dblog/app/storage/memory"
	"dblog/app/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

// startNode serves a running node over HTTP and returns a client for it.
func startNode(t *testing.T) (*Client, *chain.Node, *memory.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := repositories.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	registry, err := repositories.NewBadgerRegistry(db, "")
	require.NoError(t, err)
	node, err := chain.NewNode(db, registry, chain.Config{ChainID: wallet.LocalChainID, BlockInterval: 5 * time.Millisecond}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Run(ctx)
	}()

	store := memory.New()
	srv := httptest.NewServer(routes.SetupRoutes(routes.Dependencies{Node: node, Store: store, Logger: logger}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	c, err := New(srv.URL+"/", WithPollWait(50*time.Millisecond), WithLogger(logger))
	require.NoError(t, err)
	return c, node, store
}

func TestNew(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://node", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
	c, err := New("https://node.example/", WithHTTPClient(http.DefaultClient))
	require.NoError(t, err)
	assert.Equal(t, "https://node.example", c.baseURL)
}

func TestClientAsWalletBackend(t *testing.T) {
	ctx := context.Background()
	c, node, _ := startNode(t)

	info, err := c.ChainInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet.LocalChainID, info.ChainID)
	assert.Equal(t, repositories.DefaultBlogName, info.Name)

	w := wallet.New(testKey(1), wallet.FixedBackend(c), nil, zaptest.NewLogger(t))
	require.NoError(t, w.SwitchNetwork(wallet.LocalChainID))

	var hashes []string
	for _, title := range []string{"first", "second"} {
		hash, err := w.Submit(ctx, chain.Intent{Kind: chain.CreatePost, Title: title, ContentHash: title + " hash"})
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}

	for i, hash := range hashes {
		receipt, err := w.WaitForConfirmation(ctx, hash)
		require.NoError(t, err)
		assert.True(t, receipt.Succeeded())
		assert.Equal(t, int64(i+1), receipt.PostID)
	}

	addr, _ := w.CurrentAddress()
	nonce, err := c.PendingNonce(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	receipt, err := c.TransactionReceipt(ctx, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, hashes[0], receipt.TxHash)

	post, err := node.Registry().GetPostByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", post.Title)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c, _, _ := startNode(t)

	_, err := c.GetPostByID(ctx, 42)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, http.StatusNotFound, rpcErr.Status)
	assert.Equal(t, "post_not_found", rpcErr.Code)

	_, err = c.GetPost(ctx, "nothing here")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = c.TransactionReceipt(ctx, "0xdead")
	assert.ErrorIs(t, err, chain.ErrReceiptNotFound)

	tx := &chain.Transaction{ChainID: wallet.PolygonChainID, Intent: chain.Intent{Kind: chain.CreatePost}}
	require.NoError(t, tx.Sign(testKey(3)))
	_, err = c.SendTransaction(ctx, tx)
	assert.ErrorIs(t, err, chain.ErrWrongChain)

	_, err = c.Get(ctx, storage.ComputeID([]byte("never stored")))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = c.Get(ctx, "bogus")
	assert.ErrorIs(t, err, storage.ErrInvalidID)

	waitCtx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	_, err = c.WaitForReceipt(waitCtx, "0xdead")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientAsSyncBackend(t *testing.T) {
	ctx := context.Background()
	c, _, store := startNode(t)
	logger := zaptest.NewLogger(t)

	w := wallet.New(testKey(1), wallet.FixedBackend(c), nil, logger)
	require.NoError(t, w.SwitchNetwork(wallet.LocalChainID))
	svc := services.NewPostService(w, c, c, services.Config{ConfirmTimeout: 5 * time.Second}, logger)

	post, err := svc.CreatePost(ctx, "over http", "remote body", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), post.ID)

	_, err = store.Get(ctx, post.ContentHash)
	require.NoError(t, err, "the body lives in the node's store")

	view, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote body", view.Content)

	_, err = svc.UpdatePost(ctx, post.ID, "over http, edited", "second body", "", true)
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "over http, edited", posts[0].Title)

	t.Run("indexer over rpc", func(t *testing.T) {
		v := indexer.NewMemoryView()
		ix := indexer.New(c, v, c, indexer.Config{BatchSize: 1}, logger)
		n, err := ix.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rec, err := v.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "second body", rec.Content)
		assert.True(t, rec.ContentResolved)
	})
}

func TestClientOpaqueHashes(t *testing.T) {
	ctx := context.Background()
	c, node, _ := startNode(t)

	exec := repositories.ExecContext{Caller: chain.AddressFromPublicKey(testKey(1).Public().(ed25519.PublicKey))}
	for _, hash := range []string{"a/b", "with space", "percent%2Fliteral", "q?x=1#frag"} {
		created, err := node.Registry().CreatePost(ctx, exec, "t", hash)
		require.NoError(t, err)

		post, err := c.GetPost(ctx, hash)
		require.NoError(t, err, hash)
		assert.Equal(t, created.ID, post.ID)
		assert.Equal(t, hash, post.ContentHash)
	}

	_, err := c.GetPost(ctx, "a/missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestClientEventsPastTheEnd(t *testing.T) {
	ctx := context.Background()
	c, node, _ := startNode(t)

	exec := repositories.ExecContext{Caller: chain.AddressFromPublicKey(testKey(1).Public().(ed25519.PublicKey))}
	_, err := node.Registry().CreatePost(ctx, exec, "t", "h")
	require.NoError(t, err)

	events, err := c.EventsSince(ctx, math.MaxUint64, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
