package routes

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dblog/app/chain"
	"dblog/app/indexer"
	"dblog/app/models"
	"dblog/app/repositories"
	"dblog/app/services"
	"dblog/app/storage/memory"
	"dblog/app/wallet"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	node    *chain.Node
	store   *memory.Store
	wallet  *wallet.Wallet
	posts   *services.PostService
	view    *indexer.MemoryView
	indexer *indexer.Indexer
	router  *mux.Router
}

func testKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

// setupTestEnv starts a node producing blocks every few milliseconds and a
// router serving it with a wallet unlocked with key seed 1.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := repositories.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry, err := repositories.NewBadgerRegistry(db, "Test Blog")
	require.NoError(t, err)
	node, err := chain.NewNode(db, registry, chain.Config{ChainID: wallet.LocalChainID, BlockInterval: 5 * time.Millisecond}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	w := wallet.New(testKey(1), wallet.FixedBackend(node), nil, logger)
	require.NoError(t, w.SwitchNetwork(wallet.LocalChainID))

	store := memory.New()
	posts := services.NewPostService(w, registry, store, services.Config{
		ConfirmTimeout: 5 * time.Second,
		GatewayURL:     "https://gateway.test/ipfs",
		ValidateBodies: true,
	}, logger)
	view := indexer.NewMemoryView()

	return &testEnv{
		node:    node,
		store:   store,
		wallet:  w,
		posts:   posts,
		view:    view,
		indexer: indexer.New(registry, view, store, indexer.Config{}, logger),
		router: SetupRoutes(Dependencies{
			Node:       node,
			Store:      store,
			Posts:      posts,
			View:       view,
			GatewayURL: "https://gateway.test/ipfs/",
			Logger:     logger,
		}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func execAs(addr models.Address) repositories.ExecContext {
	return repositories.ExecContext{Caller: addr}
}
