package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dblog/app/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "My dBlog", cfg.BlogName)
	assert.Equal(t, ":8080", cfg.Node.ListenAddr)
	assert.Equal(t, time.Second, cfg.Node.BlockInterval)
	assert.Equal(t, "badger://", cfg.Storage.URL)
	assert.Equal(t, 2*time.Minute, cfg.Client.ConfirmTimeout)
	assert.Equal(t, wallet.LocalChainID, cfg.ChainID())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DBLOG_ENV=development\nDBLOG_BLOG_NAME=Field Notes\nDBLOG_CONFIRM_TIMEOUT=30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Cleanup(func() {
		os.Unsetenv("DBLOG_ENV")
		os.Unsetenv("DBLOG_BLOG_NAME")
		os.Unsetenv("DBLOG_CONFIRM_TIMEOUT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Field Notes", cfg.BlogName)
	assert.Equal(t, 30*time.Second, cfg.Client.ConfirmTimeout)
	assert.Equal(t, wallet.MumbaiChainID, cfg.ChainID())

	n := cfg.Network()
	assert.Equal(t, "Polygon Mumbai", n.Name)
	assert.Equal(t, "http://localhost:8080", n.RPCURL)
}

func TestLoadInvalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("unknown profile", func(t *testing.T) {
		t.Setenv("DBLOG_ENV", "staging")
		_, err := Load(missing)
		assert.Error(t, err)
	})

	t.Run("bad rpc url", func(t *testing.T) {
		t.Setenv("DBLOG_RPC_URL", "not a url")
		_, err := Load(missing)
		assert.Error(t, err)
	})
}

func TestChainIDOverride(t *testing.T) {
	cfg := &Config{Env: "production"}
	assert.Equal(t, wallet.PolygonChainID, cfg.ChainID())
	cfg.Node.ChainID = 31337
	assert.Equal(t, uint64(31337), cfg.ChainID())
	assert.Equal(t, "chain 31337", cfg.Network().Name)
}
