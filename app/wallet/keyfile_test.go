package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.json")
	key := testKey(7)

	require.NoError(t, SaveKeyFile(path, key))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	err = SaveKeyFile(path, testKey(8))
	assert.ErrorIs(t, err, ErrKeyFileExists)
}

func TestLoadKeyFileRejectsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	kf := NewKeyFile(testKey(1))
	kf.Address = NewKeyFile(testKey(2)).Address

	data := []byte(`{"address":"` + string(kf.Address) + `","publicKey":"` + kf.PublicKey + `","privateKey":"` + kf.PrivateKey + `"}`)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err := LoadKeyFile(path)
	assert.Error(t, err)

	_, err = LoadKeyFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
