package chain

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"dblog/app/models"
	"dblog/app/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed([]byte(strings.Repeat(string([]byte{seed}), ed25519.SeedSize)))
}

func signedTx(t *testing.T, key ed25519.PrivateKey, nonce uint64, intent Intent) *Transaction {
	t.Helper()
	tx := &Transaction{ChainID: 1337, Nonce: nonce, Intent: intent}
	require.NoError(t, tx.Sign(key))
	return tx
}

func TestAddressFromPublicKey(t *testing.T) {
	key := testKey(1)
	addr := AddressFromPublicKey(key.Public().(ed25519.PublicKey))

	assert.NoError(t, models.ValidateAddress(string(addr)))
	assert.Len(t, string(addr), 42)
	assert.Equal(t, strings.ToLower(string(addr)), string(addr))
	assert.NotEqual(t, addr, AddressFromPublicKey(testKey(2).Public().(ed25519.PublicKey)))
}

func TestTransactionSignAndVerify(t *testing.T) {
	key := testKey(1)
	tx := signedTx(t, key, 0, Intent{Kind: CreatePost, Title: "my first blog", ContentHash: "h"})

	require.NoError(t, tx.Verify())
	assert.Equal(t, AddressFromPublicKey(key.Public().(ed25519.PublicKey)), tx.From)

	hash, err := tx.Hash()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "0x"))
	assert.Len(t, hash, 66)

	t.Run("tampered intent", func(t *testing.T) {
		bad := *tx
		bad.Intent.Title = "something else"
		assert.ErrorIs(t, bad.Verify(), ErrInvalidTransaction)
	})

	t.Run("spoofed sender", func(t *testing.T) {
		bad := *tx
		bad.From = "0x0000000000000000000000000000000000000001"
		assert.ErrorIs(t, bad.Verify(), ErrInvalidTransaction)
	})

	t.Run("missing key", func(t *testing.T) {
		bad := *tx
		bad.PublicKey = nil
		assert.ErrorIs(t, bad.Verify(), ErrInvalidTransaction)
	})

	t.Run("hash depends on nonce", func(t *testing.T) {
		other := signedTx(t, key, 1, tx.Intent)
		otherHash, err := other.Hash()
		require.NoError(t, err)
		assert.NotEqual(t, hash, otherHash)
	})
}

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{"create", Intent{Kind: CreatePost, Title: "t", ContentHash: "h"}, false},
		{"create with empty fields", Intent{Kind: CreatePost}, false},
		{"update", Intent{Kind: UpdatePost, PostID: 1, Published: true}, false},
		{"update without id", Intent{Kind: UpdatePost}, true},
		{"negative id", Intent{Kind: UpdatePost, PostID: -1}, true},
		{"unknown kind", Intent{Kind: "deletePost", PostID: 1}, true},
		{"missing kind", Intent{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReceiptErr(t *testing.T) {
	assert.NoError(t, (&Receipt{Status: StatusSuccess}).Err())
	assert.ErrorIs(t, (&Receipt{Status: StatusReverted, Error: CodeNotFound}).Err(), repositories.ErrNotFound)
	assert.ErrorIs(t, (&Receipt{Status: StatusReverted, Error: CodeUnauthorized}).Err(), repositories.ErrUnauthorized)
	assert.ErrorIs(t, (&Receipt{Status: StatusReverted, Error: CodeInternal}).Err(), ErrReverted)
}
