package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"dblog/app/models"

	"golang.org/x/crypto/sha3"
)

// IntentKind names a registry call.
type IntentKind string

const (
	CreatePost IntentKind = "createPost"
	UpdatePost IntentKind = "updatePost"
)

// Intent is the registry call a transaction asks the node to execute.
type Intent struct {
	Kind        IntentKind `json:"kind" validate:"required,oneof=createPost updatePost"`
	PostID      int64      `json:"postId,omitempty" validate:"gte=0,required_if=Kind updatePost"`
	Title       string     `json:"title"`
	ContentHash string     `json:"contentHash"`
	Published   bool       `json:"published,omitempty"`
}

// Validate checks the intent shape. Registry rules are enforced at execution.
func (i Intent) Validate() error {
	return models.Validator().Struct(i)
}

// Transaction is a signed intent bound to a chain and an account nonce.
type Transaction struct {
	ChainID   uint64         `json:"chainId"`
	Nonce     uint64         `json:"nonce"`
	From      models.Address `json:"from"`
	PublicKey []byte         `json:"publicKey"`
	Intent    Intent         `json:"intent"`
	Signature []byte         `json:"signature,omitempty"`
}

// SigningBytes is the canonical encoding of everything but the signature.
func (tx *Transaction) SigningBytes() ([]byte, error) {
	unsigned := *tx
	unsigned.Signature = nil
	data, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return data, nil
}

// Hash identifies the transaction: keccak-256 over the signing bytes and signature.
func (tx *Transaction) Hash() (string, error) {
	data, err := tx.SigningBytes()
	if err != nil {
		return "", err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Write(tx.Signature)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// Sign fills in the sender fields and signs the transaction with key.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return errors.New("invalid signing key")
	}
	pub := key.Public().(ed25519.PublicKey)
	tx.PublicKey = append([]byte(nil), pub...)
	tx.From = AddressFromPublicKey(pub)
	data, err := tx.SigningBytes()
	if err != nil {
		return err
	}
	tx.Signature = ed25519.Sign(key, data)
	return nil
}

// Verify checks the signature, that From is derived from PublicKey and that the
// intent is well formed.
func (tx *Transaction) Verify() error {
	if len(tx.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key length %d", ErrInvalidTransaction, len(tx.PublicKey))
	}
	pub := ed25519.PublicKey(tx.PublicKey)
	if models.NormalizeAddress(string(tx.From)) != AddressFromPublicKey(pub) {
		return fmt.Errorf("%w: sender does not match public key", ErrInvalidTransaction)
	}
	data, err := tx.SigningBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, data, tx.Signature) {
		return fmt.Errorf("%w: bad signature", ErrInvalidTransaction)
	}
	if err := tx.Intent.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return nil
}

// AddressFromPublicKey derives the account address: the last 20 bytes of the
// keccak-256 of the public key.
func AddressFromPublicKey(pub ed25519.PublicKey) models.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return models.Address("0x" + hex.EncodeToString(sum[12:]))
}
