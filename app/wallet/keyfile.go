package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dblog/app/chain"
	"dblog/app/models"
)

var ErrKeyFileExists = errors.New("key file already exists")

// KeyFile is the on-disk form of a wallet key.
type KeyFile struct {
	Address    models.Address `json:"address"`
	PublicKey  string         `json:"publicKey"`
	PrivateKey string         `json:"privateKey"`
}

// NewKeyFile describes key. The private key is stored as its 32-byte seed.
func NewKeyFile(key ed25519.PrivateKey) *KeyFile {
	pub := key.Public().(ed25519.PublicKey)
	return &KeyFile{
		Address:    chain.AddressFromPublicKey(pub),
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(key.Seed()),
	}
}

// Key decodes the private key and checks it against the recorded address.
func (k *KeyFile) Key() (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(k.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key length %d", len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	if addr := chain.AddressFromPublicKey(key.Public().(ed25519.PublicKey)); addr != models.NormalizeAddress(string(k.Address)) {
		return nil, fmt.Errorf("key file address %s does not match key (%s)", k.Address, addr)
	}
	return key, nil
}

// SaveKeyFile writes key to path with owner-only permissions. Existing files are
// never overwritten.
func SaveKeyFile(path string, key ed25519.PrivateKey) error {
	data, err := json.MarshalIndent(NewKeyFile(key), "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
	}
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Close()
}

// LoadKeyFile reads a key written by SaveKeyFile.
func LoadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	return kf.Key()
}
