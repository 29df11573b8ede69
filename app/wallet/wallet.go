package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"dblog/app/chain"
	"dblog/app/models"

	"go.uber.org/zap"
)

var (
	ErrLocked    = errors.New("wallet is locked")
	ErrNoNetwork = errors.New("no network selected")
)

// Wallet signs registry intents with an ed25519 key and submits them to the
// selected network.
type Wallet struct {
	submitMu sync.Mutex
	mu       sync.Mutex
	key      ed25519.PrivateKey
	dial     Dialer
	networks map[uint64]Network
	backends map[uint64]Backend
	current  uint64
	logger   *zap.Logger
}

// New creates a wallet. A nil key yields a locked wallet; no network is selected
// until SwitchNetwork is called.
func New(key ed25519.PrivateKey, dial Dialer, networks []Network, logger *zap.Logger) *Wallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(networks) == 0 {
		networks = DefaultNetworks()
	}
	w := &Wallet{
		key:      key,
		dial:     dial,
		networks: make(map[uint64]Network, len(networks)),
		backends: make(map[uint64]Backend),
		logger:   logger,
	}
	for _, n := range networks {
		w.networks[n.ChainID] = n
	}
	return w
}

// GenerateKey returns a fresh random signing key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return priv, nil
}

// CurrentAddress returns the account address, or false when the wallet is locked.
func (w *Wallet) CurrentAddress() (models.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.key == nil {
		return "", false
	}
	return chain.AddressFromPublicKey(w.key.Public().(ed25519.PublicKey)), true
}

func (w *Wallet) Unlock(key ed25519.PrivateKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.key = key
}

func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.key = nil
}

// SwitchNetwork selects the network transactions are sent to.
func (w *Wallet) SwitchNetwork(chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	network, ok := w.networks[chainID]
	if !ok {
		return fmt.Errorf("%w: chain id %d", ErrUnknownNetwork, chainID)
	}
	if _, ok := w.backends[chainID]; !ok {
		if w.dial == nil {
			return fmt.Errorf("no dialer for network %s", network.Name)
		}
		backend, err := w.dial(network)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", network.Name, err)
		}
		w.backends[chainID] = backend
	}
	w.current = chainID
	w.logger.Info("switched network", zap.Uint64("chain_id", chainID), zap.String("name", network.Name))
	return nil
}

// Network returns the selected network.
func (w *Wallet) Network() (Network, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.networks[w.current]
	return n, ok && w.current != 0
}

// Submit signs intent and sends it to the selected network. The returned hash
// identifies the transaction for WaitForConfirmation.
func (w *Wallet) Submit(ctx context.Context, intent chain.Intent) (string, error) {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	w.mu.Lock()
	key := w.key
	chainID := w.current
	backend, ok := w.backends[chainID]
	w.mu.Unlock()

	if key == nil {
		return "", ErrLocked
	}
	if !ok {
		return "", ErrNoNetwork
	}
	from := chain.AddressFromPublicKey(key.Public().(ed25519.PublicKey))

	// the pending nonce already counts queued transactions
	nonce, err := backend.PendingNonce(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	tx := &chain.Transaction{ChainID: chainID, Nonce: nonce, Intent: intent}
	if err := tx.Sign(key); err != nil {
		return "", err
	}
	hash, err := backend.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	w.logger.Debug("transaction submitted",
		zap.String("hash", hash),
		zap.Uint64("nonce", nonce),
		zap.String("kind", string(intent.Kind)),
	)
	return hash, nil
}

// WaitForConfirmation blocks until the transaction is mined on the selected
// network or ctx is done.
func (w *Wallet) WaitForConfirmation(ctx context.Context, hash string) (*chain.Receipt, error) {
	w.mu.Lock()
	backend, ok := w.backends[w.current]
	w.mu.Unlock()
	if !ok {
		return nil, ErrNoNetwork
	}
	return backend.WaitForReceipt(ctx, hash)
}
