package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"dblog/app/models"
	"dblog/app/repositories"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

var (
	ErrWrongChain         = errors.New("transaction is for a different chain")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidNonce       = errors.New("invalid nonce")
	ErrKnownTransaction   = errors.New("transaction already known")
	ErrMempoolFull        = errors.New("mempool is full")
	ErrReceiptNotFound    = errors.New("receipt not found")
)

const (
	receiptKeyPrefix = "receipt:"
	nonceKeyPrefix   = "nonce:"
	headKey          = "chain:head"
)

// Config tunes block production.
type Config struct {
	ChainID       uint64
	BlockInterval time.Duration
	MaxBlockTxs   int
	MempoolSize   int
	Clock         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ChainID == 0 {
		c.ChainID = 1337
	}
	if c.BlockInterval <= 0 {
		c.BlockInterval = time.Second
	}
	if c.MaxBlockTxs <= 0 {
		c.MaxBlockTxs = 100
	}
	if c.MempoolSize <= 0 {
		c.MempoolSize = 1024
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type head struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

// Info summarizes the chain for RPC clients.
type Info struct {
	ChainID   uint64    `json:"chainId"`
	Name      string    `json:"name"`
	Height    uint64    `json:"height"`
	BlockTime time.Time `json:"blockTime"`
	Pending   int       `json:"pending"`
}

// Node orders signed transactions into blocks and executes them against the
// registry one at a time.
type Node struct {
	cfg      Config
	db       *badger.DB
	registry repositories.PostRegistry
	logger   *zap.Logger

	mu      sync.Mutex
	pending []*Transaction
	known   map[string]struct{}
	nonces  map[models.Address]uint64
	head    head
	mined   chan struct{}

	produceMu sync.Mutex
}

// NewNode restores the chain head from db and returns a node ready to Run.
func NewNode(db *badger.DB, registry repositories.PostRegistry, cfg Config, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Node{
		cfg:      cfg.withDefaults(),
		db:       db,
		registry: registry,
		logger:   logger,
		known:    make(map[string]struct{}),
		nonces:   make(map[models.Address]uint64),
		mined:    make(chan struct{}),
	}
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(headKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &n.head)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load chain head: %w", err)
	}
	return n, nil
}

func (n *Node) ChainID() uint64 {
	return n.cfg.ChainID
}

func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head.Height
}

// Registry returns the registry for read-only calls.
func (n *Node) Registry() repositories.PostRegistry {
	return n.registry
}

func (n *Node) Info() Info {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Info{
		ChainID:   n.cfg.ChainID,
		Name:      n.registry.Name(),
		Height:    n.head.Height,
		BlockTime: n.head.Time,
		Pending:   len(n.pending),
	}
}

// PendingNonce returns the nonce the next transaction from addr must carry.
func (n *Node) PendingNonce(ctx context.Context, addr models.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nextNonce(models.NormalizeAddress(string(addr)))
}

// nextNonce must be called with mu held.
func (n *Node) nextNonce(addr models.Address) (uint64, error) {
	if nonce, ok := n.nonces[addr]; ok {
		return nonce, nil
	}
	var nonce uint64
	err := n.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nonceKeyPrefix + string(addr)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			nonce = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	n.nonces[addr] = nonce
	return nonce, nil
}

// SendTransaction validates tx and queues it for the next block. Once accepted a
// transaction cannot be withdrawn.
func (n *Node) SendTransaction(ctx context.Context, tx *Transaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tx == nil {
		return "", ErrInvalidTransaction
	}
	if tx.ChainID != n.cfg.ChainID {
		return "", fmt.Errorf("%w: got %d, want %d", ErrWrongChain, tx.ChainID, n.cfg.ChainID)
	}
	if err := tx.Verify(); err != nil {
		return "", err
	}
	hash, err := tx.Hash()
	if err != nil {
		return "", err
	}

	if _, err := n.TransactionReceipt(ctx, hash); err == nil {
		return "", ErrKnownTransaction
	} else if !errors.Is(err, ErrReceiptNotFound) {
		return "", err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.known[hash]; ok {
		return "", ErrKnownTransaction
	}
	if len(n.pending) >= n.cfg.MempoolSize {
		return "", ErrMempoolFull
	}
	from := models.NormalizeAddress(string(tx.From))
	expected, err := n.nextNonce(from)
	if err != nil {
		return "", err
	}
	if tx.Nonce != expected {
		return "", fmt.Errorf("%w: got %d, want %d", ErrInvalidNonce, tx.Nonce, expected)
	}

	n.nonces[from] = expected + 1
	n.known[hash] = struct{}{}
	n.pending = append(n.pending, tx)

	n.logger.Debug("transaction accepted",
		zap.String("hash", hash),
		zap.String("from", string(from)),
		zap.String("kind", string(tx.Intent.Kind)),
	)
	return hash, nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (n *Node) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var receipt Receipt
	err := n.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(receiptKeyPrefix + hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrReceiptNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &receipt)
		})
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// WaitForReceipt blocks until hash is mined or ctx is done.
func (n *Node) WaitForReceipt(ctx context.Context, hash string) (*Receipt, error) {
	for {
		n.mu.Lock()
		mined := n.mined
		n.mu.Unlock()

		receipt, err := n.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ErrReceiptNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-mined:
		}
	}
}

// Run produces a block every BlockInterval until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.BlockInterval)
	defer ticker.Stop()

	n.logger.Info("block producer started",
		zap.Uint64("chain_id", n.cfg.ChainID),
		zap.Duration("interval", n.cfg.BlockInterval),
	)
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("block producer stopped", zap.Uint64("height", n.Height()))
			return nil
		case <-ticker.C:
			if _, err := n.ProduceBlock(ctx); err != nil {
				n.logger.Error("failed to produce block", zap.Error(err))
			}
		}
	}
}

// ProduceBlock mines up to MaxBlockTxs pending transactions. It returns the number
// of transactions included; an empty mempool produces no block.
func (n *Node) ProduceBlock(ctx context.Context) (int, error) {
	n.produceMu.Lock()
	defer n.produceMu.Unlock()

	n.mu.Lock()
	count := len(n.pending)
	if count == 0 {
		n.mu.Unlock()
		return 0, nil
	}
	if count > n.cfg.MaxBlockTxs {
		count = n.cfg.MaxBlockTxs
	}
	batch := n.pending[:count:count]
	n.pending = append([]*Transaction(nil), n.pending[count:]...)
	next := head{Height: n.head.Height + 1, Time: n.cfg.Clock().UTC().Truncate(time.Second)}
	if next.Time.Before(n.head.Time) {
		next.Time = n.head.Time
	}
	n.mu.Unlock()

	// a block that has left the mempool always executes to the end
	execCtx := context.WithoutCancel(ctx)
	receipts := make([]*Receipt, 0, len(batch))
	hashes := make([]string, 0, len(batch))
	for _, tx := range batch {
		hash, err := tx.Hash()
		if err != nil {
			return 0, err
		}
		hashes = append(hashes, hash)
		receipts = append(receipts, n.execute(execCtx, tx, hash, next))
	}

	err := n.db.Update(func(txn *badger.Txn) error {
		for i, receipt := range receipts {
			if err := set(txn, []byte(receiptKeyPrefix+hashes[i]), receipt); err != nil {
				return err
			}
			nonce := make([]byte, 8)
			binary.BigEndian.PutUint64(nonce, batch[i].Nonce+1)
			from := models.NormalizeAddress(string(batch[i].From))
			if err := txn.Set([]byte(nonceKeyPrefix+string(from)), nonce); err != nil {
				return err
			}
		}
		return set(txn, []byte(headKey), &next)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist block %d: %w", next.Height, err)
	}

	n.mu.Lock()
	n.head = next
	for _, hash := range hashes {
		delete(n.known, hash)
	}
	close(n.mined)
	n.mined = make(chan struct{})
	n.mu.Unlock()

	n.logger.Info("block produced",
		zap.Uint64("height", next.Height),
		zap.Int("txs", len(batch)),
	)
	return len(batch), nil
}

func (n *Node) execute(ctx context.Context, tx *Transaction, hash string, h head) *Receipt {
	exec := repositories.ExecContext{
		Caller:    tx.From,
		BlockTime: h.Time,
		Block:     h.Height,
		TxHash:    hash,
	}
	receipt := &Receipt{
		TxHash:    hash,
		Status:    StatusSuccess,
		Block:     h.Height,
		BlockTime: h.Time,
	}

	var (
		post *models.Post
		err  error
	)
	switch tx.Intent.Kind {
	case CreatePost:
		post, err = n.registry.CreatePost(ctx, exec, tx.Intent.Title, tx.Intent.ContentHash)
	case UpdatePost:
		post, err = n.registry.UpdatePost(ctx, exec, tx.Intent.PostID, tx.Intent.Title, tx.Intent.ContentHash, tx.Intent.Published)
	default:
		err = fmt.Errorf("unknown intent %q", tx.Intent.Kind)
	}
	if err != nil {
		receipt.Status = StatusReverted
		receipt.Error = revertCode(err)
		receipt.PostID = tx.Intent.PostID
		n.logger.Info("transaction reverted",
			zap.String("hash", hash),
			zap.String("code", receipt.Error),
			zap.Error(err),
		)
		return receipt
	}
	receipt.PostID = post.ID
	return receipt
}
