package chain

import (
	"errors"
	"time"

	"dblog/app/repositories"
)

type ReceiptStatus string

const (
	StatusSuccess  ReceiptStatus = "success"
	StatusReverted ReceiptStatus = "reverted"
)

// Revert codes carried by reverted receipts.
const (
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

var ErrReverted = errors.New("transaction reverted")

// Receipt records the outcome of a mined transaction.
type Receipt struct {
	TxHash    string        `json:"txHash"`
	Status    ReceiptStatus `json:"status"`
	Block     uint64        `json:"block"`
	BlockTime time.Time     `json:"blockTime"`
	PostID    int64         `json:"postId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Succeeded reports whether the transaction executed.
func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Err maps a reverted receipt back to the registry error that caused it.
func (r *Receipt) Err() error {
	if r.Succeeded() {
		return nil
	}
	switch r.Error {
	case CodeNotFound:
		return repositories.ErrNotFound
	case CodeUnauthorized:
		return repositories.ErrUnauthorized
	default:
		return ErrReverted
	}
}

func revertCode(err error) string {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, repositories.ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
