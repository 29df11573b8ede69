package repositories

import (
	"context"
	"time"

	"dblog/app/models"
)

// ExecContext carries the ledger facts a mutation executes under.
type ExecContext struct {
	Caller    models.Address
	BlockTime time.Time
	Block     uint64
	TxHash    string
}

func (e ExecContext) time() time.Time {
	if e.BlockTime.IsZero() {
		return time.Now().UTC()
	}
	return e.BlockTime.UTC()
}

// PostReader is the read side of the registry.
type PostReader interface {
	GetPost(ctx context.Context, contentHash string) (*models.Post, error)
	GetPostByID(ctx context.Context, id int64) (*models.Post, error)
	GetPosts(ctx context.Context) ([]*models.Post, error)
}

// EventLog exposes the registry's ordered event stream.
type EventLog interface {
	EventsSince(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error)
}

// PostRegistry defines the registry state machine executed by the ledger node.
type PostRegistry interface {
	PostReader
	EventLog
	CreatePost(ctx context.Context, exec ExecContext, title, contentHash string) (*models.Post, error)
	UpdatePost(ctx context.Context, exec ExecContext, id int64, title, contentHash string, published bool) (*models.Post, error)
	Name() string
}
