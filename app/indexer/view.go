package indexer

import (
	"context"
	"errors"
	"time"

	"dblog/app/models"
)

var ErrNotFound = errors.New("indexed post not found")

// Record is the materialized state of a post: registry metadata joined with
// the resolved body.
type Record struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	ContentHash     string         `json:"contentHash"`
	Published       bool           `json:"published"`
	Publisher       models.Address `json:"publisher"`
	Content         string         `json:"content"`
	CoverImage      string         `json:"coverImage,omitempty"`
	ContentResolved bool           `json:"contentResolved"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	LastSeq         uint64         `json:"lastSeq"`
}

// Query filters List results. Zero values match everything.
type Query struct {
	PublishedOnly bool
	TitleContains string
	Publisher     models.Address
}

// View stores indexed records and the indexer's progress.
type View interface {
	Get(ctx context.Context, id int64) (*Record, error)
	// Upsert writes rec unless the stored record has a higher LastSeq. It
	// reports whether the write was applied.
	Upsert(ctx context.Context, rec *Record) (bool, error)
	List(ctx context.Context, q Query) ([]*Record, error)
	Cursor(ctx context.Context, name string) (uint64, error)
	SetCursor(ctx context.Context, name string, seq uint64) error
}
