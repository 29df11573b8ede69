package models

import "time"

// Address identifies a wallet on the ledger.
type Address string

// Post is the registry record for a blog post.
type Post struct {
	ID          int64     `json:"id" validate:"gte=1"`
	Title       string    `json:"title"`
	ContentHash string    `json:"contentHash"`
	Published   bool      `json:"published"`
	Author      Address   `json:"author" validate:"required,eth_addr"`
	CreatedAt   time.Time `json:"createdAt" validate:"required"`
	UpdatedAt   time.Time `json:"updatedAt" validate:"required,gtefield=CreatedAt"`
}

// PostBody is the document stored in the content store under Post.ContentHash.
type PostBody struct {
	Title      string  `json:"title" validate:"max=256"`
	Content    string  `json:"content"`
	CoverImage string  `json:"coverImage,omitempty" validate:"omitempty,printascii,max=256"`
	Publisher  Address `json:"publisher,omitempty" validate:"omitempty,eth_addr"`
}

// EventKind names a registry event.
type EventKind string

const (
	PostCreated EventKind = "PostCreated"
	PostUpdated EventKind = "PostUpdated"
)

// Event is an entry of the registry's append-only event log.
type Event struct {
	Seq         uint64    `json:"seq"`
	Kind        EventKind `json:"kind"`
	PostID      int64     `json:"postId"`
	Title       string    `json:"title"`
	ContentHash string    `json:"contentHash"`
	Published   bool      `json:"published"`
	Author      Address   `json:"author"`
	Block       uint64    `json:"block"`
	Timestamp   time.Time `json:"timestamp"`
	TxHash      string    `json:"txHash,omitempty"`
}
