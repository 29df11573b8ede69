package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContentUnavailable  = errors.New("content unavailable")
	ErrInvalidContent      = errors.New("invalid content")
	ErrInvalidInput        = errors.New("invalid input")
	ErrStoreFailed         = errors.New("failed to store content")
	ErrSubmissionFailed    = errors.New("failed to submit transaction")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation; the transaction may still be mined")
	ErrNoAccount           = errors.New("no account connected")
)

// SyncError describes a failed client operation.
type SyncError struct {
	Op          string
	PostID      int64
	ContentHash string
	Err         error
}

func (e *SyncError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.PostID != 0 {
		fmt.Fprintf(&b, " post %d", e.PostID)
	}
	if e.ContentHash != "" {
		fmt.Fprintf(&b, " (content %s)", e.ContentHash)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
