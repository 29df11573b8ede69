package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("content not found")
	ErrInvalidID = errors.New("invalid content identifier")
	ErrCorrupt   = errors.New("content does not match its identifier")
)

// ContentStore is a content-addressed blob store. Put is idempotent: the same
// bytes always map to the same identifier.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// Deleter is implemented by stores that can drop a blob.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// CIDv1 header for a raw-codec blob hashed with sha2-256.
var cidPrefix = []byte{0x01, 0x55, 0x12, 0x20}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// ComputeID returns the CIDv1 (raw, sha2-256, base32) of data.
func ComputeID(data []byte) string {
	sum := sha256.Sum256(data)
	raw := make([]byte, 0, len(cidPrefix)+len(sum))
	raw = append(raw, cidPrefix...)
	raw = append(raw, sum[:]...)
	return "b" + strings.ToLower(b32.EncodeToString(raw))
}

// ValidateID checks that id is a CIDv1 this package could have produced.
func ValidateID(id string) error {
	if len(id) < 2 || id[0] != 'b' {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	raw, err := b32.DecodeString(strings.ToUpper(id[1:]))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if len(raw) != len(cidPrefix)+sha256.Size || string(raw[:len(cidPrefix)]) != string(cidPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Verify checks that data hashes to id.
func Verify(id string, data []byte) error {
	if ComputeID(data) != id {
		return fmt.Errorf("%w: %s", ErrCorrupt, id)
	}
	return nil
}
