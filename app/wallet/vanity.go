package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"dblog/app/chain"
	"dblog/app/models"

	"go.uber.org/zap"
)

// maxVanityPrefix bounds the search; each hex digit multiplies the expected work by 16.
const maxVanityPrefix = 8

// VanityResult is a key whose address starts with the requested prefix.
type VanityResult struct {
	Key      ed25519.PrivateKey
	Address  models.Address
	Attempts uint64
}

// FindVanityKey searches for a key whose address (after 0x) starts with prefix,
// using workers goroutines. An empty prefix accepts the first key.
func FindVanityKey(ctx context.Context, prefix string, workers int, logger *zap.Logger) (*VanityResult, error) {
	prefix = strings.ToLower(strings.TrimPrefix(prefix, "0x"))
	if len(prefix) > maxVanityPrefix {
		return nil, fmt.Errorf("prefix %q is longer than %d characters", prefix, maxVanityPrefix)
	}
	if prefix != "" {
		if _, err := hex.DecodeString(prefix + strings.Repeat("0", len(prefix)%2)); err != nil {
			return nil, fmt.Errorf("prefix %q is not hexadecimal", prefix)
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var totalAttempts uint64
	resultChan := make(chan *VanityResult, 1)
	errChan := make(chan error, 1)

	worker := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				select {
				case errChan <- fmt.Errorf("failed to generate key pair: %w", err):
				default:
				}
				return
			}
			attempts := atomic.AddUint64(&totalAttempts, 1)

			addr := chain.AddressFromPublicKey(pub)
			if strings.HasPrefix(string(addr)[2:], prefix) {
				select {
				case resultChan <- &VanityResult{Key: priv, Address: addr, Attempts: attempts}:
				default:
				}
				return
			}

			if attempts%1000000 == 0 {
				logger.Info("vanity search progress", zap.Uint64("attempts", attempts))
			}
		}
	}

	for i := 0; i < workers; i++ {
		go worker()
	}

	select {
	case res := <-resultChan:
		return res, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, errors.Join(ctx.Err(), fmt.Errorf("gave up after %d attempts", atomic.LoadUint64(&totalAttempts)))
	}
}
