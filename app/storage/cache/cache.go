package cache

import (
	"context"
	"errors"
	"time"

	"dblog/app/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "dblog:blob:"
)

// Store is a Redis read-through cache in front of another content store. Blobs
// are immutable, so entries never need invalidation besides Delete.
type Store struct {
	next   storage.ContentStore
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func New(next storage.ContentStore, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: DefaultPrefix,
		logger: logger,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	id, err := s.next.Put(ctx, data)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		s.logger.Sugar().Errorf("failed to cache blob(%s) in redis: %s", id, err.Error())
	}
	return id, nil
}

// Get serves from Redis when possible. Redis failures degrade to the backing store.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == nil {
		if storage.Verify(id, data) == nil {
			return data, nil
		}
		s.logger.Sugar().Errorf("cached blob(%s) is corrupt, refetching", id)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Sugar().Errorf("failed to get blob(%s) from redis: %s", id, err.Error())
	}

	data, err = s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		s.logger.Sugar().Errorf("failed to cache blob(%s) in redis: %s", id, err.Error())
	}
	return data, nil
}

// Delete drops the cached copy and deletes from the backing store when supported.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		s.logger.Sugar().Errorf("failed to delete blob(%s) from redis: %s", id, err.Error())
	}
	deleter, ok := s.next.(storage.Deleter)
	if !ok {
		return nil
	}
	return deleter.Delete(ctx, id)
}
