// Package factory builds a content store from a URL.
package factory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"dblog/app/storage"
	"dblog/app/storage/badgerstore"
	"dblog/app/storage/cache"
	"dblog/app/storage/fs"
	"dblog/app/storage/memory"
	"dblog/app/storage/s3"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options carries the shared resources some backends need.
type Options struct {
	DB              *badger.DB
	Redis           *redis.Client
	CacheTTL        time.Duration
	AccessKeyID     string
	SecretAccessKey string
	Logger          *zap.Logger
}

// Open returns the store described by rawURL:
//
//	memory://
//	file:///var/lib/dblog/blobs
//	badger://                      (the node's database, Options.DB)
//	s3://bucket?region=eu-west-1&endpoint=http://localhost:9000&path_style=true&prefix=blobs/&create=true
//
// When Options.Redis is set the store is wrapped in a read-through cache.
func Open(ctx context.Context, rawURL string, opts Options) (storage.ContentStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid storage url %q: %w", rawURL, err)
	}

	var store storage.ContentStore
	switch u.Scheme {
	case "memory":
		store = memory.New()
	case "file":
		dir := u.Path
		if u.Host != "" {
			dir = u.Host + u.Path
		}
		store, err = fs.New(dir)
	case "badger":
		if opts.DB == nil {
			return nil, errors.New("badger storage requires the node database")
		}
		store = badgerstore.New(opts.DB)
	case "s3":
		q := u.Query()
		pathStyle, _ := strconv.ParseBool(q.Get("path_style"))
		create, _ := strconv.ParseBool(q.Get("create"))
		store, err = s3.New(ctx, s3.Config{
			Bucket:                 u.Host,
			Region:                 q.Get("region"),
			Endpoint:               q.Get("endpoint"),
			Prefix:                 q.Get("prefix"),
			UsePathStyle:           pathStyle,
			AccessKeyID:            opts.AccessKeyID,
			SecretAccessKey:        opts.SecretAccessKey,
			CreateBucketIfNotExist: create,
		})
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if opts.Redis != nil {
		store = cache.New(store, opts.Redis, opts.CacheTTL, opts.Logger)
	}
	return store, nil
}
