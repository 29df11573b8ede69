package repositories

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"dblog/app/models"

	"github.com/dgraph-io/badger/v4"
)

// DefaultBlogName is written at deployment when no name is configured.
const DefaultBlogName = "My dBlog"

// BadgerRegistry implements PostRegistry using BadgerDB. Every mutation runs in a
// single read-write transaction under mu, so the id counter, the record, the hash
// index and the event log move together.
type BadgerRegistry struct {
	db   *badger.DB
	mu   sync.Mutex
	name string
}

// NewBadgerRegistry opens the registry stored in db. The name is only written on
// first deployment; an existing registry keeps its name.
func NewBadgerRegistry(db *badger.DB, name string) (*BadgerRegistry, error) {
	if name == "" {
		name = DefaultBlogName
	}
	r := &BadgerRegistry{db: db}
	err := db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nameKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			r.name = name
			return txn.Set([]byte(nameKey), []byte(name))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r.name = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return r, nil
}

// Name returns the blog name given at deployment.
func (r *BadgerRegistry) Name() string {
	return r.name
}

// CreatePost allocates the next id and records a published post authored by the caller.
func (r *BadgerRegistry) CreatePost(ctx context.Context, exec ExecContext, title, contentHash string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caller, err := callerAddress(exec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var post *models.Post
	err = r.db.Update(func(txn *badger.Txn) error {
		id, err := getNextID(txn, PostSeqKey)
		if err != nil {
			return err
		}
		at := exec.time()
		p := &models.Post{
			ID:          int64(id),
			Title:       title,
			ContentHash: contentHash,
			Published:   true,
			Author:      caller,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		if err := setEntity(txn, postKey(p.ID), p); err != nil {
			return err
		}
		if err := indexHash(txn, contentHash, p.ID); err != nil {
			return err
		}
		if err := appendEvent(txn, models.PostCreated, p, exec); err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost overwrites title, hash and published flag of an existing post. Only the
// author may update; on any error the stored record is unchanged.
func (r *BadgerRegistry) UpdatePost(ctx context.Context, exec ExecContext, id int64, title, contentHash string, published bool) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caller, err := callerAddress(exec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var post *models.Post
	err = r.db.Update(func(txn *badger.Txn) error {
		var p models.Post
		if id < 1 {
			return ErrNotFound
		}
		if err := getEntity(txn, postKey(id), &p); err != nil {
			return err
		}
		if !p.IsAuthor(caller) {
			return ErrUnauthorized
		}

		if p.ContentHash != contentHash {
			if err := unindexHash(txn, p.ContentHash, id); err != nil {
				return err
			}
		}
		if err := indexHash(txn, contentHash, id); err != nil {
			return err
		}

		p.Title = title
		p.ContentHash = contentHash
		p.Published = published
		if at := exec.time(); at.After(p.UpdatedAt) {
			p.UpdatedAt = at
		}
		if err := setEntity(txn, postKey(id), &p); err != nil {
			return err
		}
		if err := appendEvent(txn, models.PostUpdated, &p, exec); err != nil {
			return err
		}
		post = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost resolves a post by its current content hash.
func (r *BadgerRegistry) GetPost(ctx context.Context, contentHash string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if contentHash == "" {
		return nil, ErrNotFound
	}
	var post models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		owners, err := hashOwners(txn, contentHash)
		if err != nil {
			return err
		}
		if len(owners) == 0 {
			return ErrNotFound
		}
		return getEntity(txn, postKey(owners[len(owners)-1]), &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostByID retrieves a post by ID
func (r *BadgerRegistry) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, ErrNotFound
	}
	var post models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		return getEntity(txn, postKey(id), &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPosts returns every post in id order, unpublished ones included.
func (r *BadgerRegistry) GetPosts(ctx context.Context) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts := []*models.Post{}
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(PostKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal post: %v", err)
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// EventsSince returns events with a sequence greater than afterSeq, oldest first.
// A non-positive limit returns everything.
func (r *BadgerRegistry) EventsSince(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events := []models.Event{}
	if afterSeq == math.MaxUint64 {
		return events, nil
	}
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(EventKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(afterSeq + 1)); it.Valid(); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var event models.Event
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &event)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal event: %v", err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func callerAddress(exec ExecContext) (models.Address, error) {
	caller := models.NormalizeAddress(string(exec.Caller))
	if err := models.ValidateAddress(string(caller)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCaller, exec.Caller)
	}
	return caller, nil
}

// hashOwners lists the posts currently carrying contentHash, oldest writer first.
func hashOwners(txn *badger.Txn, contentHash string) ([]int64, error) {
	var owners []int64
	err := getEntity(txn, hashKey(contentHash), &owners)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return owners, err
}

// indexHash records id as the latest writer of contentHash.
func indexHash(txn *badger.Txn, contentHash string, id int64) error {
	if contentHash == "" {
		return nil
	}
	owners, err := hashOwners(txn, contentHash)
	if err != nil {
		return err
	}
	owners = append(withoutID(owners, id), id)
	return setEntity(txn, hashKey(contentHash), owners)
}

// unindexHash removes id from the posts carrying contentHash. The entry is
// dropped only when no post carries the hash any more.
func unindexHash(txn *badger.Txn, contentHash string, id int64) error {
	if contentHash == "" {
		return nil
	}
	owners, err := hashOwners(txn, contentHash)
	if err != nil {
		return err
	}
	owners = withoutID(owners, id)
	if len(owners) == 0 {
		return txn.Delete(hashKey(contentHash))
	}
	return setEntity(txn, hashKey(contentHash), owners)
}

func withoutID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func appendEvent(txn *badger.Txn, kind models.EventKind, p *models.Post, exec ExecContext) error {
	seq, err := getNextID(txn, EventSeqKey)
	if err != nil {
		return err
	}
	event := models.Event{
		Seq:         seq,
		Kind:        kind,
		PostID:      p.ID,
		Title:       p.Title,
		ContentHash: p.ContentHash,
		Published:   p.Published,
		Author:      p.Author,
		Block:       exec.Block,
		Timestamp:   p.UpdatedAt,
		TxHash:      exec.TxHash,
	}
	return setEntity(txn, eventKey(seq), &event)
}
