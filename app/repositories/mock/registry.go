package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"dblog/app/models"
	"dblog/app/repositories"
)

// Registry is an in-memory PostRegistry with the same semantics as the badger one.
type Registry struct {
	posts  map[int64]*models.Post
	hashes map[string][]int64
	events []models.Event
	nextID int64
	name   string
	mutex  sync.RWMutex
}

var _ repositories.PostRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		posts:  make(map[int64]*models.Post),
		hashes: make(map[string][]int64),
		nextID: 1,
		name:   repositories.DefaultBlogName,
	}
}

func (m *Registry) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.posts = make(map[int64]*models.Post)
	m.hashes = make(map[string][]int64)
	m.events = nil
	m.nextID = 1
}

func (m *Registry) Name() string {
	return m.name
}

func (m *Registry) CreatePost(ctx context.Context, exec repositories.ExecContext, title, contentHash string) (*models.Post, error) {
	caller, err := caller(exec)
	if err != nil {
		return nil, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	at := blockTime(exec)
	post := &models.Post{
		ID:          m.nextID,
		Title:       title,
		ContentHash: contentHash,
		Published:   true,
		Author:      caller,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	m.nextID++
	m.posts[post.ID] = post
	m.indexHash(contentHash, post.ID)
	m.appendEvent(models.PostCreated, post, exec)
	return post.Clone(), nil
}

func (m *Registry) UpdatePost(ctx context.Context, exec repositories.ExecContext, id int64, title, contentHash string, published bool) (*models.Post, error) {
	caller, err := caller(exec)
	if err != nil {
		return nil, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	existing, exists := m.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	if !existing.IsAuthor(caller) {
		return nil, repositories.ErrUnauthorized
	}

	post := existing.Clone()
	if post.ContentHash != contentHash {
		m.unindexHash(post.ContentHash, id)
	}
	m.indexHash(contentHash, id)
	post.Title = title
	post.ContentHash = contentHash
	post.Published = published
	if at := blockTime(exec); at.After(post.UpdatedAt) {
		post.UpdatedAt = at
	}
	m.posts[id] = post
	m.appendEvent(models.PostUpdated, post, exec)
	return post.Clone(), nil
}

func (m *Registry) GetPost(ctx context.Context, contentHash string) (*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	owners := m.hashes[contentHash]
	if len(owners) == 0 {
		return nil, repositories.ErrNotFound
	}
	return m.posts[owners[len(owners)-1]].Clone(), nil
}

func (m *Registry) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return post.Clone(), nil
}

func (m *Registry) GetPosts(ctx context.Context) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	posts := make([]*models.Post, 0, len(m.posts))
	for _, post := range m.posts {
		posts = append(posts, post.Clone())
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (m *Registry) EventsSince(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	events := []models.Event{}
	for _, event := range m.events {
		if event.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(events) >= limit {
			break
		}
		events = append(events, event)
	}
	return events, nil
}

// indexHash records id as the latest writer of contentHash.
func (m *Registry) indexHash(contentHash string, id int64) {
	if contentHash == "" {
		return
	}
	m.hashes[contentHash] = append(without(m.hashes[contentHash], id), id)
}

func (m *Registry) unindexHash(contentHash string, id int64) {
	owners := without(m.hashes[contentHash], id)
	if len(owners) == 0 {
		delete(m.hashes, contentHash)
		return
	}
	m.hashes[contentHash] = owners
}

func without(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (m *Registry) appendEvent(kind models.EventKind, post *models.Post, exec repositories.ExecContext) {
	m.events = append(m.events, models.Event{
		Seq:         uint64(len(m.events) + 1),
		Kind:        kind,
		PostID:      post.ID,
		Title:       post.Title,
		ContentHash: post.ContentHash,
		Published:   post.Published,
		Author:      post.Author,
		Block:       exec.Block,
		Timestamp:   post.UpdatedAt,
		TxHash:      exec.TxHash,
	})
}

func caller(exec repositories.ExecContext) (models.Address, error) {
	addr := models.NormalizeAddress(string(exec.Caller))
	if err := models.ValidateAddress(string(addr)); err != nil {
		return "", repositories.ErrInvalidCaller
	}
	return addr, nil
}

func blockTime(exec repositories.ExecContext) time.Time {
	if exec.BlockTime.IsZero() {
		return time.Now().UTC()
	}
	return exec.BlockTime.UTC()
}
