package indexer

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dblog/app/models"
)

// MemoryView is an in-process View.
type MemoryView struct {
	mu      sync.RWMutex
	records map[int64]*Record
	cursors map[string]uint64
}

func NewMemoryView() *MemoryView {
	return &MemoryView{
		records: make(map[int64]*Record),
		cursors: make(map[string]uint64),
	}
}

func (v *MemoryView) Get(ctx context.Context, id int64) (*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (v *MemoryView) Upsert(ctx context.Context, rec *Record) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.records[rec.ID]; ok && existing.LastSeq > rec.LastSeq {
		return false, nil
	}
	c := *rec
	v.records[rec.ID] = &c
	return true, nil
}

func (v *MemoryView) List(ctx context.Context, q Query) ([]*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	title := strings.ToLower(q.TitleContains)
	publisher := models.NormalizeAddress(string(q.Publisher))
	records := []*Record{}
	for _, rec := range v.records {
		if q.PublishedOnly && !rec.Published {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(rec.Title), title) {
			continue
		}
		if publisher != "" && models.NormalizeAddress(string(rec.Publisher)) != publisher {
			continue
		}
		c := *rec
		records = append(records, &c)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (v *MemoryView) Cursor(ctx context.Context, name string) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cursors[name], nil
}

func (v *MemoryView) SetCursor(ctx context.Context, name string, seq uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cursors[name] = seq
	return nil
}
