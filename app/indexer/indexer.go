package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dblog/app/models"
	"dblog/app/storage"

	"go.uber.org/zap"
)

// EventSource yields registry events in ledger order.
type EventSource interface {
	EventsSince(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error)
}

// Config tunes the indexer.
type Config struct {
	// Name keys the stored cursor, so several indexers can share a view.
	Name      string
	BatchSize int
	Interval  time.Duration
}

// Indexer consumes registry events and maintains a View. Events may be
// delivered more than once; applying an event twice has no further effect.
type Indexer struct {
	source EventSource
	view   View
	store  storage.ContentStore
	cfg    Config
	logger *zap.Logger
}

func New(source EventSource, view View, store storage.ContentStore, cfg Config, logger *zap.Logger) *Indexer {
	if cfg.Name == "" {
		cfg.Name = "posts"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		source: source,
		view:   view,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Sync applies every event after the stored cursor and returns how many were applied.
func (ix *Indexer) Sync(ctx context.Context) (int, error) {
	cursor, err := ix.view.Cursor(ctx, ix.cfg.Name)
	if err != nil {
		return 0, err
	}

	applied := 0
	for {
		events, err := ix.source.EventsSince(ctx, cursor, ix.cfg.BatchSize)
		if err != nil {
			return applied, fmt.Errorf("failed to fetch events after %d: %w", cursor, err)
		}
		if len(events) == 0 {
			return applied, nil
		}
		for _, event := range events {
			if err := ix.Apply(ctx, event); err != nil {
				return applied, err
			}
			cursor = event.Seq
			applied++
		}
		if err := ix.view.SetCursor(ctx, ix.cfg.Name, cursor); err != nil {
			return applied, err
		}
		if len(events) < ix.cfg.BatchSize {
			return applied, nil
		}
	}
}

// Run syncs on every interval until ctx is cancelled.
func (ix *Indexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(ix.cfg.Interval)
	defer ticker.Stop()

	for {
		n, err := ix.Sync(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			ix.logger.Error("index sync failed", zap.Error(err))
		case n > 0:
			ix.logger.Info("indexed events", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Apply folds one event into the view.
func (ix *Indexer) Apply(ctx context.Context, event models.Event) error {
	existing, err := ix.view.Get(ctx, event.PostID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	var rec *Record
	if existing == nil || isNewer(event, existing) {
		rec = ix.fold(existing, event)
	} else {
		rec = ix.fillMissing(existing, event)
		if rec == nil {
			return nil
		}
	}

	if !rec.ContentResolved && rec.ContentHash != "" {
		ix.resolve(ctx, rec)
	}

	if _, err := ix.view.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to index post %d: %w", rec.ID, err)
	}
	return nil
}

// isNewer orders events by block timestamp, then ledger sequence.
func isNewer(event models.Event, rec *Record) bool {
	if !event.Timestamp.Equal(rec.UpdatedAt) {
		return event.Timestamp.After(rec.UpdatedAt)
	}
	return event.Seq > rec.LastSeq
}

func (ix *Indexer) fold(existing *Record, event models.Event) *Record {
	rec := &Record{ID: event.PostID}
	if existing != nil {
		*rec = *existing
	}
	if existing == nil || existing.ContentHash != event.ContentHash {
		rec.Content = ""
		rec.CoverImage = ""
		rec.ContentResolved = false
	}

	rec.Title = event.Title
	rec.ContentHash = event.ContentHash
	rec.Published = event.Published
	rec.UpdatedAt = event.Timestamp
	rec.LastSeq = event.Seq

	switch event.Kind {
	case models.PostCreated:
		rec.Publisher = event.Author
		rec.CreatedAt = event.Timestamp
	case models.PostUpdated:
		if rec.Publisher == "" {
			rec.Publisher = event.Author
		}
	}
	return rec
}

// fillMissing handles a stale or repeated event. It returns nil when the event
// adds nothing.
func (ix *Indexer) fillMissing(existing *Record, event models.Event) *Record {
	rec := *existing
	changed := false

	if event.Kind == models.PostCreated && rec.CreatedAt.IsZero() {
		rec.CreatedAt = event.Timestamp
		changed = true
	}
	if rec.Publisher == "" && event.Author != "" {
		rec.Publisher = event.Author
		changed = true
	}
	if !rec.ContentResolved && rec.ContentHash != "" && rec.ContentHash == event.ContentHash {
		changed = true
	}
	if !changed {
		return nil
	}
	return &rec
}

func (ix *Indexer) resolve(ctx context.Context, rec *Record) {
	data, err := ix.store.Get(ctx, rec.ContentHash)
	if err != nil {
		ix.logger.Warn("post body unavailable",
			zap.Int64("post_id", rec.ID),
			zap.String("content_hash", rec.ContentHash),
			zap.Error(err),
		)
		return
	}
	body, err := models.DecodePostBody(data)
	if err != nil {
		ix.logger.Warn("post body is not a document",
			zap.Int64("post_id", rec.ID),
			zap.String("content_hash", rec.ContentHash),
			zap.Error(err),
		)
		return
	}
	rec.Content = body.Content
	rec.CoverImage = body.CoverImage
	if rec.Publisher == "" {
		rec.Publisher = body.Publisher
	}
	rec.ContentResolved = true
}
