package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dblog/app/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresView keeps the index in PostgreSQL.
type PostgresView struct {
	db DBTX
}

func NewPostgresView(db DBTX) *PostgresView {
	return &PostgresView{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS indexed_posts (
	id               BIGINT PRIMARY KEY,
	title            TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	published        BOOLEAN NOT NULL,
	publisher        TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	cover_image      TEXT NOT NULL DEFAULT '',
	content_resolved BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	last_seq         BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS indexed_posts_publisher_idx ON indexed_posts (publisher);
CREATE TABLE IF NOT EXISTS index_cursors (
	name       TEXT PRIMARY KEY,
	seq        BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Migrate creates the tables if they do not exist.
func (v *PostgresView) Migrate(ctx context.Context) error {
	if _, err := v.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate index schema: %w", err)
	}
	return nil
}

const recordColumns = `id, title, content_hash, published, publisher, content, cover_image,
	content_resolved, created_at, updated_at, last_seq`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var publisher string
	var lastSeq int64
	err := row.Scan(&rec.ID, &rec.Title, &rec.ContentHash, &rec.Published, &publisher,
		&rec.Content, &rec.CoverImage, &rec.ContentResolved, &rec.CreatedAt, &rec.UpdatedAt, &lastSeq)
	if err != nil {
		return nil, err
	}
	rec.Publisher = models.Address(publisher)
	rec.LastSeq = uint64(lastSeq)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (v *PostgresView) Get(ctx context.Context, id int64) (*Record, error) {
	row := v.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM indexed_posts WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error in get indexed post: %w", err)
	}
	return rec, nil
}

func (v *PostgresView) Upsert(ctx context.Context, rec *Record) (bool, error) {
	query := `
		INSERT INTO indexed_posts (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			published = EXCLUDED.published,
			publisher = EXCLUDED.publisher,
			content = EXCLUDED.content,
			cover_image = EXCLUDED.cover_image,
			content_resolved = EXCLUDED.content_resolved,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			last_seq = EXCLUDED.last_seq
		WHERE indexed_posts.last_seq <= EXCLUDED.last_seq`

	tag, err := v.db.Exec(ctx, query,
		rec.ID, rec.Title, rec.ContentHash, rec.Published, string(rec.Publisher),
		rec.Content, rec.CoverImage, rec.ContentResolved, rec.CreatedAt, rec.UpdatedAt, int64(rec.LastSeq))
	if err != nil {
		return false, fmt.Errorf("database error in upsert indexed post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (v *PostgresView) List(ctx context.Context, q Query) ([]*Record, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.PublishedOnly {
		conds = append(conds, "published")
	}
	if q.TitleContains != "" {
		args = append(args, "%"+escapeLike(q.TitleContains)+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if q.Publisher != "" {
		args = append(args, string(models.NormalizeAddress(string(q.Publisher))))
		conds = append(conds, fmt.Sprintf("lower(publisher) = $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM indexed_posts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := v.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error in list indexed posts: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (v *PostgresView) Cursor(ctx context.Context, name string) (uint64, error) {
	var seq int64
	err := v.db.QueryRow(ctx, `SELECT seq FROM index_cursors WHERE name = $1`, name).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("database error in get cursor: %w", err)
	}
	return uint64(seq), nil
}

func (v *PostgresView) SetCursor(ctx context.Context, name string, seq uint64) error {
	_, err := v.db.Exec(ctx, `
		INSERT INTO index_cursors (name, seq, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET seq = EXCLUDED.seq, updated_at = NOW()`,
		name, int64(seq))
	if err != nil {
		return fmt.Errorf("database error in set cursor: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
