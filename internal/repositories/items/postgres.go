package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (media.Item, error) {
	query := `
		SELECT id, mime_type, attached_file, metadata::text, pending
		FROM items
		WHERE id = $1
	`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return media.Item{}, common.ErrorNotFound
		}
		return media.Item{}, fmt.Errorf("db error: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) Create(ctx context.Context, item media.Item) (int64, error) {
	raw, err := encodeMetadata(item.Metadata)
	if err != nil {
		return 0, err
	}
	query := `
		INSERT INTO items (mime_type, attached_file, metadata, pending)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, item.MimeType, item.AttachedFile, raw, item.Pending).Scan(&id); err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return id, nil
}

// Upsert stores the item under the host's id. Ids given by the host never
// come from the items sequence.
func (r *PostgresRepository) Upsert(ctx context.Context, item media.Item) error {
	raw, err := encodeMetadata(item.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO items (id, mime_type, attached_file, metadata, pending)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			mime_type = EXCLUDED.mime_type,
			attached_file = EXCLUDED.attached_file,
			metadata = EXCLUDED.metadata,
			pending = EXCLUDED.pending,
			updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, item.ID, item.MimeType, item.AttachedFile, raw, item.Pending); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error {
	raw, err := encodeMetadata(meta)
	if err != nil {
		return err
	}
	query := `
		UPDATE items
		SET metadata = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec1(ctx, query, id, raw)
}

func (r *PostgresRepository) SetPending(ctx context.Context, id int64, pending bool) error {
	query := `
		UPDATE items
		SET pending = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec1(ctx, query, id, pending)
}

func (r *PostgresRepository) exec1(ctx context.Context, query string, args ...any) error {
	n, err := dbx.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]media.Item, error) {
	query := `
		SELECT id, mime_type, attached_file, metadata::text, pending
		FROM items
		WHERE ($1 = 0 OR id = $1)
		  AND ($2 = '' OR mime_type LIKE $2 || '%')
		  AND (NOT $3 OR pending)
		ORDER BY id
		LIMIT $4 OFFSET $5
	`
	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := r.db.QueryContext(ctx, query, f.ID, f.MimePrefix, f.OnlyPending, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []media.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM items
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
