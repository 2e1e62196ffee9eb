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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqliteColumns = `id, mime_type, attached_file, metadata, pending`

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (media.Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return media.Item{}, common.ErrorNotFound
	}
	if err != nil {
		return media.Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, item media.Item) (int64, error) {
	raw, err := encodeMetadata(item.Metadata)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (mime_type, attached_file, metadata, pending) VALUES (?, ?, ?, ?)`,
		item.MimeType, item.AttachedFile, raw, item.Pending)
	if err != nil {
		return 0, fmt.Errorf("failed to create item: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) Upsert(ctx context.Context, item media.Item) error {
	raw, err := encodeMetadata(item.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items (id, mime_type, attached_file, metadata, pending) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mime_type = excluded.mime_type,
			attached_file = excluded.attached_file,
			metadata = excluded.metadata,
			pending = excluded.pending,
			updated_at = unixepoch()
	`, item.ID, item.MimeType, item.AttachedFile, raw, item.Pending)
	if err != nil {
		return fmt.Errorf("failed to upsert item %d: %w", item.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error {
	raw, err := encodeMetadata(meta)
	if err != nil {
		return err
	}
	return r.exec1(ctx, `UPDATE items SET metadata = ?, updated_at = unixepoch() WHERE id = ?`, raw, id)
}

func (r *SQLiteRepository) SetPending(ctx context.Context, id int64, pending bool) error {
	return r.exec1(ctx, `UPDATE items SET pending = ?, updated_at = unixepoch() WHERE id = ?`, pending, id)
}

func (r *SQLiteRepository) exec1(ctx context.Context, query string, args ...any) error {
	n, err := dbx.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, f ListFilter) ([]media.Item, error) {
	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+` FROM items
		WHERE (? = 0 OR id = ?)
		  AND (? = '' OR mime_type LIKE ? || '%')
		  AND (? = 0 OR pending = 1)
		ORDER BY id
		LIMIT ? OFFSET ?
	`, f.ID, f.ID, f.MimePrefix, f.MimePrefix, f.OnlyPending, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var out []media.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	return nil
}
