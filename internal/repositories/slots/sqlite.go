package slots

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot[%s]: %w", name, err)
	}
	return []byte(value), nil
}

// GetForUpdate is plain Get: SQLite serializes writers per database.
func (r *SQLiteRepository) GetForUpdate(ctx context.Context, name string) ([]byte, error) {
	return r.Get(ctx, name)
}

func (r *SQLiteRepository) Set(ctx context.Context, name string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, string(value))
	if err != nil {
		return fmt.Errorf("failed to set slot[%s]: %w", name, err)
	}
	return nil
}
