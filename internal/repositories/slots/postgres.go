package slots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, name string) ([]byte, error) {
	return r.get(ctx, `SELECT value FROM slots WHERE name = $1`, name)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, name string) ([]byte, error) {
	return r.get(ctx, `SELECT value FROM slots WHERE name = $1 FOR UPDATE`, name)
}

func (r *PostgresRepository) get(ctx context.Context, query, name string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return []byte(value), nil
}

func (r *PostgresRepository) Set(ctx context.Context, name string, value []byte) error {
	query := `
		INSERT INTO slots (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, name, string(value)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
