package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) TryAcquire(ctx context.Context, name, holder string, now, until time.Time) (bool, error) {
	query := `
		INSERT INTO locks (name, holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE locks.expires_at <= $4
	`
	n, err := dbx.ExecAffected(ctx, r.db, query, name, holder, until, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Release(ctx context.Context, name, holder string) error {
	query := `
		DELETE FROM locks
		WHERE name = $1 AND holder = $2
	`
	if _, err := r.db.ExecContext(ctx, query, name, holder); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Holder(ctx context.Context, name string) (string, time.Time, error) {
	query := `
		SELECT holder, expires_at
		FROM locks
		WHERE name = $1
	`
	var holder string
	var until time.Time
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&holder, &until); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, common.ErrorNotFound
		}
		return "", time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return holder, until, nil
}
