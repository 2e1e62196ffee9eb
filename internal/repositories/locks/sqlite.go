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

// SQLiteRepository stores expiry as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) TryAcquire(ctx context.Context, name, holder string, now, until time.Time) (bool, error) {
	n, err := dbx.ExecAffected(ctx, r.db, `
		INSERT INTO locks (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?
	`, name, holder, until.UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock[%s]: %w", name, err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) Release(ctx context.Context, name, holder string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND holder = ?`, name, holder); err != nil {
		return fmt.Errorf("failed to release lock[%s]: %w", name, err)
	}
	return nil
}

func (r *SQLiteRepository) Holder(ctx context.Context, name string) (string, time.Time, error) {
	var holder string
	var ms int64
	err := r.db.QueryRowContext(ctx, `SELECT holder, expires_at FROM locks WHERE name = ?`, name).Scan(&holder, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, common.ErrorNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read lock[%s]: %w", name, err)
	}
	return holder, time.UnixMilli(ms), nil
}
