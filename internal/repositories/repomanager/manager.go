// Package repomanager vends dialect-specific repositories bound to a
// dbx.DBTX and runs the embedded goose migrations for that dialect.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/locks"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/slots"
)

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Items(db dbx.DBTX) items.Repository
	Slots(db dbx.DBTX) slots.Repository
	Locks(db dbx.DBTX) locks.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// New returns the manager for driver ("pgx"/"postgres" or "sqlite").
func New(driver string) (RepositoryManager, error) {
	switch driver {
	case DriverPostgres, "postgres":
		return &PostgresRepositoryManager{}, nil
	case DriverSQLite, "sqlite3":
		return &SQLiteRepositoryManager{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}
