package repomanager

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/mediaoffload/internal/dbx"
	"github.com/dmitrijs2005/mediaoffload/internal/migrations"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/locks"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/slots"
)

// SQLiteRepositoryManager vends SQLite-backed repositories for local and
// single-host deployments.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Slots(db dbx.DBTX) slots.Repository {
	return slots.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Locks(db dbx.DBTX) locks.Repository {
	return locks.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "sqlite")
}
