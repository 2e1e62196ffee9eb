package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/repomanager"
)

var (
	sqlOpen = sql.Open

	// newBackOff paces startup connection attempts.
	newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = time.Minute
		return b
	}
)

// driverName maps a configured driver onto the registered database/sql name.
func driverName(driver string) (string, error) {
	switch driver {
	case repomanager.DriverPostgres, "postgres":
		return repomanager.DriverPostgres, nil
	case repomanager.DriverSQLite, "sqlite3":
		return repomanager.DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// openDatabase opens the pool and pings it until it answers or the backoff
// gives up. SQLite runs on a single connection in WAL mode.
func openDatabase(ctx context.Context, driver, dsn string, l logging.Logger) (*sql.DB, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlOpen(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if name == repomanager.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	ping := func() error {
		return db.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		l.Warn(ctx, "database not ready, retrying", "driver", name, "error", err, "retry_in", wait.String())
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(newBackOff(), ctx), notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}

	if name == repomanager.DriverSQLite {
		for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	return db, nil
}
