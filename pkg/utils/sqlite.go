package utils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteParams turns on WAL, foreign keys and a busy timeout, and makes every
// transaction take the write lock at BEGIN so concurrent writers queue instead
// of failing mid-transaction.
const sqliteParams = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"

// OpenSQLite opens (or creates) a file-backed SQLite database.
// Used for local operator runs and tests; production runs on Postgres.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := HealthCheck(ctx, db, 2*time.Second); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
