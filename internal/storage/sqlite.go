package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/mooddine/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS quota (
	key          TEXT PRIMARY KEY,
	count        INTEGER NOT NULL,
	window_start INTEGER NOT NULL,
	updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore keeps the quota record in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (or creates) mooddine.db in dataDir and ensures the schema.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func OpenSQLite(dataDir, key string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "mooddine.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection: an in-memory database is per-connection, and it avoids
	// "database is locked" when two CLI processes race.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating quota table: %w", err)
	}

	return &SQLiteStore{db: db, key: key}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements quota.Store.
func (s *SQLiteStore) Get(ctx context.Context) (models.QuotaState, bool, error) {
	var st models.QuotaState
	err := s.db.QueryRowContext(ctx,
		"SELECT count, window_start FROM quota WHERE key = ?", s.key,
	).Scan(&st.Count, &st.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QuotaState{}, false, nil
	}
	if err != nil {
		return models.QuotaState{}, false, fmt.Errorf("select quota: %w", err)
	}
	return st, true, nil
}

// Set implements quota.Store.
func (s *SQLiteStore) Set(ctx context.Context, state models.QuotaState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota (key, count, window_start, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			count = excluded.count,
			window_start = excluded.window_start,
			updated_at = CURRENT_TIMESTAMP`,
		s.key, state.Count, state.WindowStart,
	)
	if err != nil {
		return fmt.Errorf("upsert quota: %w", err)
	}
	return nil
}
