package ratelimit

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relistr/relistr/internal/errors"
)

// SQLiteCounterStore is the shared CounterStore used when limiter state must
// survive restarts and be visible across processes on one host. WAL mode keeps
// concurrent check-and-increment calls from serializing on the file lock.
type SQLiteCounterStore struct {
	db *sql.DB
}

// NewSQLiteCounterStore opens (and migrates) the counter database at path.
func NewSQLiteCounterStore(path string) (*SQLiteCounterStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: path, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: path, Err: err}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS rate_limit_counters (
	key          TEXT    NOT NULL,
	window_start INTEGER NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (key, window_start)
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_window ON rate_limit_counters(window_start);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseMigration{Version: 1, Err: err}
	}

	return &SQLiteCounterStore{db: db}, nil
}

// Increment atomically bumps and returns the counter for (key, windowStart).
func (s *SQLiteCounterStore) Increment(ctx context.Context, key string, windowStart time.Time) (int64, error) {
	const query = `
INSERT INTO rate_limit_counters (key, window_start, count) VALUES (?, ?, 1)
ON CONFLICT (key, window_start) DO UPDATE SET count = count + 1
RETURNING count`

	var count int64
	if err := s.db.QueryRowContext(ctx, query, key, windowStart.UnixNano()).Scan(&count); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "increment_rate_limit", Err: err}
	}
	return count, nil
}

// Count reads the counter for (key, windowStart) without mutating it.
func (s *SQLiteCounterStore) Count(ctx context.Context, key string, windowStart time.Time) (int64, error) {
	const query = `SELECT count FROM rate_limit_counters WHERE key = ? AND window_start = ?`

	var count int64
	err := s.db.QueryRowContext(ctx, query, key, windowStart.UnixNano()).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count_rate_limit", Err: err}
	}
	return count, nil
}

// Reset removes all counters whose key matches keyPrefix.
func (s *SQLiteCounterStore) Reset(ctx context.Context, keyPrefix string) error {
	const query = `DELETE FROM rate_limit_counters WHERE key LIKE ? || '%'`
	if _, err := s.db.ExecContext(ctx, query, keyPrefix); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "reset_rate_limit", Err: err}
	}
	return nil
}

// Prune drops windows that ended before cutoff. Called periodically by the
// serve loop; the limiter itself never reads them again.
func (s *SQLiteCounterStore) Prune(ctx context.Context, cutoff time.Time) error {
	const query = `DELETE FROM rate_limit_counters WHERE window_start < ?`
	if _, err := s.db.ExecContext(ctx, query, cutoff.UnixNano()); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "prune_rate_limit", Err: err}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteCounterStore) Close() error {
	return s.db.Close()
}
