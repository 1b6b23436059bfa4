package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/models"
)

// SQLiteStore is a SQLite-backed Store with WAL mode enabled. It is
// thread-safe and supports concurrent access from the API handlers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and runs
// migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// migrations are applied in order; user_version tracks the last applied one.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	email       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS marketplace_credentials (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	marketplace        TEXT NOT NULL,
	encrypted_username TEXT NOT NULL,
	encrypted_password TEXT NOT NULL,
	is_connected       INTEGER NOT NULL DEFAULT 0,
	last_verified      TIMESTAMP,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL,
	UNIQUE (user_id, marketplace)
);

CREATE INDEX IF NOT EXISTS idx_credentials_user ON marketplace_credentials(user_id);
`,
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return &errors.ErrDatabaseMigration{Version: 0, Err: err}
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return &errors.ErrDatabaseMigration{Version: i + 1, Err: err}
		}
		if _, err := db.Exec(`PRAGMA user_version = ` + strconv.Itoa(i+1)); err != nil {
			return &errors.ErrDatabaseMigration{Version: i + 1, Err: err}
		}
	}
	return nil
}

// GetUser retrieves a user by internal ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, external_id, email, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByExternalID retrieves a user by the identity provider's subject.
func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	const query = `SELECT id, external_id, email, created_at FROM users WHERE external_id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, externalID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get_user", Err: err}
	}
	return &u, nil
}

// PutUser stores or replaces a user.
func (s *SQLiteStore) PutUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO users (id, external_id, email, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET external_id = excluded.external_id, email = excluded.email`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.ExternalID, user.Email, user.CreatedAt); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "put_user", Err: err}
	}
	return nil
}

// GetSession resolves a session token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	const query = `SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?`

	var sess models.Session
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, query, token).Scan(&sess.Token, &sess.UserID, &expires, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get_session", Err: err}
	}
	if expires.Valid {
		sess.ExpiresAt = expires.Time
	}
	return &sess, nil
}

// PutSession stores or replaces a session.
func (s *SQLiteStore) PutSession(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	var expires interface{}
	if !session.ExpiresAt.IsZero() {
		expires = session.ExpiresAt
	}
	const query = `
INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (token) DO UPDATE SET user_id = excluded.user_id, expires_at = excluded.expires_at`
	if _, err := s.db.ExecContext(ctx, query, session.Token, session.UserID, expires, session.CreatedAt); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "put_session", Err: err}
	}
	return nil
}

// DeleteSession removes a session token. Deleting an absent token is a no-op.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete_session", Err: err}
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "delete_expired_sessions", Err: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "delete_expired_sessions", Err: err}
	}
	return deleted, nil
}

// UpsertCredential creates or replaces the credential row for the record's
// (user, marketplace) key, preserving the original id and created_at.
func (s *SQLiteStore) UpsertCredential(ctx context.Context, record *models.MarketplaceCredentialRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `
INSERT INTO marketplace_credentials
	(id, user_id, marketplace, encrypted_username, encrypted_password, is_connected, last_verified, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, marketplace) DO UPDATE SET
	encrypted_username = excluded.encrypted_username,
	encrypted_password = excluded.encrypted_password,
	is_connected       = excluded.is_connected,
	last_verified      = excluded.last_verified,
	updated_at         = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, string(record.Marketplace),
		record.EncryptedUsername, record.EncryptedPassword,
		boolToInt(record.IsConnected), record.LastVerified,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert_credential", Err: err}
	}
	return nil
}

// GetCredential retrieves the credential row for (userID, marketplace).
func (s *SQLiteStore) GetCredential(ctx context.Context, userID string, marketplace models.Marketplace) (*models.MarketplaceCredentialRecord, error) {
	const query = `
SELECT id, user_id, marketplace, encrypted_username, encrypted_password, is_connected, last_verified, created_at, updated_at
FROM marketplace_credentials WHERE user_id = ? AND marketplace = ?`

	rec, err := scanCredential(s.db.QueryRowContext(ctx, query, userID, string(marketplace)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get_credential", Err: err}
	}
	return rec, nil
}

// DeleteCredential removes the credential row. Absent rows are a no-op.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, userID string, marketplace models.Marketplace) error {
	const query = `DELETE FROM marketplace_credentials WHERE user_id = ? AND marketplace = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, string(marketplace)); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete_credential", Err: err}
	}
	return nil
}

// ListCredentials returns all credential rows for a user.
func (s *SQLiteStore) ListCredentials(ctx context.Context, userID string) ([]*models.MarketplaceCredentialRecord, error) {
	const query = `
SELECT id, user_id, marketplace, encrypted_username, encrypted_password, is_connected, last_verified, created_at, updated_at
FROM marketplace_credentials WHERE user_id = ? ORDER BY marketplace`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list_credentials", Err: err}
	}
	defer rows.Close()

	var out []*models.MarketplaceCredentialRecord
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "list_credentials", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list_credentials", Err: err}
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row scanner) (*models.MarketplaceCredentialRecord, error) {
	var rec models.MarketplaceCredentialRecord
	var marketplace string
	var connected int
	var lastVerified sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.UserID, &marketplace,
		&rec.EncryptedUsername, &rec.EncryptedPassword,
		&connected, &lastVerified, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Marketplace = models.Marketplace(marketplace)
	rec.IsConnected = connected != 0
	if lastVerified.Valid {
		rec.LastVerified = lastVerified.Time
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
