// Package store persists users, sessions and encrypted marketplace
// credentials. Credential rows hold ciphertext and status metadata only;
// encryption happens above this layer and plaintext never crosses it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/relistr/relistr/internal/models"
)

// ErrNotFound is returned by lookups for absent rows. Callers that treat
// absence as a normal state (status reads, idempotent deletes) match on it.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary consumed by the credential service and
// the session middleware.
type Store interface {
	// User operations
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error

	// Session operations
	GetSession(ctx context.Context, token string) (*models.Session, error)
	PutSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes sessions whose expiry is before now and
	// returns how many were dropped.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Marketplace credential operations. Upsert creates or replaces the row
	// for (record.UserID, record.Marketplace).
	UpsertCredential(ctx context.Context, record *models.MarketplaceCredentialRecord) error
	GetCredential(ctx context.Context, userID string, marketplace models.Marketplace) (*models.MarketplaceCredentialRecord, error)
	DeleteCredential(ctx context.Context, userID string, marketplace models.Marketplace) error
	ListCredentials(ctx context.Context, userID string) ([]*models.MarketplaceCredentialRecord, error)

	Close() error
}
