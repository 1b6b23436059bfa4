package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relistr/relistr/internal/models"
)

// MemoryStore is an in-memory Store. It is thread-safe and backs tests and
// the single-shot CLI commands that never touch the database file.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User                           // key: user ID
	sessions    map[string]*models.Session                        // key: token
	credentials map[string]*models.MarketplaceCredentialRecord    // key: userID|marketplace
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*models.User),
		sessions:    make(map[string]*models.Session),
		credentials: make(map[string]*models.MarketplaceCredentialRecord),
	}
}

func credentialKey(userID string, marketplace models.Marketplace) string {
	return userID + "|" + string(marketplace)
}

// GetUser retrieves a user by internal ID.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByExternalID retrieves a user by the identity provider's subject.
func (s *MemoryStore) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// PutUser stores or replaces a user.
func (s *MemoryStore) PutUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.users[cp.ID] = &cp
	return nil
}

// GetSession resolves a session token.
func (s *MemoryStore) GetSession(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// PutSession stores or replaces a session.
func (s *MemoryStore) PutSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.sessions[cp.Token] = &cp
	return nil
}

// DeleteSession removes a session token. Deleting an absent token is a no-op.
func (s *MemoryStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

// UpsertCredential creates or replaces the credential row for the record's
// (user, marketplace) key.
func (s *MemoryStore) UpsertCredential(_ context.Context, record *models.MarketplaceCredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey(record.UserID, record.Marketplace)
	now := time.Now().UTC()

	cp := *record
	if existing, ok := s.credentials[key]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.credentials[key] = &cp

	record.ID = cp.ID
	record.CreatedAt = cp.CreatedAt
	record.UpdatedAt = cp.UpdatedAt
	return nil
}

// GetCredential retrieves the credential row for (userID, marketplace).
func (s *MemoryStore) GetCredential(_ context.Context, userID string, marketplace models.Marketplace) (*models.MarketplaceCredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.credentials[credentialKey(userID, marketplace)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// DeleteCredential removes the credential row. Absent rows are a no-op.
func (s *MemoryStore) DeleteCredential(_ context.Context, userID string, marketplace models.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, credentialKey(userID, marketplace))
	return nil
}

// ListCredentials returns all credential rows for a user.
func (s *MemoryStore) ListCredentials(_ context.Context, userID string) ([]*models.MarketplaceCredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.MarketplaceCredentialRecord
	for _, rec := range s.credentials {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
