package models

import "time"

// MarketplaceCredentialRecord is the persisted credential row for a
// (user, marketplace) pair. Username and password are ciphertext blobs
// produced by the credential cipher; plaintext never reaches the store.
type MarketplaceCredentialRecord struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	Marketplace       Marketplace `json:"marketplace"`
	EncryptedUsername string      `json:"-"`
	EncryptedPassword string      `json:"-"`
	IsConnected       bool        `json:"is_connected"`
	LastVerified      time.Time   `json:"last_verified"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ConnectionStatus is the secret-free view of a credential record, served
// on status reads. Building one never requires the cipher.
type ConnectionStatus struct {
	Marketplace  Marketplace `json:"marketplace"`
	IsConnected  bool        `json:"isConnected"`
	LastVerified *time.Time  `json:"lastVerified"`
}

// User is the internal identity credentials are keyed by.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session maps an opaque session token to a user for the duration of a login.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
