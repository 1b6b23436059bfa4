// Package service holds the business operations between the HTTP boundary
// and the store.
package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/store"
)

// Cipher is the encryption seam the service needs. *crypto.Cipher satisfies
// it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// DecryptedCredentials is a credential record with its secrets in the clear.
// It exists only in memory for the duration of a call.
type DecryptedCredentials struct {
	Marketplace  models.Marketplace
	Username     string
	Password     string
	IsConnected  bool
	LastVerified time.Time
}

// CredentialService encrypts, persists and retrieves marketplace
// credentials.
type CredentialService struct {
	store  store.Store
	cipher Cipher
	logger *logging.Logger
	now    func() time.Time
}

func NewCredentialService(s store.Store, cipher Cipher, logger *logging.Logger) *CredentialService {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &CredentialService{
		store:  s,
		cipher: cipher,
		logger: logger,
		now:    time.Now,
	}
}

// StoreCredentials encrypts both fields and upserts the record for
// (userID, marketplace), marking it connected and refreshing the
// verification timestamp. Storing twice for the same key overwrites the
// secrets but is otherwise a no-op.
func (s *CredentialService) StoreCredentials(ctx context.Context, userID string, marketplace models.Marketplace, username, password string) (*models.ConnectionStatus, error) {
	if !marketplace.IsValid() {
		return nil, &errors.ErrInvalidMarketplace{Marketplace: string(marketplace)}
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, &errors.ErrUserNotFound{UserID: userID}
		}
		return nil, err
	}

	encUsername, err := s.cipher.Encrypt(username)
	if err != nil {
		return nil, err
	}
	encPassword, err := s.cipher.Encrypt(password)
	if err != nil {
		return nil, err
	}

	verified := s.now().UTC()
	record := &models.MarketplaceCredentialRecord{
		UserID:            userID,
		Marketplace:       marketplace,
		EncryptedUsername: encUsername,
		EncryptedPassword: encPassword,
		IsConnected:       true,
		LastVerified:      verified,
	}
	if err := s.store.UpsertCredential(ctx, record); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "stored marketplace credentials",
		"user_id", userID, "marketplace", marketplace)

	return &models.ConnectionStatus{
		Marketplace:  marketplace,
		IsConnected:  true,
		LastVerified: &verified,
	}, nil
}

// GetCredentials returns the decrypted credential pair for
// (userID, marketplace), or nil when none is stored. A record that cannot
// be decrypted is an error, not a miss.
func (s *CredentialService) GetCredentials(ctx context.Context, userID string, marketplace models.Marketplace) (*DecryptedCredentials, error) {
	if !marketplace.IsValid() {
		return nil, &errors.ErrInvalidMarketplace{Marketplace: string(marketplace)}
	}

	record, err := s.store.GetCredential(ctx, userID, marketplace)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	username, err := s.cipher.Decrypt(record.EncryptedUsername)
	if err != nil {
		return nil, err
	}
	password, err := s.cipher.Decrypt(record.EncryptedPassword)
	if err != nil {
		return nil, err
	}

	return &DecryptedCredentials{
		Marketplace:  marketplace,
		Username:     username,
		Password:     password,
		IsConnected:  record.IsConnected,
		LastVerified: record.LastVerified,
	}, nil
}

// RemoveCredentials deletes the stored record outright. Removing an absent
// record is a no-op.
func (s *CredentialService) RemoveCredentials(ctx context.Context, userID string, marketplace models.Marketplace) error {
	if !marketplace.IsValid() {
		return &errors.ErrInvalidMarketplace{Marketplace: string(marketplace)}
	}
	if err := s.store.DeleteCredential(ctx, userID, marketplace); err != nil {
		return err
	}
	s.logger.InfoWithContext(ctx, "removed marketplace credentials",
		"user_id", userID, "marketplace", marketplace)
	return nil
}

// ConnectionStatus reports whether the user has a stored connection for one
// marketplace. This path reads only metadata and never touches the cipher.
func (s *CredentialService) ConnectionStatus(ctx context.Context, userID string, marketplace models.Marketplace) (*models.ConnectionStatus, error) {
	if !marketplace.IsValid() {
		return nil, &errors.ErrInvalidMarketplace{Marketplace: string(marketplace)}
	}

	record, err := s.store.GetCredential(ctx, userID, marketplace)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return &models.ConnectionStatus{Marketplace: marketplace}, nil
		}
		return nil, err
	}
	return statusFromRecord(record), nil
}

// ListStatuses returns a status entry for every supported marketplace, in
// stable order, with absent records reported as disconnected. Like
// ConnectionStatus it never decrypts anything.
func (s *CredentialService) ListStatuses(ctx context.Context, userID string) ([]models.ConnectionStatus, error) {
	records, err := s.store.ListCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	byMarketplace := make(map[models.Marketplace]*models.MarketplaceCredentialRecord, len(records))
	for _, r := range records {
		byMarketplace[r.Marketplace] = r
	}

	out := make([]models.ConnectionStatus, 0, len(models.AllMarketplaces()))
	for _, m := range models.AllMarketplaces() {
		if record, ok := byMarketplace[m]; ok {
			out = append(out, *statusFromRecord(record))
			continue
		}
		out = append(out, models.ConnectionStatus{Marketplace: m})
	}
	return out, nil
}

func statusFromRecord(record *models.MarketplaceCredentialRecord) *models.ConnectionStatus {
	status := &models.ConnectionStatus{
		Marketplace: record.Marketplace,
		IsConnected: record.IsConnected,
	}
	if !record.LastVerified.IsZero() {
		verified := record.LastVerified
		status.LastVerified = &verified
	}
	return status
}
