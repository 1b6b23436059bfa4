package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/crypto"
	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/store"
)

// countingCipher wraps a real cipher and counts calls, so tests can assert
// which paths touch encryption at all.
type countingCipher struct {
	inner    Cipher
	encrypts int
	decrypts int
}

func (c *countingCipher) Encrypt(plaintext string) (string, error) {
	c.encrypts++
	return c.inner.Encrypt(plaintext)
}

func (c *countingCipher) Decrypt(encoded string) (string, error) {
	c.decrypts++
	return c.inner.Decrypt(encoded)
}

func newTestService(t *testing.T) (*CredentialService, *countingCipher, store.Store) {
	t.Helper()
	real, err := crypto.NewCipher("test-master-key")
	require.NoError(t, err)
	cipher := &countingCipher{inner: real}
	s := store.NewMemoryStore()
	svc := NewCredentialService(s, cipher, nil)

	require.NoError(t, s.PutUser(context.Background(), &models.User{
		ID:         "user-1",
		ExternalID: "ext-1",
	}))
	return svc, cipher, s
}

func TestStoreCredentials(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	status, err := svc.StoreCredentials(ctx, "user-1", models.MarketplacePoshmark, "alice", "hunter2")
	require.NoError(t, err)
	assert.True(t, status.IsConnected)
	require.NotNil(t, status.LastVerified)

	// secrets are stored encrypted, not in the clear
	record, err := st.GetCredential(ctx, "user-1", models.MarketplacePoshmark)
	require.NoError(t, err)
	assert.NotEqual(t, "alice", record.EncryptedUsername)
	assert.NotEqual(t, "hunter2", record.EncryptedPassword)
	assert.NotContains(t, record.EncryptedPassword, "hunter2")
}

func TestStoreCredentialsIdempotent(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreCredentials(ctx, "user-1", models.MarketplacePoshmark, "alice", "hunter2")
	require.NoError(t, err)
	first, err := st.GetCredential(ctx, "user-1", models.MarketplacePoshmark)
	require.NoError(t, err)

	_, err = svc.StoreCredentials(ctx, "user-1", models.MarketplacePoshmark, "alice", "hunter2")
	require.NoError(t, err)
	second, err := st.GetCredential(ctx, "user-1", models.MarketplacePoshmark)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	list, err := st.ListCredentials(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStoreCredentialsInvalidMarketplace(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.StoreCredentials(context.Background(), "user-1", "etsy", "a", "b")
	var invalid *errors.ErrInvalidMarketplace
	require.ErrorAs(t, err, &invalid)
}

func TestStoreCredentialsUserNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.StoreCredentials(context.Background(), "ghost", models.MarketplacePoshmark, "a", "b")
	var notFound *errors.ErrUserNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.UserID)
}

func TestGetCredentialsRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreCredentials(ctx, "user-1", models.MarketplaceDepop, "bob@example.com", "s3cret!")
	require.NoError(t, err)

	got, err := svc.GetCredentials(ctx, "user-1", models.MarketplaceDepop)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob@example.com", got.Username)
	assert.Equal(t, "s3cret!", got.Password)
	assert.True(t, got.IsConnected)
	assert.False(t, got.LastVerified.IsZero())
}

func TestGetCredentialsMissingIsNil(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.GetCredentials(context.Background(), "user-1", models.MarketplaceEbay)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveCredentialsHardDelete(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreCredentials(ctx, "user-1", models.MarketplaceMercari, "a", "b")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveCredentials(ctx, "user-1", models.MarketplaceMercari))

	_, err = st.GetCredential(ctx, "user-1", models.MarketplaceMercari)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// removing again is a no-op
	assert.NoError(t, svc.RemoveCredentials(ctx, "user-1", models.MarketplaceMercari))
}

func TestStatusPathsNeverDecrypt(t *testing.T) {
	svc, cipher, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreCredentials(ctx, "user-1", models.MarketplacePoshmark, "alice", "hunter2")
	require.NoError(t, err)
	cipher.decrypts = 0

	status, err := svc.ConnectionStatus(ctx, "user-1", models.MarketplacePoshmark)
	require.NoError(t, err)
	assert.True(t, status.IsConnected)

	statuses, err := svc.ListStatuses(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, statuses, len(models.AllMarketplaces()))

	assert.Zero(t, cipher.decrypts)
}

func TestListStatusesCoversAllMarketplaces(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.StoreCredentials(ctx, "user-1", models.MarketplaceBonanza, "a", "b")
	require.NoError(t, err)

	statuses, err := svc.ListStatuses(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, statuses, len(models.AllMarketplaces()))

	connected := 0
	for _, s := range statuses {
		if s.IsConnected {
			connected++
			assert.Equal(t, models.MarketplaceBonanza, s.Marketplace)
			require.NotNil(t, s.LastVerified)
			assert.WithinDuration(t, time.Now(), *s.LastVerified, time.Minute)
		} else {
			assert.Nil(t, s.LastVerified)
		}
	}
	assert.Equal(t, 1, connected)
}

func TestConnectionStatusMissingIsDisconnected(t *testing.T) {
	svc, _, _ := newTestService(t)

	status, err := svc.ConnectionStatus(context.Background(), "user-1", models.MarketplaceFacebook)
	require.NoError(t, err)
	assert.False(t, status.IsConnected)
	assert.Nil(t, status.LastVerified)
}
