package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/models"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func putTestUser(t *testing.T, s Store, id string) *models.User {
	t.Helper()
	user := &models.User{ID: id, ExternalID: "ext-" + id, Email: id + "@example.com"}
	require.NoError(t, s.PutUser(context.Background(), user))
	return user
}

func TestStoreUsers(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetUser(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			putTestUser(t, s, "user-1")

			got, err := s.GetUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, "ext-user-1", got.ExternalID)
			assert.Equal(t, "user-1@example.com", got.Email)
			assert.False(t, got.CreatedAt.IsZero())

			byExt, err := s.GetUserByExternalID(ctx, "ext-user-1")
			require.NoError(t, err)
			assert.Equal(t, "user-1", byExt.ID)

			_, err = s.GetUserByExternalID(ctx, "ext-missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSessions(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putTestUser(t, s, "user-1")

			session := &models.Session{
				Token:     "tok-abc",
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
			}
			require.NoError(t, s.PutSession(ctx, session))

			got, err := s.GetSession(ctx, "tok-abc")
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.UserID)
			assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Second)

			require.NoError(t, s.DeleteSession(ctx, "tok-abc"))
			_, err = s.GetSession(ctx, "tok-abc")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting an absent token is a no-op
			assert.NoError(t, s.DeleteSession(ctx, "tok-abc"))
		})
	}
}

func TestStoreDeleteExpiredSessions(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putTestUser(t, s, "user-1")

			now := time.Now().UTC().Truncate(time.Second)
			require.NoError(t, s.PutSession(ctx, &models.Session{
				Token: "tok-old", UserID: "user-1", ExpiresAt: now.Add(-time.Hour),
			}))
			require.NoError(t, s.PutSession(ctx, &models.Session{
				Token: "tok-live", UserID: "user-1", ExpiresAt: now.Add(time.Hour),
			}))
			// no expiry means the session never ages out
			require.NoError(t, s.PutSession(ctx, &models.Session{
				Token: "tok-forever", UserID: "user-1",
			}))

			deleted, err := s.DeleteExpiredSessions(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			_, err = s.GetSession(ctx, "tok-old")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.GetSession(ctx, "tok-live")
			assert.NoError(t, err)
			_, err = s.GetSession(ctx, "tok-forever")
			assert.NoError(t, err)
		})
	}
}

func TestStoreCredentialUpsert(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putTestUser(t, s, "user-1")

			first := &models.MarketplaceCredentialRecord{
				UserID:            "user-1",
				Marketplace:       models.MarketplacePoshmark,
				EncryptedUsername: "enc-u-1",
				EncryptedPassword: "enc-p-1",
				IsConnected:       true,
			}
			require.NoError(t, s.UpsertCredential(ctx, first))
			require.NotEmpty(t, first.ID)

			got, err := s.GetCredential(ctx, "user-1", models.MarketplacePoshmark)
			require.NoError(t, err)
			assert.Equal(t, first.ID, got.ID)
			assert.Equal(t, "enc-u-1", got.EncryptedUsername)
			assert.True(t, got.IsConnected)

			// second upsert for the same (user, marketplace) replaces the
			// payload but keeps id and created_at
			second := &models.MarketplaceCredentialRecord{
				UserID:            "user-1",
				Marketplace:       models.MarketplacePoshmark,
				EncryptedUsername: "enc-u-2",
				EncryptedPassword: "enc-p-2",
				IsConnected:       true,
			}
			require.NoError(t, s.UpsertCredential(ctx, second))

			updated, err := s.GetCredential(ctx, "user-1", models.MarketplacePoshmark)
			require.NoError(t, err)
			assert.Equal(t, got.ID, updated.ID)
			assert.Equal(t, "enc-u-2", updated.EncryptedUsername)
			assert.WithinDuration(t, got.CreatedAt, updated.CreatedAt, time.Second)
			assert.False(t, updated.UpdatedAt.Before(got.UpdatedAt))
		})
	}
}

func TestStoreCredentialDelete(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putTestUser(t, s, "user-1")

			rec := &models.MarketplaceCredentialRecord{
				UserID:            "user-1",
				Marketplace:       models.MarketplaceMercari,
				EncryptedUsername: "enc-u",
				EncryptedPassword: "enc-p",
			}
			require.NoError(t, s.UpsertCredential(ctx, rec))

			require.NoError(t, s.DeleteCredential(ctx, "user-1", models.MarketplaceMercari))
			_, err := s.GetCredential(ctx, "user-1", models.MarketplaceMercari)
			assert.ErrorIs(t, err, ErrNotFound)

			// disconnect is a hard delete; repeating it is a no-op
			assert.NoError(t, s.DeleteCredential(ctx, "user-1", models.MarketplaceMercari))
		})
	}
}

func TestStoreListCredentials(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putTestUser(t, s, "user-1")
			putTestUser(t, s, "user-2")

			for _, m := range []models.Marketplace{models.MarketplacePoshmark, models.MarketplaceDepop} {
				require.NoError(t, s.UpsertCredential(ctx, &models.MarketplaceCredentialRecord{
					UserID:            "user-1",
					Marketplace:       m,
					EncryptedUsername: "enc-u",
					EncryptedPassword: "enc-p",
					IsConnected:       true,
				}))
			}
			require.NoError(t, s.UpsertCredential(ctx, &models.MarketplaceCredentialRecord{
				UserID:            "user-2",
				Marketplace:       models.MarketplaceEbay,
				EncryptedUsername: "enc-u",
				EncryptedPassword: "enc-p",
			}))

			list, err := s.ListCredentials(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			seen := map[models.Marketplace]bool{}
			for _, rec := range list {
				assert.Equal(t, "user-1", rec.UserID)
				seen[rec.Marketplace] = true
			}
			assert.True(t, seen[models.MarketplacePoshmark])
			assert.True(t, seen[models.MarketplaceDepop])

			empty, err := s.ListCredentials(ctx, "user-3")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestSQLiteStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	putTestUser(t, s, "user-1")
	require.NoError(t, s.UpsertCredential(ctx, &models.MarketplaceCredentialRecord{
		UserID:            "user-1",
		Marketplace:       models.MarketplaceBonanza,
		EncryptedUsername: "enc-u",
		EncryptedPassword: "enc-p",
		IsConnected:       true,
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetCredential(ctx, "user-1", models.MarketplaceBonanza)
	require.NoError(t, err)
	assert.True(t, got.IsConnected)
	assert.Equal(t, "enc-u", got.EncryptedUsername)
}
