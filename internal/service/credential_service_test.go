package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeCredentialRepo struct {
	mu       sync.Mutex
	seq      int64
	rows     map[int64]*models.Credential
	onCreate func(c *models.Credential) error
	updates  int
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{rows: make(map[int64]*models.Credential)}
}

func (f *fakeCredentialRepo) insert(c *models.Credential) *models.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *c
	cp.ID = f.seq
	f.rows[cp.ID] = &cp
	return &cp
}

func (f *fakeCredentialRepo) Create(ctx context.Context, tx *sql.Tx, c *models.Credential) (int64, error) {
	if f.onCreate != nil {
		if err := f.onCreate(c); err != nil {
			return 0, err
		}
	}
	return f.insert(c).ID, nil
}

func (f *fakeCredentialRepo) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCredentialRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform platforms.Platform) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.UserID == userID && c.Platform == platform {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCredentialRepo) GetByExternalAccount(ctx context.Context, platform platforms.Platform, externalAccountID string) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.Platform == platform && c.ExternalAccountID == externalAccountID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCredentialRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Credential
	for _, c := range f.rows {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) ListActiveByUserID(ctx context.Context, userID int64, pls []platforms.Platform) ([]*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*models.Credential
	for _, c := range f.rows {
		if c.UserID != userID || !c.ActiveAt(now) {
			continue
		}
		if len(pls) > 0 {
			found := false
			for _, p := range pls {
				if c.Platform == p {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCredentialRepo) ListExpiringBefore(ctx context.Context, until time.Time) ([]*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Credential
	for _, c := range f.rows {
		if c.AccessToken != "" && c.TokenExpiresAt != nil && c.TokenExpiresAt.Before(until) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) Update(ctx context.Context, c *models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	cp := *c
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeCredentialRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	if accessToken != "" {
		c.AccessToken = accessToken
	}
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	if expiresAt != nil {
		c.TokenExpiresAt = expiresAt
	}
	return nil
}

func (f *fakeCredentialRepo) Remove(ctx context.Context, userID int64, platform platforms.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.rows {
		if c.UserID == userID && c.Platform == platform {
			delete(f.rows, id)
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{SecretKey: testSecret}
}

func encrypted(t *testing.T, plaintext string) string {
	t.Helper()
	enc, err := utils.Encrypt([]byte(plaintext), []byte(testSecret))
	require.NoError(t, err)
	return enc
}

func decrypted(t *testing.T, ciphertext string) string {
	t.Helper()
	plain, err := utils.Decrypt(ciphertext, []byte(testSecret))
	require.NoError(t, err)
	return plain
}

func TestUpsertCreatesNewCredential(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(testConfig(), repo)
	ctx := context.Background()

	exp := time.Now().Add(2 * time.Hour)
	cred, err := svc.Upsert(ctx, 1, platforms.Twitter, &CredentialData{
		ExternalAccountID: "tw-123",
		AccountName:       "Jess",
		AccessToken:       "token-plain",
		RefreshToken:      "refresh-plain",
		ExpiresAt:         &exp,
		Scopes:            []string{"tweet.read", "tweet.write"},
	})
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotZero(t, cred.ID)

	stored, _ := repo.GetByID(ctx, cred.ID)
	require.NotNil(t, stored)
	assert.NotEqual(t, "token-plain", stored.AccessToken)
	assert.Equal(t, "token-plain", decrypted(t, stored.AccessToken))
	assert.Equal(t, "refresh-plain", decrypted(t, stored.RefreshToken))
}

func TestUpsertUpdatesOwnCredentialInPlace(t *testing.T) {
	repo := newFakeCredentialRepo()
	seeded := repo.insert(&models.Credential{
		UserID:            1,
		Platform:          platforms.Twitter,
		ExternalAccountID: "tw-old",
		AccessToken:       encrypted(t, "old-token"),
	})

	svc := NewCredentialService(testConfig(), repo)
	cred, err := svc.Upsert(context.Background(), 1, platforms.Twitter, &CredentialData{
		ExternalAccountID: "tw-old",
		AccessToken:       "new-token",
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, cred.ID)

	stored, _ := repo.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, "new-token", decrypted(t, stored.AccessToken))
}

func TestUpsertTransfersForeignCredential(t *testing.T) {
	repo := newFakeCredentialRepo()
	seeded := repo.insert(&models.Credential{
		UserID:            1,
		Platform:          platforms.Instagram,
		ExternalAccountID: "ig-999",
		AccessToken:       encrypted(t, "alice-token"),
	})

	svc := NewCredentialService(testConfig(), repo)
	cred, err := svc.Upsert(context.Background(), 2, platforms.Instagram, &CredentialData{
		ExternalAccountID: "ig-999",
		AccessToken:       "bob-token",
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, cred.ID)
	assert.Equal(t, int64(2), cred.UserID)

	stored, _ := repo.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, int64(2), stored.UserID)
	assert.Equal(t, "bob-token", decrypted(t, stored.AccessToken))
}

func TestUpsertKeepsStoredRefreshTokenWhenProviderOmitsIt(t *testing.T) {
	repo := newFakeCredentialRepo()
	seeded := repo.insert(&models.Credential{
		UserID:            1,
		Platform:          platforms.Twitter,
		ExternalAccountID: "tw-1",
		AccessToken:       encrypted(t, "old-token"),
		RefreshToken:      encrypted(t, "keep-me"),
	})

	svc := NewCredentialService(testConfig(), repo)
	_, err := svc.Upsert(context.Background(), 1, platforms.Twitter, &CredentialData{
		ExternalAccountID: "tw-1",
		AccessToken:       "new-token",
	})
	require.NoError(t, err)

	stored, _ := repo.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, "keep-me", decrypted(t, stored.RefreshToken))
}

func TestUpsertRecoversFromCreateRace(t *testing.T) {
	repo := newFakeCredentialRepo()
	// The racing upsert lands its row inside the same "transaction" that
	// rejects ours.
	repo.onCreate = func(c *models.Credential) error {
		repo.insert(&models.Credential{
			UserID:            9,
			Platform:          c.Platform,
			ExternalAccountID: c.ExternalAccountID,
			AccessToken:       encrypted(t, "racer-token"),
		})
		return &pq.Error{Code: "23505"}
	}

	svc := NewCredentialService(testConfig(), repo)
	cred, err := svc.Upsert(context.Background(), 2, platforms.TikTok, &CredentialData{
		ExternalAccountID: "tt-5",
		AccessToken:       "my-token",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cred.UserID)

	stored, _ := repo.GetByID(context.Background(), cred.ID)
	assert.Equal(t, "my-token", decrypted(t, stored.AccessToken))
	assert.GreaterOrEqual(t, repo.updates, 1)
}

func TestUpsertConflictWithoutRowFails(t *testing.T) {
	repo := newFakeCredentialRepo()
	repo.onCreate = func(c *models.Credential) error {
		return &pq.Error{Code: "23505"}
	}

	svc := NewCredentialService(testConfig(), repo)
	_, err := svc.Upsert(context.Background(), 2, platforms.TikTok, &CredentialData{
		ExternalAccountID: "tt-5",
		AccessToken:       "my-token",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestFindActiveFiltersExpired(t *testing.T) {
	repo := newFakeCredentialRepo()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	repo.insert(&models.Credential{UserID: 1, Platform: platforms.Twitter, ExternalAccountID: "a", AccessToken: "enc", TokenExpiresAt: &past})
	repo.insert(&models.Credential{UserID: 1, Platform: platforms.Instagram, ExternalAccountID: "b", AccessToken: "enc", TokenExpiresAt: &future})
	repo.insert(&models.Credential{UserID: 1, Platform: platforms.Facebook, ExternalAccountID: "c", AccessToken: "enc"})

	svc := NewCredentialService(testConfig(), repo)
	active, err := svc.FindActive(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, active, 2)

	got := map[platforms.Platform]bool{}
	for _, c := range active {
		got[c.Platform] = true
	}
	assert.True(t, got[platforms.Instagram])
	assert.True(t, got[platforms.Facebook], "null expiry means non-expiring")
	assert.False(t, got[platforms.Twitter])
}
