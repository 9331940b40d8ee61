package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

type stubFacebook struct {
	data     *CredentialData
	err      error
	lastCode string
}

func (s *stubFacebook) AuthURL(state string) string {
	return "https://facebook.example/auth?state=" + state
}

func (s *stubFacebook) Callback(_ context.Context, code string) (*CredentialData, error) {
	s.lastCode = code
	return s.data, s.err
}

func (s *stubFacebook) Platform() platforms.Platform { return platforms.Facebook }

func (s *stubFacebook) Publish(context.Context, AuthContext, PublishContent) (*PublishOutcome, error) {
	return nil, errors.New("not implemented")
}

func (s *stubFacebook) RefreshToken(context.Context, AuthContext) (*RefreshedToken, error) {
	return nil, errors.New("not implemented")
}

type stubTiktok struct {
	revoked   []string
	revokeErr error
}

func (s *stubTiktok) AuthURL(state string) string { return "https://tiktok.example/auth?state=" + state }

func (s *stubTiktok) Callback(context.Context, string, string) (*CredentialData, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTiktok) Revoke(_ context.Context, auth AuthContext) error {
	s.revoked = append(s.revoked, auth.AccessToken)
	return s.revokeErr
}

func (s *stubTiktok) Platform() platforms.Platform { return platforms.TikTok }

func (s *stubTiktok) Publish(context.Context, AuthContext, PublishContent) (*PublishOutcome, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTiktok) RefreshToken(context.Context, AuthContext) (*RefreshedToken, error) {
	return nil, errors.New("not implemented")
}

func TestGetAuthURLTwitterCarriesPKCEState(t *testing.T) {
	cfg := config.Config{
		SecretKey:       testSecret,
		TwitterClientID: "tw-client",
	}
	svc := &platformService{
		cfg:     cfg,
		twitter: &twitterService{cfg: cfg},
	}

	raw, err := svc.GetAuthURL(context.Background(), 7, platforms.Twitter)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	query := parsed.Query()

	challenge := query.Get("code_challenge")
	require.NotEmpty(t, challenge)
	assert.Len(t, challenge, pkceVerifierLength)

	claims, err := utils.ValidateToken(testSecret, query.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, challenge, claims.Verifier, "the verifier must survive the state round trip")
}

func TestHandleCallbackStoresCredential(t *testing.T) {
	creds := newFakeCredentialRepo()
	fb := &stubFacebook{data: &CredentialData{
		ExternalAccountID: "page-1",
		AccountName:       "Postdeck Page",
		AccessToken:       "page-token",
	}}
	svc := &platformService{
		cfg:      testConfig(),
		creds:    NewCredentialService(testConfig(), creds),
		facebook: fb,
	}

	state, err := utils.GenerateStateToken(testSecret, "7", "")
	require.NoError(t, err)

	cred, err := svc.HandleCallback(context.Background(), platforms.Facebook, &CallbackParams{
		Code:  "auth-code",
		State: state,
	})
	require.NoError(t, err)
	require.NotNil(t, cred)

	assert.Equal(t, "auth-code", fb.lastCode)
	assert.Equal(t, int64(7), cred.UserID)
	assert.Equal(t, "page-1", cred.ExternalAccountID)
	assert.Equal(t, "page-token", decrypted(t, cred.AccessToken))
}

func TestHandleCallbackRejectsForgedState(t *testing.T) {
	svc := &platformService{
		cfg:      testConfig(),
		creds:    NewCredentialService(testConfig(), newFakeCredentialRepo()),
		facebook: &stubFacebook{},
	}

	_, err := svc.HandleCallback(context.Background(), platforms.Facebook, &CallbackParams{
		Code:  "auth-code",
		State: "not-a-jwt",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state")
}

func TestHandleCallbackRequiresCode(t *testing.T) {
	svc := &platformService{cfg: testConfig()}

	_, err := svc.HandleCallback(context.Background(), platforms.Facebook, &CallbackParams{State: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code")
}

func TestDisconnectRevokesTiktokBestEffort(t *testing.T) {
	creds := newFakeCredentialRepo()
	creds.insert(&models.Credential{
		UserID:            7,
		Platform:          platforms.TikTok,
		ExternalAccountID: "open-1",
		AccessToken:       encrypted(t, "tiktok-token"),
	})

	tk := &stubTiktok{revokeErr: errors.New("provider down")}
	credSvc := NewCredentialService(testConfig(), creds)
	svc := &platformService{
		cfg:    testConfig(),
		creds:  credSvc,
		tiktok: tk,
	}

	require.NoError(t, svc.Disconnect(context.Background(), 7, platforms.TikTok),
		"a failed provider revoke must not keep the credential around")
	assert.Equal(t, []string{"tiktok-token"}, tk.revoked, "revoke gets the decrypted token")

	remaining, err := credSvc.Get(context.Background(), 7, platforms.TikTok)
	require.NoError(t, err)
	assert.Nil(t, remaining)
}

func TestListMarksExpiredCredentials(t *testing.T) {
	creds := newFakeCredentialRepo()
	expired := time.Now().Add(-time.Hour)
	live := time.Now().Add(48 * time.Hour)
	creds.insert(&models.Credential{
		UserID: 7, Platform: platforms.Twitter,
		ExternalAccountID: "tw-1",
		AccessToken:       encrypted(t, "t"),
		TokenExpiresAt:    &expired,
	})
	creds.insert(&models.Credential{
		UserID: 7, Platform: platforms.Facebook,
		ExternalAccountID: "fb-1",
		AccessToken:       encrypted(t, "t"),
		TokenExpiresAt:    &live,
	})

	svc := &platformService{
		cfg:   testConfig(),
		creds: NewCredentialService(testConfig(), creds),
	}

	accounts, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byPlatform := map[string]bool{}
	for _, acc := range accounts {
		byPlatform[acc.Platform] = acc.Connected
	}
	assert.False(t, byPlatform["twitter"])
	assert.True(t, byPlatform["facebook"])
}
