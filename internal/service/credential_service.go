package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

// CredentialData is what a platform connect callback or token refresh hands
// the store: plaintext tokens plus account metadata. Encryption at rest
// happens here, not in the callers.
type CredentialData struct {
	ExternalAccountID string
	AccountName       string
	AccountUsername   string
	AvatarURL         string
	AccessToken       string
	AccessTokenSecret string
	RefreshToken      string
	ExpiresAt         *time.Time
	Scopes            []string
	Metadata          models.Metadata
}

type CredentialService interface {
	Upsert(ctx context.Context, userID int64, platform platforms.Platform, data *CredentialData) (*models.Credential, error)
	FindActive(ctx context.Context, userID int64, pls []platforms.Platform) ([]*models.Credential, error)
	List(ctx context.Context, userID int64) ([]*models.Credential, error)
	Get(ctx context.Context, userID int64, platform platforms.Platform) (*models.Credential, error)
	Remove(ctx context.Context, userID int64, platform platforms.Platform) error
}

type credentialService struct {
	cfg config.Config
	cr  repository.CredentialRepository
}

func NewCredentialService(cfg config.Config, cr repository.CredentialRepository) CredentialService {
	return &credentialService{
		cfg: cfg,
		cr:  cr,
	}
}

// Upsert resolves in order: the user's existing credential for the platform
// is updated in place; a credential for the same external account under
// another user is transferred to the requesting user (last write wins); an
// exact triple match is updated; otherwise a new row is created. A uniqueness
// violation during create means another upsert won the race, so the store
// re-queries and updates whatever row it finds.
func (s *credentialService) Upsert(ctx context.Context, userID int64, platform platforms.Platform, data *CredentialData) (*models.Credential, error) {
	if data.ExternalAccountID == "" {
		return nil, errors.New("external account id is empty")
	}

	existing, err := s.cr.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if existing != nil {
		return s.applyUpdate(ctx, existing, userID, data)
	}

	claimed, err := s.cr.GetByExternalAccount(ctx, platform, data.ExternalAccountID)
	if err != nil {
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if claimed != nil {
		if claimed.UserID != userID {
			log.Warn().
				Str("platform", platform.String()).
				Str("external_account_id", data.ExternalAccountID).
				Int64("from_user", claimed.UserID).
				Int64("to_user", userID).
				Msg("credential ownership transferred")
		}
		return s.applyUpdate(ctx, claimed, userID, data)
	}

	created, err := s.create(ctx, userID, platform, data)
	if err == nil {
		return created, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	// Lost the race with a concurrent upsert: adopt whichever row landed.
	winner, lookupErr := s.cr.GetByExternalAccount(ctx, platform, data.ExternalAccountID)
	if lookupErr != nil {
		return nil, fmt.Errorf("upsert recovery lookup: %w", lookupErr)
	}
	if winner == nil {
		winner, lookupErr = s.cr.GetByUserAndPlatform(ctx, userID, platform)
		if lookupErr != nil {
			return nil, fmt.Errorf("upsert recovery lookup: %w", lookupErr)
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("database error: upsert conflict with no matching row: %w", err)
	}
	return s.applyUpdate(ctx, winner, userID, data)
}

func (s *credentialService) create(ctx context.Context, userID int64, platform platforms.Platform, data *CredentialData) (*models.Credential, error) {
	cred := &models.Credential{
		UserID:   userID,
		Platform: platform,
	}
	if err := s.fill(cred, data); err != nil {
		return nil, err
	}

	id, err := s.cr.Create(ctx, nil, cred)
	if err != nil {
		return nil, err
	}
	cred.ID = id
	return cred, nil
}

func (s *credentialService) applyUpdate(ctx context.Context, cred *models.Credential, userID int64, data *CredentialData) (*models.Credential, error) {
	cred.UserID = userID
	if err := s.fill(cred, data); err != nil {
		return nil, err
	}
	if err := s.cr.Update(ctx, cred); err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	return cred, nil
}

// fill copies incoming data onto the record, encrypting tokens. Empty
// incoming tokens keep the stored ones, since providers do not always return
// a refresh token on re-auth.
func (s *credentialService) fill(cred *models.Credential, data *CredentialData) error {
	key := []byte(s.cfg.SecretKey)

	cred.ExternalAccountID = data.ExternalAccountID
	if data.AccountName != "" {
		cred.AccountName = data.AccountName
	}
	if data.AccountUsername != "" {
		cred.AccountUsername = data.AccountUsername
	}
	if data.AvatarURL != "" {
		cred.AvatarURL = data.AvatarURL
	}
	if data.ExpiresAt != nil {
		cred.TokenExpiresAt = data.ExpiresAt
	}
	if len(data.Scopes) > 0 {
		cred.Scopes = data.Scopes
	}
	if len(data.Metadata) > 0 {
		if cred.Metadata == nil {
			cred.Metadata = models.Metadata{}
		}
		for k, v := range data.Metadata {
			cred.Metadata[k] = v
		}
	}

	if data.AccessToken != "" {
		enc, err := utils.Encrypt([]byte(data.AccessToken), key)
		if err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		cred.AccessToken = enc
	}
	if data.AccessTokenSecret != "" {
		enc, err := utils.Encrypt([]byte(data.AccessTokenSecret), key)
		if err != nil {
			return fmt.Errorf("encrypt token secret: %w", err)
		}
		cred.AccessTokenSecret = enc
	}
	if data.RefreshToken != "" {
		enc, err := utils.Encrypt([]byte(data.RefreshToken), key)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		cred.RefreshToken = enc
	}

	return nil
}

func (s *credentialService) FindActive(ctx context.Context, userID int64, pls []platforms.Platform) ([]*models.Credential, error) {
	return s.cr.ListActiveByUserID(ctx, userID, pls)
}

func (s *credentialService) List(ctx context.Context, userID int64) ([]*models.Credential, error) {
	return s.cr.ListByUserID(ctx, userID)
}

func (s *credentialService) Get(ctx context.Context, userID int64, platform platforms.Platform) (*models.Credential, error) {
	return s.cr.GetByUserAndPlatform(ctx, userID, platform)
}

func (s *credentialService) Remove(ctx context.Context, userID int64, platform platforms.Platform) error {
	return s.cr.Remove(ctx, userID, platform)
}
