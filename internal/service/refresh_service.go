package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/internal/transfer"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

// refreshHorizon is how close to expiry a token has to be before a
// refresh is attempted. Anything further out is reported as skipped.
const refreshHorizon = 24 * time.Hour

// RefreshService keeps stored platform tokens usable. Each credential is
// handled independently so one provider being down never blocks the rest.
type RefreshService interface {
	RefreshAllForUser(ctx context.Context, userID int64) (*transfer.RefreshReport, error)
	RefreshCredential(ctx context.Context, cred *models.Credential) transfer.RefreshOutcome
}

type refreshService struct {
	cfg         config.Config
	credentials repository.CredentialRepository
	refreshers  map[platforms.Platform]TokenRefresher
}

func NewRefreshService(cfg config.Config, credentials repository.CredentialRepository, refreshers map[platforms.Platform]TokenRefresher) RefreshService {
	return &refreshService{cfg: cfg, credentials: credentials, refreshers: refreshers}
}

func (s *refreshService) RefreshAllForUser(ctx context.Context, userID int64) (*transfer.RefreshReport, error) {
	creds, err := s.credentials.ListByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to list credentials for refresh")
		return nil, err
	}

	report := &transfer.RefreshReport{UserID: userID}
	for _, cred := range creds {
		report.Record(s.RefreshCredential(ctx, cred))
	}
	return report, nil
}

func (s *refreshService) RefreshCredential(ctx context.Context, cred *models.Credential) transfer.RefreshOutcome {
	out := transfer.RefreshOutcome{Platform: string(cred.Platform)}
	now := time.Now()

	if cred.AccessToken == "" {
		out.Outcome = transfer.RefreshOutcomeSkipped
		out.Detail = "no token on record"
		return out
	}
	if cred.TokenExpiresAt == nil {
		out.Outcome = transfer.RefreshOutcomeSkipped
		out.Detail = "token does not expire"
		return out
	}
	if cred.TokenExpiresAt.After(now.Add(refreshHorizon)) {
		out.Outcome = transfer.RefreshOutcomeSkipped
		out.Detail = "not close to expiry"
		out.ExpiresAt = cred.TokenExpiresAt
		return out
	}

	refresher, ok := s.refreshers[cred.Platform]
	if !ok {
		out.Outcome = transfer.RefreshOutcomeSkipped
		out.Detail = "refresh not supported"
		return out
	}

	auth, err := BuildAuthContext(cred, s.cfg.SecretKey)
	if err != nil {
		log.Error().Err(err).Int64("credential_id", cred.ID).Msg("failed to decode stored tokens")
		out.Outcome = transfer.RefreshOutcomeFailed
		out.Detail = "stored tokens could not be read"
		return out
	}

	switch cred.Platform {
	case platforms.Twitter, platforms.TikTok:
		// These grants only work off a refresh token; the access token
		// alone cannot be renewed.
		if auth.RefreshToken == "" {
			out.Outcome = transfer.RefreshOutcomeFailed
			out.Detail = "no refresh token on record"
			return out
		}
	}

	refreshed, err := refresher.RefreshToken(ctx, auth)
	if err != nil {
		log.Error().Err(err).
			Int64("user_id", cred.UserID).
			Str("platform", string(cred.Platform)).
			Msg("token refresh failed")
		out.Outcome = transfer.RefreshOutcomeFailed
		out.Detail = err.Error()
		return out
	}
	if refreshed == nil || refreshed.AccessToken == "" {
		out.Outcome = transfer.RefreshOutcomeFailed
		out.Detail = "provider returned an empty token"
		return out
	}

	expiresAt := refreshed.ExpiresAt
	if expiresAt != nil && cred.TokenExpiresAt != nil && expiresAt.Before(*cred.TokenExpiresAt) {
		// A refresh must never leave the credential worse off.
		expiresAt = cred.TokenExpiresAt
	}

	if err := s.persist(ctx, cred.ID, refreshed, expiresAt); err != nil {
		log.Error().Err(err).Int64("credential_id", cred.ID).Msg("failed to store refreshed tokens")
		out.Outcome = transfer.RefreshOutcomeFailed
		out.Detail = "failed to store refreshed tokens"
		return out
	}

	log.Info().
		Int64("user_id", cred.UserID).
		Str("platform", string(cred.Platform)).
		Msg("platform token refreshed")
	out.Outcome = transfer.RefreshOutcomeRefreshed
	out.ExpiresAt = expiresAt
	return out
}

func (s *refreshService) persist(ctx context.Context, credentialID int64, refreshed *RefreshedToken, expiresAt *time.Time) error {
	key := []byte(s.cfg.SecretKey)

	encAccess, err := utils.Encrypt([]byte(refreshed.AccessToken), key)
	if err != nil {
		return err
	}
	encRefresh := ""
	if refreshed.RefreshToken != "" {
		if encRefresh, err = utils.Encrypt([]byte(refreshed.RefreshToken), key); err != nil {
			return err
		}
	}
	return s.credentials.UpdateTokens(ctx, credentialID, encAccess, encRefresh, expiresAt)
}
