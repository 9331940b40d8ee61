package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

const pkceVerifierLength = 64

// CallbackParams is what the provider redirect carries back. AdvertiserID is
// only present on TikTok business callbacks.
type CallbackParams struct {
	Code         string
	State        string
	AdvertiserID string
}

// PlatformService routes connect flows to the right platform adapter and
// owns the OAuth state round trip.
type PlatformService interface {
	GetAuthURL(ctx context.Context, userID int64, platform platforms.Platform) (string, error)
	HandleCallback(ctx context.Context, platform platforms.Platform, params *CallbackParams) (*models.Credential, error)
	List(ctx context.Context, userID int64) ([]transfer.AccountResponse, error)
	Disconnect(ctx context.Context, userID int64, platform platforms.Platform) error
}

type platformService struct {
	cfg       config.Config
	creds     CredentialService
	facebook  FacebookService
	instagram InstagramService
	twitter   TwitterService
	tiktok    TiktokService
	amazon    AmazonService
}

func NewPlatformService(
	cfg config.Config,
	creds CredentialService,
	facebook FacebookService,
	instagram InstagramService,
	twitter TwitterService,
	tiktok TiktokService,
	amazon AmazonService,
) PlatformService {
	return &platformService{
		cfg:       cfg,
		creds:     creds,
		facebook:  facebook,
		instagram: instagram,
		twitter:   twitter,
		tiktok:    tiktok,
		amazon:    amazon,
	}
}

func (s *platformService) GetAuthURL(_ context.Context, userID int64, platform platforms.Platform) (string, error) {
	uid := strconv.FormatInt(userID, 10)

	// Twitter runs PKCE; the verifier rides inside the signed state so no
	// server-side session is needed between redirect and callback.
	verifier := ""
	if platform == platforms.Twitter {
		v, err := gonanoid.New(pkceVerifierLength)
		if err != nil {
			return "", err
		}
		verifier = v
	}

	state, err := utils.GenerateStateToken(s.cfg.SecretKey, uid, verifier)
	if err != nil {
		return "", err
	}

	switch platform {
	case platforms.Facebook:
		return s.facebook.AuthURL(state), nil
	case platforms.Instagram:
		return s.instagram.AuthURL(state), nil
	case platforms.Twitter:
		return s.twitter.AuthURL(state, verifier), nil
	case platforms.TikTok:
		return s.tiktok.AuthURL(state), nil
	case platforms.Amazon:
		return s.amazon.AuthURL(state), nil
	default:
		return "", fmt.Errorf("unknown platform %q", platform)
	}
}

func (s *platformService) HandleCallback(ctx context.Context, platform platforms.Platform, params *CallbackParams) (*models.Credential, error) {
	if params.Code == "" {
		return nil, errors.New("authorization code is missing")
	}

	claims, err := utils.ValidateToken(s.cfg.SecretKey, params.State)
	if err != nil {
		log.Warn().Err(err).Str("platform", platform.String()).Msg("oauth state rejected")
		return nil, errors.New("oauth state is invalid or expired")
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, errors.New("oauth state is invalid or expired")
	}

	var data *CredentialData
	switch platform {
	case platforms.Facebook:
		data, err = s.facebook.Callback(ctx, params.Code)
	case platforms.Instagram:
		data, err = s.instagram.Callback(ctx, params.Code)
	case platforms.Twitter:
		data, err = s.twitter.Callback(ctx, params.Code, claims.Verifier)
	case platforms.TikTok:
		data, err = s.tiktok.Callback(ctx, params.Code, params.AdvertiserID)
	case platforms.Amazon:
		data, err = s.amazon.Callback(ctx, params.Code)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.Upsert(ctx, userID, platform, data)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", userID).
		Str("platform", platform.String()).
		Str("account", cred.ExternalAccountID).
		Msg("platform connected")
	return cred, nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]transfer.AccountResponse, error) {
	creds, err := s.creds.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]transfer.AccountResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, transfer.FromCredential(cred, now))
	}
	return out, nil
}

func (s *platformService) Disconnect(ctx context.Context, userID int64, platform platforms.Platform) error {
	cred, err := s.creds.Get(ctx, userID, platform)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("%s account is not connected", platform)
	}

	// Best effort: the local credential goes away even when the provider
	// revoke call fails.
	if platform == platforms.TikTok {
		auth, err := BuildAuthContext(cred, s.cfg.SecretKey)
		if err == nil {
			if err := s.tiktok.Revoke(ctx, auth); err != nil {
				log.Warn().Err(err).Int64("user_id", userID).Msg("tiktok revoke failed")
			}
		}
	}

	if err := s.creds.Remove(ctx, userID, platform); err != nil {
		return err
	}
	log.Info().
		Int64("user_id", userID).
		Str("platform", platform.String()).
		Msg("platform disconnected")
	return nil
}
