package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

const sessionDuration = 7 * 24 * time.Hour

// AuthService signs users in through Google and mints the session token the
// cookie middleware checks.
type AuthService interface {
	LoginURL(state string) string
	LoginCallback(ctx context.Context, code string) (string, error)
}

type authService struct {
	cfg   config.Config
	users repository.UserRepository
}

func NewAuthService(cfg config.Config, users repository.UserRepository) AuthService {
	return &authService{
		cfg:   cfg,
		users: users,
	}
}

func (s *authService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func (s *authService) LoginURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (s *authService) LoginCallback(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("authorization code is missing")
	}

	conf := s.oauthConfig()
	if conf.ClientID == "" || conf.ClientSecret == "" {
		return "", errors.New("google oauth is not configured")
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("google code exchange")
		return "", errors.New("google sign-in failed")
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return "", err
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		log.Error().Err(err).Msg("google userinfo")
		return "", errors.New("google sign-in failed")
	}
	if info.Email == "" {
		return "", errors.New("google account has no email")
	}

	userID, err := s.upsertUser(ctx, info)
	if err != nil {
		return "", err
	}

	return utils.GenerateToken(s.cfg.SecretKey, strconv.FormatInt(userID, 10), sessionDuration)
}

func (s *authService) upsertUser(ctx context.Context, info *oauth2api.Userinfo) (int64, error) {
	user, exists, err := s.users.GetByEmail(ctx, info.Email)
	if err != nil {
		return 0, err
	}

	if !exists {
		id, err := s.users.Create(ctx, nil, &models.User{
			GoogleID:  info.Id,
			Email:     info.Email,
			Name:      info.Name,
			AvatarURL: info.Picture,
		})
		if err != nil {
			return 0, err
		}
		log.Info().Int64("user_id", id).Msg("user signed up")
		return id, nil
	}

	// Returning users may have changed their Google profile since last login.
	if user.GoogleID == "" || user.Name != info.Name || user.AvatarURL != info.Picture {
		user.GoogleID = info.Id
		user.Name = info.Name
		user.AvatarURL = info.Picture
		if err := s.users.Update(ctx, user); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("refresh user profile")
		}
	}
	return user.ID, nil
}
