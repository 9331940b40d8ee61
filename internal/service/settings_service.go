package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
)

var allowedPrivacyLevels = map[string]struct{}{
	"PUBLIC_TO_EVERYONE":    {},
	"MUTUAL_FOLLOW_FRIENDS": {},
	"FOLLOWER_OF_CREATOR":   {},
	"SELF_ONLY":             {},
}

// SettingsService manages per-user posting defaults. A user without a stored
// row gets the zero defaults; the row is created on first update.
type SettingsService interface {
	Get(ctx context.Context, userID int64) (*models.Settings, error)
	Update(ctx context.Context, userID int64, privacyLevel string, hashtags []string) (*models.Settings, error)
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{sr: sr}
}

func (s *settingsService) Get(ctx context.Context, userID int64) (*models.Settings, error) {
	settings, exists, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &models.Settings{UserID: userID}, nil
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, userID int64, privacyLevel string, hashtags []string) (*models.Settings, error) {
	if privacyLevel != "" {
		if _, ok := allowedPrivacyLevels[privacyLevel]; !ok {
			return nil, fmt.Errorf("privacy level %q is not valid", privacyLevel)
		}
	}

	cleaned := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}

	settings := &models.Settings{
		UserID:              userID,
		DefaultPrivacyLevel: privacyLevel,
		DefaultHashtags:     cleaned,
	}

	_, exists, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := s.sr.Update(ctx, settings, userID); err != nil {
			return nil, err
		}
	} else {
		id, err := s.sr.Create(ctx, settings)
		if err != nil {
			return nil, err
		}
		settings.ID = id
	}

	log.Info().Int64("user_id", userID).Msg("posting defaults updated")
	return settings, nil
}
