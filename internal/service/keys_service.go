package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

const maxAPIKeysPerUser = 5

// ApiKeyService manages the machine keys that authenticate requests without
// a browser session.
type ApiKeyService interface {
	Create(ctx context.Context, userID int64, label string) (*models.ApiKey, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	RemoveAPIKey(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) Create(ctx context.Context, userID int64, label string) (*models.ApiKey, error) {
	keys, err := s.k.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) >= maxAPIKeysPerUser {
		return nil, fmt.Errorf("at most %d api keys can be active", maxAPIKeysPerUser)
	}

	key, err := utils.GenerateRandomKey(32)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	apiKey := &models.ApiKey{
		UserID: userID,
		Label:  label,
		ApiKey: key,
	}
	id, err := s.k.Create(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	apiKey.ID = id

	log.Info().Int64("user_id", userID).Int64("key_id", id).Msg("api key created")
	return apiKey, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	userID, exists, err := s.k.GetByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errors.New("api key does not exist")
	}
	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return s.k.GetByUserID(ctx, userID)
}

func (s *apiKeyService) RemoveAPIKey(ctx context.Context, userID, keyID int64) error {
	owned, err := s.k.CheckByUserID(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return errors.New("api key does not exist")
	}
	return s.k.Remove(ctx, keyID)
}
