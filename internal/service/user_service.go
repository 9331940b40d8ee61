package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
)

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	RemoveUser(ctx context.Context, userID int64) error
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{
		u: u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	user, exists, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (s *userService) RemoveUser(ctx context.Context, userID int64) error {
	if err := s.u.Remove(ctx, userID); err != nil {
		return err
	}
	log.Info().Int64("user_id", userID).Msg("user removed")
	return nil
}
