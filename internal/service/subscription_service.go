package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	eventSubscriptionPaid      = "subscription.paid"
	eventSubscriptionCancelled = "subscription.cancelled"
	eventSubscriptionExpired   = "subscription.expired"
)

type SubscriptionService interface {
	HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error
	IsPremium(ctx context.Context, userID int64) (bool, error)
}

type subscriptionService struct {
	cfg config.Config
	u   repository.UserRepository
	s   repository.SubscriptionRepository
}

func NewSubscriptionService(cfg config.Config, u repository.UserRepository, s repository.SubscriptionRepository) SubscriptionService {
	return &subscriptionService{
		cfg: cfg,
		u:   u,
		s:   s,
	}
}

func (s *subscriptionService) HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error {
	switch payload.EventType {
	case eventSubscriptionPaid:
		return s.applyEvent(ctx, payload, models.SubscriptionActive)
	case eventSubscriptionCancelled:
		return s.applyEvent(ctx, payload, models.SubscriptionCancelled)
	case eventSubscriptionExpired:
		return s.applyEvent(ctx, payload, models.SubscriptionExpired)
	default:
		log.Debug().
			Str("event_type", payload.EventType).
			Str("event_id", payload.ID).
			Msg("ignoring unhandled billing event")
		return nil
	}
}

func (s *subscriptionService) applyEvent(ctx context.Context, payload *transfer.SubscriptionEvent, status string) error {
	userID, err := s.resolveUser(ctx, payload)
	if err != nil {
		return err
	}

	sub := &models.Subscription{
		UserID:           userID,
		ProviderSubID:    payload.Object.ID,
		PlanID:           payload.Object.Product.ID,
		Status:           status,
		CurrentPeriodEnd: payload.Object.CurrentPeriodEndDate,
	}

	existing, isExist, err := s.s.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetching subscription failed: %w", err)
	}

	if !isExist {
		if _, err := s.s.Create(ctx, sub); err != nil {
			return fmt.Errorf("creating subscription failed: %w", err)
		}
	} else {
		sub.ID = existing.ID
		if err := s.s.Update(ctx, sub); err != nil {
			return fmt.Errorf("updating subscription failed: %w", err)
		}
	}

	log.Info().
		Int64("user_id", userID).
		Str("provider_sub_id", sub.ProviderSubID).
		Str("status", status).
		Time("current_period_end", sub.CurrentPeriodEnd).
		Msg("subscription updated")

	return nil
}

// resolveUser maps the billing customer onto a local account. The checkout
// flow stamps our user ID into the provider metadata; email is the fallback
// for payments made before the metadata was introduced. A payment can land
// before the customer ever signs in, so an unknown email creates the account.
func (s *subscriptionService) resolveUser(ctx context.Context, payload *transfer.SubscriptionEvent) (int64, error) {
	if raw := payload.Object.Metadata.InternalCustomerID; raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("billing metadata carries invalid customer id %q", raw)
		}
		if _, isExist, err := s.u.GetByID(ctx, userID); err != nil {
			return 0, fmt.Errorf("fetching user failed: %w", err)
		} else if isExist {
			return userID, nil
		}
		log.Warn().
			Int64("user_id", userID).
			Str("event_id", payload.ID).
			Msg("billing metadata references unknown user, falling back to email")
	}

	email := strings.TrimSpace(strings.ToLower(payload.Object.Customer.Email))
	if email == "" {
		return 0, fmt.Errorf("billing event %s carries no customer reference", payload.ID)
	}

	user, isExist, err := s.u.GetByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("fetching user by email failed: %w", err)
	}
	if isExist {
		return user.ID, nil
	}

	newUser := &models.User{
		Email: email,
		Name:  payload.Object.Customer.Name,
	}
	userID, err := s.u.Create(ctx, nil, newUser)
	if err != nil {
		return 0, fmt.Errorf("creating user failed: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Str("email", email).
		Msg("created user from billing event")

	return userID, nil
}

func (s *subscriptionService) IsPremium(ctx context.Context, userID int64) (bool, error) {
	sub, isExist, err := s.s.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("fetching subscription failed: %w", err)
	}
	if !isExist {
		return false, nil
	}
	return sub.ActiveAt(time.Now()), nil
}
