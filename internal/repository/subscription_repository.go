package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
)

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Subscription, bool, error)
	Create(ctx context.Context, subscription *models.Subscription) (int64, error)
	Update(ctx context.Context, subscription *models.Subscription) error
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, bool, error) {
	var s models.Subscription
	query := `
		SELECT id, user_id, provider_sub_id, plan_id, status, current_period_end
		FROM subscriptions
		WHERE user_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.ProviderSubID, &s.PlanID, &s.Status, &s.CurrentPeriodEnd)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		log.Error().Err(err).Msg("get subscription")
		return nil, false, err
	}
	return &s, true, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) (int64, error) {
	query := `
		INSERT INTO subscriptions (user_id, provider_sub_id, plan_id, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, subscription.UserID, subscription.ProviderSubID, subscription.PlanID, subscription.Status, subscription.CurrentPeriodEnd).Scan(&id)
	if err != nil {
		log.Error().Err(err).Msg("create subscription")
		return 0, err
	}
	return id, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET provider_sub_id = $1,
			plan_id = $2,
			status = $3,
			current_period_end = $4,
			updated_at = $5
		WHERE user_id = $6
	`
	_, err := r.db.ExecContext(ctx, query, subscription.ProviderSubID, subscription.PlanID, subscription.Status, subscription.CurrentPeriodEnd, time.Now(), subscription.UserID)
	if err != nil {
		log.Error().Err(err).Msg("update subscription")
		return err
	}

	return nil
}
