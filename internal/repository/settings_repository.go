package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
)

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Settings, bool, error)
	Create(ctx context.Context, settings *models.Settings) (int64, error)
	Update(ctx context.Context, settings *models.Settings, userID int64) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.Settings, bool, error) {
	query := `
		SELECT id, user_id, default_privacy_level, default_hashtags, created_at, updated_at
		FROM settings
		WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var s models.Settings
	err := row.Scan(&s.ID, &s.UserID, &s.DefaultPrivacyLevel, pq.Array(&s.DefaultHashtags), &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		log.Error().Err(err).Msg("get settings")
		return nil, false, err
	}

	return &s, true, nil
}

func (r *settingsRepository) Create(ctx context.Context, settings *models.Settings) (int64, error) {
	query := `
		INSERT INTO settings (user_id, default_privacy_level, default_hashtags)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, settings.UserID, settings.DefaultPrivacyLevel, pq.Array(settings.DefaultHashtags)).Scan(&id)
	if err != nil {
		log.Error().Err(err).Msg("create settings")
		return 0, err
	}

	return id, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings *models.Settings, userID int64) error {
	query := `
		UPDATE settings
		SET default_privacy_level = $1,
			default_hashtags = $2,
			updated_at = $3
		WHERE user_id = $4
	`
	_, err := r.db.ExecContext(ctx, query, settings.DefaultPrivacyLevel, pq.Array(settings.DefaultHashtags), time.Now(), userID)
	if err != nil {
		log.Error().Err(err).Msg("update settings")
		return err
	}

	return nil
}
