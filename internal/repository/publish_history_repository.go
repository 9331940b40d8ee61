package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
)

type PublishHistoryRepository interface {
	Create(ctx context.Context, ph *models.PublishHistory) (int64, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishHistory, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PublishHistory, error)
}

type publishHistoryRepository struct {
	db *sql.DB
}

func NewPublishHistoryRepository(db *sql.DB) PublishHistoryRepository {
	return &publishHistoryRepository{db: db}
}

func (r *publishHistoryRepository) Create(ctx context.Context, ph *models.PublishHistory) (int64, error) {
	query := `
		INSERT INTO publish_history (user_id, post_id, platform, status, platform_post_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.PostID, ph.Platform, ph.Status, ph.PlatformPostID, ph.ErrorMessage).Scan(&id)
	if err != nil {
		log.Error().Err(err).Msg("create publish history")
		return 0, err
	}

	return id, nil
}

func (r *publishHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishHistory, error) {
	query := `
		SELECT id, user_id, post_id, platform, status, platform_post_id, error_message, created_at
		FROM publish_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

func (r *publishHistoryRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PublishHistory, error) {
	query := `
		SELECT id, user_id, post_id, platform, status, platform_post_id, error_message, created_at
		FROM publish_history
		WHERE post_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, postID)
}

func (r *publishHistoryRepository) list(ctx context.Context, query string, args ...any) ([]*models.PublishHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("list publish history")
		return nil, err
	}
	defer rows.Close()

	var entries []*models.PublishHistory
	for rows.Next() {
		var ph models.PublishHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.Platform, &ph.Status, &ph.PlatformPostID, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			log.Error().Err(err).Msg("scan publish history")
			return nil, err
		}
		entries = append(entries, &ph)
	}
	return entries, rows.Err()
}
