package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) error
	GetByID(ctx context.Context, id string) (*models.MediaAsset, error)
	ListByIDs(ctx context.Context, userID int64, ids []string) ([]*models.MediaAsset, error)
	Remove(ctx context.Context, id string) error
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

func (r *mediaAssetRepository) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) error {
	query := `
		INSERT INTO media_assets (
			id, user_id, file_name, media_type, mime_type, size_bytes,
			width, height, duration_seconds, storage_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	args := []any{
		ma.ID, ma.UserID, ma.FileName, ma.MediaType, ma.MimeType,
		ma.SizeBytes, ma.Width, ma.Height, ma.DurationSeconds, ma.StorageKey,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		log.Error().Err(err).Msg("create media asset")
		return err
	}
	return nil
}

func (r *mediaAssetRepository) GetByID(ctx context.Context, id string) (*models.MediaAsset, error) {
	query := `
		SELECT id, user_id, file_name, media_type, mime_type, size_bytes,
			width, height, duration_seconds, storage_key, created_at
		FROM media_assets
		WHERE id = $1
	`

	var ma models.MediaAsset
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ma.ID, &ma.UserID, &ma.FileName, &ma.MediaType, &ma.MimeType,
		&ma.SizeBytes, &ma.Width, &ma.Height, &ma.DurationSeconds,
		&ma.StorageKey, &ma.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Error().Err(err).Msg("get media asset")
		return nil, err
	}

	return &ma, nil
}

// ListByIDs returns only assets owned by userID; ids of other users or
// unknown ids are silently absent from the result.
func (r *mediaAssetRepository) ListByIDs(ctx context.Context, userID int64, ids []string) ([]*models.MediaAsset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, file_name, media_type, mime_type, size_bytes,
			width, height, duration_seconds, storage_key, created_at
		FROM media_assets
		WHERE user_id = $1 AND id = ANY($2)
	`
	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		log.Error().Err(err).Msg("list media assets")
		return nil, err
	}
	defer rows.Close()

	var assets []*models.MediaAsset
	for rows.Next() {
		var ma models.MediaAsset
		err := rows.Scan(&ma.ID, &ma.UserID, &ma.FileName, &ma.MediaType,
			&ma.MimeType, &ma.SizeBytes, &ma.Width, &ma.Height,
			&ma.DurationSeconds, &ma.StorageKey, &ma.CreatedAt)
		if err != nil {
			log.Error().Err(err).Msg("scan media asset")
			return nil, err
		}
		assets = append(assets, &ma)
	}
	return assets, rows.Err()
}

func (r *mediaAssetRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM media_assets WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error().Err(err).Msg("remove media asset")
		return err
	}
	return nil
}
