package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
)

const credentialColumns = `
	id, user_id, platform, external_account_id, account_name, account_username,
	avatar_url, access_token, access_token_secret, refresh_token,
	token_expires_at, scopes, metadata, created_at, updated_at`

type CredentialRepository interface {
	Create(ctx context.Context, tx *sql.Tx, c *models.Credential) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Credential, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platform platforms.Platform) (*models.Credential, error)
	GetByExternalAccount(ctx context.Context, platform platforms.Platform, externalAccountID string) (*models.Credential, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Credential, error)
	ListActiveByUserID(ctx context.Context, userID int64, pls []platforms.Platform) ([]*models.Credential, error)
	ListExpiringBefore(ctx context.Context, until time.Time) ([]*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) error
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error
	Remove(ctx context.Context, userID int64, platform platforms.Platform) error
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, tx *sql.Tx, c *models.Credential) (int64, error) {
	query := `
		INSERT INTO credentials (
			user_id, platform, external_account_id, account_name,
			account_username, avatar_url, access_token, access_token_secret,
			refresh_token, token_expires_at, scopes, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	args := []any{
		c.UserID, c.Platform, c.ExternalAccountID, c.AccountName,
		c.AccountUsername, c.AvatarURL, c.AccessToken, c.AccessTokenSecret,
		c.RefreshToken, c.TokenExpiresAt, pq.Array(c.Scopes), c.Metadata,
	}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		log.Error().Err(err).Msg("create credential")
		return 0, err
	}
	return id, nil
}

func (r *credentialRepository) scanOne(row *sql.Row) (*models.Credential, error) {
	var c models.Credential
	err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.ExternalAccountID,
		&c.AccountName, &c.AccountUsername, &c.AvatarURL, &c.AccessToken,
		&c.AccessTokenSecret, &c.RefreshToken, &c.TokenExpiresAt,
		pq.Array(&c.Scopes), &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Error().Err(err).Msg("scan credential")
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepository) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *credentialRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform platforms.Platform) (*models.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE user_id = $1 AND platform = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, platform))
}

func (r *credentialRepository) GetByExternalAccount(ctx context.Context, platform platforms.Platform, externalAccountID string) (*models.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE platform = $1 AND external_account_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, platform, externalAccountID))
}

func (r *credentialRepository) list(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("list credentials")
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var c models.Credential
		err := rows.Scan(&c.ID, &c.UserID, &c.Platform, &c.ExternalAccountID,
			&c.AccountName, &c.AccountUsername, &c.AvatarURL, &c.AccessToken,
			&c.AccessTokenSecret, &c.RefreshToken, &c.TokenExpiresAt,
			pq.Array(&c.Scopes), &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			log.Error().Err(err).Msg("scan credential row")
			return nil, err
		}
		creds = append(creds, &c)
	}
	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("iterate credentials")
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE user_id = $1 ORDER BY platform`
	return r.list(ctx, query, userID)
}

// ListActiveByUserID returns credentials holding a token that is either
// non-expiring (null expiry) or not yet expired, optionally narrowed to pls.
func (r *credentialRepository) ListActiveByUserID(ctx context.Context, userID int64, pls []platforms.Platform) ([]*models.Credential, error) {
	query := `SELECT` + credentialColumns + `
		FROM credentials
		WHERE user_id = $1
		  AND access_token <> ''
		  AND (token_expires_at IS NULL OR token_expires_at > NOW())`
	args := []any{userID}

	if len(pls) > 0 {
		names := make([]string, 0, len(pls))
		for _, p := range pls {
			names = append(names, p.String())
		}
		query += ` AND platform = ANY($2)`
		args = append(args, pq.Array(names))
	}

	return r.list(ctx, query+` ORDER BY platform`, args...)
}

// ListExpiringBefore feeds the periodic refresh sweep: rows whose expiry lies
// before the cutoff, already-expired ones included. Non-expiring credentials
// never match.
func (r *credentialRepository) ListExpiringBefore(ctx context.Context, until time.Time) ([]*models.Credential, error) {
	query := `SELECT` + credentialColumns + `
		FROM credentials
		WHERE token_expires_at IS NOT NULL
		  AND token_expires_at < $1
		  AND access_token <> ''`
	return r.list(ctx, query, until)
}

func (r *credentialRepository) Update(ctx context.Context, c *models.Credential) error {
	query := `
		UPDATE credentials
		SET user_id = $2,
			external_account_id = $3,
			account_name = $4,
			account_username = $5,
			avatar_url = $6,
			access_token = $7,
			access_token_secret = $8,
			refresh_token = $9,
			token_expires_at = $10,
			scopes = $11,
			metadata = $12,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.ExternalAccountID,
		c.AccountName, c.AccountUsername, c.AvatarURL, c.AccessToken,
		c.AccessTokenSecret, c.RefreshToken, c.TokenExpiresAt,
		pq.Array(c.Scopes), c.Metadata)
	if err != nil {
		log.Error().Err(err).Msg("update credential")
		return err
	}
	return nil
}

// UpdateTokens persists a refresh outcome as one statement. An empty refresh
// token keeps the stored one, since several providers omit it on rotation.
func (r *credentialRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	query := `
		UPDATE credentials
		SET access_token = COALESCE(NULLIF($2, ''), access_token),
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = COALESCE($4, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		log.Error().Err(err).Msg("update credential tokens")
		return err
	}
	return nil
}

func (r *credentialRepository) Remove(ctx context.Context, userID int64, platform platforms.Platform) error {
	query := `DELETE FROM credentials WHERE user_id = $1 AND platform = $2`
	_, err := r.db.ExecContext(ctx, query, userID, platform)
	if err != nil {
		log.Error().Err(err).Msg("remove credential")
		return err
	}
	return nil
}
