package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/postdeckhq/postdeck/internal/platforms"
)

// Metadata holds platform-specific account attributes that have no column of
// their own, e.g. the TikTok advertiser id or a Facebook page id. Stored as a
// jsonb column.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, m)
}

type Credential struct {
	ID                int64              `db:"id" json:"id"`
	UserID            int64              `db:"user_id" json:"user_id"`
	Platform          platforms.Platform `db:"platform" json:"platform"`
	ExternalAccountID string             `db:"external_account_id" json:"external_account_id"`
	AccountName       string             `db:"account_name" json:"account_name"`
	AccountUsername   string             `db:"account_username" json:"account_username"`
	AvatarURL         string             `db:"avatar_url" json:"avatar_url"`
	AccessToken       string             `db:"access_token" json:"-"`
	AccessTokenSecret string             `db:"access_token_secret" json:"-"`
	RefreshToken      string             `db:"refresh_token" json:"-"`
	TokenExpiresAt    *time.Time         `db:"token_expires_at" json:"token_expires_at"`
	Scopes            []string           `db:"scopes" json:"scopes"`
	Metadata          Metadata           `db:"metadata" json:"metadata"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// ActiveAt reports whether the credential is usable at t: it holds a token
// and is either non-expiring or not yet expired.
func (c *Credential) ActiveAt(t time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.TokenExpiresAt == nil || c.TokenExpiresAt.After(t)
}

func (c *Credential) AdvertiserID() string {
	return c.Metadata["advertiser_id"]
}
