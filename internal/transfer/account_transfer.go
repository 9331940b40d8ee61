package transfer

import (
	"time"

	"github.com/postdeckhq/postdeck/internal/models"
)

// AccountResponse is the credential listing shape. Tokens never leave the
// server.
type AccountResponse struct {
	ID              int64      `json:"id"`
	Platform        string     `json:"platform"`
	AccountID       string     `json:"account_id"`
	AccountName     string     `json:"account_name"`
	AccountUsername string     `json:"account_username"`
	AvatarURL       string     `json:"avatar_url"`
	Connected       bool       `json:"connected"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
}

func FromCredential(c *models.Credential, now time.Time) AccountResponse {
	return AccountResponse{
		ID:              c.ID,
		Platform:        c.Platform.String(),
		AccountID:       c.ExternalAccountID,
		AccountName:     c.AccountName,
		AccountUsername: c.AccountUsername,
		AvatarURL:       c.AvatarURL,
		Connected:       c.ActiveAt(now),
		TokenExpiresAt:  c.TokenExpiresAt,
	}
}

type RemoveAccountRequest struct {
	Platform string `json:"platform" validate:"required,oneof=facebook instagram twitter tiktok amazon"`
}
