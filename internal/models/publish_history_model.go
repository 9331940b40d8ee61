package models

import (
	"time"

	"github.com/postdeckhq/postdeck/internal/platforms"
)

// PublishHistory is the durable audit row written per platform per publish
// attempt. Post records themselves live in memory only.
type PublishHistory struct {
	ID             int64              `db:"id" json:"id"`
	UserID         int64              `db:"user_id" json:"user_id"`
	PostID         string             `db:"post_id" json:"post_id"`
	Platform       platforms.Platform `db:"platform" json:"platform"`
	Status         string             `db:"status" json:"status"`
	PlatformPostID string             `db:"platform_post_id" json:"platform_post_id"`
	ErrorMessage   string             `db:"error_message" json:"error_message"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}
