package models

import "time"

// Settings is the per-user posting defaults row. DefaultPrivacyLevel feeds the
// TikTok payload when a post carries no TikTok extension; DefaultHashtags are
// appended when a post has none of its own.
type Settings struct {
	ID                  int64     `db:"id" json:"id"`
	UserID              int64     `db:"user_id" json:"user_id"`
	DefaultPrivacyLevel string    `db:"default_privacy_level" json:"default_privacy_level"`
	DefaultHashtags     []string  `db:"default_hashtags" json:"default_hashtags"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
