package models

import (
	"time"

	"github.com/postdeckhq/postdeck/internal/platforms"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaRef points at an uploaded asset owned by the post. URL may hold a
// legacy relative path or a bare storage key; it is resolved to an absolute
// URL only at publish time.
type MediaRef struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Type            MediaType `json:"type"`
	URL             string    `json:"url"`
	SizeBytes       int64     `json:"size_bytes"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	MimeType        string    `json:"mime_type,omitempty"`
}

type AmazonExtension struct {
	BrandEntityID string   `json:"brand_entity_id"`
	Headline      string   `json:"headline,omitempty"`
	ASINs         []string `json:"asins,omitempty"`
}

type TikTokExtension struct {
	PrivacyLevel     string `json:"privacy_level,omitempty"`
	DisableComment   bool   `json:"disable_comment,omitempty"`
	DisableDuet      bool   `json:"disable_duet,omitempty"`
	DisableStitch    bool   `json:"disable_stitch,omitempty"`
	CoverTimestampMs int64  `json:"cover_timestamp_ms,omitempty"`
}

// PostExtensions is a tagged union: at most one variant per platform, matched
// against the target platform with an exhaustive switch in the payload
// builder.
type PostExtensions struct {
	Amazon *AmazonExtension `json:"amazon,omitempty"`
	TikTok *TikTokExtension `json:"tiktok,omitempty"`
}

type PublishResult struct {
	Platform       platforms.Platform `json:"platform"`
	Status         string             `json:"status"`
	PlatformPostID string             `json:"platform_post_id,omitempty"`
	URL            string             `json:"url,omitempty"`
	Error          string             `json:"error,omitempty"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
}

type Post struct {
	ID          string               `json:"id"`
	UserID      int64                `json:"user_id"`
	Content     string               `json:"content"`
	Hashtags    []string             `json:"hashtags,omitempty"`
	Mentions    []string             `json:"mentions,omitempty"`
	Link        string               `json:"link,omitempty"`
	Media       []MediaRef           `json:"media,omitempty"`
	Platforms   []platforms.Platform `json:"platforms"`
	Extensions  PostExtensions       `json:"extensions,omitempty"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
	IsDraft     bool                 `json:"is_draft"`
	Results     []PublishResult      `json:"results,omitempty"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusPartial   = "partial"
	PostStatusFailed    = "failed"

	ResultPublished = "published"
	ResultFailed    = "failed"
)

// Status derives the aggregate post state: draft wins, then pending schedule,
// then the shape of the result set.
func (p *Post) Status(now time.Time) string {
	if p.IsDraft {
		return PostStatusDraft
	}
	if p.ScheduledAt != nil && p.ScheduledAt.After(now) {
		return PostStatusScheduled
	}
	if len(p.Results) == 0 {
		return PostStatusScheduled
	}
	published := 0
	for _, r := range p.Results {
		if r.Status == ResultPublished {
			published++
		}
	}
	switch published {
	case len(p.Results):
		return PostStatusPublished
	case 0:
		return PostStatusFailed
	default:
		return PostStatusPartial
	}
}
