package transfer

import (
	"time"

	"github.com/postdeckhq/postdeck/internal/models"
)

// Error codes returned by the API. The enum is closed: handlers map every
// posting failure onto the first four; session and lookup failures use the
// last two.
const (
	ErrCodePremiumRequired      = "PREMIUM_REQUIRED"
	ErrCodeInvalidContent       = "INVALID_CONTENT"
	ErrCodePlatformNotConnected = "PLATFORM_NOT_CONNECTED"
	ErrCodeInternal             = "INTERNAL_SERVER_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeNotFound             = "NOT_FOUND"
)

type CreatePostRequest struct {
	Platforms   []string               `json:"platforms" validate:"required,min=1,dive,oneof=facebook instagram twitter tiktok amazon"`
	Content     string                 `json:"content"`
	Hashtags    []string               `json:"hashtags" validate:"omitempty,dive,min=1"`
	Mentions    []string               `json:"mentions" validate:"omitempty,dive,min=1"`
	Link        string                 `json:"link" validate:"omitempty,url"`
	MediaIDs    []string               `json:"media_ids"`
	ScheduledAt *time.Time             `json:"scheduled_at"`
	IsDraft     bool                   `json:"is_draft"`
	Extensions  *models.PostExtensions `json:"extensions"`
}

// ValidationError is one content rule violation. Validate collects every
// violation across all requested platforms before reporting.
type ValidationError struct {
	Platform string `json:"platform"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Platform + ": " + e.Message
}

type PostResponse struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"`
	Content     string                 `json:"content"`
	Hashtags    []string               `json:"hashtags,omitempty"`
	Link        string                 `json:"link,omitempty"`
	Platforms   []string               `json:"platforms"`
	Media       []models.MediaRef      `json:"media,omitempty"`
	Results     []models.PublishResult `json:"results,omitempty"`
	ScheduledAt *time.Time             `json:"scheduled_at,omitempty"`
	IsDraft     bool                   `json:"is_draft"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func FromPost(p *models.Post, now time.Time) PostResponse {
	names := make([]string, 0, len(p.Platforms))
	for _, pl := range p.Platforms {
		names = append(names, pl.String())
	}
	return PostResponse{
		ID:          p.ID,
		Status:      p.Status(now),
		Content:     p.Content,
		Hashtags:    p.Hashtags,
		Link:        p.Link,
		Platforms:   names,
		Media:       p.Media,
		Results:     p.Results,
		ScheduledAt: p.ScheduledAt,
		IsDraft:     p.IsDraft,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
	}
}

const (
	RefreshOutcomeRefreshed = "refreshed"
	RefreshOutcomeSkipped   = "skipped"
	RefreshOutcomeFailed    = "failed"
)

type RefreshOutcome struct {
	Platform  string     `json:"platform"`
	Outcome   string     `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type RefreshReport struct {
	UserID    int64            `json:"user_id"`
	Refreshed int              `json:"refreshed"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Outcomes  []RefreshOutcome `json:"outcomes"`
}

func (r *RefreshReport) Record(o RefreshOutcome) {
	switch o.Outcome {
	case RefreshOutcomeRefreshed:
		r.Refreshed++
	case RefreshOutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	r.Outcomes = append(r.Outcomes, o)
}
