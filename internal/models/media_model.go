package models

import "time"

type MediaAsset struct {
	ID              string    `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	FileName        string    `db:"file_name" json:"file_name"`
	MediaType       MediaType `db:"media_type" json:"media_type"`
	MimeType        string    `db:"mime_type" json:"mime_type"`
	SizeBytes       int64     `db:"size_bytes" json:"size_bytes"`
	Width           int       `db:"width" json:"width,omitempty"`
	Height          int       `db:"height" json:"height,omitempty"`
	DurationSeconds float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	StorageKey      string    `db:"storage_key" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Ref converts the stored asset into the reference shape posts carry. The URL
// stays a bare storage key until publish-time resolution.
func (a *MediaAsset) Ref() MediaRef {
	return MediaRef{
		ID:              a.ID,
		Filename:        a.FileName,
		Type:            a.MediaType,
		URL:             a.StorageKey,
		SizeBytes:       a.SizeBytes,
		Width:           a.Width,
		Height:          a.Height,
		DurationSeconds: a.DurationSeconds,
		MimeType:        a.MimeType,
	}
}
