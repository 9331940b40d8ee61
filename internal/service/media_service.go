package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/repository"
)

const (
	// Upload bounds are the loosest any platform accepts; the validator
	// applies the tighter per-platform limits at post time.
	maxImageUploadBytes = 10 << 20
	maxVideoUploadBytes = 512 << 20
	maxUploadSeconds    = 600

	presignLifetime = 15 * time.Minute

	minRecommendedEdge = 360
	minAspectRatio     = 0.5
	maxAspectRatio     = 1.91
)

var allowedUploadTypes = map[string]models.MediaType{
	"jpg":  models.MediaImage,
	"png":  models.MediaImage,
	"webp": models.MediaImage,
	"gif":  models.MediaImage,
	"mp4":  models.MediaVideo,
	"mov":  models.MediaVideo,
	"webm": models.MediaVideo,
}

// MediaUpload is one incoming file. Dimensions and duration come from the
// client, since the raw bytes are not decoded server side.
type MediaUpload struct {
	Filename        string
	Data            []byte
	Width           int
	Height          int
	DurationSeconds float64
}

// MediaService stores uploads and resolves media references to fetchable
// URLs at publish time. Upload returns non-blocking warnings alongside the
// asset; hard constraint violations fail the upload instead.
type MediaService interface {
	Upload(ctx context.Context, userID int64, up *MediaUpload) (*models.MediaAsset, []string, error)
	CollectRefs(ctx context.Context, userID int64, ids []string) ([]models.MediaRef, error)
	ResolveRefs(ctx context.Context, refs []models.MediaRef) []ResolvedMedia
}

type mediaService struct {
	cfg   config.Config
	store ObjectStore
	ma    repository.MediaAssetRepository
}

func NewMediaService(cfg config.Config, store ObjectStore, ma repository.MediaAssetRepository) MediaService {
	return &mediaService{cfg: cfg, store: store, ma: ma}
}

func (s *mediaService) Upload(ctx context.Context, userID int64, up *MediaUpload) (*models.MediaAsset, []string, error) {
	if len(up.Data) == 0 {
		return nil, nil, errors.New("file is empty")
	}

	kind, err := filetype.Match(up.Data)
	if err != nil || kind == types.Unknown {
		return nil, nil, errors.New("could not detect file type")
	}
	mediaType, ok := allowedUploadTypes[kind.Extension]
	if !ok {
		return nil, nil, fmt.Errorf("file type %s is not supported", kind.Extension)
	}

	if err := validateUpload(mediaType, int64(len(up.Data)), up.DurationSeconds); err != nil {
		return nil, nil, err
	}
	warnings := uploadWarnings(up.Width, up.Height)

	id, err := gonanoid.New()
	if err != nil {
		return nil, nil, err
	}
	key := fmt.Sprintf("uploads/%d/%s.%s", userID, id, kind.Extension)

	if err := s.store.Put(ctx, key, up.Data, kind.MIME.Value); err != nil {
		return nil, nil, fmt.Errorf("store upload: %w", err)
	}

	filename := up.Filename
	if filename == "" {
		filename = id + "." + kind.Extension
	}
	asset := &models.MediaAsset{
		ID:              id,
		UserID:          userID,
		FileName:        filename,
		MediaType:       mediaType,
		MimeType:        kind.MIME.Value,
		SizeBytes:       int64(len(up.Data)),
		Width:           up.Width,
		Height:          up.Height,
		DurationSeconds: up.DurationSeconds,
		StorageKey:      key,
		CreatedAt:       time.Now(),
	}
	if err := s.ma.Create(ctx, nil, asset); err != nil {
		return nil, nil, fmt.Errorf("save media asset: %w", err)
	}

	return asset, warnings, nil
}

func validateUpload(mediaType models.MediaType, size int64, durationSeconds float64) error {
	switch mediaType {
	case models.MediaImage:
		if size > maxImageUploadBytes {
			return fmt.Errorf("image exceeds the %dMB upload limit", maxImageUploadBytes>>20)
		}
	case models.MediaVideo:
		if size > maxVideoUploadBytes {
			return fmt.Errorf("video exceeds the %dMB upload limit", maxVideoUploadBytes>>20)
		}
		if durationSeconds > maxUploadSeconds {
			return fmt.Errorf("video duration exceeds %d seconds", maxUploadSeconds)
		}
	}
	return nil
}

// uploadWarnings flags resolution and aspect-ratio issues without blocking
// the upload.
func uploadWarnings(width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}

	var warnings []string
	if width < minRecommendedEdge || height < minRecommendedEdge {
		warnings = append(warnings, fmt.Sprintf("resolution %dx%d is below the recommended %dp minimum", width, height, minRecommendedEdge))
	}
	ratio := float64(width) / float64(height)
	if ratio < minAspectRatio || ratio > maxAspectRatio {
		warnings = append(warnings, fmt.Sprintf("aspect ratio %.2f is outside the recommended range and may be cropped", ratio))
	}
	return warnings
}

// CollectRefs maps asset ids to references in request order. Ids that do not
// exist or belong to another user fail the whole call.
func (s *mediaService) CollectRefs(ctx context.Context, userID int64, ids []string) ([]models.MediaRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	assets, err := s.ma.ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.MediaAsset, len(assets))
	for _, asset := range assets {
		byID[asset.ID] = asset
	}

	refs := make([]models.MediaRef, 0, len(ids))
	for _, id := range ids {
		asset, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("media %s not found", id)
		}
		refs = append(refs, asset.Ref())
	}
	return refs, nil
}

// ResolveRefs binds each reference to an absolute URL. References that
// cannot be resolved are dropped with a warning rather than failing the
// publish; the adapters work with whatever resolved.
func (s *mediaService) ResolveRefs(ctx context.Context, refs []models.MediaRef) []ResolvedMedia {
	resolved := make([]ResolvedMedia, 0, len(refs))
	for _, ref := range refs {
		u, err := s.resolveURL(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Str("media_id", ref.ID).Msg("dropping unresolvable media")
			continue
		}
		resolved = append(resolved, ResolvedMedia{Ref: ref, URL: u})
	}
	return resolved
}

func (s *mediaService) resolveURL(ctx context.Context, ref models.MediaRef) (string, error) {
	switch {
	case ref.URL == "":
		return "", errors.New("media has no storage location")
	case strings.HasPrefix(ref.URL, "http://"), strings.HasPrefix(ref.URL, "https://"):
		return ref.URL, nil
	case strings.HasPrefix(ref.URL, "/uploads/"):
		// Legacy local uploads served from the media host.
		return strings.TrimSuffix(s.cfg.MediaBaseURL, "/") + ref.URL, nil
	default:
		return s.store.PresignGet(ctx, ref.URL, presignLifetime)
	}
}
