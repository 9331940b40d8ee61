package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/repository"
)

// PublishService fans a stored post out to its target platforms. Attempts
// run sequentially in request order and are isolated from each other: one
// platform failing, or even panicking, never blocks the rest. Every
// requested platform ends up with exactly one result.
type PublishService interface {
	Publish(ctx context.Context, postID string) ([]models.PublishResult, error)
}

type publishService struct {
	cfg         config.Config
	locks       *kmutex.Kmutex
	posts       repository.PostRepository
	history     repository.PublishHistoryRepository
	credentials CredentialService
	media       MediaService
	publishers  map[platforms.Platform]PlatformPublisher
}

func NewPublishService(
	cfg config.Config,
	posts repository.PostRepository,
	history repository.PublishHistoryRepository,
	credentials CredentialService,
	media MediaService,
	publishers map[platforms.Platform]PlatformPublisher,
) PublishService {
	return &publishService{
		cfg:         cfg,
		locks:       kmutex.New(),
		posts:       posts,
		history:     history,
		credentials: credentials,
		media:       media,
		publishers:  publishers,
	}
}

func (s *publishService) Publish(ctx context.Context, postID string) ([]models.PublishResult, error) {
	// Concurrent publishes of the same post serialize here, so a scheduled
	// job firing while a manual publish runs cannot double-post.
	s.locks.Lock(postID)
	defer s.locks.Unlock(postID)

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.IsDraft {
		return nil, errors.New("drafts cannot be published")
	}
	if len(post.Results) > 0 {
		log.Info().Str("post_id", postID).Msg("post already has publish results, skipping")
		return post.Results, nil
	}

	creds, err := s.credentials.FindActive(ctx, post.UserID, post.Platforms)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	credByPlatform := make(map[platforms.Platform]*models.Credential, len(creds))
	for _, cred := range creds {
		credByPlatform[cred.Platform] = cred
	}

	// URLs bind late: storage may have moved or re-signed since upload.
	resolvedMedia := s.media.ResolveRefs(ctx, post.Media)
	text := ComposeText(post.Content, post.Hashtags, post.Link)

	results := make([]models.PublishResult, 0, len(post.Platforms))
	for _, platform := range post.Platforms {
		result := s.publishTo(ctx, post, platform, credByPlatform[platform], text, resolvedMedia)
		results = append(results, result)
		s.recordHistory(ctx, post, result)
	}

	post.Results = results
	now := time.Now()
	for _, r := range results {
		if r.Status == models.ResultPublished {
			post.PublishedAt = &now
			break
		}
	}
	if err := s.posts.Save(ctx, post); err != nil {
		// The platform calls already happened; losing the record must not
		// turn a real publish into a reported failure.
		log.Error().Err(err).Str("post_id", postID).Msg("save publish results")
	}

	return results, nil
}

func (s *publishService) publishTo(
	ctx context.Context,
	post *models.Post,
	platform platforms.Platform,
	cred *models.Credential,
	text string,
	media []ResolvedMedia,
) models.PublishResult {
	result := models.PublishResult{Platform: platform, Status: models.ResultFailed}

	if cred == nil {
		result.Error = fmt.Sprintf("%s account is not connected", platform)
		return result
	}

	publisher, ok := s.publishers[platform]
	if !ok {
		result.Error = fmt.Sprintf("publishing to %s is not supported", platform)
		return result
	}

	auth, err := BuildAuthContext(cred, s.cfg.SecretKey)
	if err != nil {
		log.Error().Err(err).Str("platform", platform.String()).Msg("decrypt credential")
		result.Error = "stored tokens could not be read"
		return result
	}

	content := PublishContent{
		PostID:   post.ID,
		Text:     text,
		Mentions: post.Mentions,
		Media:    media,
	}
	switch platform {
	case platforms.Amazon:
		content.Amazon = post.Extensions.Amazon
	case platforms.TikTok:
		content.TikTok = post.Extensions.TikTok
	}

	outcome, err := s.attempt(ctx, publisher, auth, content)
	if err != nil {
		log.Warn().Err(err).
			Str("post_id", post.ID).
			Str("platform", platform.String()).
			Msg("publish attempt failed")
		result.Error = err.Error()
		return result
	}

	now := time.Now()
	result.Status = models.ResultPublished
	result.PlatformPostID = outcome.PlatformPostID
	result.URL = outcome.URL
	result.PublishedAt = &now
	result.Error = ""

	log.Info().
		Str("post_id", post.ID).
		Str("platform", platform.String()).
		Str("platform_post_id", outcome.PlatformPostID).
		Msg("published")
	return result
}

// attempt shields the fan-out loop from a misbehaving adapter. A panic in
// one platform's client becomes that platform's failure result.
func (s *publishService) attempt(ctx context.Context, publisher PlatformPublisher, auth AuthContext, content PublishContent) (outcome *PublishOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("platform", publisher.Platform().String()).
				Msg("publisher panicked")
			outcome = nil
			err = fmt.Errorf("publish attempt panicked: %v", r)
		}
	}()

	outcome, err = publisher.Publish(ctx, auth, content)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, errors.New("publisher returned no outcome")
	}
	return outcome, nil
}

func (s *publishService) recordHistory(ctx context.Context, post *models.Post, result models.PublishResult) {
	ph := &models.PublishHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Platform:       result.Platform,
		Status:         result.Status,
		PlatformPostID: result.PlatformPostID,
		ErrorMessage:   result.Error,
	}
	if _, err := s.history.Create(ctx, ph); err != nil {
		log.Error().Err(err).
			Str("post_id", post.ID).
			Str("platform", result.Platform.String()).
			Msg("record publish history")
	}
}
