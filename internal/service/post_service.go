package service

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// PublishScheduler hands a post id to the delayed-execution queue.
type PublishScheduler interface {
	EnqueuePublish(ctx context.Context, postID string, delay time.Duration) error
}

// PostService owns the post lifecycle around the publish fan-out: request
// validation, connection enforcement, defaults, persistence, and the
// draft/scheduled/immediate dispatch decision.
type PostService interface {
	Create(ctx context.Context, userID int64, req *transfer.CreatePostRequest) (*models.Post, error)
	List(ctx context.Context, userID int64, status, platform string, limit, offset int) ([]*models.Post, error)
	Get(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Remove(ctx context.Context, userID int64, postID string) error
}

type postService struct {
	pr        repository.PostRepository
	validator ValidatorService
	creds     CredentialService
	media     MediaService
	settings  SettingsService
	publisher PublishService
	scheduler PublishScheduler
}

func NewPostService(
	pr repository.PostRepository,
	validator ValidatorService,
	creds CredentialService,
	media MediaService,
	settings SettingsService,
	publisher PublishService,
	scheduler PublishScheduler,
) PostService {
	return &postService{
		pr:        pr,
		validator: validator,
		creds:     creds,
		media:     media,
		settings:  settings,
		publisher: publisher,
		scheduler: scheduler,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, req *transfer.CreatePostRequest) (*models.Post, error) {
	names := lo.Uniq(req.Platforms)

	refs, err := s.media.CollectRefs(ctx, userID, req.MediaIDs)
	if err != nil {
		return nil, &InvalidContentError{Violations: []transfer.ValidationError{{
			Platform: "media",
			Rule:     "media_not_found",
			Message:  err.Error(),
		}}}
	}

	if req.Content == "" && len(refs) == 0 {
		return nil, &InvalidContentError{Violations: []transfer.ValidationError{{
			Platform: "all",
			Rule:     "empty_post",
			Message:  "a post needs text or at least one media item",
		}}}
	}

	if violations := s.validator.Validate(names, req.Content, refs); len(violations) > 0 {
		return nil, &InvalidContentError{Violations: violations}
	}

	// Every name parses after validation.
	targets := make([]platforms.Platform, 0, len(names))
	for _, name := range names {
		p, _ := platforms.Parse(name)
		targets = append(targets, p)
	}

	if err := s.requireConnected(ctx, userID, targets); err != nil {
		return nil, err
	}

	post, err := s.buildPost(ctx, userID, req, targets, refs)
	if err != nil {
		return nil, err
	}
	if err := s.pr.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}
	log.Info().
		Str("post_id", post.ID).
		Int64("user_id", userID).
		Bool("draft", post.IsDraft).
		Msg("post created")

	return s.dispatch(ctx, post)
}

// requireConnected enforces that the target set is a subset of the user's
// active connections before anything is stored.
func (s *postService) requireConnected(ctx context.Context, userID int64, targets []platforms.Platform) error {
	creds, err := s.creds.FindActive(ctx, userID, targets)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	connected := make(map[platforms.Platform]struct{}, len(creds))
	for _, cred := range creds {
		connected[cred.Platform] = struct{}{}
	}

	var missing []string
	for _, p := range targets {
		if _, ok := connected[p]; !ok {
			missing = append(missing, p.String())
		}
	}
	if len(missing) > 0 {
		return &NotConnectedError{Platforms: missing}
	}
	return nil
}

func (s *postService) buildPost(
	ctx context.Context,
	userID int64,
	req *transfer.CreatePostRequest,
	targets []platforms.Platform,
	refs []models.MediaRef,
) (*models.Post, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	hashtags := req.Hashtags
	var ext models.PostExtensions
	if req.Extensions != nil {
		ext = *req.Extensions
	}

	// Posting defaults are convenience only, so a settings lookup failure
	// never blocks the post.
	defaults, err := s.settings.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("load posting defaults")
		defaults = &models.Settings{}
	}
	if len(hashtags) == 0 && len(defaults.DefaultHashtags) > 0 {
		hashtags = defaults.DefaultHashtags
	}
	if lo.Contains(targets, platforms.TikTok) && defaults.DefaultPrivacyLevel != "" {
		if ext.TikTok == nil {
			ext.TikTok = &models.TikTokExtension{PrivacyLevel: defaults.DefaultPrivacyLevel}
		} else if ext.TikTok.PrivacyLevel == "" {
			ext.TikTok.PrivacyLevel = defaults.DefaultPrivacyLevel
		}
	}

	return &models.Post{
		ID:          id,
		UserID:      userID,
		Content:     req.Content,
		Hashtags:    hashtags,
		Mentions:    req.Mentions,
		Link:        req.Link,
		Media:       refs,
		Platforms:   targets,
		Extensions:  ext,
		ScheduledAt: req.ScheduledAt,
		IsDraft:     req.IsDraft,
	}, nil
}

// dispatch routes the saved post: drafts stay put, future schedules go to
// the queue, everything else publishes in the request.
func (s *postService) dispatch(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.IsDraft {
		return post, nil
	}

	if post.ScheduledAt != nil {
		delay := time.Until(*post.ScheduledAt)
		if delay < 0 {
			delay = 0
		}
		if err := s.scheduler.EnqueuePublish(ctx, post.ID, delay); err != nil {
			return nil, fmt.Errorf("schedule publish: %w", err)
		}
		log.Info().
			Str("post_id", post.ID).
			Dur("delay", delay).
			Msg("publish scheduled")
		return post, nil
	}

	if _, err := s.publisher.Publish(ctx, post.ID); err != nil {
		return nil, err
	}
	return s.pr.GetByID(ctx, post.ID)
}

func (s *postService) List(ctx context.Context, userID int64, status, platform string, limit, offset int) ([]*models.Post, error) {
	opts := repository.ListPostsOptions{
		Status: status,
		Limit:  limit,
		Offset: offset,
	}
	if platform != "" {
		p, err := platforms.Parse(platform)
		if err != nil {
			return nil, &InvalidContentError{Violations: []transfer.ValidationError{{
				Platform: platform,
				Rule:     "unsupported_platform",
				Message:  err.Error(),
			}}}
		}
		opts.Platform = p
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.pr.ListByUserID(ctx, userID, opts)
}

func (s *postService) Get(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.UserID != userID {
		return ErrPostNotFound
	}
	return s.pr.Remove(ctx, postID)
}
