package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

// ValidatorService checks post content against the static per-platform
// constraint table. Every applicable rule is evaluated; violations are
// collected, never short-circuited. An empty result means publishable.
type ValidatorService interface {
	Validate(pls []string, content string, media []models.MediaRef) []transfer.ValidationError
}

type validatorService struct{}

func NewValidatorService() ValidatorService {
	return &validatorService{}
}

func (s *validatorService) Validate(pls []string, content string, media []models.MediaRef) []transfer.ValidationError {
	var violations []transfer.ValidationError

	images := lo.Filter(media, func(m models.MediaRef, _ int) bool { return m.Type == models.MediaImage })
	videos := lo.Filter(media, func(m models.MediaRef, _ int) bool { return m.Type == models.MediaVideo })

	for _, name := range pls {
		platform, err := platforms.Parse(name)
		if err != nil {
			violations = append(violations, transfer.ValidationError{
				Platform: name,
				Rule:     "unsupported_platform",
				Message:  fmt.Sprintf("platform %q is not supported", name),
			})
			continue
		}

		c, ok := platforms.ConstraintsFor(platform)
		if !ok {
			violations = append(violations, transfer.ValidationError{
				Platform: name,
				Rule:     "unsupported_platform",
				Message:  fmt.Sprintf("platform %q has no constraint set", name),
			})
			continue
		}

		violations = append(violations, checkPlatform(platform, c, content, media, images, videos)...)
	}

	return violations
}

func checkPlatform(p platforms.Platform, c platforms.Constraints, content string, media, images, videos []models.MediaRef) []transfer.ValidationError {
	var out []transfer.ValidationError
	name := p.String()

	fail := func(rule, format string, args ...any) {
		out = append(out, transfer.ValidationError{
			Platform: name,
			Rule:     rule,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if n := utf8.RuneCountInString(content); n > c.MaxTextChars {
		fail("content_too_long", "content is %d characters, the limit is %d", n, c.MaxTextChars)
	}

	if p == platforms.Twitter && content == "" && len(media) == 0 {
		fail("empty_post", "a tweet needs text or at least one media item")
	}

	if c.RequiresMedia && len(media) == 0 {
		switch {
		case c.VideosOnly:
			fail("media_required", "a video is required")
		case c.ImagesOnly:
			fail("media_required", "an image is required")
		default:
			fail("media_required", "at least one media item is required")
		}
	}

	if len(media) > c.MaxMediaCount {
		fail("too_many_media", "%d media items attached, the limit is %d", len(media), c.MaxMediaCount)
	}

	if c.VideosOnly && len(images) > 0 {
		fail("images_not_allowed", "images are not supported, only video")
	}
	if c.ImagesOnly && len(videos) > 0 {
		fail("videos_not_allowed", "videos are not supported, only images")
	}

	if !c.VideosOnly && len(images) > c.MaxImages {
		fail("too_many_images", "%d images attached, the limit is %d", len(images), c.MaxImages)
	}
	if !c.ImagesOnly && len(videos) > c.MaxVideos {
		fail("too_many_videos", "%d videos attached, the limit is %d", len(videos), c.MaxVideos)
	}
	if !c.AllowMixedMedia && len(images) > 0 && len(videos) > 0 {
		fail("mixed_media", "images and videos cannot be combined in one post")
	}

	for _, m := range media {
		out = append(out, checkMediaItem(name, c, m)...)
	}

	return out
}

func checkMediaItem(name string, c platforms.Constraints, m models.MediaRef) []transfer.ValidationError {
	var out []transfer.ValidationError

	fail := func(rule, format string, args ...any) {
		out = append(out, transfer.ValidationError{
			Platform: name,
			Rule:     rule,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	switch m.Type {
	case models.MediaImage:
		if m.MimeType != "" && !c.SupportsImageMime(m.MimeType) {
			fail("unsupported_mime", "%s: image type %s is not supported", m.Filename, m.MimeType)
		}
		if c.MaxImageBytes > 0 && m.SizeBytes > c.MaxImageBytes {
			fail("media_too_large", "%s: image is %d bytes, the limit is %d", m.Filename, m.SizeBytes, c.MaxImageBytes)
		}
	case models.MediaVideo:
		if m.MimeType != "" && !c.SupportsVideoMime(m.MimeType) {
			fail("unsupported_mime", "%s: video type %s is not supported", m.Filename, m.MimeType)
		}
		if c.MaxVideoBytes > 0 && m.SizeBytes > c.MaxVideoBytes {
			fail("media_too_large", "%s: video is %d bytes, the limit is %d", m.Filename, m.SizeBytes, c.MaxVideoBytes)
		}
		if c.MaxVideoSeconds > 0 && m.DurationSeconds > float64(c.MaxVideoSeconds) {
			fail("video_too_long", "%s: video runs %.0f seconds, the limit is %d", m.Filename, m.DurationSeconds, c.MaxVideoSeconds)
		}
	}

	return out
}
