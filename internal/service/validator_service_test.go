package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

func image(name string, size int64) models.MediaRef {
	return models.MediaRef{ID: name, Filename: name, Type: models.MediaImage, SizeBytes: size, MimeType: "image/jpeg"}
}

func video(name string, size int64, seconds float64) models.MediaRef {
	return models.MediaRef{ID: name, Filename: name, Type: models.MediaVideo, SizeBytes: size, DurationSeconds: seconds, MimeType: "video/mp4"}
}

func rulesOf(violations []transfer.ValidationError, platform string) []string {
	var rules []string
	for _, v := range violations {
		if v.Platform == platform {
			rules = append(rules, v.Rule)
		}
	}
	return rules
}

func TestValidateCleanPost(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"twitter", "facebook"}, "hello world", []models.MediaRef{image("a.jpg", 1024)})
	assert.Empty(t, got)
}

func TestValidateUnknownPlatformSkipsRemainingChecks(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"myspace"}, strings.Repeat("x", 100000), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "unsupported_platform", got[0].Rule)
}

func TestValidateContentTooLong(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"twitter"}, strings.Repeat("a", 281), nil)
	assert.Contains(t, rulesOf(got, "twitter"), "content_too_long")
}

func TestValidateContentLengthCountsRunes(t *testing.T) {
	v := NewValidatorService()
	// 280 multibyte runes fit exactly.
	got := v.Validate([]string{"twitter"}, strings.Repeat("ü", 280), nil)
	assert.Empty(t, got)
}

func TestValidateTwitterNeedsTextOrMedia(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"twitter"}, "", nil)
	assert.Contains(t, rulesOf(got, "twitter"), "empty_post")

	got = v.Validate([]string{"twitter"}, "", []models.MediaRef{image("a.jpg", 10)})
	assert.Empty(t, got)
}

func TestValidateInstagramRequiresMedia(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"instagram"}, "caption", nil)
	assert.Contains(t, rulesOf(got, "instagram"), "media_required")
}

func TestValidateTwitterMediaMixRules(t *testing.T) {
	v := NewValidatorService()

	four := []models.MediaRef{
		image("1.jpg", 10), image("2.jpg", 10), image("3.jpg", 10),
		image("4.jpg", 10),
	}
	got := v.Validate([]string{"twitter"}, "hi", four)
	assert.Empty(t, got)

	five := append(four, image("5.jpg", 10))
	got = v.Validate([]string{"twitter"}, "hi", five)
	rules := rulesOf(got, "twitter")
	assert.Contains(t, rules, "too_many_images")
	assert.Contains(t, rules, "too_many_media")

	mixed := []models.MediaRef{image("a.jpg", 10), video("b.mp4", 10, 5)}
	got = v.Validate([]string{"twitter"}, "hi", mixed)
	assert.Contains(t, rulesOf(got, "twitter"), "mixed_media")

	twoVideos := []models.MediaRef{video("a.mp4", 10, 5), video("b.mp4", 10, 5)}
	got = v.Validate([]string{"twitter"}, "hi", twoVideos)
	assert.Contains(t, rulesOf(got, "twitter"), "too_many_videos")
}

func TestValidateTiktokVideoOnly(t *testing.T) {
	v := NewValidatorService()

	got := v.Validate([]string{"tiktok"}, "hi", nil)
	assert.Contains(t, rulesOf(got, "tiktok"), "media_required")

	got = v.Validate([]string{"tiktok"}, "hi", []models.MediaRef{image("a.jpg", 10)})
	assert.Contains(t, rulesOf(got, "tiktok"), "images_not_allowed")

	got = v.Validate([]string{"tiktok"}, "hi", []models.MediaRef{video("a.mp4", 10, 30)})
	assert.Empty(t, got)
}

func TestValidateAmazonImageOnly(t *testing.T) {
	v := NewValidatorService()
	got := v.Validate([]string{"amazon"}, "hi", []models.MediaRef{video("a.mp4", 10, 30)})
	rules := rulesOf(got, "amazon")
	assert.Contains(t, rules, "videos_not_allowed")
}

func TestValidateMediaItemLimits(t *testing.T) {
	v := NewValidatorService()

	big := image("big.jpg", 6<<20)
	got := v.Validate([]string{"twitter"}, "hi", []models.MediaRef{big})
	assert.Contains(t, rulesOf(got, "twitter"), "media_too_large")

	long := video("long.mp4", 1024, 200)
	got = v.Validate([]string{"twitter"}, "hi", []models.MediaRef{long})
	assert.Contains(t, rulesOf(got, "twitter"), "video_too_long")

	webm := models.MediaRef{ID: "v", Filename: "v.webm", Type: models.MediaVideo, SizeBytes: 10, MimeType: "video/webm"}
	got = v.Validate([]string{"twitter"}, "hi", []models.MediaRef{webm})
	assert.Contains(t, rulesOf(got, "twitter"), "unsupported_mime")
}

func TestValidateCollectsAcrossPlatforms(t *testing.T) {
	v := NewValidatorService()
	content := strings.Repeat("a", 300)
	got := v.Validate([]string{"twitter", "instagram"}, content, nil)

	assert.Contains(t, rulesOf(got, "twitter"), "content_too_long")
	assert.Contains(t, rulesOf(got, "instagram"), "media_required")
	assert.GreaterOrEqual(t, len(got), 2)
}
