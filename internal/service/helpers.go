package service

import (
	"context"
	"strings"
	"time"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

func GetExpiresAt(expiresIn int64) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// AuthContext is the per-call authentication material handed to adapters.
// Tokens are already decrypted; nothing here is shared or cached between
// publish invocations.
type AuthContext struct {
	UserID            int64
	Platform          platforms.Platform
	ExternalAccountID string
	AccessToken       string
	AccessTokenSecret string
	RefreshToken      string
	AdvertiserID      string
	Metadata          models.Metadata
}

// BuildAuthContext decrypts the stored tokens into a call-scoped context.
func BuildAuthContext(cred *models.Credential, secretKey string) (AuthContext, error) {
	auth := AuthContext{
		UserID:            cred.UserID,
		Platform:          cred.Platform,
		ExternalAccountID: cred.ExternalAccountID,
		AdvertiserID:      cred.AdvertiserID(),
		Metadata:          cred.Metadata,
	}

	token, err := utils.Decrypt(cred.AccessToken, []byte(secretKey))
	if err != nil {
		return AuthContext{}, err
	}
	auth.AccessToken = token

	if cred.AccessTokenSecret != "" {
		secret, err := utils.Decrypt(cred.AccessTokenSecret, []byte(secretKey))
		if err != nil {
			return AuthContext{}, err
		}
		auth.AccessTokenSecret = secret
	}

	if cred.RefreshToken != "" {
		refresh, err := utils.Decrypt(cred.RefreshToken, []byte(secretKey))
		if err != nil {
			return AuthContext{}, err
		}
		auth.RefreshToken = refresh
	}

	return auth, nil
}

// ResolvedMedia pairs a media reference with its publish-time absolute URL.
type ResolvedMedia struct {
	Ref models.MediaRef
	URL string
}

// PublishContent is the composed platform-agnostic payload. Exactly one
// extension field is set, and only when the target platform matches.
type PublishContent struct {
	PostID   string
	Text     string
	Mentions []string
	Media    []ResolvedMedia
	Amazon   *models.AmazonExtension
	TikTok   *models.TikTokExtension
}

func (c PublishContent) Images() []ResolvedMedia {
	return filterMedia(c.Media, models.MediaImage)
}

func (c PublishContent) Videos() []ResolvedMedia {
	return filterMedia(c.Media, models.MediaVideo)
}

func filterMedia(media []ResolvedMedia, t models.MediaType) []ResolvedMedia {
	var out []ResolvedMedia
	for _, m := range media {
		if m.Ref.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// ComposeText builds the shared text payload: base content, then each hashtag
// on its own line prefixed with '#', then the link on its own line.
func ComposeText(content string, hashtags []string, link string) string {
	var b strings.Builder
	b.WriteString(content)
	for _, tag := range hashtags {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			continue
		}
		b.WriteString("\n#")
		b.WriteString(tag)
	}
	if link != "" {
		b.WriteString("\n")
		b.WriteString(link)
	}
	return b.String()
}

// PublishOutcome is a successful adapter call.
type PublishOutcome struct {
	PlatformPostID string
	URL            string
}

// PlatformPublisher is one platform's publishing adapter.
type PlatformPublisher interface {
	Platform() platforms.Platform
	Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error)
}

// RefreshedToken is a successful token refresh. An empty RefreshToken means
// the provider did not rotate it.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenRefresher is implemented by platform services whose tokens can be
// renewed. Platforms without one are reported as unsupported by the refresh
// manager.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, auth AuthContext) (*RefreshedToken, error)
}
