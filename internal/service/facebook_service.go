package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	facebookAuthURL  = "https://www.facebook.com/v21.0/dialog/oauth"
	facebookGraphURL = "https://graph.facebook.com/v21.0"
	facebookScopes   = "pages_show_list,pages_read_engagement,pages_manage_posts"

	// Long-lived user tokens run about 60 days; the Graph API does not
	// always echo expires_in back on exchange.
	facebookTokenLifetime = 60 * 24 * time.Hour
)

// FacebookService connects a user's page and publishes to its feed. The
// stored access token is the page token; the long-lived user token rides
// along as the refresh token so the exchange can be repeated later.
type FacebookService interface {
	AuthURL(state string) string
	Callback(ctx context.Context, code string) (*CredentialData, error)
	PlatformPublisher
	TokenRefresher
}

type facebookService struct {
	cfg      config.Config
	client   *http.Client
	graphURL string
}

func NewFacebookService(cfg config.Config) FacebookService {
	return &facebookService{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		graphURL: facebookGraphURL,
	}
}

func (s *facebookService) Platform() platforms.Platform {
	return platforms.Facebook
}

func (s *facebookService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", facebookScopes)
	params.Add("state", state)
	return fmt.Sprintf("%s?%s", facebookAuthURL, params.Encode())
}

func (s *facebookService) Callback(ctx context.Context, code string) (*CredentialData, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	shortLived, err := s.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	longLived, err := s.exchangeLongLived(ctx, shortLived.AccessToken)
	if err != nil {
		return nil, err
	}

	var me transfer.FacebookMe
	if err := s.get(ctx, "/me?fields=id,name,picture&access_token="+url.QueryEscape(longLived.AccessToken), &me); err != nil {
		return nil, fmt.Errorf("fetch facebook profile: %w", err)
	}

	var pages transfer.FacebookPageList
	if err := s.get(ctx, "/me/accounts?access_token="+url.QueryEscape(longLived.AccessToken), &pages); err != nil {
		return nil, fmt.Errorf("list facebook pages: %w", err)
	}
	if len(pages.Data) == 0 {
		return nil, errors.New("no facebook page available on this account")
	}
	page := pages.Data[0]

	expiresAt := GetExpiresAt(longLived.ExpiresIn)
	if longLived.ExpiresIn == 0 {
		expiresAt = time.Now().Add(facebookTokenLifetime)
	}

	return &CredentialData{
		ExternalAccountID: page.ID,
		AccountName:       page.Name,
		AccountUsername:   me.Name,
		AvatarURL:         me.Picture.Data.URL,
		AccessToken:       page.AccessToken,
		RefreshToken:      longLived.AccessToken,
		ExpiresAt:         &expiresAt,
		Scopes:            strings.Split(facebookScopes, ","),
		Metadata: map[string]string{
			"page_category":    page.Category,
			"facebook_user_id": me.ID,
		},
	}, nil
}

func (s *facebookService) exchangeCode(ctx context.Context, code string) (*transfer.FacebookTokenResponse, error) {
	params := url.Values{}
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("client_secret", s.cfg.FacebookAppSecret)
	params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Add("code", code)

	var token transfer.FacebookTokenResponse
	if err := s.get(ctx, "/oauth/access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("exchange facebook code: %w", err)
	}
	return &token, nil
}

func (s *facebookService) exchangeLongLived(ctx context.Context, userToken string) (*transfer.FacebookTokenResponse, error) {
	params := url.Values{}
	params.Add("grant_type", "fb_exchange_token")
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("client_secret", s.cfg.FacebookAppSecret)
	params.Add("fb_exchange_token", userToken)

	var token transfer.FacebookTokenResponse
	if err := s.get(ctx, "/oauth/access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("exchange long-lived token: %w", err)
	}
	return &token, nil
}

// RefreshToken re-runs the long-lived exchange on the stored user token and
// then fetches a fresh page token for the connected page.
func (s *facebookService) RefreshToken(ctx context.Context, auth AuthContext) (*RefreshedToken, error) {
	source := auth.RefreshToken
	if source == "" {
		source = auth.AccessToken
	}

	longLived, err := s.exchangeLongLived(ctx, source)
	if err != nil {
		return nil, err
	}

	var page struct {
		AccessToken string `json:"access_token"`
	}
	path := fmt.Sprintf("/%s?fields=access_token&access_token=%s", auth.ExternalAccountID, url.QueryEscape(longLived.AccessToken))
	if err := s.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetch page token: %w", err)
	}
	if page.AccessToken == "" {
		return nil, errors.New("facebook returned no page token")
	}

	expiresAt := GetExpiresAt(longLived.ExpiresIn)
	if longLived.ExpiresIn == 0 {
		expiresAt = time.Now().Add(facebookTokenLifetime)
	}
	return &RefreshedToken{
		AccessToken:  page.AccessToken,
		RefreshToken: longLived.AccessToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

func (s *facebookService) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	images := content.Images()
	videos := content.Videos()

	switch {
	case len(videos) > 0 && len(images) > 0:
		return nil, errors.New("facebook posts cannot mix photos and videos")
	case len(videos) > 1:
		return nil, errors.New("facebook posts support a single video")
	case len(videos) == 1:
		return s.publishVideo(ctx, auth, content.Text, videos[0])
	case len(images) == 1:
		return s.publishPhoto(ctx, auth, content.Text, images[0])
	case len(images) > 1:
		return s.publishAlbum(ctx, auth, content.Text, images)
	default:
		return s.publishFeed(ctx, auth, url.Values{"message": {content.Text}})
	}
}

func (s *facebookService) publishFeed(ctx context.Context, auth AuthContext, params url.Values) (*PublishOutcome, error) {
	params.Set("access_token", auth.AccessToken)

	var result transfer.FacebookPublishResponse
	if err := s.postForm(ctx, fmt.Sprintf("/%s/feed", auth.ExternalAccountID), params, &result); err != nil {
		return nil, err
	}
	return facebookOutcome(result), nil
}

func (s *facebookService) publishPhoto(ctx context.Context, auth AuthContext, text string, photo ResolvedMedia) (*PublishOutcome, error) {
	params := url.Values{}
	params.Add("url", photo.URL)
	params.Add("caption", text)
	params.Add("access_token", auth.AccessToken)

	var result transfer.FacebookPublishResponse
	if err := s.postForm(ctx, fmt.Sprintf("/%s/photos", auth.ExternalAccountID), params, &result); err != nil {
		return nil, err
	}
	return facebookOutcome(result), nil
}

// publishAlbum uploads each photo unpublished, then attaches them all to a
// single feed post.
func (s *facebookService) publishAlbum(ctx context.Context, auth AuthContext, text string, photos []ResolvedMedia) (*PublishOutcome, error) {
	params := url.Values{}
	params.Add("message", text)

	for i, photo := range photos {
		upload := url.Values{}
		upload.Add("url", photo.URL)
		upload.Add("published", "false")
		upload.Add("access_token", auth.AccessToken)

		var uploaded transfer.FacebookPublishResponse
		if err := s.postForm(ctx, fmt.Sprintf("/%s/photos", auth.ExternalAccountID), upload, &uploaded); err != nil {
			return nil, fmt.Errorf("upload photo %d: %w", i+1, err)
		}
		params.Add(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, uploaded.ID))
	}

	return s.publishFeed(ctx, auth, params)
}

func (s *facebookService) publishVideo(ctx context.Context, auth AuthContext, text string, video ResolvedMedia) (*PublishOutcome, error) {
	params := url.Values{}
	params.Add("file_url", video.URL)
	params.Add("description", text)
	params.Add("access_token", auth.AccessToken)

	var result transfer.FacebookPublishResponse
	if err := s.postForm(ctx, fmt.Sprintf("/%s/videos", auth.ExternalAccountID), params, &result); err != nil {
		return nil, err
	}
	return facebookOutcome(result), nil
}

func facebookOutcome(result transfer.FacebookPublishResponse) *PublishOutcome {
	id := result.PostID
	if id == "" {
		id = result.ID
	}
	return &PublishOutcome{
		PlatformPostID: id,
		URL:            "https://www.facebook.com/" + id,
	}
}

func (s *facebookService) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.graphURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *facebookService) postForm(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.graphURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, out)
}

func (s *facebookService) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.Path).Msg("facebook request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.FacebookErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("facebook: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("facebook: unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
