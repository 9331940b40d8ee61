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
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramAPIURL   = "https://api.instagram.com"
	instagramGraphURL = "https://graph.instagram.com/v21.0"
	instagramScopes   = "instagram_business_basic,instagram_business_content_publish"

	// ig_exchange_token and ig_refresh_token both hand out roughly
	// 60-day tokens; expires_in is not always present.
	instagramTokenLifetime = 60 * 24 * time.Hour
)

type InstagramService interface {
	AuthURL(state string) string
	Callback(ctx context.Context, code string) (*CredentialData, error)
	PlatformPublisher
	TokenRefresher
}

type instagramService struct {
	cfg          config.Config
	client       *http.Client
	apiURL       string
	graphURL     string
	pollInterval time.Duration
	pollAttempts int
}

func NewInstagramService(cfg config.Config) InstagramService {
	return &instagramService{
		cfg:          cfg,
		client:       &http.Client{Timeout: 30 * time.Second},
		apiURL:       instagramAPIURL,
		graphURL:     instagramGraphURL,
		pollInterval: 3 * time.Second,
		pollAttempts: 10,
	}
}

func (s *instagramService) Platform() platforms.Platform {
	return platforms.Instagram
}

func (s *instagramService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.InstagramClientID)
	params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", instagramScopes)
	params.Add("state", state)
	return fmt.Sprintf("%s?%s", instagramAuthURL, params.Encode())
}

func (s *instagramService) Callback(ctx context.Context, code string) (*CredentialData, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	shortLived, err := s.getShortLivedToken(ctx, code)
	if err != nil {
		return nil, err
	}

	longLived, err := s.getLongLivedToken(ctx, shortLived.AccessToken)
	if err != nil {
		return nil, err
	}

	userInfo, err := s.getUserInfo(ctx, longLived.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := GetExpiresAt(longLived.ExpiresIn)
	if longLived.ExpiresIn == 0 {
		expiresAt = time.Now().Add(instagramTokenLifetime)
	}

	return &CredentialData{
		ExternalAccountID: userInfo.UserID,
		AccountName:       userInfo.Name,
		AccountUsername:   userInfo.Username,
		AvatarURL:         userInfo.ProfilePicture,
		AccessToken:       longLived.AccessToken,
		RefreshToken:      longLived.AccessToken,
		ExpiresAt:         &expiresAt,
		Scopes:            strings.Split(instagramScopes, ","),
	}, nil
}

func (s *instagramService) getShortLivedToken(ctx context.Context, code string) (*transfer.InstagramShortTokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token transfer.InstagramShortTokenResponse
	if err := s.do(req, &token); err != nil {
		return nil, fmt.Errorf("exchange instagram code: %w", err)
	}
	return &token, nil
}

func (s *instagramService) getLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.InstagramLongTokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_exchange_token")
	params.Set("client_secret", s.cfg.InstagramClientSecret)
	params.Set("access_token", shortLivedToken)

	var token transfer.InstagramLongTokenResponse
	if err := s.get(ctx, "/access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("exchange long-lived token: %w", err)
	}
	return &token, nil
}

func (s *instagramService) getUserInfo(ctx context.Context, accessToken string) (*transfer.InstagramUserInfo, error) {
	path := "/me?fields=id,username,name,account_type,profile_picture_url&access_token=" + url.QueryEscape(accessToken)

	var userInfo transfer.InstagramUserInfo
	if err := s.get(ctx, path, &userInfo); err != nil {
		return nil, fmt.Errorf("fetch instagram profile: %w", err)
	}
	return &userInfo, nil
}

func (s *instagramService) RefreshToken(ctx context.Context, auth AuthContext) (*RefreshedToken, error) {
	source := auth.RefreshToken
	if source == "" {
		source = auth.AccessToken
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", source)

	var token transfer.InstagramLongTokenResponse
	if err := s.get(ctx, "/refresh_access_token?"+params.Encode(), &token); err != nil {
		return nil, fmt.Errorf("refresh instagram token: %w", err)
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	if token.ExpiresIn == 0 {
		expiresAt = time.Now().Add(instagramTokenLifetime)
	}
	return &RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.AccessToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

// Publish creates one or more media containers, waits for video containers
// to finish processing, then publishes in a single call.
func (s *instagramService) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	if len(content.Media) == 0 {
		return nil, errors.New("instagram posts require media")
	}

	var containerID string
	var err error
	if len(content.Media) == 1 {
		containerID, err = s.createContainer(ctx, auth, content.Media[0], content.Text, false)
	} else {
		containerID, err = s.createCarousel(ctx, auth, content)
	}
	if err != nil {
		return nil, err
	}

	mediaID, err := s.publishContainer(ctx, auth, containerID)
	if err != nil {
		return nil, err
	}

	return &PublishOutcome{
		PlatformPostID: mediaID,
		URL:            s.fetchPermalink(ctx, auth, mediaID),
	}, nil
}

func (s *instagramService) createContainer(ctx context.Context, auth AuthContext, media ResolvedMedia, caption string, carouselItem bool) (string, error) {
	payload := map[string]any{
		"access_token": auth.AccessToken,
	}
	if caption != "" {
		payload["caption"] = caption
	}
	if carouselItem {
		payload["is_carousel_item"] = true
	}

	isVideo := media.Ref.Type == models.MediaVideo
	if isVideo {
		payload["media_type"] = "REELS"
		payload["video_url"] = media.URL
	} else {
		payload["image_url"] = media.URL
	}

	var container transfer.InstagramContainerResponse
	if err := s.postJSON(ctx, fmt.Sprintf("/%s/media", auth.ExternalAccountID), payload, &container); err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if container.ID == "" {
		return "", errors.New("instagram returned no container id")
	}

	if isVideo {
		if err := s.waitForContainer(ctx, auth, container.ID); err != nil {
			return "", err
		}
	}
	return container.ID, nil
}

func (s *instagramService) createCarousel(ctx context.Context, auth AuthContext, content PublishContent) (string, error) {
	children := make([]string, 0, len(content.Media))
	for i, media := range content.Media {
		id, err := s.createContainer(ctx, auth, media, "", true)
		if err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		children = append(children, id)
	}

	payload := map[string]any{
		"media_type":   "CAROUSEL",
		"children":     strings.Join(children, ","),
		"caption":      content.Text,
		"access_token": auth.AccessToken,
	}

	var container transfer.InstagramContainerResponse
	if err := s.postJSON(ctx, fmt.Sprintf("/%s/media", auth.ExternalAccountID), payload, &container); err != nil {
		return "", fmt.Errorf("create carousel container: %w", err)
	}
	if container.ID == "" {
		return "", errors.New("instagram returned no carousel container id")
	}
	return container.ID, nil
}

// waitForContainer polls until video processing finishes. Attempts are
// bounded; an unfinished container after the last attempt is an error.
func (s *instagramService) waitForContainer(ctx context.Context, auth AuthContext, containerID string) error {
	path := fmt.Sprintf("/%s?fields=status_code&access_token=%s", containerID, url.QueryEscape(auth.AccessToken))

	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		if err := s.get(ctx, path, &status); err != nil {
			return fmt.Errorf("check container status: %w", err)
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return errors.New("instagram could not process the video")
		}
	}
	return errors.New("instagram video processing timed out")
}

func (s *instagramService) publishContainer(ctx context.Context, auth AuthContext, containerID string) (string, error) {
	payload := map[string]any{
		"creation_id":  containerID,
		"access_token": auth.AccessToken,
	}

	var result transfer.InstagramContainerResponse
	if err := s.postJSON(ctx, fmt.Sprintf("/%s/media_publish", auth.ExternalAccountID), payload, &result); err != nil {
		return "", fmt.Errorf("publish container: %w", err)
	}
	if result.ID == "" {
		return "", errors.New("instagram returned no media id")
	}
	return result.ID, nil
}

// fetchPermalink is best effort; the publish already succeeded.
func (s *instagramService) fetchPermalink(ctx context.Context, auth AuthContext, mediaID string) string {
	path := fmt.Sprintf("/%s?fields=permalink&access_token=%s", mediaID, url.QueryEscape(auth.AccessToken))

	var media struct {
		Permalink string `json:"permalink"`
	}
	if err := s.get(ctx, path, &media); err != nil {
		log.Warn().Err(err).Str("media_id", mediaID).Msg("could not fetch instagram permalink")
		return ""
	}
	return media.Permalink
}

func (s *instagramService) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.graphURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *instagramService) postJSON(ctx context.Context, path string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.graphURL+path, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *instagramService) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.Path).Msg("instagram request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.InstagramErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("instagram: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("instagram: unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
