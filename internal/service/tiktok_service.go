package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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
	tiktokAuthURL     = "https://www.tiktok.com/v2/auth/authorize"
	tiktokAPIURL      = "https://open.tiktokapis.com"
	tiktokBusinessURL = "https://business-api.tiktok.com/open_api/v1.3"
	tiktokScopes      = "user.info.basic,user.info.profile,video.publish,video.upload"

	tiktokDefaultPrivacy   = "PUBLIC_TO_EVERYONE"
	tiktokDefaultCoverMs   = 1000
	tiktokUploadedStatus   = "UPLOADED"
	tiktokUploadFailStatus = "FAILED"
)

// TiktokService handles the full account lifecycle plus the three-step
// video publish: request an upload slot, push the bytes, poll until the
// video is processed, then post it.
type TiktokService interface {
	AuthURL(state string) string
	Callback(ctx context.Context, code, advertiserID string) (*CredentialData, error)
	Revoke(ctx context.Context, auth AuthContext) error
	PlatformPublisher
	TokenRefresher
}

type tiktokService struct {
	cfg          config.Config
	client       *http.Client
	apiURL       string
	businessURL  string
	pollInterval time.Duration
	pollAttempts int
}

func NewTiktokService(cfg config.Config) TiktokService {
	return &tiktokService{
		cfg:          cfg,
		client:       &http.Client{Timeout: 60 * time.Second},
		apiURL:       tiktokAPIURL,
		businessURL:  tiktokBusinessURL,
		pollInterval: 3 * time.Second,
		pollAttempts: 10,
	}
}

func (s *tiktokService) Platform() platforms.Platform {
	return platforms.TikTok
}

func (s *tiktokService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_key", s.cfg.TiktokClientKey)
	params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", tiktokScopes)
	params.Add("state", state)
	return fmt.Sprintf("%s?%s", tiktokAuthURL, params.Encode())
}

// Callback exchanges the code and records the account. The advertiser id
// arrives as a callback query parameter and is required later for
// publishing, not for connecting.
func (s *tiktokService) Callback(ctx context.Context, code, advertiserID string) (*CredentialData, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	token, err := s.exchangeCodeForToken(ctx, code)
	if err != nil {
		return nil, err
	}

	userInfo, err := s.getUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	data := &CredentialData{
		ExternalAccountID: userInfo.Data.User.OpenID,
		AccountName:       userInfo.Data.User.DisplayName,
		AccountUsername:   userInfo.Data.User.Username,
		AvatarURL:         userInfo.Data.User.AvatarURL,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         &expiresAt,
		Scopes:            strings.Split(tiktokScopes, ","),
	}
	if advertiserID != "" {
		data.Metadata = map[string]string{"advertiser_id": advertiserID}
	}
	return data, nil
}

func (s *tiktokService) exchangeCodeForToken(ctx context.Context, code string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)

	var token transfer.TiktokTokenResponse
	if err := s.postForm(ctx, s.apiURL+"/v2/oauth/token/", data, &token); err != nil {
		return nil, fmt.Errorf("exchange tiktok code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("tiktok returned no access token")
	}
	return &token, nil
}

func (s *tiktokService) getUserInfo(ctx context.Context, accessToken string) (*transfer.TiktokUserResponse, error) {
	reqURL := s.apiURL + "/v2/user/info/?fields=open_id,avatar_url,display_name,username"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var userInfo transfer.TiktokUserResponse
	if err := s.do(req, &userInfo); err != nil {
		return nil, fmt.Errorf("fetch tiktok profile: %w", err)
	}
	if userInfo.Error.Code != "" && userInfo.Error.Code != "ok" {
		return nil, fmt.Errorf("tiktok: %s", userInfo.Error.Message)
	}
	return &userInfo, nil
}

func (s *tiktokService) RefreshToken(ctx context.Context, auth AuthContext) (*RefreshedToken, error) {
	if auth.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", auth.RefreshToken)

	var token transfer.TiktokTokenResponse
	if err := s.postForm(ctx, s.apiURL+"/v2/oauth/token/", data, &token); err != nil {
		return nil, fmt.Errorf("refresh tiktok token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("tiktok returned no access token")
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	return &RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

func (s *tiktokService) Revoke(ctx context.Context, auth AuthContext) error {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("token", auth.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/v2/oauth/revoke/", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result transfer.TiktokRevokeData
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Description != "" {
			return fmt.Errorf("revoke tiktok access: %s", result.Description)
		}
		return fmt.Errorf("revoke tiktok access: status %d", resp.StatusCode)
	}
	return nil
}

func (s *tiktokService) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	videos := content.Videos()
	if len(videos) != 1 {
		return nil, errors.New("tiktok posts require exactly one video")
	}
	if auth.AdvertiserID == "" {
		return nil, errors.New("no tiktok advertiser id on this account")
	}
	video := videos[0]

	raw, err := s.downloadVideo(ctx, video.URL)
	if err != nil {
		return nil, err
	}

	uploadURL, videoID, err := s.initUpload(ctx, auth, video, int64(len(raw)))
	if err != nil {
		return nil, err
	}

	if err := s.uploadBytes(ctx, uploadURL, raw, video.Ref.MimeType); err != nil {
		return nil, err
	}

	if err := s.waitForUpload(ctx, auth, videoID); err != nil {
		return nil, err
	}

	return s.publishVideo(ctx, auth, content, videoID)
}

// initUpload requests an upload destination. The returned URL is only valid
// for a short window, about 30 minutes, so the upload follows immediately.
func (s *tiktokService) initUpload(ctx context.Context, auth AuthContext, video ResolvedMedia, size int64) (string, string, error) {
	format := "mp4"
	if parts := strings.Split(video.Ref.MimeType, "/"); len(parts) == 2 && parts[1] != "" {
		format = parts[1]
	}

	reqBody := transfer.TiktokUploadInitRequest{
		AdvertiserID: auth.AdvertiserID,
		VideoSize:    size,
		VideoFormat:  format,
	}

	var result transfer.TiktokUploadInitResponse
	if err := s.postBusiness(ctx, auth, "/video/upload/init/", reqBody, &result); err != nil {
		return "", "", fmt.Errorf("init tiktok upload: %w", err)
	}
	if result.Code != 0 {
		return "", "", fmt.Errorf("init tiktok upload: %s", result.Message)
	}
	if result.Data.UploadURL == "" || result.Data.VideoID == "" {
		return "", "", errors.New("tiktok returned no upload destination")
	}
	return result.Data.UploadURL, result.Data.VideoID, nil
}

func (s *tiktokService) uploadBytes(ctx context.Context, uploadURL string, raw []byte, mimeType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	req.ContentLength = int64(len(raw))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload video bytes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload video bytes: status %d", resp.StatusCode)
	}
	return nil
}

// waitForUpload polls processing status with a fixed interval and a hard
// attempt cap. Running out of attempts fails the publish.
func (s *tiktokService) waitForUpload(ctx context.Context, auth AuthContext, videoID string) error {
	params := url.Values{}
	params.Set("advertiser_id", auth.AdvertiserID)
	params.Set("video_id", videoID)
	reqURL := s.businessURL + "/video/upload/status/?" + params.Encode()

	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Access-Token", auth.AccessToken)

		var status transfer.TiktokVideoStatusResponse
		if err := s.do(req, &status); err != nil {
			return fmt.Errorf("check upload status: %w", err)
		}
		if status.Code != 0 {
			return fmt.Errorf("check upload status: %s", status.Message)
		}

		switch status.Data.Status {
		case tiktokUploadedStatus:
			return nil
		case tiktokUploadFailStatus:
			return errors.New("tiktok could not process the video")
		}
	}
	return errors.New("tiktok upload did not finish in time")
}

func (s *tiktokService) publishVideo(ctx context.Context, auth AuthContext, content PublishContent, videoID string) (*PublishOutcome, error) {
	reqBody := transfer.TiktokPublishRequest{
		AdvertiserID:     auth.AdvertiserID,
		VideoID:          videoID,
		Caption:          content.Text,
		PrivacyLevel:     tiktokDefaultPrivacy,
		CoverTimestampMs: tiktokDefaultCoverMs,
	}
	if ext := content.TikTok; ext != nil {
		if ext.PrivacyLevel != "" {
			reqBody.PrivacyLevel = ext.PrivacyLevel
		}
		reqBody.DisableComment = ext.DisableComment
		reqBody.DisableDuet = ext.DisableDuet
		reqBody.DisableStitch = ext.DisableStitch
		if ext.CoverTimestampMs > 0 {
			reqBody.CoverTimestampMs = ext.CoverTimestampMs
		}
	}

	var result transfer.TiktokPublishResponse
	if err := s.postBusiness(ctx, auth, "/video/publish/", reqBody, &result); err != nil {
		return nil, fmt.Errorf("publish tiktok video: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("publish tiktok video: %s", result.Message)
	}

	return &PublishOutcome{
		PlatformPostID: result.Data.PostID,
		URL:            result.Data.ShareURL,
	}, nil
}

func (s *tiktokService) downloadVideo(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch video bytes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch video bytes: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *tiktokService) postBusiness(ctx context.Context, auth AuthContext, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.businessURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Access-Token", auth.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *tiktokService) postForm(ctx context.Context, reqURL string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, out)
}

func (s *tiktokService) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.Path).Msg("tiktok request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tiktok: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
