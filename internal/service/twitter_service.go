package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	twitterAuthURL = "https://twitter.com/i/oauth2/authorize"
	twitterAPIURL  = "https://api.twitter.com"
	twitterScopes  = "tweet.read tweet.write users.read offline.access"

	// Access tokens from the OAuth2 user flow last two hours unless the
	// response says otherwise.
	twitterTokenLifetime = 2 * time.Hour
)

// TwitterService publishes tweets. Media is uploaded first since the tweet
// endpoint only accepts ids, not bytes.
type TwitterService interface {
	AuthURL(state, verifier string) string
	Callback(ctx context.Context, code, verifier string) (*CredentialData, error)
	PlatformPublisher
	TokenRefresher
}

type twitterService struct {
	cfg       config.Config
	client    *http.Client
	apiURL    string
	uploadURL string
}

func NewTwitterService(cfg config.Config) TwitterService {
	return &twitterService{
		cfg:       cfg,
		client:    &http.Client{Timeout: 60 * time.Second},
		apiURL:    twitterAPIURL,
		uploadURL: "https://upload.twitter.com",
	}
}

func (s *twitterService) Platform() platforms.Platform {
	return platforms.Twitter
}

// AuthURL uses the plain PKCE method, so the challenge is the verifier
// itself. The caller round-trips the verifier inside the signed state.
func (s *twitterService) AuthURL(state, verifier string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.TwitterClientID)
	params.Add("redirect_uri", s.cfg.TwitterRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", twitterScopes)
	params.Add("state", state)
	params.Add("code_challenge", verifier)
	params.Add("code_challenge_method", "plain")
	return fmt.Sprintf("%s?%s", twitterAuthURL, params.Encode())
}

func (s *twitterService) Callback(ctx context.Context, code, verifier string) (*CredentialData, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	data := url.Values{}
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.TwitterRedirectURI)
	data.Set("code_verifier", verifier)

	token, err := s.requestToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("exchange twitter code: %w", err)
	}

	var me transfer.TwitterMe
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/2/users/me?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if err := s.do(req, &me); err != nil {
		return nil, fmt.Errorf("fetch twitter profile: %w", err)
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	if token.ExpiresIn == 0 {
		expiresAt = time.Now().Add(twitterTokenLifetime)
	}

	return &CredentialData{
		ExternalAccountID: me.Data.ID,
		AccountName:       me.Data.Name,
		AccountUsername:   me.Data.Username,
		AvatarURL:         me.Data.ProfileImageURL,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         &expiresAt,
		Scopes:            strings.Split(twitterScopes, " "),
	}, nil
}

func (s *twitterService) RefreshToken(ctx context.Context, auth AuthContext) (*RefreshedToken, error) {
	if auth.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", auth.RefreshToken)

	token, err := s.requestToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("refresh twitter token: %w", err)
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	if token.ExpiresIn == 0 {
		expiresAt = time.Now().Add(twitterTokenLifetime)
	}
	return &RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

func (s *twitterService) requestToken(ctx context.Context, data url.Values) (*transfer.TwitterTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/2/oauth2/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.TwitterClientID, s.cfg.TwitterClientSecret)

	var token transfer.TwitterTokenResponse
	if err := s.do(req, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("twitter returned no access token")
	}
	return &token, nil
}

func (s *twitterService) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	mediaIDs := make([]string, 0, len(content.Media))
	for i, media := range content.Media {
		id, err := s.uploadMedia(ctx, auth, media)
		if err != nil {
			return nil, fmt.Errorf("upload media %d: %w", i+1, err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	tweet := transfer.TwitterTweetRequest{Text: content.Text}
	if len(mediaIDs) > 0 {
		tweet.Media = &transfer.TwitterTweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(tweet)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	var result transfer.TwitterTweetResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Data.ID == "" {
		return nil, errors.New("twitter returned no tweet id")
	}

	return &PublishOutcome{
		PlatformPostID: result.Data.ID,
		URL:            "https://twitter.com/i/web/status/" + result.Data.ID,
	}, nil
}

// uploadMedia downloads the resolved bytes and forwards them as a multipart
// upload. Tweets reference media ids only.
func (s *twitterService) uploadMedia(ctx context.Context, auth AuthContext, media ResolvedMedia) (string, error) {
	raw, err := s.downloadMedia(ctx, media.URL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", media.Ref.Filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var uploaded transfer.TwitterMediaUploadResponse
	if err := s.do(req, &uploaded); err != nil {
		return "", err
	}

	id := uploaded.MediaIDString
	if id == "" && uploaded.MediaID != 0 {
		id = strconv.FormatInt(uploaded.MediaID, 10)
	}
	if id == "" {
		return "", errors.New("twitter returned no media id")
	}
	return id, nil
}

func (s *twitterService) downloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media bytes: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *twitterService) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.Path).Msg("twitter request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Title  string                     `json:"title"`
			Detail string                     `json:"detail"`
			Errors []transfer.TwitterAPIError `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			if len(apiErr.Errors) > 0 && apiErr.Errors[0].Detail != "" {
				return fmt.Errorf("twitter: %s", apiErr.Errors[0].Detail)
			}
			if apiErr.Detail != "" {
				return fmt.Errorf("twitter: %s", apiErr.Detail)
			}
		}
		return fmt.Errorf("twitter: unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
