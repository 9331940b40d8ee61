package service

import (
	"bytes"
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
	amazonAuthURL = "https://www.amazon.com/ap/oa"
	amazonAPIURL  = "https://api.amazon.com"
	amazonAdsURL  = "https://advertising-api.amazon.com"
	amazonScopes  = "profile advertising::campaign_management"
)

// AmazonService publishes brand posts through the Ads API. Tokens are not
// refreshed here: the refresh manager reports Amazon as unsupported and the
// user re-authenticates when the token lapses.
type AmazonService interface {
	AuthURL(state string) string
	Callback(ctx context.Context, code string) (*CredentialData, error)
	PlatformPublisher
}

type amazonService struct {
	cfg    config.Config
	client *http.Client
	apiURL string
	adsURL string
}

func NewAmazonService(cfg config.Config) AmazonService {
	return &amazonService{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: amazonAPIURL,
		adsURL: amazonAdsURL,
	}
}

func (s *amazonService) Platform() platforms.Platform {
	return platforms.Amazon
}

func (s *amazonService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.AmazonClientID)
	params.Add("redirect_uri", s.cfg.AmazonRedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", amazonScopes)
	params.Add("state", state)
	return fmt.Sprintf("%s?%s", amazonAuthURL, params.Encode())
}

func (s *amazonService) Callback(ctx context.Context, code string) (*CredentialData, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", s.cfg.AmazonRedirectURI)
	data.Set("client_id", s.cfg.AmazonClientID)
	data.Set("client_secret", s.cfg.AmazonClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/auth/o2/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token transfer.AmazonTokenResponse
	if err := s.do(req, &token); err != nil {
		return nil, fmt.Errorf("exchange amazon code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("amazon returned no access token")
	}

	profile, err := s.getProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := GetExpiresAt(token.ExpiresIn)
	return &CredentialData{
		ExternalAccountID: profile.UserID,
		AccountName:       profile.Name,
		AccountUsername:   profile.Email,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         &expiresAt,
		Scopes:            strings.Split(amazonScopes, " "),
	}, nil
}

func (s *amazonService) getProfile(ctx context.Context, accessToken string) (*transfer.AmazonProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/user/profile", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile transfer.AmazonProfile
	if err := s.do(req, &profile); err != nil {
		return nil, fmt.Errorf("fetch amazon profile: %w", err)
	}
	return &profile, nil
}

func (s *amazonService) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	if content.Amazon == nil || content.Amazon.BrandEntityID == "" {
		return nil, errors.New("amazon posts require a brand profile")
	}

	mediaURLs := make([]string, 0, len(content.Media))
	for _, media := range content.Images() {
		mediaURLs = append(mediaURLs, media.URL)
	}

	reqBody := transfer.AmazonPostRequest{
		BrandEntityID: content.Amazon.BrandEntityID,
		Headline:      content.Amazon.Headline,
		BodyText:      content.Text,
		ASINs:         content.Amazon.ASINs,
		MediaURLs:     mediaURLs,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.adsURL+"/bp/posts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	req.Header.Set("Amazon-Advertising-API-ClientId", s.cfg.AmazonClientID)
	req.Header.Set("Content-Type", "application/json")

	var result transfer.AmazonPostResponse
	if err := s.do(req, &result); err != nil {
		return nil, fmt.Errorf("publish amazon post: %w", err)
	}
	if result.PostID == "" {
		return nil, errors.New("amazon returned no post id")
	}

	return &PublishOutcome{PlatformPostID: result.PostID}, nil
}

func (s *amazonService) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.Path).Msg("amazon request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr transfer.AmazonErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Details != "" {
			return fmt.Errorf("amazon: %s", apiErr.Details)
		}
		return fmt.Errorf("amazon: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
