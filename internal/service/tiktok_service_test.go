package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

func newTestTiktokService(srv *httptest.Server) *tiktokService {
	return &tiktokService{
		cfg: config.Config{
			TiktokClientKey:    "client-key",
			TiktokClientSecret: "client-secret",
			TiktokRedirectURI:  "https://app.example.com/callback/tiktok",
		},
		client:       srv.Client(),
		apiURL:       srv.URL,
		businessURL:  srv.URL + "/business",
		pollInterval: time.Millisecond,
		pollAttempts: 3,
	}
}

func tiktokAuth() AuthContext {
	return AuthContext{
		UserID:            1,
		Platform:          platforms.TikTok,
		ExternalAccountID: "open-1",
		AccessToken:       "tiktok-token",
		AdvertiserID:      "adv-1",
	}
}

func videoContent(url string) PublishContent {
	return PublishContent{
		PostID: "post-1",
		Text:   "watch this",
		Media: []ResolvedMedia{{
			Ref: models.MediaRef{ID: "m1", Filename: "clip.mp4", Type: models.MediaVideo, MimeType: "video/mp4"},
			URL: url,
		}},
	}
}

func TestTiktokPublishHappyPath(t *testing.T) {
	videoBytes := []byte("fake-video-bytes")
	statusCalls := 0
	var uploadedBytes []byte
	var publishReq transfer.TiktokPublishRequest

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write(videoBytes)
	})
	mux.HandleFunc("/business/video/upload/init/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tiktok-token", r.Header.Get("Access-Token"))

		var reqBody transfer.TiktokUploadInitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "adv-1", reqBody.AdvertiserID)
		assert.Equal(t, int64(len(videoBytes)), reqBody.VideoSize)
		assert.Equal(t, "mp4", reqBody.VideoFormat)

		fmt.Fprintf(w, `{"code":0,"data":{"upload_url":"%s/upload-slot","video_id":"vid-1"}}`, srv.URL)
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		uploadedBytes, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/business/video/upload/status/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid-1", r.URL.Query().Get("video_id"))
		statusCalls++
		status := "PROCESSING"
		if statusCalls >= 2 {
			status = "UPLOADED"
		}
		fmt.Fprintf(w, `{"code":0,"data":{"status":"%s"}}`, status)
	})
	mux.HandleFunc("/business/video/publish/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&publishReq))
		fmt.Fprint(w, `{"code":0,"data":{"post_id":"tt-post-9","share_url":"https://www.tiktok.com/@me/video/9"}}`)
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	outcome, err := svc.Publish(context.Background(), tiktokAuth(), videoContent(srv.URL+"/media/clip.mp4"))
	require.NoError(t, err)

	assert.Equal(t, "tt-post-9", outcome.PlatformPostID)
	assert.Equal(t, "https://www.tiktok.com/@me/video/9", outcome.URL)
	assert.Equal(t, videoBytes, uploadedBytes)
	assert.Equal(t, 2, statusCalls)
	assert.Equal(t, "watch this", publishReq.Caption)
	assert.Equal(t, "PUBLIC_TO_EVERYONE", publishReq.PrivacyLevel)
	assert.Equal(t, int64(1000), publishReq.CoverTimestampMs)
}

func TestTiktokPublishPollExhaustion(t *testing.T) {
	statusCalls := 0
	publishCalled := false

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	})
	mux.HandleFunc("/business/video/upload/init/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"upload_url":"%s/upload-slot","video_id":"vid-1"}}`, srv.URL)
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/business/video/upload/status/", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		fmt.Fprint(w, `{"code":0,"data":{"status":"PROCESSING"}}`)
	})
	mux.HandleFunc("/business/video/publish/", func(w http.ResponseWriter, r *http.Request) {
		publishCalled = true
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	_, err := svc.Publish(context.Background(), tiktokAuth(), videoContent(srv.URL+"/media/clip.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish in time")
	assert.Equal(t, svc.pollAttempts, statusCalls)
	assert.False(t, publishCalled, "exhausted poll must not publish")
}

func TestTiktokPublishFailedProcessing(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	})
	mux.HandleFunc("/business/video/upload/init/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"upload_url":"%s/upload-slot","video_id":"vid-1"}}`, srv.URL)
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/business/video/upload/status/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"status":"FAILED"}}`)
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	_, err := svc.Publish(context.Background(), tiktokAuth(), videoContent(srv.URL+"/media/clip.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not process")
}

func TestTiktokPublishRequiresAdvertiserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	svc := newTestTiktokService(srv)
	auth := tiktokAuth()
	auth.AdvertiserID = ""

	_, err := svc.Publish(context.Background(), auth, videoContent(srv.URL+"/media/clip.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advertiser id")
}

func TestTiktokPublishInitErrorSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	})
	mux.HandleFunc("/business/video/upload/init/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":40002,"message":"advertiser not authorized"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	_, err := svc.Publish(context.Background(), tiktokAuth(), videoContent(srv.URL+"/media/clip.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advertiser not authorized")
}

func TestTiktokCallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth/token/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.Equal(t, "client-key", r.Form.Get("client_key"))

		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":86400,"open_id":"open-1"}`)
	})
	mux.HandleFunc("/v2/user/info/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data":{"user":{"open_id":"open-1","display_name":"Jess","username":"jess","avatar_url":"https://cdn/avatar.jpg"}}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	data, err := svc.Callback(context.Background(), "the-code", "adv-7")
	require.NoError(t, err)

	assert.Equal(t, "open-1", data.ExternalAccountID)
	assert.Equal(t, "Jess", data.AccountName)
	assert.Equal(t, "at-1", data.AccessToken)
	assert.Equal(t, "rt-1", data.RefreshToken)
	assert.Equal(t, "adv-7", data.Metadata["advertiser_id"])
	require.NotNil(t, data.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *data.ExpiresAt, time.Minute)
}

func TestTiktokRefreshToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth/token/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		fmt.Fprint(w, `{"access_token":"at-2","refresh_token":"rt-2","expires_in":86400}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestTiktokService(srv)
	auth := tiktokAuth()
	auth.RefreshToken = "old-refresh"

	refreshed, err := svc.RefreshToken(context.Background(), auth)
	require.NoError(t, err)
	assert.Equal(t, "at-2", refreshed.AccessToken)
	assert.Equal(t, "rt-2", refreshed.RefreshToken)
	require.NotNil(t, refreshed.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *refreshed.ExpiresAt, time.Minute)
}
