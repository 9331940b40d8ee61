package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/repository"
)

type fakePublisher struct {
	mu          sync.Mutex
	platform    platforms.Platform
	publishFn   func(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error)
	calls       int
	lastAuth    AuthContext
	lastContent PublishContent
}

func (f *fakePublisher) Platform() platforms.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, auth AuthContext, content PublishContent) (*PublishOutcome, error) {
	f.mu.Lock()
	f.calls++
	f.lastAuth = auth
	f.lastContent = content
	fn := f.publishFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, auth, content)
	}
	return &PublishOutcome{
		PlatformPostID: string(f.platform) + "-post-1",
		URL:            "https://" + string(f.platform) + ".example.com/post-1",
	}, nil
}

type fakeHistoryRepo struct {
	mu   sync.Mutex
	rows []*models.PublishHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, ph *models.PublishHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ph
	cp.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &cp)
	return cp.ID, nil
}

func (f *fakeHistoryRepo) ListByUserID(_ context.Context, userID int64, limit int) ([]*models.PublishHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishHistory
	for _, row := range f.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) ListByPostID(_ context.Context, postID string) ([]*models.PublishHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishHistory
	for _, row := range f.rows {
		if row.PostID == postID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type publishFixture struct {
	posts   repository.PostRepository
	history *fakeHistoryRepo
	creds   *fakeCredentialRepo
	svc     PublishService
}

func newPublishFixture(pubs ...*fakePublisher) *publishFixture {
	posts := repository.NewMemoryPostRepository()
	history := &fakeHistoryRepo{}
	creds := newFakeCredentialRepo()
	cfg := testConfig()

	publishers := make(map[platforms.Platform]PlatformPublisher, len(pubs))
	for _, p := range pubs {
		publishers[p.platform] = p
	}

	return &publishFixture{
		posts:   posts,
		history: history,
		creds:   creds,
		svc: NewPublishService(
			cfg,
			posts,
			history,
			NewCredentialService(cfg, creds),
			NewMediaService(cfg, newFakeObjectStore(), newFakeAssetsRepo()),
			publishers,
		),
	}
}

func (fx *publishFixture) connect(t *testing.T, userID int64, p platforms.Platform) {
	t.Helper()
	fx.creds.insert(&models.Credential{
		UserID:            userID,
		Platform:          p,
		ExternalAccountID: string(p) + "-acct",
		AccessToken:       encrypted(t, "token-"+string(p)),
	})
}

func TestPublishProducesOneResultPerPlatform(t *testing.T) {
	fb := &fakePublisher{platform: platforms.Facebook}
	tw := &fakePublisher{platform: platforms.Twitter}
	fx := newPublishFixture(fb, tw)
	fx.connect(t, 7, platforms.Facebook)
	fx.connect(t, 7, platforms.Twitter)

	post := &models.Post{
		ID:        "post-1",
		UserID:    7,
		Content:   "launch day",
		Hashtags:  []string{"golang"},
		Mentions:  []string{"@devrel"},
		Platforms: []platforms.Platform{platforms.Facebook, platforms.Twitter},
		Media:     []models.MediaRef{{ID: "m1", Type: models.MediaImage, URL: "uploads/7/m1.png"}},
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, platforms.Facebook, results[0].Platform)
	assert.Equal(t, models.ResultPublished, results[0].Status)
	assert.Equal(t, "facebook-post-1", results[0].PlatformPostID)
	assert.Equal(t, platforms.Twitter, results[1].Platform)
	assert.Equal(t, models.ResultPublished, results[1].Status)

	assert.Equal(t, "token-facebook", fb.lastAuth.AccessToken, "adapter must get the decrypted token")
	assert.Equal(t, "launch day\n#golang", fb.lastContent.Text)
	assert.Equal(t, []string{"@devrel"}, fb.lastContent.Mentions)
	require.Len(t, fb.lastContent.Media, 1)
	assert.Equal(t, "https://signed.example.com/uploads/7/m1.png", fb.lastContent.Media[0].URL,
		"storage keys must resolve to absolute URLs at publish time")

	saved, err := fx.posts.GetByID(context.Background(), "post-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Len(t, saved.Results, 2)
	require.NotNil(t, saved.PublishedAt)
	assert.Equal(t, models.PostStatusPublished, saved.Status(time.Now()))

	rows, err := fx.history.ListByPostID(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPublishMarksMissingCredentialAsFailed(t *testing.T) {
	tw := &fakePublisher{platform: platforms.Twitter}
	ig := &fakePublisher{platform: platforms.Instagram}
	fx := newPublishFixture(tw, ig)
	fx.connect(t, 7, platforms.Twitter)

	post := &models.Post{
		ID:        "post-2",
		UserID:    7,
		Content:   "hello",
		Platforms: []platforms.Platform{platforms.Twitter, platforms.Instagram},
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-2")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.ResultPublished, results[0].Status)
	assert.Equal(t, models.ResultFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "not connected")
	assert.Equal(t, 0, ig.calls, "no attempt without a credential")

	saved, _ := fx.posts.GetByID(context.Background(), "post-2")
	require.NotNil(t, saved)
	assert.Equal(t, models.PostStatusPartial, saved.Status(time.Now()))
}

func TestPublishIsolatesPanickingAdapter(t *testing.T) {
	fb := &fakePublisher{
		platform: platforms.Facebook,
		publishFn: func(context.Context, AuthContext, PublishContent) (*PublishOutcome, error) {
			panic("graph client exploded")
		},
	}
	tw := &fakePublisher{platform: platforms.Twitter}
	fx := newPublishFixture(fb, tw)
	fx.connect(t, 7, platforms.Facebook)
	fx.connect(t, 7, platforms.Twitter)

	post := &models.Post{
		ID:        "post-3",
		UserID:    7,
		Content:   "hello",
		Platforms: []platforms.Platform{platforms.Facebook, platforms.Twitter},
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-3")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "panicked")
	assert.Equal(t, models.ResultPublished, results[1].Status)
	assert.Equal(t, 1, tw.calls, "later platforms still run after a panic")
}

func TestPublishRecordsAdapterError(t *testing.T) {
	tw := &fakePublisher{
		platform: platforms.Twitter,
		publishFn: func(context.Context, AuthContext, PublishContent) (*PublishOutcome, error) {
			return nil, errors.New("tweet rejected: duplicate content")
		},
	}
	fx := newPublishFixture(tw)
	fx.connect(t, 7, platforms.Twitter)

	post := &models.Post{
		ID:        "post-4",
		UserID:    7,
		Content:   "hello",
		Platforms: []platforms.Platform{platforms.Twitter},
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-4")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "duplicate content")

	rows, err := fx.history.ListByPostID(context.Background(), "post-4")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ResultFailed, rows[0].Status)
	assert.Contains(t, rows[0].ErrorMessage, "duplicate content")
}

func TestPublishSkipsAlreadyPublishedPost(t *testing.T) {
	tw := &fakePublisher{platform: platforms.Twitter}
	fx := newPublishFixture(tw)
	fx.connect(t, 7, platforms.Twitter)

	published := time.Now().Add(-time.Hour)
	post := &models.Post{
		ID:        "post-5",
		UserID:    7,
		Content:   "hello",
		Platforms: []platforms.Platform{platforms.Twitter},
		Results: []models.PublishResult{{
			Platform:       platforms.Twitter,
			Status:         models.ResultPublished,
			PlatformPostID: "prior-1",
			PublishedAt:    &published,
		}},
		PublishedAt: &published,
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-5")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "prior-1", results[0].PlatformPostID)
	assert.Equal(t, 0, tw.calls, "a finished post must not publish twice")
}

func TestPublishUnknownPostID(t *testing.T) {
	fx := newPublishFixture()

	_, err := fx.svc.Publish(context.Background(), "no-such-post")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPostNotFound))
}

func TestPublishRefusesDraft(t *testing.T) {
	tw := &fakePublisher{platform: platforms.Twitter}
	fx := newPublishFixture(tw)
	fx.connect(t, 7, platforms.Twitter)

	post := &models.Post{
		ID:        "post-6",
		UserID:    7,
		Content:   "wip",
		Platforms: []platforms.Platform{platforms.Twitter},
		IsDraft:   true,
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	_, err := fx.svc.Publish(context.Background(), "post-6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft")
	assert.Equal(t, 0, tw.calls)
}

func TestPublishRoutesExtensionsToOwningPlatform(t *testing.T) {
	tk := &fakePublisher{platform: platforms.TikTok}
	az := &fakePublisher{platform: platforms.Amazon}
	fx := newPublishFixture(tk, az)
	fx.connect(t, 7, platforms.TikTok)
	fx.connect(t, 7, platforms.Amazon)

	post := &models.Post{
		ID:        "post-7",
		UserID:    7,
		Content:   "cross post",
		Platforms: []platforms.Platform{platforms.TikTok, platforms.Amazon},
		Extensions: models.PostExtensions{
			Amazon: &models.AmazonExtension{BrandEntityID: "brand-1", Headline: "New"},
			TikTok: &models.TikTokExtension{PrivacyLevel: "SELF_ONLY"},
		},
	}
	require.NoError(t, fx.posts.Save(context.Background(), post))

	results, err := fx.svc.Publish(context.Background(), "post-7")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NotNil(t, tk.lastContent.TikTok)
	assert.Equal(t, "SELF_ONLY", tk.lastContent.TikTok.PrivacyLevel)
	assert.Nil(t, tk.lastContent.Amazon, "amazon settings must not leak to tiktok")

	require.NotNil(t, az.lastContent.Amazon)
	assert.Equal(t, "brand-1", az.lastContent.Amazon.BrandEntityID)
	assert.Nil(t, az.lastContent.TikTok)
}
