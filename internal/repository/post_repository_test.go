package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
)

func makePost(id string, userID int64, createdAt time.Time, pls ...platforms.Platform) *models.Post {
	return &models.Post{
		ID:        id,
		UserID:    userID,
		Content:   "hello",
		Platforms: pls,
		CreatedAt: createdAt,
	}
}

func TestMemoryPostRepositorySaveAndGet(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()

	post := makePost("p1", 7, time.Now(), platforms.Twitter)
	require.NoError(t, repo.Save(ctx, post))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Content)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryPostRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()

	post := makePost("p1", 7, time.Now(), platforms.Twitter)
	post.Hashtags = []string{"go"}
	require.NoError(t, repo.Save(ctx, post))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	got.Hashtags[0] = "mutated"
	got.Content = "mutated"

	again, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "go", again.Hashtags[0])
	assert.Equal(t, "hello", again.Content)
}

func TestMemoryPostRepositoryListNewestFirst(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		p := makePost(id, 7, base.Add(time.Duration(i)*time.Minute), platforms.Twitter)
		require.NoError(t, repo.Save(ctx, p))
	}
	require.NoError(t, repo.Save(ctx, makePost("other", 8, base, platforms.Twitter)))

	posts, err := repo.ListByUserID(ctx, 7, ListPostsOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "c", posts[0].ID)
	assert.Equal(t, "a", posts[2].ID)
}

func TestMemoryPostRepositoryListFilters(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	now := time.Now()

	draft := makePost("draft", 7, now, platforms.Twitter)
	draft.IsDraft = true
	require.NoError(t, repo.Save(ctx, draft))

	published := makePost("done", 7, now.Add(time.Second), platforms.Instagram)
	published.Results = []models.PublishResult{{Platform: platforms.Instagram, Status: models.ResultPublished}}
	require.NoError(t, repo.Save(ctx, published))

	drafts, err := repo.ListByUserID(ctx, 7, ListPostsOptions{Status: models.PostStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "draft", drafts[0].ID)

	ig, err := repo.ListByUserID(ctx, 7, ListPostsOptions{Platform: platforms.Instagram})
	require.NoError(t, err)
	require.Len(t, ig, 1)
	assert.Equal(t, "done", ig[0].ID)
}

func TestMemoryPostRepositoryListPagination(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, repo.Save(ctx, makePost(id, 7, base.Add(time.Duration(i)*time.Minute), platforms.Twitter)))
	}

	page, err := repo.ListByUserID(ctx, 7, ListPostsOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	empty, err := repo.ListByUserID(ctx, 7, ListPostsOptions{Offset: 99})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryPostRepositoryRemove(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, makePost("p1", 7, time.Now(), platforms.Twitter)))
	require.NoError(t, repo.Remove(ctx, "p1"))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
