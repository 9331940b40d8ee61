package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/platforms"
)

type ListPostsOptions struct {
	Status   string
	Platform platforms.Platform
	Limit    int
	Offset   int
}

// PostRepository stores post records. The default binding is in-memory: post
// records are not durable here, only publish_history rows are. Callers must
// treat returned posts as their own copies.
type PostRepository interface {
	Save(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64, opts ListPostsOptions) ([]*models.Post, error)
	Remove(ctx context.Context, id string) error
}

type memoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*models.Post
}

func NewMemoryPostRepository() PostRepository {
	return &memoryPostRepository{posts: make(map[string]*models.Post)}
}

func (r *memoryPostRepository) Save(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *memoryPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(post), nil
}

func (r *memoryPostRepository) ListByUserID(ctx context.Context, userID int64, opts ListPostsOptions) ([]*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var matched []*models.Post
	for _, post := range r.posts {
		if post.UserID != userID {
			continue
		}
		if opts.Status != "" && post.Status(now) != opts.Status {
			continue
		}
		if opts.Platform != "" && !targetsPlatform(post, opts.Platform) {
			continue
		}
		matched = append(matched, post)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*models.Post, 0, len(matched))
	for _, post := range matched {
		out = append(out, clonePost(post))
	}
	return out, nil
}

func (r *memoryPostRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func targetsPlatform(post *models.Post, p platforms.Platform) bool {
	for _, t := range post.Platforms {
		if t == p {
			return true
		}
	}
	return false
}

// clonePost deep-copies the record so map entries never alias caller state.
func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Hashtags = append([]string(nil), p.Hashtags...)
	c.Mentions = append([]string(nil), p.Mentions...)
	c.Media = append([]models.MediaRef(nil), p.Media...)
	c.Platforms = append([]platforms.Platform(nil), p.Platforms...)
	c.Results = append([]models.PublishResult(nil), p.Results...)
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		c.ScheduledAt = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		c.PublishedAt = &t
	}
	if p.Extensions.Amazon != nil {
		a := *p.Extensions.Amazon
		a.ASINs = append([]string(nil), p.Extensions.Amazon.ASINs...)
		c.Extensions.Amazon = &a
	}
	if p.Extensions.TikTok != nil {
		t := *p.Extensions.TikTok
		c.Extensions.TikTok = &t
	}
	return &c
}
