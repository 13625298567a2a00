package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// PostRepository is an in-process implementation of domain.PostRepository.
// Every method runs under one lock, so single-row writes are atomic.
type PostRepository struct {
	mu     sync.RWMutex
	posts  map[int64]domain.Post
	nextID int64
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[int64]domain.Post)}
}

// snapshot returns matching posts newest first, id descending on ties.
// Callers must hold at least a read lock.
func (r *PostRepository) snapshot(keep func(domain.Post) bool) []domain.Post {
	out := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *PostRepository) GetAll(ctx context.Context) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(nil), nil
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (domain.Post, error) {
	if id <= 0 {
		return domain.Post{}, domain.Validation("Invalid ID")
	}
	if err := ctx.Err(); err != nil {
		return domain.Post{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("BlogPost", id)
	}
	return p, nil
}

func (r *PostRepository) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	if strings.TrimSpace(p.Title) == "" {
		return domain.Post{}, domain.Validation("Title is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.Post{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.posts[p.ID] = p
	return p, nil
}

// Update rewrites the mutable fields. A post deleted since it was read is
// reported as NOT_FOUND.
func (r *PostRepository) Update(ctx context.Context, p domain.Post) (domain.Post, error) {
	if p.ID <= 0 {
		return domain.Post{}, domain.Validation("Invalid ID")
	}
	if strings.TrimSpace(p.Title) == "" {
		return domain.Post{}, domain.Validation("Title is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.Post{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[p.ID]
	if !ok {
		return domain.Post{}, domain.NotFound("BlogPost", p.ID)
	}
	cur.Title, cur.Content, cur.Author = p.Title, p.Content, p.Author
	r.posts[p.ID] = cur
	return cur, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return domain.NotFound("BlogPost", id)
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepository) Exists(ctx context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.posts[id]
	return ok, nil
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.posts), nil
}

func (r *PostRepository) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	term := strings.ToLower(f.TitleContains)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.snapshot(func(p domain.Post) bool {
		if f.OwnerID != "" && p.UserID != f.OwnerID {
			return false
		}
		return term == "" || strings.Contains(strings.ToLower(p.Title), term)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *PostRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.posts {
		if p.UserID == ownerID {
			n++
		}
	}
	return n, nil
}
