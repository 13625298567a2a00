package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// MockPostRepository is a mock implementation of domain.PostRepository for testing.
// Posts is the backing data; the *Err fields force a failure from the named method.
type MockPostRepository struct {
	mu     sync.Mutex
	Posts  map[int64]domain.Post
	nextID int64

	Created []domain.Post
	Updated []domain.Post
	Deleted []int64

	GetErr    error
	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error
	CountErr  error
}

func NewMockPostRepository(posts ...domain.Post) *MockPostRepository {
	m := &MockPostRepository{Posts: make(map[int64]domain.Post)}
	for _, p := range posts {
		m.Posts[p.ID] = p
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
	return m
}

// Writes returns the number of persistence mutations observed.
func (m *MockPostRepository) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created) + len(m.Updated) + len(m.Deleted)
}

func (m *MockPostRepository) sorted(keep func(domain.Post) bool) []domain.Post {
	out := make([]domain.Post, 0, len(m.Posts))
	for _, p := range m.Posts {
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

func (m *MockPostRepository) GetAll(ctx context.Context) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.sorted(nil), nil
}

func (m *MockPostRepository) GetByID(ctx context.Context, id int64) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.Post{}, m.GetErr
	}
	if id <= 0 {
		return domain.Post{}, domain.Validation("Invalid ID")
	}
	p, ok := m.Posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("BlogPost", id)
	}
	return p, nil
}

func (m *MockPostRepository) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return domain.Post{}, m.CreateErr
	}
	m.nextID++
	p.ID = m.nextID
	m.Posts[p.ID] = p
	m.Created = append(m.Created, p)
	return p, nil
}

func (m *MockPostRepository) Update(ctx context.Context, p domain.Post) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return domain.Post{}, m.UpdateErr
	}
	cur, ok := m.Posts[p.ID]
	if !ok {
		return domain.Post{}, domain.NotFound("BlogPost", p.ID)
	}
	cur.Title, cur.Content, cur.Author = p.Title, p.Content, p.Author
	m.Posts[p.ID] = cur
	m.Updated = append(m.Updated, cur)
	return cur, nil
}

func (m *MockPostRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Posts[id]; !ok {
		return domain.NotFound("BlogPost", id)
	}
	delete(m.Posts, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockPostRepository) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Posts[id]
	return ok, nil
}

func (m *MockPostRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return len(m.Posts), nil
}

func (m *MockPostRepository) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	term := strings.ToLower(f.TitleContains)
	out := m.sorted(func(p domain.Post) bool {
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

func (m *MockPostRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	n := 0
	for _, p := range m.Posts {
		if p.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

// MockIdentityProvider is a mock implementation of domain.IdentityProvider.
type MockIdentityProvider struct {
	mu    sync.Mutex
	Roles map[string]domain.RoleSet
	Err   error
	Calls int
}

func (m *MockIdentityProvider) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Roles[userID], nil
}

// MockUserRepository is a mock implementation of domain.UserRepository.
type MockUserRepository struct {
	mu    sync.Mutex
	Users map[string]domain.User

	CreateErr error
	FindErr   error
	UpdateErr error
}

func NewMockUserRepository(users ...domain.User) *MockUserRepository {
	m := &MockUserRepository{Users: make(map[string]domain.User)}
	for _, u := range users {
		m.Users[u.ID] = u
	}
	return m
}

func (m *MockUserRepository) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Users[userID].Roles, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return domain.User{}, m.FindErr
	}
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFound("User", email)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return domain.User{}, m.FindErr
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.User{}, domain.NotFound("User", id)
	}
	return u, nil
}

func (m *MockUserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return domain.User{}, m.CreateErr
	}
	for _, existing := range m.Users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.User{}, domain.Validation("Email is already registered")
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.Users[u.ID] = u
	return u, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	u, ok := m.Users[id]
	if !ok {
		return domain.NotFound("User", id)
	}
	u.PasswordHash = passwordHash
	m.Users[id] = u
	return nil
}

func (m *MockUserRepository) AddRole(ctx context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return domain.NotFound("User", id)
	}
	if !u.Roles.Has(role) {
		u.Roles = append(u.Roles, role)
	}
	m.Users[id] = u
	return nil
}

// MockTokenDenylist is a mock implementation of domain.TokenDenylist.
type MockTokenDenylist struct {
	mu      sync.Mutex
	Revoked map[string]time.Duration
	Err     error
}

func (m *MockTokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.Revoked == nil {
		m.Revoked = make(map[string]time.Duration)
	}
	m.Revoked[jti] = ttl
	return nil
}

func (m *MockTokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.Revoked[jti]
	return ok, nil
}
