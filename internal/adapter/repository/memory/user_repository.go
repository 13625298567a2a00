package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// UserRepository keeps accounts in memory. Emails are matched case-insensitively.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(u.Roles), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.NotFound("User", email)
	}
	return r.byID[id], nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.NotFound("User", id)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeEmail(u.Email)
	if _, exists := r.byEmail[key]; exists {
		return domain.User{}, domain.Validation("Email is already registered")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Roles = slices.Clone(u.Roles)
	r.byID[u.ID] = u
	r.byEmail[key] = u.ID
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.NotFound("User", id)
	}
	u.PasswordHash = passwordHash
	r.byID[id] = u
	return nil
}

func (r *UserRepository) AddRole(ctx context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.NotFound("User", id)
	}
	if !u.Roles.Has(role) {
		u.Roles = append(slices.Clone(u.Roles), role)
		r.byID[id] = u
	}
	return nil
}
