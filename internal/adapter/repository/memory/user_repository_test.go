package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	_, err := repo.Create(ctx, domain.User{ID: "u1", Email: "John@Example.com", Roles: domain.RoleSet{domain.RoleUser}})
	require.NoError(t, err)

	_, err = repo.Create(ctx, domain.User{ID: "u2", Email: "john@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	u, err := repo.FindByEmail(ctx, "JOHN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.AddRole(ctx, "u1", domain.RoleAdmin))
	require.NoError(t, repo.AddRole(ctx, "u1", domain.RoleAdmin))
	roles, err := repo.RolesFor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSet{domain.RoleUser, domain.RoleAdmin}, roles)

	roles, err = repo.RolesFor(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, roles)

	require.NoError(t, repo.UpdatePassword(ctx, "u1", "hash"))
	u, _ = repo.FindByID(ctx, "u1")
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestTokenDenylist(t *testing.T) {
	ctx := context.Background()
	d := NewTokenDenylist()
	now := time.Now()
	d.now = func() time.Time { return now }

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = d.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = d.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked, "entry should expire with the token")
}
