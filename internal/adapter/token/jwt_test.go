package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager(testKey, "BlogMvc", "BlogMvcUsers", 24*time.Hour)
	user := domain.User{ID: "u-1", Email: "john@example.com", Roles: domain.RoleSet{domain.RoleUser, domain.RoleAdmin}}

	issued, err := m.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.ExpiresAt, time.Minute)

	claims, err := m.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, domain.RoleSet{domain.RoleUser, domain.RoleAdmin}, claims.RoleSet())
}

func TestManager_VerifyRejects(t *testing.T) {
	m := NewManager(testKey, "BlogMvc", "BlogMvcUsers", time.Hour)
	user := domain.User{ID: "u-1", Email: "john@example.com"}

	otherKey := NewManager("another-key-another-key-another-key", "BlogMvc", "BlogMvcUsers", time.Hour)
	otherAudience := NewManager(testKey, "BlogMvc", "SomeoneElse", time.Hour)
	otherIssuer := NewManager(testKey, "Elsewhere", "BlogMvcUsers", time.Hour)
	expired := NewManager(testKey, "BlogMvc", "BlogMvcUsers", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tests := []struct {
		name   string
		issuer *Manager
	}{
		{"wrong key", otherKey},
		{"wrong audience", otherAudience},
		{"wrong issuer", otherIssuer},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issued, err := tt.issuer.Issue(user)
			require.NoError(t, err)
			_, err = m.Verify(issued.Token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}

	_, err := m.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
