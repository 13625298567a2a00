package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims defines the custom claims for the JWT. Subject carries the user id
// and ID the jti used for revocation.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// RoleSet converts the role claim, ignoring unknown names.
func (c *Claims) RoleSet() domain.RoleSet {
	var out domain.RoleSet
	for _, name := range c.Roles {
		if r, ok := domain.ParseRole(name); ok {
			out = append(out, r)
		}
	}
	return out
}

// Manager issues and verifies HS256 bearer tokens for one issuer/audience pair.
type Manager struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(key, issuer, audience string, ttl time.Duration) *Manager {
	return &Manager{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue creates a new JWT for user.
func (m *Manager) Issue(user domain.User) (domain.IssuedToken, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		Email: user.Email,
		Roles: user.Roles.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.IssuedToken{Token: signed, ID: claims.ID, ExpiresAt: expiresAt.UTC()}, nil
}

// Verify parses tokenString and checks signature, algorithm, issuer,
// audience and expiry.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
