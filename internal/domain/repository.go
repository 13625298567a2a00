package domain

import (
	"context"
	"time"
)

// PostRepository is the persistence contract for posts. Failures are
// returned as *Error values: Validation for malformed ids, NotFound for
// missing rows, Internal for anything the backing store could not do.
type PostRepository interface {
	// GetAll returns every post, newest first.
	GetAll(ctx context.Context) ([]Post, error)
	GetByID(ctx context.Context, id int64) (Post, error)
	// Create persists p and returns it with its generated id.
	Create(ctx context.Context, p Post) (Post, error)
	// Update writes title, content and author of p. Owner and published
	// timestamp are never touched.
	Update(ctx context.Context, p Post) (Post, error)
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)

	// List returns posts matching f ordered by published timestamp
	// descending, id descending as a tiebreak.
	List(ctx context.Context, f PostFilter) ([]Post, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}

// IdentityProvider resolves role memberships for a caller id. An unknown or
// empty id resolves to an empty set, which is a Guest.
type IdentityProvider interface {
	RolesFor(ctx context.Context, userID string) (RoleSet, error)
}

// UserRepository stores accounts and their role memberships.
type UserRepository interface {
	IdentityProvider
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	// Create stores u along with u.Roles. A duplicate email is a Validation failure.
	Create(ctx context.Context, u User) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	AddRole(ctx context.Context, id string, role Role) error
}

// TokenDenylist records revoked bearer tokens by jti until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
