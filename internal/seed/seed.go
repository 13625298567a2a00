// Package seed loads the demo accounts and posts into an empty store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

type account struct {
	email    string
	password string
	role     domain.Role
}

var accounts = []account{
	{"admin@blogmvc.com", "Admin123!", domain.RoleAdmin},
	{"john.doe@example.com", "User123!", domain.RoleUser},
	{"jane.smith@example.com", "User123!", domain.RoleUser},
	{"bob.wilson@example.com", "User123!", domain.RoleUser},
}

type demoPost struct {
	owner   string // account email
	author  string
	daysAgo int
	title   string
	content string
}

var posts = []demoPost{
	{"admin@blogmvc.com", "Admin", 30, "Welcome to BlogMvc",
		"This is the first post on the new blog. Anyone can read posts here; sign in to write your own, and edit or delete the ones you wrote."},
	{"admin@blogmvc.com", "Admin", 28, "Community Guidelines",
		"Keep posts on topic, be kind in what you write, and credit your sources. Administrators may edit or remove posts that break these rules."},
	{"john.doe@example.com", "John Doe", 20, "Structuring a Go Service",
		"Keep the domain free of transport concerns, put business rules in a usecase layer, and let adapters translate HTTP and SQL into domain calls."},
	{"john.doe@example.com", "John Doe", 15, "Errors as Values",
		"Returning errors instead of panicking makes every failure path visible at the call site. Typed errors let the edge map them onto status codes."},
	{"john.doe@example.com", "John Doe", 10, "Repositories Without the Ceremony",
		"A repository interface owned by the consumer keeps tests fast: an in-memory implementation covers the service, a database test covers SQL."},
	{"jane.smith@example.com", "Jane Smith", 18, "Designing JSON APIs",
		"Pick one response envelope and use it everywhere. Clients should never have to guess whether an error arrives as text, HTML or JSON."},
	{"jane.smith@example.com", "Jane Smith", 12, "Role-Based Access in Practice",
		"Write the permission rules down as a table and evaluate them in order. Deny by default, and test every row of the table."},
	{"jane.smith@example.com", "Jane Smith", 5, "Validating Input at the Boundary",
		"Trim, check lengths in characters rather than bytes, and report every problem at once so a form can show all of them together."},
	{"bob.wilson@example.com", "Bob Wilson", 8, "Testing with In-Memory Stores",
		"In-memory stores are fast and need no setup, but they do not enforce constraints the way a real database does. Run both kinds of test."},
	{"bob.wilson@example.com", "Bob Wilson", 3, "Wiring Dependencies by Hand",
		"Constructors that take interfaces are all the dependency injection most Go programs need. The main function is the composition root."},
	{"bob.wilson@example.com", "Bob Wilson", 1, "Measure Before You Optimize",
		"Profile first, then change one thing at a time. Most latency hides in I/O and allocations rather than in the code you suspect."},
}

// Seeder creates the demo data. Running it again is harmless: accounts are
// created only when missing and posts only when the store is empty.
type Seeder struct {
	users  domain.UserRepository
	posts  domain.PostRepository
	now    func() time.Time
	logger *slog.Logger
}

func New(users domain.UserRepository, posts domain.PostRepository, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:  users,
		posts:  posts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "seeder"),
	}
}

// Run seeds accounts, then posts.
func (s *Seeder) Run(ctx context.Context) error {
	ids, err := s.seedAccounts(ctx)
	if err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	if err := s.seedPosts(ctx, ids); err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}
	return nil
}

func (s *Seeder) seedAccounts(ctx context.Context) (map[string]string, error) {
	ids := make(map[string]string, len(accounts))
	for _, a := range accounts {
		existing, err := s.users.FindByEmail(ctx, a.email)
		switch {
		case err == nil:
			if err := s.users.AddRole(ctx, existing.ID, a.role); err != nil {
				return nil, err
			}
			ids[a.email] = existing.ID
			continue
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}

		u := domain.User{
			ID:        uuid.NewString(),
			Email:     a.email,
			Roles:     domain.RoleSet{a.role},
			CreatedAt: s.now(),
		}
		if err := u.SetPassword(a.password); err != nil {
			return nil, err
		}
		created, err := s.users.Create(ctx, u)
		if err != nil {
			return nil, err
		}
		s.logger.Info("seeded account", "email", a.email, "role", a.role)
		ids[a.email] = created.ID
	}
	return ids, nil
}

func (s *Seeder) seedPosts(ctx context.Context, ids map[string]string) error {
	n, err := s.posts.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("posts already present, skipping", "count", n)
		return nil
	}

	now := s.now()
	for _, p := range posts {
		if _, err := s.posts.Create(ctx, domain.Post{
			Title:       p.title,
			Content:     p.content,
			Author:      p.author,
			PublishedAt: now.AddDate(0, 0, -p.daysAgo),
			UserID:      ids[p.owner],
		}); err != nil {
			return err
		}
	}
	s.logger.Info("seeded posts", "count", len(posts))
	return nil
}
