package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// PostgreSQL SQLSTATE codes.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// UserRepository implements domain.UserRepository over the users and
// user_roles tables.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger.With("component", "postgres_users")}
}

func (r *UserRepository) internal(op string, err error) error {
	r.logger.Error("user query failed", "op", op, "error", err)
	return domain.Internal("A database error occurred")
}

func (r *UserRepository) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, r.internal("roles", err)
	}
	defer rows.Close()

	var roles domain.RoleSet
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, r.internal("roles", err)
		}
		if role, ok := domain.ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal("roles", err)
	}
	return roles, nil
}

func (r *UserRepository) findOne(ctx context.Context, op, where string, arg any, notFoundKey string) (domain.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE ` + where
	var u domain.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.NotFound("User", notFoundKey)
		}
		return domain.User{}, r.internal(op, err)
	}
	if u.Roles, err = r.RolesFor(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, "find_by_email", `lower(email) = lower($1)`, strings.TrimSpace(email), email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, "find_by_id", `id = $1`, id, id)
}

// Create inserts the user and its roles in one transaction.
func (r *UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, r.internal("create", err)
	}
	defer tx.Rollback()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.User{}, domain.Validation("Email is already registered")
		}
		return domain.User{}, r.internal("create", err)
	}

	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, string(role)); err != nil {
			return domain.User{}, r.internal("create_role", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, r.internal("create_commit", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return r.internal("update_password", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return r.internal("update_password", err)
	} else if n == 0 {
		return domain.NotFound("User", id)
	}
	return nil
}

func (r *UserRepository) AddRole(ctx context.Context, id string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING
	`, id, string(role))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.NotFound("User", id)
		}
		return r.internal("add_role", fmt.Errorf("role %s: %w", role, err))
	}
	return nil
}
