package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const postColumns = `id, title, content, author, published_at, user_id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostRepository implements domain.PostRepository on PostgreSQL. Driver
// errors are logged here and surfaced only as INTERNAL_SERVER_ERROR.
type PostRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostRepository(db *sql.DB, logger *slog.Logger) *PostRepository {
	return &PostRepository{db: db, logger: logger.With("component", "postgres_posts")}
}

func (r *PostRepository) internal(op string, err error) error {
	r.logger.Error("post query failed", "op", op, "error", err)
	return domain.Internal("A database error occurred")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Author, &p.PublishedAt, &p.UserID)
	p.PublishedAt = p.PublishedAt.UTC()
	return p, err
}

func (r *PostRepository) queryPosts(ctx context.Context, op, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.internal(op, err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, r.internal(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal(op, err)
	}
	return posts, nil
}

func (r *PostRepository) GetAll(ctx context.Context) ([]domain.Post, error) {
	return r.List(ctx, domain.PostFilter{})
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (domain.Post, error) {
	if id <= 0 {
		return domain.Post{}, domain.Validation("Invalid ID")
	}
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, domain.NotFound("BlogPost", id)
		}
		return domain.Post{}, r.internal("get", err)
	}
	return p, nil
}

func (r *PostRepository) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	if strings.TrimSpace(p.Title) == "" {
		return domain.Post{}, domain.Validation("Title is required")
	}
	query := `
		INSERT INTO posts (title, content, author, published_at, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, p.Title, p.Content, p.Author, p.PublishedAt, p.UserID).Scan(&p.ID); err != nil {
		return domain.Post{}, r.internal("create", err)
	}
	return p, nil
}

// Update writes only the mutable columns. Zero affected rows means the post
// was deleted after the caller read it.
func (r *PostRepository) Update(ctx context.Context, p domain.Post) (domain.Post, error) {
	if p.ID <= 0 {
		return domain.Post{}, domain.Validation("Invalid ID")
	}
	if strings.TrimSpace(p.Title) == "" {
		return domain.Post{}, domain.Validation("Title is required")
	}
	query := `
		UPDATE posts SET title = $2, content = $3, author = $4
		WHERE id = $1
		RETURNING ` + postColumns
	updated, err := scanPost(r.db.QueryRowContext(ctx, query, p.ID, p.Title, p.Content, p.Author))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, domain.NotFound("BlogPost", p.ID)
		}
		return domain.Post{}, r.internal("update", err)
	}
	return updated, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return r.internal("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.internal("delete", err)
	}
	switch {
	case n == 0:
		return domain.NotFound("BlogPost", id)
	case n != 1:
		return domain.Internal("No changes were saved to the database")
	}
	return nil
}

func (r *PostRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, r.internal("exists", err)
	}
	return exists, nil
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, r.internal("count", err)
	}
	return n, nil
}

func (r *PostRepository) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, error) {
	var (
		where []string
		args  []any
	)
	if f.TitleContains != "" {
		args = append(args, "%"+likeEscaper.Replace(f.TitleContains)+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + postColumns + ` FROM posts`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY published_at DESC, id DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return r.queryPosts(ctx, "list", b.String(), args...)
}

func (r *PostRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, r.internal("count_by_owner", err)
	}
	return n, nil
}
