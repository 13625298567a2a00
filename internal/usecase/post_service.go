package usecase

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// PostService is the only writer of post state. It validates input, checks
// permissions, and annotates every read with the caller's permission view.
// An empty callerID is a Guest.
type PostService struct {
	posts      domain.PostRepository
	identity   domain.IdentityProvider
	permission *PermissionEvaluator
	now        func() time.Time
	logger     *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts domain.PostRepository, identity domain.IdentityProvider, logger *slog.Logger) *PostService {
	return &PostService{
		posts:      posts,
		identity:   identity,
		permission: NewPermissionEvaluator(),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "post_service"),
	}
}

func (s *PostService) startSpan(ctx context.Context, name, callerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Bool("caller.authenticated", callerID != ""))
	return otel.Tracer("post-service").Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	span.End()
}

// rolesFor resolves the caller's roles once per operation.
func (s *PostService) rolesFor(ctx context.Context, callerID string) (domain.RoleSet, error) {
	if callerID == "" {
		return nil, nil
	}
	roles, err := s.identity.RolesFor(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to resolve caller roles", "error", err, "caller_id", callerID)
		return nil, err
	}
	return roles, nil
}

func (s *PostService) annotate(ctx context.Context, posts []domain.Post, callerID string) ([]domain.PostView, error) {
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, s.permission.View(p, callerID, roles))
	}
	slices.SortStableFunc(views, newestFirst)
	return views, nil
}

// newestFirst orders by published timestamp descending, then id descending.
func newestFirst(a, b domain.PostView) int {
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (s *PostService) list(ctx context.Context, f domain.PostFilter, callerID string) ([]domain.PostView, error) {
	posts, err := s.posts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, posts, callerID)
}

// ListAll returns every post, newest first.
func (s *PostService) ListAll(ctx context.Context, callerID string) (_ []domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "ListAll", callerID)
	defer func() { endSpan(span, err) }()

	posts, err := s.posts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, posts, callerID)
}

func (s *PostService) GetByID(ctx context.Context, id int64, callerID string) (_ domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "GetByID", callerID, attribute.Int64("post.id", id))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return domain.PostView{}, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return domain.PostView{}, err
	}
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return domain.PostView{}, err
	}
	return s.permission.View(post, callerID, roles), nil
}

// SearchByTitle matches term as a case-insensitive substring of the title.
// A blank term returns every post.
func (s *PostService) SearchByTitle(ctx context.Context, term, callerID string) (_ []domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "SearchByTitle", callerID)
	defer func() { endSpan(span, err) }()

	term, err = validateSearchTerm(term)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, domain.PostFilter{TitleContains: term}, callerID)
}

func (s *PostService) ListByUser(ctx context.Context, userID, callerID string) (_ []domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "ListByUser", callerID)
	defer func() { endSpan(span, err) }()

	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return s.list(ctx, domain.PostFilter{OwnerID: userID}, callerID)
}

func (s *PostService) ListRecent(ctx context.Context, count int, callerID string) (_ []domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "ListRecent", callerID, attribute.Int("post.count", count))
	defer func() { endSpan(span, err) }()

	if count <= 0 {
		return nil, domain.Validation("Count must be greater than 0")
	}
	return s.list(ctx, domain.PostFilter{Limit: count}, callerID)
}

// Create stores a new post owned by callerID and published now.
func (s *PostService) Create(ctx context.Context, in domain.PostInput, callerID string) (_ domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "Create", callerID)
	defer func() { endSpan(span, err) }()

	if callerID == "" {
		return domain.PostView{}, domain.Unauthorized("You must be logged in to create a post")
	}
	in, err = normalizePostInput(in)
	if err != nil {
		s.logger.Debug("rejected post input", "error", err, "caller_id", callerID)
		return domain.PostView{}, err
	}
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return domain.PostView{}, err
	}
	if !s.permission.CanCreate(callerID, roles) {
		return domain.PostView{}, domain.Forbidden("You do not have permission to create posts")
	}

	created, err := s.posts.Create(ctx, domain.Post{
		Title:       in.Title,
		Content:     in.Content,
		Author:      in.Author,
		PublishedAt: s.now(),
		UserID:      callerID,
	})
	if err != nil {
		return domain.PostView{}, err
	}
	s.logger.Info("post created", "post_id", created.ID, "caller_id", callerID)
	return s.permission.View(created, callerID, roles), nil
}

// Update replaces title, content and author. Owner and published timestamp
// are carried over from the stored post.
func (s *PostService) Update(ctx context.Context, in domain.UpdatePostInput, callerID string) (_ domain.PostView, err error) {
	ctx, span := s.startSpan(ctx, "Update", callerID, attribute.Int64("post.id", in.ID))
	defer func() { endSpan(span, err) }()

	if err := validateID(in.ID); err != nil {
		return domain.PostView{}, err
	}
	fields, err := normalizePostInput(in.PostInput)
	if err != nil {
		s.logger.Debug("rejected post input", "error", err, "post_id", in.ID)
		return domain.PostView{}, err
	}

	existing, err := s.posts.GetByID(ctx, in.ID)
	if err != nil {
		return domain.PostView{}, err
	}
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return domain.PostView{}, err
	}
	if !s.permission.CanEdit(existing, callerID, roles) {
		return domain.PostView{}, domain.Forbidden("You do not have permission to edit this post")
	}

	existing.Title = fields.Title
	existing.Content = fields.Content
	existing.Author = fields.Author
	updated, err := s.posts.Update(ctx, existing)
	if err != nil {
		return domain.PostView{}, err
	}
	s.logger.Info("post updated", "post_id", updated.ID, "caller_id", callerID)
	return s.permission.View(updated, callerID, roles), nil
}

func (s *PostService) Delete(ctx context.Context, id int64, callerID string) (err error) {
	ctx, span := s.startSpan(ctx, "Delete", callerID, attribute.Int64("post.id", id))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return err
	}
	existing, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return err
	}
	if !s.permission.CanDelete(existing, callerID, roles) {
		return domain.Forbidden("You do not have permission to delete this post")
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", "post_id", id, "caller_id", callerID)
	return nil
}

func (s *PostService) CanEdit(ctx context.Context, id int64, callerID string) (bool, error) {
	return s.probe(ctx, "CanEdit", OpEdit, id, callerID)
}

func (s *PostService) CanDelete(ctx context.Context, id int64, callerID string) (bool, error) {
	return s.probe(ctx, "CanDelete", OpDelete, id, callerID)
}

func (s *PostService) probe(ctx context.Context, spanName string, op Operation, id int64, callerID string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, spanName, callerID, attribute.Int64("post.id", id))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return false, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	roles, err := s.rolesFor(ctx, callerID)
	if err != nil {
		return false, err
	}
	return s.permission.Allowed(op, Subject{CallerID: callerID, Roles: roles, OwnerID: post.UserID}), nil
}

func (s *PostService) CountByUser(ctx context.Context, userID string) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "CountByUser", userID)
	defer func() { endSpan(span, err) }()

	if err := validateUserID(userID); err != nil {
		return 0, err
	}
	return s.posts.CountByOwner(ctx, userID)
}
