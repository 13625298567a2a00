package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const (
	defaultRecentCount = 10
	maxBodyBytes       = 1 << 20
)

// PostService is the subset of usecase.PostService the handlers need.
type PostService interface {
	ListAll(ctx context.Context, callerID string) ([]domain.PostView, error)
	GetByID(ctx context.Context, id int64, callerID string) (domain.PostView, error)
	SearchByTitle(ctx context.Context, term, callerID string) ([]domain.PostView, error)
	ListByUser(ctx context.Context, userID, callerID string) ([]domain.PostView, error)
	ListRecent(ctx context.Context, count int, callerID string) ([]domain.PostView, error)
	Create(ctx context.Context, in domain.PostInput, callerID string) (domain.PostView, error)
	Update(ctx context.Context, in domain.UpdatePostInput, callerID string) (domain.PostView, error)
	Delete(ctx context.Context, id int64, callerID string) error
	CanEdit(ctx context.Context, id int64, callerID string) (bool, error)
	CanDelete(ctx context.Context, id int64, callerID string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// PostHandler serves the /api/posts resource.
type PostHandler struct {
	svc     PostService
	metrics *metrics.BlogMetrics
	logger  *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(svc PostService, m *metrics.BlogMetrics, logger *slog.Logger) *PostHandler {
	return &PostHandler{svc: svc, metrics: m, logger: logger.With("component", "post_handler")}
}

// Routes mounts the post endpoints. Static segments are registered alongside
// {id}; chi matches them first.
func (h *PostHandler) Routes(identity domain.IdentityProvider) chi.Router {
	r := chi.NewRouter()
	authed := middleware.RequireAuth(Deny)
	member := middleware.RequireRole(identity, Deny, domain.RoleUser, domain.RoleAdmin)

	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/recent", h.Recent)
	r.With(authed).Get("/mine", h.Mine)
	r.With(authed).Get("/count/mine", h.CountMine)
	r.With(authed, member).Post("/", h.Create)
	r.With(authed).Put("/", h.Update)
	r.Get("/{id}", h.Get)
	r.With(authed).Delete("/{id}", h.Delete)
	r.Get("/{id}/can-edit", h.CanEdit)
	r.Get("/{id}/can-delete", h.CanDelete)
	return r
}

func (h *PostHandler) observe(op string, err error) {
	h.metrics.ObservePost(op, string(domain.CodeOf(err)))
	if de := domain.AsError(err); de != nil && de.Code == domain.CodeInternal {
		h.logger.Error("post operation failed", "operation", op, "error", err)
	}
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domain.Validation("Invalid post ID")
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validation("Request body is not valid JSON")
	}
	return nil
}

// List handles GET /api/posts.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListAll(r.Context(), middleware.CallerID(r.Context()))
	h.observe("list", err)
	respond(w, http.StatusOK, posts, err)
}

// Get handles GET /api/posts/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	post, err := h.svc.GetByID(r.Context(), id, middleware.CallerID(r.Context()))
	h.observe("get", err)
	respond(w, http.StatusOK, post, err)
}

// Search handles GET /api/posts/search?term=.
func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.SearchByTitle(r.Context(), r.URL.Query().Get("term"), middleware.CallerID(r.Context()))
	h.observe("search", err)
	respond(w, http.StatusOK, posts, err)
}

// Mine handles GET /api/posts/mine.
func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	posts, err := h.svc.ListByUser(r.Context(), caller, caller)
	h.observe("mine", err)
	respond(w, http.StatusOK, posts, err)
}

// Recent handles GET /api/posts/recent?count=10.
func (h *PostHandler) Recent(w http.ResponseWriter, r *http.Request) {
	count := defaultRecentCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(w, domain.Validation("Count must be an integer"))
			return
		}
		count = n
	}
	posts, err := h.svc.ListRecent(r.Context(), count, middleware.CallerID(r.Context()))
	h.observe("recent", err)
	respond(w, http.StatusOK, posts, err)
}

// Create handles POST /api/posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		RespondError(w, err)
		return
	}
	post, err := h.svc.Create(r.Context(), in, middleware.CallerID(r.Context()))
	h.observe("create", err)
	if err == nil {
		w.Header().Set("Location", fmt.Sprintf("/api/posts/%d", post.ID))
	}
	respond(w, http.StatusCreated, post, err)
}

// Update handles PUT /api/posts.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdatePostInput
	if err := decodeJSON(w, r, &in); err != nil {
		RespondError(w, err)
		return
	}
	post, err := h.svc.Update(r.Context(), in, middleware.CallerID(r.Context()))
	h.observe("update", err)
	respond(w, http.StatusOK, post, err)
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	err = h.svc.Delete(r.Context(), id, middleware.CallerID(r.Context()))
	h.observe("delete", err)
	if err != nil {
		RespondError(w, err)
		return
	}
	respondOK(w)
}

// CanEdit handles GET /api/posts/{id}/can-edit.
func (h *PostHandler) CanEdit(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, "can_edit", h.svc.CanEdit)
}

// CanDelete handles GET /api/posts/{id}/can-delete.
func (h *PostHandler) CanDelete(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, "can_delete", h.svc.CanDelete)
}

func (h *PostHandler) probe(w http.ResponseWriter, r *http.Request, op string, check func(context.Context, int64, string) (bool, error)) {
	id, err := parseID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	ok, err := check(r.Context(), id, middleware.CallerID(r.Context()))
	h.observe(op, err)
	respond(w, http.StatusOK, ok, err)
}

// CountMine handles GET /api/posts/count/mine.
func (h *PostHandler) CountMine(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CountByUser(r.Context(), middleware.CallerID(r.Context()))
	h.observe("count_mine", err)
	respond(w, http.StatusOK, n, err)
}
