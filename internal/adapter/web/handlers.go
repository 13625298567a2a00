package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/handler"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const (
	csrfField          = "csrf_token"
	defaultRecentCount = 10
	excerptLength      = 200
)

// PostService is the subset of usecase.PostService the pages need.
type PostService interface {
	ListAll(ctx context.Context, callerID string) ([]domain.PostView, error)
	GetByID(ctx context.Context, id int64, callerID string) (domain.PostView, error)
	SearchByTitle(ctx context.Context, term, callerID string) ([]domain.PostView, error)
	ListByUser(ctx context.Context, userID, callerID string) ([]domain.PostView, error)
	ListRecent(ctx context.Context, count int, callerID string) ([]domain.PostView, error)
	Create(ctx context.Context, in domain.PostInput, callerID string) (domain.PostView, error)
	Update(ctx context.Context, in domain.UpdatePostInput, callerID string) (domain.PostView, error)
	Delete(ctx context.Context, id int64, callerID string) error
}

// AuthService is the subset of usecase.AuthService the pages need.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
	RolesFor(ctx context.Context, userID string) (domain.RoleSet, error)
}

// Flashes are the one-shot messages shown at the top of a page.
type Flashes struct {
	Success []string
	Error   []string
}

// Page is the data every template receives; Data holds the page-specific part.
type Page struct {
	Title     string
	Email     string
	SignedIn  bool
	Member    bool
	CSRFToken string
	Flashes   Flashes
	Data      any
}

// ListData backs the post listing pages.
type ListData struct {
	Heading string
	Posts   []domain.PostView
	Term    string
	Excerpt int
	Errors  []string
}

// PostForm backs the create and edit forms.
type PostForm struct {
	ID          int64
	Title       string
	Content     string
	Author      string
	PublishedAt time.Time
	Action      string
	Submit      string
	Errors      []string
}

// AuthForm backs the login and registration forms.
type AuthForm struct {
	Email     string
	ReturnURL string
	Errors    []string
}

// ErrorData backs the error page.
type ErrorData struct {
	Status  int
	Message string
}

type Handlers struct {
	templates *Templates
	posts     PostService
	auth      AuthService
	sessions  *SessionStore
	limiter   *middleware.RateLimiter
	logger    *slog.Logger
}

// NewHandlers creates the page handlers. limiter throttles login form posts
// and may be nil.
func NewHandlers(templates *Templates, posts PostService, auth AuthService, sessions *SessionStore, limiter *middleware.RateLimiter, logger *slog.Logger) *Handlers {
	return &Handlers{
		templates: templates,
		posts:     posts,
		auth:      auth,
		sessions:  sessions,
		limiter:   limiter,
		logger:    logger.With("component", "web"),
	}
}

// Routes returns the page router. Every POST must carry the session's CSRF token.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.verifyCSRF)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.renderError(w, r, domain.NotFound("Page", r.URL.Path))
	})

	authed := middleware.RequireAuth(h.deny)
	member := middleware.RequireRole(h.auth, h.deny, domain.RoleUser, domain.RoleAdmin)
	login := func(next http.Handler) http.Handler { return next }
	if h.limiter != nil {
		login = h.limiter.Middleware(h.deny)
	}

	r.Handle("/static/*", StaticHandler())
	r.Get("/", h.Index)
	r.Get("/posts/search", h.Search)
	r.Get("/posts/recent", h.Recent)
	r.Get("/posts/{id}", h.Details)

	r.Group(func(r chi.Router) {
		r.Use(authed, member)
		r.Get("/posts/mine", h.Mine)
		r.Get("/posts/new", h.NewPost)
		r.Post("/posts/new", h.CreatePost)
		r.Get("/posts/{id}/edit", h.EditPost)
		r.Post("/posts/{id}/edit", h.UpdatePost)
		r.Post("/posts/{id}/delete", h.DeletePost)
	})

	r.Get("/login", h.LoginPage)
	r.With(login).Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/register", h.RegisterPage)
	r.Post("/register", h.Register)
	return r
}

func (h *Handlers) verifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		if !validCSRF(h.sessions.Load(r), r.PostFormValue(csrfField)) {
			h.logger.Warn("csrf token mismatch", "path", r.URL.Path, "request_id", middleware.RequestID(r.Context()))
			h.renderError(w, r, domain.Forbidden("The form has expired. Reload the page and try again."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// deny sends Guests to the login form and other callers back home with a flash.
func (h *Handlers) deny(w http.ResponseWriter, r *http.Request, err *domain.Error) {
	switch err.Code {
	case domain.CodeUnauthorized:
		http.Redirect(w, r, "/login?returnUrl="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	case domain.CodeForbidden:
		h.redirect(w, r, "/", flashError, err.Message)
	default:
		h.renderError(w, r, err)
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := h.sessions.Load(r)
	token, created := csrfToken(sess)
	page := Page{
		Title:     title,
		CSRFToken: token,
		Flashes: Flashes{
			Success: flashStrings(sess, flashSuccess),
			Error:   flashStrings(sess, flashError),
		},
		Data: data,
	}
	if created || len(page.Flashes.Success) > 0 || len(page.Flashes.Error) > 0 {
		h.sessions.Save(w, r, sess)
	}

	if id := middleware.CallerID(r.Context()); id != "" {
		page.SignedIn = true
		page.Email = sessionEmail(sess)
		if page.Email == "" {
			page.Email = middleware.CallerFrom(r.Context()).Email
		}
		roles, err := h.auth.RolesFor(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to load roles", "error", err, "user_id", id)
		}
		page.Member = roles.HasAny(domain.RoleUser, domain.RoleAdmin)
	}

	if err := h.templates.Render(w, status, name, page); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.AsError(err)
	status := handler.StatusFor(de.Code)
	h.render(w, r, status, "error.html", http.StatusText(status), ErrorData{Status: status, Message: de.Message})
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if message != "" {
		sess := h.sessions.Load(r)
		sess.AddFlash(message, kind)
		h.sessions.Save(w, r, sess)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handlers) renderList(w http.ResponseWriter, r *http.Request, title string, data ListData, err error) {
	data.Excerpt = excerptLength
	status := http.StatusOK
	if err != nil {
		de := domain.AsError(err)
		if de.Code == domain.CodeInternal {
			h.logger.Error("failed to load posts", "error", err)
		}
		status = handler.StatusFor(de.Code)
		data.Errors = []string{de.Message}
		data.Posts = nil
	}
	h.render(w, r, status, "list.html", title, data)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// safeReturnURL keeps redirects on this site.
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	return raw
}

func messages(err error) []string {
	return strings.Split(domain.AsError(err).Message, "; ")
}

// Index handles GET /.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListAll(r.Context(), middleware.CallerID(r.Context()))
	h.renderList(w, r, "All Posts", ListData{Heading: "All Posts", Posts: posts}, err)
}

// Search handles GET /posts/search?term=.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	posts, err := h.posts.SearchByTitle(r.Context(), term, middleware.CallerID(r.Context()))
	heading := "All Posts"
	if strings.TrimSpace(term) != "" {
		heading = fmt.Sprintf("Posts matching %q", strings.TrimSpace(term))
	}
	h.renderList(w, r, "Search", ListData{Heading: heading, Posts: posts, Term: term}, err)
}

// Recent handles GET /posts/recent?count=.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	count := defaultRecentCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.redirect(w, r, "/", flashError, "Count must be an integer")
			return
		}
		count = n
	}
	posts, err := h.posts.ListRecent(r.Context(), count, middleware.CallerID(r.Context()))
	if err != nil {
		h.redirect(w, r, "/", flashError, domain.AsError(err).Message)
		return
	}
	h.renderList(w, r, "Recent Posts", ListData{Heading: fmt.Sprintf("%d Most Recent Posts", count), Posts: posts}, nil)
}

// Mine handles GET /posts/mine.
func (h *Handlers) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	posts, err := h.posts.ListByUser(r.Context(), caller, caller)
	h.renderList(w, r, "My Posts", ListData{Heading: "My Posts", Posts: posts}, err)
}

// Details handles GET /posts/{id}.
func (h *Handlers) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderError(w, r, domain.Validation("Invalid post ID"))
		return
	}
	post, err := h.posts.GetByID(r.Context(), id, middleware.CallerID(r.Context()))
	if err != nil {
		h.redirect(w, r, "/", flashError, domain.AsError(err).Message)
		return
	}
	h.render(w, r, http.StatusOK, "details.html", post.Title, post)
}

// NewPost handles GET /posts/new.
func (h *Handlers) NewPost(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "form.html", "Create Post", PostForm{Action: "/posts/new", Submit: "Create"})
}

func formInput(r *http.Request) domain.PostInput {
	return domain.PostInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
		Author:  r.PostFormValue("author"),
	}
}

// CreatePost handles POST /posts/new.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	in := formInput(r)
	post, err := h.posts.Create(r.Context(), in, middleware.CallerID(r.Context()))
	if err != nil {
		form := PostForm{Title: in.Title, Content: in.Content, Author: in.Author, Action: "/posts/new", Submit: "Create", Errors: messages(err)}
		h.render(w, r, handler.StatusFor(domain.CodeOf(err)), "form.html", "Create Post", form)
		return
	}
	h.redirect(w, r, fmt.Sprintf("/posts/%d", post.ID), flashSuccess, "Post successfully created!")
}

// EditPost handles GET /posts/{id}/edit.
func (h *Handlers) EditPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderError(w, r, domain.Validation("Invalid post ID"))
		return
	}
	post, err := h.posts.GetByID(r.Context(), id, middleware.CallerID(r.Context()))
	if err != nil {
		h.redirect(w, r, "/", flashError, domain.AsError(err).Message)
		return
	}
	if !post.CanEdit {
		h.redirect(w, r, "/", flashError, "You do not have permission to edit this post")
		return
	}
	h.render(w, r, http.StatusOK, "form.html", "Edit Post", PostForm{
		ID:          post.ID,
		Title:       post.Title,
		Content:     post.Content,
		Author:      post.Author,
		PublishedAt: post.PublishedAt,
		Action:      fmt.Sprintf("/posts/%d/edit", post.ID),
		Submit:      "Save",
	})
}

// UpdatePost handles POST /posts/{id}/edit.
func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderError(w, r, domain.Validation("Invalid post ID"))
		return
	}
	caller := middleware.CallerID(r.Context())
	in := formInput(r)
	post, err := h.posts.Update(r.Context(), domain.UpdatePostInput{ID: id, PostInput: in}, caller)
	switch {
	case err == nil:
		h.redirect(w, r, fmt.Sprintf("/posts/%d", post.ID), flashSuccess, "Post successfully updated!")
	case errors.Is(err, domain.ErrValidation):
		form := PostForm{ID: id, Title: in.Title, Content: in.Content, Author: in.Author, Submit: "Save", Errors: messages(err)}
		form.Action = fmt.Sprintf("/posts/%d/edit", id)
		if current, gerr := h.posts.GetByID(r.Context(), id, caller); gerr == nil {
			form.PublishedAt = current.PublishedAt
		}
		h.render(w, r, http.StatusBadRequest, "form.html", "Edit Post", form)
	default:
		h.redirect(w, r, "/", flashError, domain.AsError(err).Message)
	}
}

// DeletePost handles POST /posts/{id}/delete.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.redirect(w, r, "/", flashError, "Invalid post ID")
		return
	}
	if err := h.posts.Delete(r.Context(), id, middleware.CallerID(r.Context())); err != nil {
		h.redirect(w, r, "/", flashError, domain.AsError(err).Message)
		return
	}
	h.redirect(w, r, "/", flashSuccess, "Post successfully deleted!")
}

// LoginPage handles GET /login.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CallerID(r.Context()) != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", "Log in", AuthForm{ReturnURL: safeReturnURL(r.URL.Query().Get("returnUrl"))})
}

// Login handles POST /login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	returnURL := safeReturnURL(r.PostFormValue("returnUrl"))
	user, err := h.auth.Authenticate(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		h.render(w, r, handler.StatusFor(domain.CodeOf(err)), "login.html", "Log in",
			AuthForm{Email: email, ReturnURL: returnURL, Errors: messages(err)})
		return
	}
	sess := h.sessions.Load(r)
	signIn(sess, user.ID, user.Email)
	h.sessions.Save(w, r, sess)
	h.logger.Info("user signed in", "user_id", user.ID)
	http.Redirect(w, r, returnURL, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Load(r)
	signOut(sess)
	sess.AddFlash("You have been logged out.", flashSuccess)
	h.sessions.Save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterPage handles GET /register.
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", "Register", AuthForm{})
}

// Register handles POST /register and signs the new user in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req := domain.RegisterRequest{
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.render(w, r, handler.StatusFor(domain.CodeOf(err)), "register.html", "Register",
			AuthForm{Email: req.Email, Errors: strings.Split(domain.AsError(err).Message, ", ")})
		return
	}
	sess := h.sessions.Load(r)
	signIn(sess, user.ID, user.Email)
	sess.AddFlash("Registration successful. Welcome!", flashSuccess)
	h.sessions.Save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
