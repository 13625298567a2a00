package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const registeredMessage = "Registration successful. You can now login."

// AuthService is the subset of usecase.AuthService the API needs.
type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
	CurrentUser(ctx context.Context, userID string) (domain.UserInfo, error)
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

type AuthHandler struct {
	svc     AuthService
	limiter *middleware.RateLimiter
	metrics *metrics.BlogMetrics
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. limiter throttles login attempts per IP.
func NewAuthHandler(svc AuthService, limiter *middleware.RateLimiter, m *metrics.BlogMetrics, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, limiter: limiter, metrics: m, logger: logger.With("component", "auth_handler")}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	authed := middleware.RequireAuth(Deny)

	r.With(h.limiter.Middleware(Deny)).Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.With(authed).Post("/logout", h.Logout)
	r.With(authed).Get("/me", h.Me)
	r.With(authed).Post("/change-password", h.ChangePassword)
	return r
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.CodeOf(err))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, err)
		return
	}
	resp, err := h.svc.Login(r.Context(), req)
	h.metrics.ObserveAuth("login", outcome(err))
	if err != nil {
		h.logger.Info("login failed", "code", domain.CodeOf(err), "request_id", middleware.RequestID(r.Context()))
	}
	respond(w, http.StatusOK, resp, err)
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, err)
		return
	}
	user, err := h.svc.Register(r.Context(), req)
	h.metrics.ObserveAuth("register", outcome(err))
	if err != nil {
		RespondError(w, err)
		return
	}
	respond(w, http.StatusOK, domain.RegisterResponse{
		UserID:  user.ID,
		Email:   user.Email,
		Message: registeredMessage,
	}, nil)
}

// Logout handles POST /api/auth/logout. Only bearer tokens can be revoked;
// a session caller is told to use the web logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	if caller.Scheme != middleware.SchemeBearer {
		RespondError(w, domain.Validation("Only bearer tokens can be revoked; sign out of the web session instead"))
		return
	}
	err := h.svc.Logout(r.Context(), caller.TokenID, caller.TokenExpiresAt)
	h.metrics.ObserveAuth("logout", outcome(err))
	if err != nil {
		RespondError(w, err)
		return
	}
	respondOK(w)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.CurrentUser(r.Context(), middleware.CallerID(r.Context()))
	respond(w, http.StatusOK, info, err)
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, err)
		return
	}
	err := h.svc.ChangePassword(r.Context(), middleware.CallerID(r.Context()), req)
	h.metrics.ObserveAuth("change_password", outcome(err))
	if err != nil {
		RespondError(w, err)
		return
	}
	respondOK(w)
}
