package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/token"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

type ctxKey int

const callerKey ctxKey = iota

// Scheme names how a caller was authenticated.
type Scheme string

const (
	SchemeNone    Scheme = ""
	SchemeBearer  Scheme = "bearer"
	SchemeSession Scheme = "session"
)

// Caller is the resolved identity of a request. The zero value is a Guest.
type Caller struct {
	ID     string
	Email  string
	Scheme Scheme
	// Set only for bearer callers; used to revoke the token on logout.
	TokenID        string
	TokenExpiresAt time.Time
}

func (c Caller) Authenticated() bool { return c.ID != "" }

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey).(Caller)
	return c
}

// CallerID returns the authenticated user id, or empty for a Guest.
func CallerID(ctx context.Context) string {
	return CallerFrom(ctx).ID
}

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// SessionReader extracts the signed-in user id from a cookie session.
type SessionReader interface {
	SessionUserID(r *http.Request) string
}

// Authenticator resolves the caller of a request: a valid bearer token
// first, then the cookie session, otherwise a Guest.
type Authenticator struct {
	tokens   TokenVerifier
	denylist domain.TokenDenylist
	sessions SessionReader
	metrics  *metrics.BlogMetrics
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator. sessions may be nil, in which
// case only bearer tokens are honored.
func NewAuthenticator(tokens TokenVerifier, denylist domain.TokenDenylist, sessions SessionReader, m *metrics.BlogMetrics, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		denylist: denylist,
		sessions: sessions,
		metrics:  m,
		logger:   logger.With("component", "authenticator"),
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[7:]), true
}

// Resolve returns the caller for r. A bearer token that fails verification
// or has been revoked yields a Guest, never an error.
func (a *Authenticator) Resolve(r *http.Request) Caller {
	if raw, ok := bearerToken(r); ok {
		if c, ok := a.fromToken(r.Context(), raw); ok {
			return c
		}
		return Caller{}
	}
	if a.sessions != nil {
		if id := a.sessions.SessionUserID(r); id != "" {
			return Caller{ID: id, Scheme: SchemeSession}
		}
	}
	return Caller{}
}

func (a *Authenticator) fromToken(ctx context.Context, raw string) (Caller, bool) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.logger.Debug("rejected bearer token", "error", err)
		return Caller{}, false
	}
	revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
	switch {
	case err != nil:
		a.metrics.ObserveDenylist("error")
		a.logger.Error("token denylist lookup failed", "error", err)
		return Caller{}, false
	case revoked:
		a.metrics.ObserveDenylist("revoked")
		return Caller{}, false
	}
	a.metrics.ObserveDenylist("valid")

	c := Caller{
		ID:      claims.Subject,
		Email:   claims.Email,
		Scheme:  SchemeBearer,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		c.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return c, true
}

// Middleware stores the resolved caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), a.Resolve(r))))
	})
}

// DenyFunc renders a rejection in the surface's own format.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err *domain.Error)

// RequireAuth rejects Guests.
func RequireAuth(deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFrom(r.Context()).Authenticated() {
				deny(w, r, domain.Unauthorized("Authentication is required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects callers holding none of roles. Guests are rejected as
// unauthenticated.
func RequireRole(identity domain.IdentityProvider, deny DenyFunc, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := CallerID(r.Context())
			if id == "" {
				deny(w, r, domain.Unauthorized("Authentication is required"))
				return
			}
			held, err := identity.RolesFor(r.Context(), id)
			if err != nil {
				deny(w, r, domain.AsError(err))
				return
			}
			if !held.HasAny(roles...) {
				deny(w, r, domain.Forbidden("You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a panic into a deny response and logs the stack.
func Recover(logger *slog.Logger, deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic while handling request",
					"panic", rec,
					"request_id", RequestID(r.Context()),
					"stack", string(debug.Stack()),
				)
				deny(w, r, domain.Internal("An unexpected error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
