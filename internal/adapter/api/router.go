package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/handler"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/pii"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// RouterDeps are the collaborators of the public router.
type RouterDeps struct {
	Logger        *slog.Logger
	Metrics       *metrics.BlogMetrics
	Redactor      *pii.Redactor
	Authenticator *middleware.Authenticator
	Identity      domain.IdentityProvider
	Posts         handler.PostService
	Auth          handler.AuthService
	LoginLimiter  *middleware.RateLimiter
	Health        http.Handler
	CORSOrigins   []string
	// Pages is mounted at the root when set.
	Pages http.Handler
}

// NewRouter creates the public router: the JSON API under /api and the
// server-rendered pages everywhere else.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(d.Logger, d.Redactor))
	r.Use(middleware.Instrument(d.Metrics))
	r.Use(d.Authenticator.Middleware)

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{"Location", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
		r.Use(middleware.Recover(d.Logger, handler.Deny))
		r.NotFound(handler.NotFound)
		r.MethodNotAllowed(handler.MethodNotAllowed)

		logger := d.Logger.With("surface", "api")
		r.Mount("/posts", handler.NewPostHandler(d.Posts, d.Metrics, logger).Routes(d.Identity))
		r.Mount("/auth", handler.NewAuthHandler(d.Auth, d.LoginLimiter, d.Metrics, logger).Routes())
	})

	if d.Pages != nil {
		r.Mount("/", d.Pages)
	}

	return gzhttp.GzipHandler(r)
}
