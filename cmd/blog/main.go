package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/handler"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/pii"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/repository/memory"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/repository/postgres"
	redisrepo "github.com/Nef3rp1tou/BlogMvc/internal/adapter/repository/redis"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/token"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/web"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
	"github.com/Nef3rp1tou/BlogMvc/internal/pkg/config"
	"github.com/Nef3rp1tou/BlogMvc/internal/pkg/logger"
	"github.com/Nef3rp1tou/BlogMvc/internal/seed"
	"github.com/Nef3rp1tou/BlogMvc/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewBlogMetrics(prometheus.DefaultRegisterer)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	var (
		posts   domain.PostRepository
		users   domain.UserRepository
		checks  []handler.HealthCheck
		closers []func() error
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		closers = append(closers, db.Close)
		if cfg.RunMigrations {
			if err := postgres.Migrate(ctx, db); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
			logger.Info("database migrations applied")
		}
		posts = postgres.NewPostRepository(db, logger)
		users = postgres.NewUserRepository(db, logger)
		checks = append(checks, handler.HealthCheck{Name: "store", Check: db.PingContext})
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		posts = memory.NewPostRepository()
		users = memory.NewUserRepository()
	}

	var denylist domain.TokenDenylist = memory.NewTokenDenylist()
	if cfg.RedisURL != "" {
		client, err := redisrepo.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("could not connect to redis, revoked tokens are kept in memory", "error", err)
		} else {
			closers = append(closers, client.Close)
			denylist = redisrepo.NewTokenDenylist(client, logger)
			checks = append(checks, handler.HealthCheck{Name: "denylist", Check: pingRedis(client)})
		}
	}

	if cfg.SeedDemoData {
		if err := seed.New(users, posts, logger).Run(ctx); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	// --- Use Cases ---
	tokens := token.NewManager(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	authService := usecase.NewAuthService(users, tokens, denylist, logger)
	postService := usecase.NewPostService(posts, authService, logger)

	// --- Web Surface ---
	templates, err := web.NewTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	sessions := web.NewSessionStore(cfg.SessionSecret, cfg.SessionSecure, logger)
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute)
	pages := web.NewHandlers(templates, postService, authService, sessions, loginLimiter, logger)

	health := handler.NewHealthHandler(logger, checks...)

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(prometheus.DefaultGatherer, health),
	}
	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Public Server ---
	router := api.NewRouter(api.RouterDeps{
		Logger:        logger,
		Metrics:       m,
		Redactor:      pii.NewRedactor(pii.CredentialFields, logger),
		Authenticator: middleware.NewAuthenticator(tokens, denylist, sessions, m, logger),
		Identity:      authService,
		Posts:         postService,
		Auth:          authService,
		LoginLimiter:  loginLimiter,
		Health:        health,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		Pages:         pages.Routes(),
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("starting blog server", "addr", server.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("blog server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("blog server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}

	logger.Info("servers shut down gracefully")
}

func pingRedis(client *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
