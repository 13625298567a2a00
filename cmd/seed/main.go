// Command seed applies migrations and loads the demo accounts and posts into
// the configured PostgreSQL database, then exits.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/repository/postgres"
	"github.com/Nef3rp1tou/BlogMvc/internal/pkg/config"
	"github.com/Nef3rp1tou/BlogMvc/internal/pkg/logger"
	"github.com/Nef3rp1tou/BlogMvc/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if cfg.StoreDriver != config.StorePostgres {
		log.Error("seeding needs STORE_DRIVER=postgres; the in-memory store is seeded by the server on startup")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	s := seed.New(postgres.NewUserRepository(db, log), postgres.NewPostRepository(db, log), log)
	if err := s.Run(ctx); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeding complete")
}
