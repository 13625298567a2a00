package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "blog:revoked:"

// TokenDenylist implements domain.TokenDenylist with one expiring key per
// revoked token, so Redis drops entries when the token would expire anyway.
type TokenDenylist struct {
	client      *redis.Client
	logger      *slog.Logger
	isAvailable atomic.Bool
}

// NewClient parses a redis:// URL and verifies the server is reachable.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewTokenDenylist(client *redis.Client, logger *slog.Logger) *TokenDenylist {
	d := &TokenDenylist{
		client: client,
		logger: logger.With("component", "redis_denylist"),
	}
	d.isAvailable.Store(true)
	return d
}

// IsAvailable reports whether the last Redis round trip succeeded.
func (d *TokenDenylist) IsAvailable() bool {
	return d.isAvailable.Load()
}

func (d *TokenDenylist) track(err error) {
	if err == nil {
		if !d.isAvailable.Swap(true) {
			d.logger.Info("redis connection restored")
		}
		return
	}
	if d.isAvailable.Swap(false) {
		d.logger.Error("redis became unavailable", "error", err)
	}
}

func (d *TokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	err := d.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
	d.track(err)
	if err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	return nil
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	d.track(err)
	if err != nil {
		return false, fmt.Errorf("check token %s: %w", jti, err)
	}
	return n > 0, nil
}
