package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	minSecretLength = 32
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr       string        `env:"ADMIN_ADDR" envDefault:":9091"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresURL   string `env:"POSTGRES_URL"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	RedisURL      string `env:"REDIS_URL"` // empty: in-process token denylist

	JWTKey      string        `env:"JWT_KEY" envDefault:"dev-only-jwt-signing-key-change-me-0000"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"BlogMvc"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"BlogMvcUsers"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-only-session-secret-change-me-000"`
	SessionSecure bool   `env:"SESSION_SECURE" envDefault:"false"`

	SeedDemoData       bool     `env:"SEED_DEMO_DATA" envDefault:"true"`
	LoginRatePerMinute int      `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if len(c.JWTKey) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_KEY must be at least %d bytes", minSecretLength))
	}
	if len(c.SessionSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}
