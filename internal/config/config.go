package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment configuration. Load .env with godotenv
// before parsing; every value is overridable per deployment.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	SentryDSN   string `env:"SENTRY_DSN"`
	AdminSecret string `env:"ADMIN_SECRET"`

	JWT       JWT       `envPrefix:"JWT_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Cleanup   Cleanup   `envPrefix:"CLEANUP_"`
}

// JWT holds the signing secret and token lifetimes. The secret must be at
// least 32 bytes; the token codec rejects anything shorter.
type JWT struct {
	Secret     string        `env:"SECRET,required"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// RateLimit configures the fixed-window limiter for sensitive endpoints.
type RateLimit struct {
	Window        time.Duration `env:"WINDOW" envDefault:"1m"`
	Login         int           `env:"LOGIN" envDefault:"5"`
	Register      int           `env:"REGISTER" envDefault:"3"`
	PasswordReset int           `env:"PASSWORD_RESET" envDefault:"2"`
}

// Cleanup configures the maintenance purge of soft-deleted accounts.
type Cleanup struct {
	CronSecret       string        `env:"CRON_SECRET"`
	AccountRetention time.Duration `env:"ACCOUNT_RETENTION" envDefault:"720h"`
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"500"`
}

func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
