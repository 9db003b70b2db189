package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from IDENTITY_-prefixed environment variables.
type Config struct {
	Env  string `env:"IDENTITY_ENV" envDefault:"development"`
	Port int    `env:"IDENTITY_PORT" envDefault:"8080"`

	LogLevel  string `env:"IDENTITY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"IDENTITY_LOG_FORMAT" envDefault:"json"`

	DatabaseFile string `env:"IDENTITY_DB_FILE" envDefault:"identity.db"`

	RedisAddr     string `env:"IDENTITY_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"IDENTITY_REDIS_PASSWORD"`
	RedisDB       int    `env:"IDENTITY_REDIS_DB" envDefault:"0"`

	Issuer string `env:"IDENTITY_ISSUER" envDefault:"identity"`

	// The two signing secrets must differ; access tokens and refresh
	// tokens are never verifiable with each other's key.
	AccessSecret  string `env:"IDENTITY_JWT_SECRET,required"`
	RefreshSecret string `env:"IDENTITY_JWT_REFRESH_SECRET,required"`

	AccessTTL  time.Duration `env:"IDENTITY_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"IDENTITY_REFRESH_TTL" envDefault:"168h"`

	HousekeepingInterval time.Duration `env:"IDENTITY_HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	AuditRetention       time.Duration `env:"IDENTITY_AUDIT_RETENTION" envDefault:"2160h"`

	ShutdownGracePeriod time.Duration `env:"IDENTITY_SHUTDOWN_GRACE" envDefault:"10s"`
}

// LoadConfig parses and validates configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.AccessSecret) < 32 {
		return errors.New("IDENTITY_JWT_SECRET must be at least 32 bytes")
	}
	if len(c.RefreshSecret) < 32 {
		return errors.New("IDENTITY_JWT_REFRESH_SECRET must be at least 32 bytes")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("IDENTITY_JWT_SECRET and IDENTITY_JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}
