// Package config loads the relay settings from the environment.
package config

import (
	"chatrelay/backend/internal/models"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// WebSocket timings shared by the read and write pumps.
const (
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10
)

// MinReadLimit is the smallest socket read limit that still admits every frame
// the event validator accepts: JSON may spend up to six bytes per character
// (\u0001), plus room for the envelope fields.
const MinReadLimit = models.MaxContentLength*6 + 4096

// History pagination bounds.
const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 100
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrMissingSecret = errors.New("jwt secret required when auth is required")
	ErrReadLimit     = errors.New("max message bytes below the largest valid frame")
)

// Config holds every setting of the relay process.
type Config struct {
	ListenAddr      string        `env:"RELAY_LISTEN_ADDR" envDefault:":3003"`
	LogLevel        string        `env:"RELAY_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"RELAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Admin    AdminConfig

	SendBuffer      int           `env:"RELAY_SEND_BUFFER" envDefault:"256"`
	MaxMessageBytes int64         `env:"RELAY_MAX_MESSAGE_BYTES" envDefault:"32768"`
	StoreTimeout    time.Duration `env:"RELAY_STORE_TIMEOUT" envDefault:"5s"`
}

// DatabaseConfig selects the message store backend.
type DatabaseConfig struct {
	Driver string `env:"RELAY_DB_DRIVER" envDefault:"sqlite"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `env:"RELAY_DB_DSN" envDefault:"chatrelay.db"`
}

// RedisConfig configures the optional recent-history cache. An empty Addr disables it.
type RedisConfig struct {
	Addr            string `env:"RELAY_REDIS_ADDR"`
	Password        string `env:"RELAY_REDIS_PASSWORD"`
	DB              int    `env:"RELAY_REDIS_DB" envDefault:"0"`
	RecentCacheSize int    `env:"RELAY_RECENT_CACHE_SIZE" envDefault:"50"`
}

// AuthConfig defines anonymous identity token parameters.
type AuthConfig struct {
	Secret   string        `env:"RELAY_JWT_SECRET"`
	Issuer   string        `env:"RELAY_JWT_ISSUER" envDefault:"chatrelay"`
	TokenTTL time.Duration `env:"RELAY_TOKEN_TTL" envDefault:"72h"`
	Required bool          `env:"RELAY_REQUIRE_AUTH" envDefault:"false"`
	// AdminToken authorizes system messages posted over HTTP. Empty disables them.
	AdminToken string `env:"RELAY_ADMIN_TOKEN"`
}

// AdminConfig is read by the operator CLI.
type AdminConfig struct {
	// ServerURL is the base URL of the running relay, used to post system messages live.
	ServerURL string `env:"RELAY_ADMIN_SERVER_URL" envDefault:"http://localhost:3003"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Auth.Required && c.Auth.Secret == "" {
		return ErrMissingSecret
	}
	if c.MaxMessageBytes < MinReadLimit {
		return fmt.Errorf("%w: %d < %d", ErrReadLimit, c.MaxMessageBytes, MinReadLimit)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}
