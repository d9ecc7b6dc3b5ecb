package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	TokenFormatHMAC = "hmac"
	TokenFormatJWT  = "jwt"

	ODEModeLocal = "local"
	ODEModeHTTP  = "http"

	JournalMemory   = "memory"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

// Config holds service configuration.
type Config struct {
	ServerAddr    string `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	GameParamsDir string `env:"GAME_PARAMS_DIR" envDefault:"configs/games"`

	SigningKeys         string        `env:"SIGNING_KEYS"`
	SigningDefaultKeyID string        `env:"SIGNING_DEFAULT_KEY_ID"`
	TokenFormat         string        `env:"TOKEN_FORMAT" envDefault:"hmac"`
	TokenIssuer         string        `env:"TOKEN_ISSUER" envDefault:"merchprize"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	TokenSingleUse      bool          `env:"TOKEN_SINGLE_USE" envDefault:"false"`

	ODEMode    string        `env:"ODE_MODE" envDefault:"local"`
	ODEURL     string        `env:"ODE_URL"`
	ODETimeout time.Duration `env:"ODE_TIMEOUT" envDefault:"5s"`

	JournalDriver     string `env:"JOURNAL_DRIVER" envDefault:"memory"`
	DatabaseURL       string `env:"DATABASE_URL"`
	PostgresUser      string `env:"POSTGRES_USER" envDefault:"merchprize"`
	PostgresPassword  string `env:"POSTGRES_PASSWORD" envDefault:"merchprize"`
	PostgresDB        string `env:"POSTGRES_DB" envDefault:"merchprize"`
	PostgresHost      string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort      string `env:"POSTGRES_PORT" envDefault:"5432"`
	DatabaseSSLMode   string `env:"DATABASE_SSLMODE" envDefault:"disable"`
	MigrationsDir     string `env:"MIGRATIONS_DIR" envDefault:"internal/migrations"`
	SQLitePath        string `env:"SQLITE_PATH" envDefault:"merchprize.db"`
	JournalSigningKey string `env:"JOURNAL_SIGNING_KEY"`

	OperatorKeyHash string `env:"OPERATOR_KEY_HASH"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	JournalKey []byte
	Level      zerolog.Level
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(&cfg)
}

// LoadFrom reads configuration from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.TokenFormat = strings.ToLower(strings.TrimSpace(cfg.TokenFormat))
	cfg.ODEMode = strings.ToLower(strings.TrimSpace(cfg.ODEMode))
	cfg.JournalDriver = strings.ToLower(strings.TrimSpace(cfg.JournalDriver))

	switch cfg.TokenFormat {
	case TokenFormatHMAC, TokenFormatJWT:
	default:
		return nil, fmt.Errorf("TOKEN_FORMAT must be %q or %q, got %q", TokenFormatHMAC, TokenFormatJWT, cfg.TokenFormat)
	}
	switch cfg.ODEMode {
	case ODEModeLocal:
	case ODEModeHTTP:
		if strings.TrimSpace(cfg.ODEURL) == "" {
			return nil, fmt.Errorf("ODE_URL is required when ODE_MODE=http")
		}
	default:
		return nil, fmt.Errorf("ODE_MODE must be %q or %q, got %q", ODEModeLocal, ODEModeHTTP, cfg.ODEMode)
	}
	switch cfg.JournalDriver {
	case JournalMemory, JournalPostgres, JournalSQLite:
	default:
		return nil, fmt.Errorf("JOURNAL_DRIVER must be one of memory, postgres, sqlite, got %q", cfg.JournalDriver)
	}
	if cfg.ODETimeout <= 0 {
		return nil, fmt.Errorf("ODE_TIMEOUT must be positive")
	}
	if cfg.TokenTTL < 0 {
		return nil, fmt.Errorf("TOKEN_TTL must not be negative")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB, cfg.DatabaseSSLMode)
	}
	if cfg.JournalSigningKey != "" {
		key, err := hex.DecodeString(cfg.JournalSigningKey)
		if err != nil {
			return nil, fmt.Errorf("JOURNAL_SIGNING_KEY: %w", err)
		}
		cfg.JournalKey = key
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.Level = level
	return cfg, nil
}
