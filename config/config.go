package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultTokenTTL = 7 * 24 * time.Hour
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string

	DBDriver    string
	SQLitePath  string
	DatabaseURL string

	JWTSecret  []byte
	TokenTTL   time.Duration
	BcryptCost int

	CORSOrigins []string

	SMTP SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// Enabled reports whether outgoing mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// Load reads a .env file when present and then the environment.
func Load() (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET environment variable not set")
	}

	ttl := defaultTokenTTL
	if raw := strings.TrimSpace(os.Getenv("TOKEN_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_TTL %q: %w", raw, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("TOKEN_TTL must be positive, got %s", parsed)
		}
		ttl = parsed
	}

	cost := 12
	if raw := strings.TrimSpace(os.Getenv("BCRYPT_COST")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BCRYPT_COST %q: %w", raw, err)
		}
		if parsed < bcrypt.MinCost || parsed > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
		cost = parsed
	}

	driver := strings.ToLower(envOr("DB_DRIVER", DriverSQLite))
	if driver != DriverSQLite && driver != DriverPostgres {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if driver == DriverPostgres && databaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
	}

	return Config{
		Port:      envOr("PORT", "8080"),
		GinMode:   os.Getenv("GIN_MODE"),
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),

		DBDriver:    driver,
		SQLitePath:  envOr("SQLITE_DB", "scribe.db"),
		DatabaseURL: databaseURL,

		JWTSecret:  []byte(secret),
		TokenTTL:   ttl,
		BcryptCost: cost,

		CORSOrigins: splitList(envOr("CORS_ORIGINS", "http://localhost:3000")),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envOr("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
