package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type StripeConfig struct {
	SecretKey string
}

type Config struct {
	App struct {
		Port           string
		GatewayTimeout time.Duration
	}
	Postgres PostgresConfig
	Stripe   StripeConfig
}

// NewConfig читает конфигурацию из окружения. Файл .env подхватывается,
// если он есть рядом с бинарником.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid GATEWAY_TIMEOUT: %w", err)
	}
	cfg.App.GatewayTimeout = gatewayTimeout

	for _, req := range []struct {
		name  string
		field *string
	}{
		{"DB_HOST", &cfg.Postgres.Host},
		{"DB_PORT", &cfg.Postgres.Port},
		{"DB_USER", &cfg.Postgres.User},
		{"DB_PASSWORD", &cfg.Postgres.Password},
		{"DB_NAME", &cfg.Postgres.DBName},
		{"STRIPE_SECRET_KEY", &cfg.Stripe.SecretKey},
	} {
		*req.field = os.Getenv(req.name)
		if *req.field == "" {
			return nil, fmt.Errorf("config: %s is required", req.name)
		}
	}

	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "10"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("config: invalid DB_MAX_CONNS: %w", err)
	}
	cfg.Postgres.MaxConns = int32(maxConns)

	minConns, err := strconv.ParseInt(getEnv("DB_MIN_CONNS", "2"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("config: invalid DB_MIN_CONNS: %w", err)
	}
	cfg.Postgres.MinConns = int32(minConns)

	maxConnLifetime, err := time.ParseDuration(getEnv("DB_MAX_CONN_LIFETIME", "30m"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid DB_MAX_CONN_LIFETIME: %w", err)
	}
	cfg.Postgres.MaxConnLifetime = maxConnLifetime

	return cfg, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
