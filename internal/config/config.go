// Package config loads Kestrel configuration from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/factors"
)

// Load builds the configuration from environment variables, starting from
// the single-node defaults or, when KESTREL_MODE=distributed, from the
// distributed profile. A .env file is loaded first if present.
func Load() (*domain.Config, error) {
	// Ignore error if no .env file exists
	_ = godotenv.Load()

	cfg := domain.DefaultConfig()
	if getEnv("KESTREL_MODE", "") == "distributed" {
		cfg = domain.DistributedConfig()
	}

	// Server
	cfg.Server.Host = getEnv("KESTREL_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("KESTREL_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvInt("KESTREL_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("KESTREL_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	// Store
	cfg.Store.Driver = getEnv("KESTREL_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.SQLitePath = getEnv("KESTREL_SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.PostgresHost = getEnv("KESTREL_POSTGRES_HOST", cfg.Store.PostgresHost)
	cfg.Store.PostgresPort = getEnvInt("KESTREL_POSTGRES_PORT", cfg.Store.PostgresPort)
	cfg.Store.PostgresUser = getEnv("KESTREL_POSTGRES_USER", cfg.Store.PostgresUser)
	cfg.Store.PostgresPassword = getEnv("KESTREL_POSTGRES_PASSWORD", cfg.Store.PostgresPassword)
	cfg.Store.PostgresDB = getEnv("KESTREL_POSTGRES_DB", cfg.Store.PostgresDB)
	cfg.Store.PostgresSSLMode = getEnv("KESTREL_POSTGRES_SSLMODE", cfg.Store.PostgresSSLMode)

	// Cache
	cfg.Cache.Type = getEnv("KESTREL_CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = getEnv("KESTREL_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("KESTREL_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = getEnvInt("KESTREL_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.LocalMaxSize = getEnvInt("KESTREL_CACHE_MAX_SIZE", cfg.Cache.LocalMaxSize)

	// Bus
	cfg.Bus.Type = getEnv("KESTREL_BUS_TYPE", cfg.Bus.Type)
	cfg.Bus.NATSUrl = getEnv("KESTREL_NATS_URL", cfg.Bus.NATSUrl)
	cfg.Bus.NATSToken = getEnv("KESTREL_NATS_TOKEN", cfg.Bus.NATSToken)

	// Engine
	cfg.Engine.AsyncWorker = getEnvBool("KESTREL_ASYNC_WORKER", cfg.Engine.AsyncWorker)
	if v := getEnvInt("KESTREL_WINDOW_SIZE", 0); v > 0 {
		cfg.Engine.WindowSize = v
	}
	if v := getEnvInt("KESTREL_WINDOW_SPAN_MINUTES", 0); v > 0 {
		cfg.Engine.WindowSpan = time.Duration(v) * time.Minute
	}

	// Observability
	cfg.Logging.Level = getEnv("KESTREL_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("KESTREL_LOG_FORMAT", cfg.Logging.Format)
	cfg.Tracing.Enabled = getEnvBool("KESTREL_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = getEnv("KESTREL_SERVICE_NAME", cfg.Tracing.ServiceName)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFactorRules reads custom factor rules from KESTREL_FACTOR_RULES
// (inline JSON array) or KESTREL_FACTOR_RULES_FILE (path to a JSON file).
// Returns nil when neither is set.
func LoadFactorRules() ([]factors.FactorRule, error) {
	raw := os.Getenv("KESTREL_FACTOR_RULES")
	if raw == "" {
		path := os.Getenv("KESTREL_FACTOR_RULES_FILE")
		if path == "" {
			return nil, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read factor rules file: %w", err)
		}
		raw = string(data)
	}

	var rules []factors.FactorRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("parse factor rules: %w", err)
	}
	return rules, nil
}

func validate(cfg *domain.Config) error {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	switch cfg.Cache.Type {
	case "memory", "redis", "two-phase":
	default:
		return fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
	switch cfg.Bus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unknown bus type %q", cfg.Bus.Type)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
