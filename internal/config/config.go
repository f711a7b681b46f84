package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the errtrack server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Report    ReportConfig
	Retention RetentionConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig is optional. An empty URL disables stats caching and rate
// limiting.
type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the bearer key accepted by the API.
	APIKeyHash      string
	RateLimitPerMin int
}

type ReportConfig struct {
	StatsCacheTTL time.Duration
}

type RetentionConfig struct {
	Days     int
	Schedule string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ERRTRACK_PORT", 8080),
			Env:  envString("ERRTRACK_ENV", "development"),
		},
		Database: LoadDatabase(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			APIKeyHash:      os.Getenv("API_KEY_HASH"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Report: ReportConfig{
			StatsCacheTTL: envDuration("STATS_CACHE_TTL", 30*time.Second),
		},
		Retention: RetentionConfig{
			Days:     envInt("RETENTION_DAYS", 30),
			Schedule: envString("RETENTION_SCHEDULE", "@daily"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the storage settings. The CLI uses it so that it
// does not require server-only values such as API_KEY_HASH.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Driver:          strings.ToLower(envString("STORE_DRIVER", DriverPostgres)),
		URL:             os.Getenv("DATABASE_URL"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("ERRTRACK_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Auth.APIKeyHash == "" {
		return fmt.Errorf("API_KEY_HASH is required")
	}
	if !strings.HasPrefix(c.Auth.APIKeyHash, "$2") {
		return fmt.Errorf("API_KEY_HASH must be a bcrypt hash")
	}
	if c.Auth.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", c.Auth.RateLimitPerMin)
	}

	if c.Report.StatsCacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL must not be negative, got %s", c.Report.StatsCacheTTL)
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("RETENTION_DAYS must not be negative, got %d", c.Retention.Days)
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("RETENTION_SCHEDULE is invalid: %w", err)
	}

	return nil
}

// Validate checks the storage settings for the selected driver.
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverPostgres:
		if d.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
		if d.MigrationsDir == "" {
			return fmt.Errorf("MIGRATIONS_DIR is required when STORE_DRIVER is postgres")
		}
	case DriverSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite; got %q", d.Driver)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
