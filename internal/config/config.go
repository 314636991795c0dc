package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the FileBroker API.
type Config struct {
	ServerID string
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	Sweep    SweepConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisConfig contains connection details for the upload token store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config carries S3 connection details used when instance secrets do not
// override provider credentials.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// SweepConfig controls the background expiry sweeper.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		ServerID: getString("FILEBROKER_SERVER_ID", "filebroker-1"),
		Server: ServerConfig{
			Host:         getString("FILEBROKER_API_HOST", "0.0.0.0"),
			Port:         getInt("FILEBROKER_API_PORT", 8080),
			ReadTimeout:  getDuration("FILEBROKER_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("FILEBROKER_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("FILEBROKER_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:            getString("POSTGRES_HOST", "localhost"),
			Port:            getInt("POSTGRES_PORT", 5432),
			User:            getString("POSTGRES_USER", "filebroker_app"),
			Password:        getString("POSTGRES_PASSWORD", "change-me"),
			Database:        getString("POSTGRES_DB", "filebroker"),
			SSLMode:         strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			MaxConns:        getInt("POSTGRES_MAX_CONNS", 10),
			MinConns:        getInt("POSTGRES_MIN_CONNS", 2),
			MaxConnLifetime: getDuration("POSTGRES_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", "localhost:6379"),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Endpoint:        getString("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("S3_ACCESS_KEY", "filebroker"),
			SecretAccessKey: getString("S3_SECRET_KEY", "change-me-strong-password"),
			Bucket:          getString("S3_BUCKET", "filebroker"),
			UseSSL:          getBool("S3_USE_SSL", false),
			Region:          getString("S3_REGION", ""),
		},
		Sweep: SweepConfig{
			Enabled:  getBool("FILEBROKER_SWEEP_ENABLED", false),
			Interval: getDuration("FILEBROKER_SWEEP_INTERVAL", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("FILEBROKER_METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
