package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Overlay  OverlayConfig
	Payment  PaymentConfig
	Pricing  PricingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration. The sqlite driver keeps
// local development dependency-free; postgres is for deployments.
type DatabaseConfig struct {
	Driver   string // sqlite or postgres
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the postgres connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration. Optional: an empty URL disables
// the idempotency and price caches.
type RedisConfig struct {
	URL      string
	Password string
}

// OverlayConfig holds the display overlay callback target
type OverlayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PaymentConfig holds payment request lifecycle timing
type PaymentConfig struct {
	Timeout         time.Duration
	GracePeriod     time.Duration
	MonitorInterval time.Duration
	MonitorBackoff  time.Duration
}

// PricingConfig holds the USD quote source
type PricingConfig struct {
	Endpoint string
	CacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "stream_donate.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "streamdonate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Overlay: OverlayConfig{
			BaseURL: getEnv("OVERLAY_BASE_URL", "http://localhost:9400"),
			Timeout: getEnvAsDuration("OVERLAY_TIMEOUT", 5*time.Second),
		},
		Payment: PaymentConfig{
			Timeout:         getEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Minute),
			GracePeriod:     getEnvAsDuration("PAYMENT_GRACE_PERIOD", 5*time.Minute),
			MonitorInterval: getEnvAsDuration("MONITOR_INTERVAL", 30*time.Second),
			MonitorBackoff:  getEnvAsDuration("MONITOR_BACKOFF", 5*time.Second),
		},
		Pricing: PricingConfig{
			Endpoint: getEnv("PRICE_ENDPOINT", ""),
			CacheTTL: getEnvAsDuration("PRICE_CACHE_TTL", time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
