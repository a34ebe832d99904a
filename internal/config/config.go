package config

import (
	"os"
	"strconv"
	"time"
)

// InsecureDefaultSecret is the placeholder signing secret shipped in dev
// configs. Token issuance refuses to start with it in production.
const InsecureDefaultSecret = "dev-secret-change-me"

// Config holds all service configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Lockout     LockoutConfig
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// LockoutConfig holds brute-force lockout configuration
type LockoutConfig struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "aac_security"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", InsecureDefaultSecret),
			AccessTokenExpiry:  getDurationEnv("JWT_ACCESS_EXPIRY_MINUTES", 120*time.Minute),
			RefreshTokenExpiry: getDurationEnv("JWT_REFRESH_EXPIRY_MINUTES", 7*24*time.Hour),
		},
		Lockout: LockoutConfig{
			MaxAttempts:     getIntEnv("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:          getDurationEnv("LOCKOUT_WINDOW_MINUTES", 60*time.Minute),
			LockoutDuration: getDurationEnv("LOCKOUT_DURATION_MINUTES", 15*time.Minute),
		},
		Environment: getEnv("APP_ENV", "development"),
	}
}

// IsProduction reports whether the deployment is flagged production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns a positive integer from environment variable or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv returns a duration in minutes from environment variable or default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
