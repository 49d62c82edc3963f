// Package config provides application configuration loading from environment
// variables and .env files. It uses viper for flexible configuration
// management with sensible defaults.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment
// variables or a .env file. Priority: environment > .env > defaults.
type Config struct {
	AppEnv         string // Application environment (dev, staging, prod)
	HTTPAddr       string // HTTP server bind address (e.g., ":8080")
	MetricsAddr    string // Metrics server bind address
	AdminAPIKey    string // Admin API key for write operations
	StoreType      string // Storage backend type (memory, file or postgres)
	StorePath      string // File path for the file storage backend
	DatabaseDSN    string // PostgreSQL connection string
	FlagFile       string // Optional JSON flag document to load and watch
	EvalSalt       string // Salt for deterministic bucketing
	RateLimitPerIP int    // Rate limit for requests per IP

	evalSaltGenerated bool // tracks if the salt was auto-generated
}

const (
	saltByteSize        = 16 // 16 bytes = 128 bits of entropy
	defaultSaltFallback = "default-random-salt"
	evalSaltWarningMsg  = "WARNING: EVAL_SALT not configured. Generated random salt: %s. Bucket assignments will change on restart. Set EVAL_SALT in production for consistent rollout behavior."
)

// generateRandomSalt creates a cryptographically secure random 16-byte
// hex-encoded salt. Returns a fallback value if random generation fails.
func generateRandomSalt() string {
	bytes := make([]byte, saltByteSize)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("ERROR: Failed to generate random salt: %v. Using fallback.", err)
		return defaultSaltFallback
	}
	return hex.EncodeToString(bytes)
}

// Load reads configuration from environment variables and an optional .env
// file. Environment variables take precedence. Use Validate() afterwards to
// check production-readiness constraints.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()    // Ignore error - .env is optional
	v.AutomaticEnv()

	setConfigDefaults(v)
	salt, generated := getOrGenerateSalt(v)

	return &Config{
		AppEnv:            v.GetString("APP_ENV"),
		HTTPAddr:          v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:       v.GetString("METRICS_ADDR"),
		AdminAPIKey:       v.GetString("ADMIN_API_KEY"),
		StoreType:         v.GetString("STORE_TYPE"),
		StorePath:         v.GetString("STORE_PATH"),
		DatabaseDSN:       v.GetString("DB_DSN"),
		FlagFile:          v.GetString("FLAG_FILE"),
		EvalSalt:          salt,
		RateLimitPerIP:    v.GetInt("RATE_LIMIT_PER_IP"),
		evalSaltGenerated: generated,
	}, nil
}

// setConfigDefaults sets defaults suitable for local development.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("ADMIN_API_KEY", "admin-123") // Change in production!
	v.SetDefault("STORE_TYPE", "memory")
	v.SetDefault("STORE_PATH", "flagdeck.json")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("FLAG_FILE", "")
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
}

// getOrGenerateSalt retrieves EVAL_SALT or generates a random one, logging a
// warning since auto-generated salts break bucket stability across restarts.
func getOrGenerateSalt(v *viper.Viper) (string, bool) {
	salt := v.GetString("EVAL_SALT")
	if salt == "" {
		salt = generateRandomSalt()
		log.Printf(evalSaltWarningMsg, salt)
		return salt, true
	}
	return salt, false
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration is suitable for use. Intended to be
// called at startup to fail fast on misconfiguration. In production
// (APP_ENV=prod) the default admin key and auto-generated salts are rejected.
func (c *Config) Validate() error {
	switch c.StoreType {
	case "memory", "file", "postgres":
	default:
		return ValidationError{
			Field:   "STORE_TYPE",
			Message: fmt.Sprintf("must be 'memory', 'file' or 'postgres', got '%s'", c.StoreType),
		}
	}

	if c.StoreType == "postgres" && c.DatabaseDSN == "" {
		return ValidationError{
			Field:   "DB_DSN",
			Message: "database DSN is required when STORE_TYPE=postgres",
		}
	}
	if c.StoreType == "file" && c.StorePath == "" {
		return ValidationError{
			Field:   "STORE_PATH",
			Message: "store path is required when STORE_TYPE=file",
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}
	if c.MetricsAddr == "" {
		return ValidationError{
			Field:   "METRICS_ADDR",
			Message: "metrics server address cannot be empty",
		}
	}
	if c.EvalSalt == "" {
		return ValidationError{
			Field:   "EVAL_SALT",
			Message: "evaluation salt cannot be empty (required for consistent bucketing)",
		}
	}

	if c.AppEnv == "prod" || c.AppEnv == "production" {
		if c.AdminAPIKey == "admin-123" {
			return ValidationError{
				Field:   "ADMIN_API_KEY",
				Message: "default admin API key 'admin-123' is not allowed in production",
			}
		}
		if c.evalSaltGenerated {
			return ValidationError{
				Field:   "EVAL_SALT",
				Message: "evaluation salt must be explicitly configured in production (not auto-generated). Set EVAL_SALT environment variable.",
			}
		}
	}

	return nil
}
