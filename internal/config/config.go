// Package config loads the server-level ambient configuration: listen
// port, CORS origins, JWT secret, token lifetimes, and the Redis/geoip
// connection strings. Risk-scoring policy (thresholds, prefix lists, ASN
// list) is resolved separately by internal/policy.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds the application's ambient configuration.
// AccessTokenTTLMin and RefreshTokenTTLHour are loaded and printed in the
// startup banner only; internal/stepup mints tokens with its own fixed
// lifetimes and does not read them.
type Config struct {
	Port                string
	AllowedOrigins      []string
	JWTSecret           string
	AccessTokenTTLMin   int
	RefreshTokenTTLHour int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	port := getEnv("PORT", "8081")

	validateRequiredEnvVars()

	accessTTL := 15
	if v := os.Getenv("ACCESS_TOKEN_TTL_MIN"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			accessTTL = i
		}
	}
	refreshTTL := 7 * 24
	if v := os.Getenv("REFRESH_TOKEN_TTL_HOUR"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			refreshTTL = i
		}
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			redisDB = i
		}
	}

	config := &Config{
		Port:                port,
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTokenTTLMin:   accessTTL,
		RefreshTokenTTLHour: refreshTTL,
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             redisDB,
	}

	log.Printf("🔧 Configuration loaded:")
	log.Printf("   Port: %s", config.Port)
	log.Printf("   Allowed Origins: %v", config.AllowedOrigins)
	log.Printf("   JWT Access TTL (min): %d", config.AccessTokenTTLMin)
	log.Printf("   JWT Refresh TTL (h): %d", config.RefreshTokenTTLHour)
	log.Printf("   Redis: %s (db %d)", config.RedisAddr, config.RedisDB)

	return config
}

func validateRequiredEnvVars() {
	if os.Getenv("PORT") == "" {
		return // local development, skip platform-production validation
	}

	required := []string{"JWT_SECRET"}
	missing := []string{}
	for _, env := range required {
		if os.Getenv(env) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		log.Printf("⚠️ Warning: Missing required environment variables: %v", missing)
	}

	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DB_TYPE") == "" {
		log.Printf("⚠️ Warning: No database configuration found. Will use SQLite fallback.")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	return nil
}
