// Package config reads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the api binary needs to start.
type Config struct {
	Port string

	// RedisURL selects the primary store backend. When MongoURI is set it
	// takes over document storage and broadcast falls back to the
	// in-process hub.
	RedisURL string
	MongoURI string

	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap administrator, created on first run only.
	AdminID       string
	AdminName     string
	AdminPassword string

	MoodLogCap   int
	RateLimitRPM int

	// AI chat boundary; an empty key disables the upstream call and the
	// assistant answers with its fallback string.
	AIAPIKey  string
	AIBaseURL string
	AIModel   string
}

// Load reads the configuration. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTL:      24 * time.Hour,
		AdminID:       getenv("ADMIN_ID", "ADMIN01"),
		AdminName:     getenv("ADMIN_NAME", "System Administrator"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		MoodLogCap:    getint("MOOD_LOG_CAP", 0),
		RateLimitRPM:  getint("RATE_LIMIT_RPM", 10),
		AIAPIKey:      os.Getenv("AI_API_KEY"),
		AIBaseURL:     os.Getenv("AI_BASE_URL"),
		AIModel:       os.Getenv("AI_MODEL"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
