package config

import (
	"testing"
	"time"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("TOKEN_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("unexpected default redis url: %s", cfg.RedisURL)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("expected 24h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.RateLimitRPM != 10 {
		t.Errorf("expected default rate limit 10, got %d", cfg.RateLimitRPM)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("MOOD_LOG_CAP", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("expected 1h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.MoodLogCap != 50 {
		t.Errorf("expected mood cap 50, got %d", cfg.MoodLogCap)
	}
}
