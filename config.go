package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the listing service.
type Config struct {
	Port        string
	PiAPIKey    string
	PiAPIURL    string
	RedisURL    string
	ListingTTL  time.Duration
	SweepPeriod time.Duration
	// Grant 0.1 Pi to first-time registrations.
	WelcomeCredit bool
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		PiAPIKey:      os.Getenv("PI_API_KEY"),
		PiAPIURL:      getEnv("PI_API_URL", "https://api.minepi.com/v2"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		ListingTTL:    getEnvDuration("LISTING_TTL_DAYS", 30) * 24 * time.Hour,
		SweepPeriod:   getEnvDuration("SWEEP_PERIOD_HOURS", 24) * time.Hour,
		WelcomeCredit: os.Getenv("WELCOME_CREDIT_ENABLED") == "true",
	}

	if cfg.PiAPIKey == "" {
		return nil, fmt.Errorf("PI_API_KEY not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback int64) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}
