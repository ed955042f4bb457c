package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultAddr          = ":8080"
	DefaultPublicURL     = "http://localhost:8080"
	DefaultRoomTTL       = 24 * time.Hour
	DefaultSweepInterval = time.Minute
	DefaultCORSAllow     = "*"
)

// Config holds application configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// PublicURL is the externally reachable base URL, used to build
	// /receive share links.
	PublicURL string

	// RoomTTL is how long a room stays joinable after creation.
	RoomTTL time.Duration

	// SweepInterval is how often expired rooms are evicted.
	SweepInterval time.Duration

	// CORSAllow is the origin allowlist for the HTTP surface.
	CORSAllow []string

	// LogLevel and LogJSON control the process logger.
	LogLevel string
	LogJSON  bool
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Addr          string
	PublicURL     string
	RoomTTL       time.Duration
	SweepInterval time.Duration
	CORSAllow     string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Addr:          firstOf(opts.Addr, os.Getenv("HTTP_ADDR"), DefaultAddr),
		PublicURL:     strings.TrimRight(firstOf(opts.PublicURL, os.Getenv("PUBLIC_URL"), DefaultPublicURL), "/"),
		RoomTTL:       DefaultRoomTTL,
		SweepInterval: DefaultSweepInterval,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       getEnv("LOG_FORMAT", "text") == "json",
	}

	var err error
	if cfg.RoomTTL, err = durationOf(opts.RoomTTL, "ROOM_TTL", DefaultRoomTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationOf(opts.SweepInterval, "SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}

	cfg.CORSAllow = splitCSV(firstOf(opts.CORSAllow, os.Getenv("CORS_ALLOW"), DefaultCORSAllow))
	return cfg, nil
}

// firstOf returns the first non-empty value.
func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnv returns the env var or a default.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// durationOf resolves a duration with flag > env > default priority.
func durationOf(flag time.Duration, envKey string, def time.Duration) (time.Duration, error) {
	if flag > 0 {
		return flag, nil
	}
	if v := os.Getenv(envKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", envKey, err)
		}
		return d, nil
	}
	return def, nil
}

// splitCSV trims and filters a comma-separated list.
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
