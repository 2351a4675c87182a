/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	JWTSigningKey   string
	APIPasswordHash string // bcrypt hash accepted by the login endpoint

	// Trigger engine
	CheckerInterval      time.Duration // background checker poll interval
	DedupTTL             time.Duration // (alarm, minute) registry entry lifetime
	DefaultSnoozeMinutes int
	KeepAliveEnabled     bool

	// Stream playback
	StreamMonitorInterval time.Duration
	GStreamerBin          string

	// Playlist playback retry policy. Empirically tuned; kept configurable.
	PlaylistRetryAttempts  int
	PlaylistRetryBaseDelay time.Duration

	// Music service (external playlist provider)
	MusicAPIBaseURL string

	// De-duplication registry backend; empty addr means in-memory only
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Multi-device event relay
	NATSEnabled bool
	NATSURL     string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("HEIMDALL_ENV", "development"),
		HTTPBind:    getEnv("HEIMDALL_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("HEIMDALL_HTTP_PORT", 8090),
		DBBackend:   DatabaseBackend(getEnv("HEIMDALL_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("HEIMDALL_DB_DSN", ""),
		MetricsBind: getEnv("HEIMDALL_METRICS_BIND", "127.0.0.1:9100"),

		JWTSigningKey:   getEnv("HEIMDALL_JWT_SIGNING_KEY", ""),
		APIPasswordHash: getEnv("HEIMDALL_API_PASSWORD_HASH", ""),

		CheckerInterval:      getEnvDuration("HEIMDALL_CHECKER_INTERVAL", 30*time.Second),
		DedupTTL:             getEnvDuration("HEIMDALL_DEDUP_TTL", time.Minute),
		DefaultSnoozeMinutes: getEnvInt("HEIMDALL_DEFAULT_SNOOZE_MINUTES", 5),
		KeepAliveEnabled:     getEnvBool("HEIMDALL_KEEPALIVE_ENABLED", true),

		StreamMonitorInterval: getEnvDuration("HEIMDALL_STREAM_MONITOR_INTERVAL", 5*time.Second),
		GStreamerBin:          getEnv("HEIMDALL_GSTREAMER_BIN", "gst-launch-1.0"),

		PlaylistRetryAttempts:  getEnvInt("HEIMDALL_PLAYLIST_RETRY_ATTEMPTS", 3),
		PlaylistRetryBaseDelay: getEnvDuration("HEIMDALL_PLAYLIST_RETRY_BASE_DELAY", 2*time.Second),

		MusicAPIBaseURL: getEnv("HEIMDALL_MUSIC_API_BASE_URL", "https://api.spotify.com"),

		RedisAddr:     getEnv("HEIMDALL_REDIS_ADDR", ""),
		RedisPassword: getEnv("HEIMDALL_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("HEIMDALL_REDIS_DB", 0),

		NATSEnabled: getEnvBool("HEIMDALL_NATS_ENABLED", false),
		NATSURL:     getEnv("HEIMDALL_NATS_URL", "nats://localhost:4222"),

		TracingEnabled:    getEnvBool("HEIMDALL_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("HEIMDALL_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("HEIMDALL_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend == DatabaseSQLite {
			cfg.DBDSN = "heimdall.db"
		} else {
			return nil, fmt.Errorf("HEIMDALL_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("HEIMDALL_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.APIPasswordHash == "" {
		return nil, fmt.Errorf("HEIMDALL_API_PASSWORD_HASH must be set in production")
	}

	if cfg.CheckerInterval <= 0 {
		return nil, fmt.Errorf("HEIMDALL_CHECKER_INTERVAL must be positive")
	}

	if cfg.PlaylistRetryAttempts < 1 {
		cfg.PlaylistRetryAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
