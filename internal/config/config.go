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

	"github.com/google/uuid"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus backend selection.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment  string
	CommandBind  string // Raw TCP show-control listener (e.g. 127.0.0.1:5556)
	StatusBind   string // HTTP status/metrics server
	MediaRoot    string
	PlaylistPath string // Playlist autoloaded at startup and saved on change; empty disables both

	// Event bus fan-out
	EventBus      EventBusBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string

	// Play history persistence
	HistoryEnabled bool
	DBBackend      DatabaseBackend
	DBDSN          string

	InstanceID string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Engine timing overrides, all in milliseconds
	NaturalFadeMS  int
	HaltFadeMS     int
	PositionPollMS int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  getEnv("CUEPLAY_ENV", "development"),
		CommandBind:  getEnv("CUEPLAY_COMMAND_BIND", "127.0.0.1:5556"),
		StatusBind:   getEnv("CUEPLAY_STATUS_BIND", "127.0.0.1:8356"),
		MediaRoot:    getEnv("CUEPLAY_MEDIA_ROOT", "."),
		PlaylistPath: getEnv("CUEPLAY_PLAYLIST_PATH", ""),

		EventBus:      EventBusBackend(getEnv("CUEPLAY_EVENT_BUS", string(EventBusMemory))),
		RedisAddr:     getEnv("CUEPLAY_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("CUEPLAY_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("CUEPLAY_REDIS_DB", 0),
		NATSURL:       getEnv("CUEPLAY_NATS_URL", "nats://localhost:4222"),

		HistoryEnabled: getEnvBool("CUEPLAY_HISTORY_ENABLED", true),
		DBBackend:      DatabaseBackend(getEnv("CUEPLAY_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:          getEnv("CUEPLAY_DB_DSN", "cueplay.db"),

		InstanceID: getEnv("CUEPLAY_INSTANCE_ID", ""),

		TracingEnabled:    getEnvBool("CUEPLAY_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("CUEPLAY_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("CUEPLAY_TRACING_SAMPLE_RATE", 1.0),

		NaturalFadeMS:  getEnvInt("CUEPLAY_NATURAL_FADE_MS", 500),
		HaltFadeMS:     getEnvInt("CUEPLAY_HALT_FADE_MS", 1000),
		PositionPollMS: getEnvInt("CUEPLAY_POSITION_POLL_MS", 10),
	}

	if cfg.EventBus != EventBusMemory && cfg.EventBus != EventBusRedis && cfg.EventBus != EventBusNATS {
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBus)
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.HistoryEnabled && cfg.DBDSN == "" {
		return nil, fmt.Errorf("CUEPLAY_DB_DSN must be provided when history is enabled")
	}

	if cfg.NaturalFadeMS <= 0 || cfg.HaltFadeMS <= 0 || cfg.PositionPollMS <= 0 {
		return nil, fmt.Errorf("fade and poll intervals must be positive milliseconds")
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
	}

	return cfg, nil
}

// NaturalFade returns the end-of-song fade duration.
func (c *Config) NaturalFade() time.Duration {
	return time.Duration(c.NaturalFadeMS) * time.Millisecond
}

// HaltFade returns the operator halt fade duration.
func (c *Config) HaltFade() time.Duration {
	return time.Duration(c.HaltFadeMS) * time.Millisecond
}

// PositionPoll returns the preview position poll interval.
func (c *Config) PositionPoll() time.Duration {
	return time.Duration(c.PositionPollMS) * time.Millisecond
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "cueplay"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
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
