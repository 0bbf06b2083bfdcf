// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Broadcast BroadcastConfig
	Sim       SimConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BroadcastConfig holds observer fan-out configuration.
type BroadcastConfig struct {
	SendBuffer     int `envconfig:"WS_SEND_BUFFER" default:"64"`
	SnapshotEvents int `envconfig:"WS_SNAPSHOT_EVENTS" default:"100"`
	TopProcesses   int `envconfig:"STATS_TOP_PROCESSES" default:"5"`
}

// SimConfig holds the sample traffic generator configuration.
type SimConfig struct {
	Enabled  bool          `envconfig:"SIM_ENABLED" default:"false"`
	Interval time.Duration `envconfig:"SIM_INTERVAL" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Broadcast: BroadcastConfig{
			SendBuffer:     64,
			SnapshotEvents: 100,
			TopProcesses:   5,
		},
		Sim: SimConfig{
			Interval: 2 * time.Second,
		},
	}
}
