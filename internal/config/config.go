package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP API (Fiber)
	APIListenAddr      string        `envconfig:"API_LISTEN_ADDR" default:":8080"`
	CORSOrigins        string        `envconfig:"CORS_ORIGINS"`
	RateLimitRPS       int           `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst     int           `envconfig:"RATE_LIMIT_BURST" default:"200"`
	RateLimitIdleTTL   time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"10m"`
	RateLimitSweepEach time.Duration `envconfig:"RATE_LIMIT_SWEEP_INTERVAL" default:"5m"`

	// WebSocket / probes server (net/http)
	WSListenAddr string `envconfig:"WS_LISTEN_ADDR" default:":8081"`

	// Persistence
	DBPath string `envconfig:"DB_PATH" default:"livetrack.db"`

	// Event bus delivery
	SubscriberQueueSize int           `envconfig:"SUBSCRIBER_QUEUE_SIZE" default:"64"`
	SendTimeout         time.Duration `envconfig:"SEND_TIMEOUT" default:"5s"`

	// Simulator
	SimulatorStepInterval time.Duration `envconfig:"SIMULATOR_STEP_INTERVAL" default:"200ms"`
	SimulatorFileInterval time.Duration `envconfig:"SIMULATOR_FILE_INTERVAL" default:"50ms"`
}

// Development returns true when running in the development environment.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
