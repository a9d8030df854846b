// Package roomconfig loads and validates process configuration from the
// environment, the way the server this was generalized from does.
package roomconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all process configuration, read from environment variables
// (with an optional .env file providing local-dev defaults).
type Config struct {
	// Server basics
	Addr          string `env:"ROOM_ADDR" envDefault:":3002"`
	KafkaBrokers  string `env:"KAFKA_BROKERS" envDefault:"localhost:19092"`
	ConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" envDefault:"roomsync-group"`
	IngestTopic   string `env:"KAFKA_INGEST_TOPIC" envDefault:"room-mutations"`

	// Persistence
	NATSURL       string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	PersistBucket string `env:"NATS_KV_BUCKET" envDefault:"roomsync-rooms"`

	// Resource limits (from container)
	CPULimit    float64 `env:"ROOM_CPU_LIMIT" envDefault:"1.0"`
	MemoryLimit int64   `env:"ROOM_MEMORY_LIMIT" envDefault:"536870912"` // 512MB

	// Capacity
	MaxConnections int `env:"ROOM_MAX_CONNECTIONS" envDefault:"500"`

	// Rate limiting
	MaxIngestRate int `env:"ROOM_MAX_INGEST_RATE" envDefault:"1000"` // Kafka messages/sec fed into Load
	MaxSyncRate   int `env:"ROOM_MAX_SYNC_RATE" envDefault:"20"`     // onSync flushes/sec, per room, via roomkit.Throttle
	MaxGoroutines int `env:"ROOM_MAX_GOROUTINES" envDefault:"1000"`

	// CPU safety thresholds (container-aware, see internal/roomguard)
	CPURejectThreshold float64 `env:"ROOM_CPU_REJECT_THRESHOLD" envDefault:"75.0"` // reject new connections above this %
	CPUPauseThreshold  float64 `env:"ROOM_CPU_PAUSE_THRESHOLD" envDefault:"80.0"`  // pause Kafka ingestion above this %

	// Monitoring
	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it. Priority: env vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("roomconfig: parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("roomconfig: validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ROOM_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("ROOM_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("ROOM_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.CPUPauseThreshold < 0 || c.CPUPauseThreshold > 100 {
		return fmt.Errorf("ROOM_CPU_PAUSE_THRESHOLD must be 0-100, got %.1f", c.CPUPauseThreshold)
	}
	if c.CPUPauseThreshold < c.CPURejectThreshold {
		return fmt.Errorf("ROOM_CPU_PAUSE_THRESHOLD (%.1f) must be >= ROOM_CPU_REJECT_THRESHOLD (%.1f)",
			c.CPUPauseThreshold, c.CPURejectThreshold)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// Print writes a human-readable dump of the configuration to stdout, for
// local debugging. Use LogConfig in production.
func (c *Config) Print() {
	fmt.Println("=== Room Server Configuration ===")
	fmt.Printf("Environment:     %s\n", c.Environment)
	fmt.Printf("Address:         %s\n", c.Addr)
	fmt.Printf("Kafka Brokers:   %s\n", c.KafkaBrokers)
	fmt.Printf("Consumer Group:  %s\n", c.ConsumerGroup)
	fmt.Printf("Ingest Topic:    %s\n", c.IngestTopic)
	fmt.Printf("NATS URL:        %s\n", c.NATSURL)
	fmt.Printf("Persist Bucket:  %s\n", c.PersistBucket)
	fmt.Println("\n=== Resource Limits ===")
	fmt.Printf("CPU Limit:       %.1f cores\n", c.CPULimit)
	fmt.Printf("Memory Limit:    %d MB\n", c.MemoryLimit/(1024*1024))
	fmt.Printf("Max Connections: %d\n", c.MaxConnections)
	fmt.Println("\n=== Rate Limits ===")
	fmt.Printf("Ingest:          %d/sec\n", c.MaxIngestRate)
	fmt.Printf("Sync Flushes:    %d/sec\n", c.MaxSyncRate)
	fmt.Printf("Max Goroutines:  %d\n", c.MaxGoroutines)
	fmt.Println("\n=== Safety Thresholds ===")
	fmt.Printf("CPU Reject:      %.1f%%\n", c.CPURejectThreshold)
	fmt.Printf("CPU Pause:       %.1f%%\n", c.CPUPauseThreshold)
	fmt.Println("\n=== Logging ===")
	fmt.Printf("Level:           %s\n", c.LogLevel)
	fmt.Printf("Format:          %s\n", c.LogFormat)
	fmt.Println("==================================")
}

// LogConfig emits the configuration as one structured log event.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("kafka_brokers", c.KafkaBrokers).
		Str("consumer_group", c.ConsumerGroup).
		Str("ingest_topic", c.IngestTopic).
		Str("nats_url", c.NATSURL).
		Str("persist_bucket", c.PersistBucket).
		Float64("cpu_limit", c.CPULimit).
		Int64("memory_limit_mb", c.MemoryLimit/(1024*1024)).
		Int("max_connections", c.MaxConnections).
		Int("max_ingest_rate", c.MaxIngestRate).
		Int("max_sync_rate", c.MaxSyncRate).
		Int("max_goroutines", c.MaxGoroutines).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("cpu_pause_threshold", c.CPUPauseThreshold).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("room server configuration loaded")
}
