package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Tone      ToneConfig      `yaml:"tone"`
	NATS      NATSConfig      `yaml:"nats"`
	Map       MapConfig       `yaml:"map"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LedgerConfig struct {
	Capacity   int    `yaml:"capacity"` // 0 keeps every alert
	AssignIDs  bool   `yaml:"assign_ids"`
	Strict     bool   `yaml:"strict"`
	TimeFormat string `yaml:"time_format"`
}

type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Workers    int    `yaml:"workers"`
	BufferSize int    `yaml:"buffer_size"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type RateLimitConfig struct {
	IngestRPS int `yaml:"ingest_rps"` // 0 disables
}

type WatcherConfig struct {
	BaseURL        string        `yaml:"base_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DeltaPolicy    string        `yaml:"delta_policy"`
	Filter         string        `yaml:"filter"`
	PlayerCommand  string        `yaml:"player_command"`
}

type ToneConfig struct {
	Frequency float64       `yaml:"frequency"`
	Duration  time.Duration `yaml:"duration"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MapConfig struct {
	CenterLat float64 `yaml:"center_lat" json:"center_lat"`
	CenterLng float64 `yaml:"center_lng" json:"center_lng"`
	Zoom      int     `yaml:"zoom" json:"zoom"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "localhost", Port: 5000},
		GRPC:   GRPCConfig{Enabled: true, Port: 50051},
		Ledger: LedgerConfig{TimeFormat: "15:04:05"},
		Archive: ArchiveConfig{
			Driver:     "sqlite",
			DSN:        "./data/accident-alerts.db",
			Workers:    2,
			BufferSize: 100,
		},
		Kafka:     KafkaConfig{Topic: "accident-alerts", GroupID: "accident-ledger"},
		Watcher: WatcherConfig{
			BaseURL:        "http://localhost:5000",
			PollInterval:   2 * time.Second,
			RequestTimeout: 5 * time.Second,
			DeltaPolicy:    "tail",
			Filter:         "All",
		},
		Tone:    ToneConfig{Frequency: 800, Duration: 800 * time.Millisecond},
		NATS:    NATSConfig{URL: "nats://localhost:4222", Subject: "accidents.escalations"},
		Map:     MapConfig{CenterLat: 12.9716, CenterLng: 77.5946, Zoom: 14},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error decoding config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)

	c.GRPC.Enabled = getEnvBool("GRPC_ENABLED", c.GRPC.Enabled)
	c.GRPC.Port = getEnvInt("GRPC_PORT", c.GRPC.Port)

	c.Ledger.Capacity = getEnvInt("LEDGER_CAPACITY", c.Ledger.Capacity)
	c.Ledger.AssignIDs = getEnvBool("LEDGER_ASSIGN_IDS", c.Ledger.AssignIDs)
	c.Ledger.Strict = getEnvBool("LEDGER_STRICT", c.Ledger.Strict)
	c.Ledger.TimeFormat = getEnv("LEDGER_TIME_FORMAT", c.Ledger.TimeFormat)

	c.Archive.Enabled = getEnvBool("ARCHIVE_ENABLED", c.Archive.Enabled)
	c.Archive.Driver = getEnv("ARCHIVE_DRIVER", c.Archive.Driver)
	c.Archive.DSN = getEnv("ARCHIVE_DSN", c.Archive.DSN)
	c.Archive.Workers = getEnvInt("ARCHIVE_WORKERS", c.Archive.Workers)
	c.Archive.BufferSize = getEnvInt("ARCHIVE_BUFFER_SIZE", c.Archive.BufferSize)

	c.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.RateLimit.IngestRPS = getEnvInt("INGEST_RATE_LIMIT", c.RateLimit.IngestRPS)

	c.Watcher.BaseURL = getEnv("WATCH_BASE_URL", c.Watcher.BaseURL)
	c.Watcher.PollInterval = getEnvDuration("WATCH_POLL_INTERVAL", c.Watcher.PollInterval)
	c.Watcher.RequestTimeout = getEnvDuration("WATCH_REQUEST_TIMEOUT", c.Watcher.RequestTimeout)
	c.Watcher.DeltaPolicy = getEnv("WATCH_DELTA_POLICY", c.Watcher.DeltaPolicy)
	c.Watcher.Filter = getEnv("WATCH_FILTER", c.Watcher.Filter)
	c.Watcher.PlayerCommand = getEnv("WATCH_PLAYER_COMMAND", c.Watcher.PlayerCommand)

	c.Tone.Frequency = getEnvFloat("TONE_FREQUENCY", c.Tone.Frequency)
	c.Tone.Duration = getEnvDuration("TONE_DURATION", c.Tone.Duration)

	c.NATS.Enabled = getEnvBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)

	c.Map.CenterLat = getEnvFloat("MAP_CENTER_LAT", c.Map.CenterLat)
	c.Map.CenterLng = getEnvFloat("MAP_CENTER_LNG", c.Map.CenterLng)
	c.Map.Zoom = getEnvInt("MAP_ZOOM", c.Map.Zoom)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate checks the merged configuration. Callers that override fields
// after Load, such as from command-line flags, must call it again.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Ledger.Capacity < 0 {
		return fmt.Errorf("ledger capacity must not be negative: %d", c.Ledger.Capacity)
	}
	if c.Ledger.TimeFormat == "" {
		return fmt.Errorf("ledger time format must not be empty")
	}

	if c.RateLimit.IngestRPS < 0 {
		return fmt.Errorf("ingest rate limit must not be negative: %d", c.RateLimit.IngestRPS)
	}

	if c.Archive.Enabled {
		switch strings.ToLower(c.Archive.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("unsupported archive driver: %s", c.Archive.Driver)
		}
		if c.Archive.Workers < 1 {
			return fmt.Errorf("archive workers must be at least 1")
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.GroupID == "") {
		return fmt.Errorf("kafka ingestion requires brokers, topic and group id")
	}

	if c.Watcher.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("watch poll interval must be at least 100ms")
	}
	switch c.Watcher.DeltaPolicy {
	case "tail", "count", "sequence":
	default:
		return fmt.Errorf("invalid delta policy: %s", c.Watcher.DeltaPolicy)
	}
	switch c.Watcher.Filter {
	case "All", "High", "Medium", "Low":
	default:
		return fmt.Errorf("invalid severity filter: %s", c.Watcher.Filter)
	}

	if c.Tone.Frequency <= 0 {
		return fmt.Errorf("tone frequency must be positive")
	}
	if c.Tone.Duration <= 0 || c.Tone.Duration >= time.Second {
		return fmt.Errorf("tone duration must be between 0 and 1s, got %s", c.Tone.Duration)
	}

	if c.NATS.Enabled && c.NATS.Subject == "" {
		return fmt.Errorf("nats subject is required when nats is enabled")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
