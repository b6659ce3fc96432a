package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Watcher.PollInterval != 2*time.Second {
		t.Errorf("expected default poll interval 2s, got %s", cfg.Watcher.PollInterval)
	}
	if cfg.Watcher.DeltaPolicy != "tail" {
		t.Errorf("expected tail delta policy, got %s", cfg.Watcher.DeltaPolicy)
	}
	if cfg.Map.CenterLat != 12.9716 || cfg.Map.CenterLng != 77.5946 || cfg.Map.Zoom != 14 {
		t.Errorf("unexpected map defaults: %+v", cfg.Map)
	}
	if cfg.RateLimit.IngestRPS != 0 {
		t.Errorf("ingest rate limiting should be off by default, got %d rps", cfg.RateLimit.IngestRPS)
	}
	if cfg.Ledger.Capacity != 0 {
		t.Errorf("ledger should be unbounded by default, got capacity %d", cfg.Ledger.Capacity)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WATCH_POLL_INTERVAL", "500ms")
	t.Setenv("WATCH_DELTA_POLICY", "count")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Watcher.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.Watcher.PollInterval)
	}
	if cfg.Watcher.DeltaPolicy != "count" {
		t.Errorf("expected count, got %s", cfg.Watcher.DeltaPolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 7000
ledger:
  capacity: 250
  assign_ids: true
watcher:
  delta_policy: sequence
  poll_interval: 3s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("env should win over file, got port %d", cfg.Server.Port)
	}
	if cfg.Ledger.Capacity != 250 || !cfg.Ledger.AssignIDs {
		t.Errorf("unexpected ledger config: %+v", cfg.Ledger)
	}
	if cfg.Watcher.DeltaPolicy != "sequence" || cfg.Watcher.PollInterval != 3*time.Second {
		t.Errorf("unexpected watcher config: %+v", cfg.Watcher)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("defaults not in the file should survive, got host %q", cfg.Server.Host)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "SERVER_PORT", "70000"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"poll interval", "WATCH_POLL_INTERVAL", "10ms"},
		{"delta policy", "WATCH_DELTA_POLICY", "diff"},
		{"filter", "WATCH_FILTER", "Critical"},
		{"tone duration", "TONE_DURATION", "1500ms"},
		{"capacity", "LEDGER_CAPACITY", "-1"},
		{"ingest rate limit", "INGEST_RATE_LIMIT", "-5"},
		{"kafka without brokers", "KAFKA_ENABLED", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.Watcher.PollInterval = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for a 1ms poll interval set after Load")
	}

	cfg.Watcher.PollInterval = 250 * time.Millisecond
	cfg.Watcher.DeltaPolicy = "sequence"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid override rejected: %v", err)
	}
}
