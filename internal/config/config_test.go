package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Storage.Engine != "badger" {
		t.Errorf("Expected default storage engine to be badger, got %s", config.Storage.Engine)
	}

	if config.Executor.MaxBatchSize != 100 {
		t.Errorf("Expected default max batch size to be 100, got %d", config.Executor.MaxBatchSize)
	}

	if config.Executor.BatchTimeout != 10*time.Millisecond {
		t.Errorf("Expected default batch timeout to be 10ms, got %v", config.Executor.BatchTimeout)
	}

	if config.Logging.Level != "info" {
		t.Errorf("Expected default log level to be info, got %s", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test-config.yaml")

	configContent := `
storage:
  engine: "badger"
  data_path: "/tmp/test-state"
  in_memory: true

executor:
  max_batch_size: 32
  batch_timeout: 5ms
  io_workers: 2

logging:
  level: "debug"
  format: "text"

monitoring:
  enabled: false
  port: 3000
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Storage.DataPath != "/tmp/test-state" {
		t.Errorf("Expected data path to be /tmp/test-state, got %s", config.Storage.DataPath)
	}

	if config.Storage.InMemory != true {
		t.Errorf("Expected in_memory to be true, got %v", config.Storage.InMemory)
	}

	if config.Executor.MaxBatchSize != 32 {
		t.Errorf("Expected max batch size to be 32, got %d", config.Executor.MaxBatchSize)
	}

	if config.Executor.BatchTimeout != 5*time.Millisecond {
		t.Errorf("Expected batch timeout to be 5ms, got %v", config.Executor.BatchTimeout)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}

	if config.Monitoring.Enabled {
		t.Error("Expected monitoring to be disabled")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Setenv("STATEKV_STORAGE_ENGINE", "redis")
	os.Setenv("STATEKV_REDIS_ADDR", "redis-host:6380")
	os.Setenv("STATEKV_EXECUTOR_MAX_BATCH_SIZE", "17")
	os.Setenv("STATEKV_EXECUTOR_BATCH_TIMEOUT", "25ms")
	os.Setenv("STATEKV_LOG_LEVEL", "error")

	defer func() {
		os.Unsetenv("STATEKV_STORAGE_ENGINE")
		os.Unsetenv("STATEKV_REDIS_ADDR")
		os.Unsetenv("STATEKV_EXECUTOR_MAX_BATCH_SIZE")
		os.Unsetenv("STATEKV_EXECUTOR_BATCH_TIMEOUT")
		os.Unsetenv("STATEKV_LOG_LEVEL")
	}()

	config, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Storage.Engine != "redis" {
		t.Errorf("Expected engine to be redis, got %s", config.Storage.Engine)
	}

	if config.Storage.Redis.Addr != "redis-host:6380" {
		t.Errorf("Expected redis addr to be redis-host:6380, got %s", config.Storage.Redis.Addr)
	}

	if config.Executor.MaxBatchSize != 17 {
		t.Errorf("Expected max batch size to be 17, got %d", config.Executor.MaxBatchSize)
	}

	if config.Executor.BatchTimeout != 25*time.Millisecond {
		t.Errorf("Expected batch timeout to be 25ms, got %v", config.Executor.BatchTimeout)
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Storage.Engine = "rocksdb" }},
		{"empty data path", func(c *Config) {
			c.Storage.InMemory = false
			c.Storage.DataPath = ""
		}},
		{"empty redis addr", func(c *Config) {
			c.Storage.Engine = "redis"
			c.Storage.Redis.Addr = ""
		}},
		{"zero batch size", func(c *Config) { c.Executor.MaxBatchSize = 0 }},
		{"zero batch bytes", func(c *Config) { c.Executor.MaxBatchBytes = 0 }},
		{"zero batch timeout", func(c *Config) { c.Executor.BatchTimeout = 0 }},
		{"zero io workers", func(c *Config) { c.Executor.IOWorkers = 0 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad monitoring port", func(c *Config) { c.Monitoring.Port = -1 }},
		{"bad cache size", func(c *Config) {
			c.Storage.Cache.Enabled = true
			c.Storage.Cache.Size = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err == nil {
				t.Errorf("Expected validation to fail for %s", tc.name)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Expected error when loading nonexistent config file")
	}
}
