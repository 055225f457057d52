package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Executor   ExecutorConfig   `yaml:"executor" json:"executor"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
}

type StorageConfig struct {
	Engine     string        `yaml:"engine" json:"engine"` // "badger" or "redis"
	DataPath   string        `yaml:"data_path" json:"data_path"`
	InMemory   bool          `yaml:"in_memory" json:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes" json:"sync_writes"`
	ValueLogGC bool          `yaml:"value_log_gc" json:"value_log_gc"`
	GCInterval time.Duration `yaml:"gc_interval" json:"gc_interval"`
	BackupPath string        `yaml:"backup_path" json:"backup_path"`
	// Redis settings, used when Engine is "redis"
	Redis RedisConfig `yaml:"redis" json:"redis"`
	// Read-through cache in front of the engine
	Cache CacheConfig `yaml:"cache" json:"cache"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Size            int           `yaml:"size" json:"size"`
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// ExecutorConfig tunes the batching executor. Both the size and the latency
// trigger are deliberately configurable: larger batches amortize engine-call
// cost, the timeout bounds how long a lone request can sit in the queue.
type ExecutorConfig struct {
	MaxBatchSize  int           `yaml:"max_batch_size" json:"max_batch_size"`
	MaxBatchBytes int           `yaml:"max_batch_bytes" json:"max_batch_bytes"`
	BatchTimeout  time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	IOWorkers     int           `yaml:"io_workers" json:"io_workers"`
}

type LoggingConfig struct {
	Level                string `yaml:"level" json:"level"`
	Format               string `yaml:"format" json:"format"`
	Output               string `yaml:"output" json:"output"`
	EnableCorrelationIDs bool   `yaml:"enable_correlation_ids" json:"enable_correlation_ids"`
	EnableStateLogging   bool   `yaml:"enable_state_logging" json:"enable_state_logging"`
}

type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:     "badger",
			DataPath:   "./data/state",
			InMemory:   false,
			SyncWrites: false,
			ValueLogGC: true,
			GCInterval: 5 * time.Minute,
			BackupPath: "./backups",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				DB:   0,
			},
			Cache: CacheConfig{
				Enabled:         false,
				Size:            10000,
				TTL:             30 * time.Minute,
				CleanupInterval: 5 * time.Minute,
			},
		},
		Executor: ExecutorConfig{
			MaxBatchSize:  100,
			MaxBatchBytes: 64 * 1024,
			BatchTimeout:  10 * time.Millisecond,
			IOWorkers:     4,
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "json",
			Output:               "stdout",
			EnableCorrelationIDs: true,
			EnableStateLogging:   false,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    2112,
			Path:    "/stats",
		},
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

func loadFromEnvironment(config *Config) {
	// Storage configuration
	if engine := os.Getenv("STATEKV_STORAGE_ENGINE"); engine != "" {
		config.Storage.Engine = engine
	}
	if dataPath := os.Getenv("STATEKV_STORAGE_DATA_PATH"); dataPath != "" {
		config.Storage.DataPath = dataPath
	}
	if inMemory := os.Getenv("STATEKV_STORAGE_IN_MEMORY"); inMemory != "" {
		if b, err := strconv.ParseBool(inMemory); err == nil {
			config.Storage.InMemory = b
		}
	}
	if syncWrites := os.Getenv("STATEKV_STORAGE_SYNC_WRITES"); syncWrites != "" {
		if b, err := strconv.ParseBool(syncWrites); err == nil {
			config.Storage.SyncWrites = b
		}
	}
	if addr := os.Getenv("STATEKV_REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}

	// Executor configuration
	if batchSize := os.Getenv("STATEKV_EXECUTOR_MAX_BATCH_SIZE"); batchSize != "" {
		if n, err := strconv.Atoi(batchSize); err == nil {
			config.Executor.MaxBatchSize = n
		}
	}
	if batchBytes := os.Getenv("STATEKV_EXECUTOR_MAX_BATCH_BYTES"); batchBytes != "" {
		if n, err := strconv.Atoi(batchBytes); err == nil {
			config.Executor.MaxBatchBytes = n
		}
	}
	if timeout := os.Getenv("STATEKV_EXECUTOR_BATCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Executor.BatchTimeout = d
		}
	}
	if workers := os.Getenv("STATEKV_EXECUTOR_IO_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Executor.IOWorkers = n
		}
	}

	// Logging configuration
	if level := os.Getenv("STATEKV_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("STATEKV_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Monitoring configuration
	if enabled := os.Getenv("STATEKV_MONITORING_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Monitoring.Enabled = b
		}
	}
	if port := os.Getenv("STATEKV_MONITORING_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Monitoring.Port = p
		}
	}
}

func (c *Config) Validate() error {
	// Storage validation
	switch c.Storage.Engine {
	case "badger":
		if !c.Storage.InMemory && c.Storage.DataPath == "" {
			return fmt.Errorf("data path cannot be empty when not using in-memory storage")
		}
		if c.Storage.GCInterval <= 0 {
			return fmt.Errorf("GC interval must be positive")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown storage engine: %s", c.Storage.Engine)
	}
	if c.Storage.Cache.Enabled {
		if c.Storage.Cache.Size <= 0 {
			return fmt.Errorf("cache size must be positive")
		}
		if c.Storage.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("cache cleanup interval must be positive")
		}
	}

	// Executor validation
	if c.Executor.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive")
	}
	if c.Executor.MaxBatchBytes <= 0 {
		return fmt.Errorf("max batch bytes must be positive")
	}
	if c.Executor.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be positive")
	}
	if c.Executor.IOWorkers <= 0 {
		return fmt.Errorf("io workers must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Monitoring validation
	if c.Monitoring.Enabled {
		if c.Monitoring.Port <= 0 || c.Monitoring.Port > 65535 {
			return fmt.Errorf("invalid monitoring port: %d", c.Monitoring.Port)
		}
		if c.Monitoring.Path == "" {
			return fmt.Errorf("monitoring path cannot be empty when monitoring is enabled")
		}
	}

	return nil
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
