package storage

import (
	"fmt"

	"statekv/internal/config"
)

// NewStorageEngine builds the engine described by the storage config,
// optionally wrapped with the read-through cache.
func NewStorageEngine(cfg config.StorageConfig) (StorageEngine, error) {
	var engine StorageEngine
	var err error

	switch cfg.Engine {
	case "badger":
		engine, err = NewEngine(Config{
			DataPath:   cfg.DataPath,
			InMemory:   cfg.InMemory,
			SyncWrites: cfg.SyncWrites,
			ValueLogGC: cfg.ValueLogGC,
			GCInterval: cfg.GCInterval,
		})
	case "redis":
		engine, err = NewRedisEngine(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unknown storage engine: %s", cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enabled {
		return engine, nil
	}

	return NewCachedEngine(engine, CachedEngineConfig{
		Size:            cfg.Cache.Size,
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}), nil
}
