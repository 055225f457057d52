package storage

import (
	"time"

	"statekv/internal/cache"
)

// CachedEngine wraps a storage engine with a read-through LRU cache. Every
// access path of the async layer goes through the engine interface, so
// write-path invalidation here keeps cached reads coherent.
type CachedEngine struct {
	storage StorageEngine
	cache   cache.Cache
	ttl     time.Duration

	stopCleanup chan struct{}
}

var _ StorageEngine = (*CachedEngine)(nil)

type CachedEngineConfig struct {
	Size            int
	TTL             time.Duration
	CleanupInterval time.Duration
}

func NewCachedEngine(storageEngine StorageEngine, config CachedEngineConfig) *CachedEngine {
	cached := &CachedEngine{
		storage:     storageEngine,
		cache:       cache.NewLRUCache(config.Size),
		ttl:         config.TTL,
		stopCleanup: make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go cached.cleanupLoop(config.CleanupInterval)
	}

	return cached
}

func (c *CachedEngine) Get(key []byte) ([]byte, error) {
	if value, found := c.cache.Get(string(key)); found {
		return value, nil
	}

	value, err := c.storage.Get(key)
	if err != nil {
		return nil, err
	}

	c.cache.Put(string(key), value, c.ttl)
	return value, nil
}

func (c *CachedEngine) Put(key, value []byte) error {
	if err := c.storage.Put(key, value); err != nil {
		return err
	}
	c.cache.Put(string(key), value, c.ttl)
	return nil
}

func (c *CachedEngine) Delete(key []byte) error {
	if err := c.storage.Delete(key); err != nil {
		return err
	}
	c.cache.Delete(string(key))
	return nil
}

// BatchGet serves what it can from cache and fetches only the misses.
func (c *CachedEngine) BatchGet(keys [][]byte) ([]KeyValue, error) {
	results := make([]KeyValue, len(keys))
	missIdx := make([]int, 0, len(keys))
	missKeys := make([][]byte, 0, len(keys))

	for i, key := range keys {
		if value, found := c.cache.Get(string(key)); found {
			results[i] = KeyValue{Key: key, Value: value, Found: true}
		} else {
			missIdx = append(missIdx, i)
			missKeys = append(missKeys, key)
		}
	}

	if len(missKeys) > 0 {
		fetched, err := c.storage.BatchGet(missKeys)
		if err != nil {
			return nil, err
		}

		for j, kv := range fetched {
			results[missIdx[j]] = kv
			if kv.Found {
				c.cache.Put(string(kv.Key), kv.Value, c.ttl)
			}
		}
	}

	return results, nil
}

func (c *CachedEngine) BatchPut(items []KeyValue) error {
	if err := c.storage.BatchPut(items); err != nil {
		return err
	}
	for _, item := range items {
		c.cache.Put(string(item.Key), item.Value, c.ttl)
	}
	return nil
}

func (c *CachedEngine) BatchDelete(keys [][]byte) error {
	if err := c.storage.BatchDelete(keys); err != nil {
		return err
	}
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Scan always hits the engine; range results are not cached because prefix
// invalidation costs more than the scan itself.
func (c *CachedEngine) Scan(prefix []byte) ([]KeyValue, error) {
	return c.storage.Scan(prefix)
}

func (c *CachedEngine) Close() error {
	close(c.stopCleanup)
	c.cache.Close()
	return c.storage.Close()
}

func (c *CachedEngine) Backup(path string) error {
	return c.storage.Backup(path)
}

func (c *CachedEngine) Restore(path string) error {
	if err := c.storage.Restore(path); err != nil {
		return err
	}
	// Cached entries may predate the restored data.
	c.cache.Clear()
	return nil
}

func (c *CachedEngine) Stats() map[string]interface{} {
	stats := c.storage.Stats()

	cacheStats := c.cache.Stats()
	stats["cache"] = map[string]interface{}{
		"hits":      cacheStats.Hits,
		"misses":    cacheStats.Misses,
		"evictions": cacheStats.Evictions,
		"size":      cacheStats.Size,
		"capacity":  cacheStats.Capacity,
		"hit_ratio": cacheStats.HitRatio,
	}

	return stats
}

// CacheStats exposes the cache counters for monitoring.
func (c *CachedEngine) CacheStats() cache.CacheStats {
	return c.cache.Stats()
}

func (c *CachedEngine) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if lru, ok := c.cache.(*cache.LRUCache); ok {
				lru.CleanupExpired()
			}
		case <-c.stopCleanup:
			return
		}
	}
}
