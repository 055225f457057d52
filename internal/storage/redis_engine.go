package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisEngine implements StorageEngine on a Redis server. It exists for
// deployments that already run Redis as local state storage; the batching
// executor treats it exactly like the embedded engine.
type RedisEngine struct {
	client *redis.Client
	ctx    context.Context
}

var _ StorageEngine = (*RedisEngine)(nil)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisEngine(config RedisConfig) (*RedisEngine, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return &RedisEngine{client: client, ctx: ctx}, nil
}

func (r *RedisEngine) Get(key []byte) ([]byte, error) {
	value, err := r.client.Get(r.ctx, string(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisEngine) Put(key, value []byte) error {
	if err := r.client.Set(r.ctx, string(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisEngine) Delete(key []byte) error {
	if err := r.client.Del(r.ctx, string(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// BatchGet uses MGET so a whole batch costs one round trip.
func (r *RedisEngine) BatchGet(keys [][]byte) ([]KeyValue, error) {
	strKeys := make([]string, len(keys))
	for i, key := range keys {
		strKeys[i] = string(key)
	}

	values, err := r.client.MGet(r.ctx, strKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	results := make([]KeyValue, len(keys))
	for i, raw := range values {
		if raw == nil {
			results[i] = KeyValue{Key: keys[i], Found: false}
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("redis mget returned unexpected type %T", raw)
		}
		results[i] = KeyValue{Key: keys[i], Value: []byte(s), Found: true}
	}
	return results, nil
}

func (r *RedisEngine) BatchPut(items []KeyValue) error {
	pipe := r.client.Pipeline()
	for _, item := range items {
		pipe.Set(r.ctx, string(item.Key), item.Value, 0)
	}
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("redis pipelined set failed: %w", err)
	}
	return nil
}

func (r *RedisEngine) BatchDelete(keys [][]byte) error {
	strKeys := make([]string, len(keys))
	for i, key := range keys {
		strKeys[i] = string(key)
	}
	if err := r.client.Del(r.ctx, strKeys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Scan walks the keyspace with SCAN MATCH and fetches values with MGET.
// Redis returns keys unordered, so results are sorted here to honour the
// ascending-key contract.
func (r *RedisEngine) Scan(prefix []byte) ([]KeyValue, error) {
	pattern := escapeMatchPattern(string(prefix)) + "*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(r.ctx, cursor, pattern, 256).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := r.client.MGet(r.ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	var result []KeyValue
	for i, raw := range values {
		if raw == nil {
			// Deleted between SCAN and MGET
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("redis mget returned unexpected type %T", raw)
		}
		result = append(result, KeyValue{Key: []byte(keys[i]), Value: []byte(s), Found: true})
	}
	return result, nil
}

func (r *RedisEngine) Close() error {
	return r.client.Close()
}

func (r *RedisEngine) Backup(path string) error {
	return fmt.Errorf("backup is not supported by the redis engine")
}

func (r *RedisEngine) Restore(path string) error {
	return fmt.Errorf("restore is not supported by the redis engine")
}

func (r *RedisEngine) Stats() map[string]interface{} {
	size, err := r.client.DBSize(r.ctx).Result()
	stats := map[string]interface{}{
		"engine": "redis",
		"keys":   size,
	}
	if err != nil {
		stats["error"] = err.Error()
	}
	return stats
}

// escapeMatchPattern escapes glob metacharacters so a binary prefix is
// matched literally by SCAN.
func escapeMatchPattern(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`*`, `\*`,
		`?`, `\?`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return replacer.Replace(s)
}
