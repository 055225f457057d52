package storage

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEngineProperties(t *testing.T) {
	engine, err := NewEngine(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	properties := gopter.NewProperties(nil)

	properties.Property("PUT then GET returns same value", prop.ForAll(
		func(key string, value string) bool {
			if err := engine.Put([]byte(key), []byte(value)); err != nil {
				return false
			}
			got, err := engine.Get([]byte(key))
			if err != nil {
				return false
			}
			return string(got) == value
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("DELETE after PUT removes key", prop.ForAll(
		func(key string, value string) bool {
			if err := engine.Put([]byte(key), []byte(value)); err != nil {
				return false
			}
			if err := engine.Delete([]byte(key)); err != nil {
				return false
			}
			_, err := engine.Get([]byte(key))
			return err == ErrKeyNotFound
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("last PUT wins", prop.ForAll(
		func(key string, value1 string, value2 string) bool {
			if err := engine.Put([]byte(key), []byte(value1)); err != nil {
				return false
			}
			if err := engine.Put([]byte(key), []byte(value2)); err != nil {
				return false
			}
			got, err := engine.Get([]byte(key))
			if err != nil {
				return false
			}
			return string(got) == value2
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("BatchGet results are positional", prop.ForAll(
		func(keys []string, values []string) bool {
			if len(keys) != len(values) {
				return true
			}

			items := make([]KeyValue, len(keys))
			batchKeys := make([][]byte, len(keys))
			for i := range keys {
				// Unique per slot so duplicate generated keys cannot collide.
				k := []byte("pbatch_" + keys[i])
				items[i] = KeyValue{Key: k, Value: []byte(values[i])}
				batchKeys[i] = k
			}

			if err := engine.BatchPut(items); err != nil {
				return false
			}

			results, err := engine.BatchGet(batchKeys)
			if err != nil {
				return false
			}
			if len(results) != len(batchKeys) {
				return false
			}

			for i, result := range results {
				if !result.Found {
					return false
				}
				if !bytes.Equal(result.Key, batchKeys[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.Identifier()),
		gen.SliceOfN(3, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
