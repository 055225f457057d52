package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(Config{
		InMemory:   true,
		SyncWrites: false,
		ValueLogGC: false,
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestEngine_PutGetDelete(t *testing.T) {
	engine := newTestEngine(t)

	key := []byte("key1")
	value := []byte("value1")

	if err := engine.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := engine.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Expected %s, got %s", value, got)
	}

	if err := engine.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := engine.Get(key); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestEngine_GetMissingKey(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.Get([]byte("never-written")); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestEngine_BatchOperations(t *testing.T) {
	engine := newTestEngine(t)

	items := []KeyValue{
		{Key: []byte("batch1"), Value: []byte("value1")},
		{Key: []byte("batch2"), Value: []byte("value2")},
		{Key: []byte("batch3"), Value: []byte("value3")},
	}

	if err := engine.BatchPut(items); err != nil {
		t.Fatalf("BatchPut failed: %v", err)
	}

	keys := [][]byte{
		[]byte("batch1"),
		[]byte("batch2"),
		[]byte("batch3"),
		[]byte("nonexistent"),
	}

	results, err := engine.BatchGet(keys)
	if err != nil {
		t.Fatalf("BatchGet failed: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}

	for i := 0; i < 3; i++ {
		if !results[i].Found {
			t.Errorf("Expected %s to be found", keys[i])
		}
		if !bytes.Equal(results[i].Value, items[i].Value) {
			t.Errorf("Expected %s, got %s", items[i].Value, results[i].Value)
		}
	}
	if results[3].Found {
		t.Error("Expected nonexistent key to not be found")
	}

	if err := engine.BatchDelete([][]byte{[]byte("batch1"), []byte("batch2")}); err != nil {
		t.Fatalf("BatchDelete failed: %v", err)
	}

	results, err = engine.BatchGet(keys)
	if err != nil {
		t.Fatalf("BatchGet after delete failed: %v", err)
	}
	if results[0].Found || results[1].Found {
		t.Error("Expected deleted keys to not be found")
	}
	if !results[2].Found {
		t.Error("Expected non-deleted key to still be found")
	}
}

func TestEngine_ScanReturnsOrderedEntries(t *testing.T) {
	engine := newTestEngine(t)

	pairs := map[string]string{
		"scan/c": "3",
		"scan/a": "1",
		"scan/b": "2",
		"other":  "x",
	}
	for k, v := range pairs {
		if err := engine.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := engine.Scan([]byte("scan/"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			t.Errorf("Scan results out of order: %s before %s", entries[i-1].Key, entries[i].Key)
		}
	}

	if string(entries[0].Key) != "scan/a" || string(entries[0].Value) != "1" {
		t.Errorf("Unexpected first entry: %s=%s", entries[0].Key, entries[0].Value)
	}
}

func TestEngine_EmptyValue(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.Put([]byte("empty"), []byte{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, err := engine.Get([]byte("empty"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %v", value)
	}

	results, err := engine.BatchGet([][]byte{[]byte("empty")})
	if err != nil {
		t.Fatalf("BatchGet failed: %v", err)
	}
	if !results[0].Found {
		t.Error("Expected empty-valued key to be reported as found")
	}
}

func TestEngine_ConcurrentBatchOperations(t *testing.T) {
	engine := newTestEngine(t)

	const numGoroutines = 8
	const itemsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer wg.Done()

			items := make([]KeyValue, itemsPerGoroutine)
			for j := 0; j < itemsPerGoroutine; j++ {
				key := fmt.Sprintf("concurrent_%d_%d", goroutineID, j)
				value := fmt.Sprintf("value_%d_%d", goroutineID, j)
				items[j] = KeyValue{Key: []byte(key), Value: []byte(value)}
			}

			if err := engine.BatchPut(items); err != nil {
				t.Errorf("Concurrent BatchPut failed: %v", err)
			}
		}(i)
	}

	wg.Wait()

	allKeys := make([][]byte, 0, numGoroutines*itemsPerGoroutine)
	for i := 0; i < numGoroutines; i++ {
		for j := 0; j < itemsPerGoroutine; j++ {
			allKeys = append(allKeys, []byte(fmt.Sprintf("concurrent_%d_%d", i, j)))
		}
	}

	results, err := engine.BatchGet(allKeys)
	if err != nil {
		t.Fatalf("BatchGet verification failed: %v", err)
	}

	for _, result := range results {
		if !result.Found {
			t.Errorf("Expected %s to be found", result.Key)
		}
	}
}

func BenchmarkEngine_BatchGet(b *testing.B) {
	engine, err := NewEngine(Config{InMemory: true})
	if err != nil {
		b.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	const batchSize = 100
	items := make([]KeyValue, batchSize)
	keys := make([][]byte, batchSize)
	for i := 0; i < batchSize; i++ {
		key := fmt.Sprintf("bench_%d", i)
		items[i] = KeyValue{Key: []byte(key), Value: []byte("value")}
		keys[i] = []byte(key)
	}
	if err := engine.BatchPut(items); err != nil {
		b.Fatalf("Setup BatchPut failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.BatchGet(keys); err != nil {
			b.Fatalf("BatchGet failed: %v", err)
		}
	}
}
