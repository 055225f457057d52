package storage

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Engine is the BadgerDB-backed storage engine.
type Engine struct {
	db *badger.DB

	stopGC chan struct{}
}

var _ StorageEngine = (*Engine)(nil)

type Config struct {
	DataPath   string
	InMemory   bool
	SyncWrites bool
	ValueLogGC bool
	GCInterval time.Duration
}

func NewEngine(config Config) (*Engine, error) {
	opts := badger.DefaultOptions(config.DataPath)

	if config.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.WithSyncWrites(config.SyncWrites)
	opts = opts.WithLogger(nil) // Disable badger's default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	engine := &Engine{
		db:     db,
		stopGC: make(chan struct{}),
	}

	if config.ValueLogGC && !config.InMemory {
		interval := config.GCInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go engine.runGC(interval)
	}

	return engine, nil
}

func (e *Engine) Put(key, value []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}

	return value, err
}

func (e *Engine) Delete(key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// BatchGet retrieves many keys in one read transaction. Missing keys are
// reported positionally with Found=false, never as an error.
func (e *Engine) BatchGet(keys [][]byte) ([]KeyValue, error) {
	results := make([]KeyValue, len(keys))

	err := e.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				results[i] = KeyValue{Key: key, Value: nil, Found: false}
				continue
			}
			if err != nil {
				return err
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			results[i] = KeyValue{Key: key, Value: value, Found: true}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return results, nil
}

// BatchPut writes many pairs in a single transaction.
func (e *Engine) BatchPut(items []KeyValue) error {
	return e.db.Update(func(txn *badger.Txn) error {
		for _, item := range items {
			if err := txn.Set(item.Key, item.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchDelete removes many keys in a single transaction.
func (e *Engine) BatchDelete(keys [][]byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan returns all entries under prefix. Badger iterates in ascending key
// order, which range reads over encoded (namespace, key) prefixes rely on.
func (e *Engine) Scan(prefix []byte) ([]KeyValue, error) {
	var result []KeyValue

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			result = append(result, KeyValue{Key: key, Value: value, Found: true})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) Close() error {
	close(e.stopGC)
	return e.db.Close()
}

// Backup streams the full keyspace to a file, paired with a drain barrier
// this gives a consistent snapshot.
func (e *Engine) Backup(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	_, err = e.db.Backup(file, 0)
	return err
}

func (e *Engine) Restore(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	return e.db.Load(file, 256)
}

func (e *Engine) Stats() map[string]interface{} {
	lsmSize, vlogSize := e.db.Size()

	return map[string]interface{}{
		"engine":     "badger",
		"lsm_size":   lsmSize,
		"vlog_size":  vlogSize,
		"total_size": lsmSize + vlogSize,
	}
}

func (e *Engine) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopGC:
			return
		case <-ticker.C:
			again := true
			for again {
				err := e.db.RunValueLogGC(0.7)
				again = err == nil
			}
			slog.Debug("badger value log GC pass completed")
		}
	}
}

var ErrKeyNotFound = fmt.Errorf("key not found")
