package storage

// StorageEngine is the blocking key-value primitive set the batching
// executor dispatches against. Implementations are invoked from the
// executor's I/O goroutines only; nothing else calls the engine directly.
type StorageEngine interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// Batch operations, one engine call for many requests
	BatchGet(keys [][]byte) ([]KeyValue, error)
	BatchPut(items []KeyValue) error
	BatchDelete(keys [][]byte) error

	// Scan returns all entries under prefix in ascending key order.
	Scan(prefix []byte) ([]KeyValue, error)

	Close() error
	Backup(path string) error
	Restore(path string) error
	Stats() map[string]interface{}
}

// KeyValue represents a key-value pair. Found distinguishes a missing key
// from a present key with an empty value in batched get results.
type KeyValue struct {
	Key   []byte
	Value []byte
	Found bool
}
