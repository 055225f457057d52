package asyncexec

import (
	"statekv/internal/keyenc"
	"statekv/internal/storage"
	"statekv/internal/table"
)

// Entry is one decoded state record produced by an iterator.
type Entry struct {
	Key   keyenc.ContextKey
	Value interface{}
}

// Iterator is the result of an IterSeek request: an ordered sequence over
// the scanned range, decoded lazily as the consumer advances. It is not
// rewindable; restarting means issuing a new request. Single-consumer, not
// safe for concurrent use.
type Iterator struct {
	binding *table.Binding
	entries []storage.KeyValue
	pos     int
}

func newIterator(binding *table.Binding, entries []storage.KeyValue) *Iterator {
	return &Iterator{binding: binding, entries: entries}
}

// Next returns the next entry. ok is false once the sequence is exhausted.
// A decode failure ends the iteration with the error.
func (it *Iterator) Next() (entry Entry, ok bool, err error) {
	if it.pos >= len(it.entries) {
		return Entry{}, false, nil
	}

	raw := it.entries[it.pos]
	it.pos++

	// Strip the binding's region prefix back off the physical key.
	region := it.binding.Region()
	encodedKey := raw.Key
	if len(encodedKey) >= len(region) {
		encodedKey = encodedKey[len(region):]
	}

	ck, err := keyenc.Decode(encodedKey)
	if err != nil {
		return Entry{}, false, err
	}

	value, err := it.binding.ValueSerializer.Deserialize(raw.Value)
	if err != nil {
		return Entry{}, false, &keyenc.EncodingError{Reason: "value decode failed", Cause: err}
	}

	return Entry{Key: ck, Value: value}, true, nil
}

// Len reports how many entries the scan produced in total.
func (it *Iterator) Len() int { return len(it.entries) }
