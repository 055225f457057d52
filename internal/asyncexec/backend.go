package asyncexec

import (
	"statekv/internal/config"
	"statekv/internal/keyenc"
	"statekv/internal/logging"
	"statekv/internal/monitoring"
	"statekv/internal/storage"
	"statekv/internal/table"
)

// Backend ties the pieces together for one task: the binding registry, the
// task mailbox continuations come home to, and the batching executor in
// front of the storage engine. All methods returning a *Future are
// non-blocking; errors detected synchronously (bad serialization, unknown
// binding) settle the future as failed before it is returned, so callers
// handle every outcome through the same continuation path.
type Backend struct {
	engine   storage.StorageEngine
	registry *table.Registry
	mailbox  *Mailbox
	executor *Executor
	logger   *logging.Logger
}

func NewBackend(engine storage.StorageEngine, cfg config.ExecutorConfig, logger *logging.Logger, metrics *monitoring.ExecutorMetrics) *Backend {
	mailbox := NewMailbox()
	return &Backend{
		engine:   engine,
		registry: table.NewRegistry(),
		mailbox:  mailbox,
		executor: NewExecutor(engine, cfg, mailbox, logger, metrics),
		logger:   logger,
	}
}

// Mailbox returns the task mailbox. The owning task thread is expected to
// run it (Run or RunPending) so continuations get delivered.
func (b *Backend) Mailbox() *Mailbox { return b.mailbox }

// Executor exposes the underlying executor, mainly for metrics.
func (b *Backend) Executor() *Executor { return b.executor }

// DeclareState registers a named state with its serializers and returns
// the binding used on every subsequent access. Redeclaring a name returns
// the original binding.
func (b *Backend) DeclareState(name string, keySer, valSer table.Serializer) (*table.Binding, error) {
	return b.registry.Declare(name, keySer, valSer)
}

// LookupState resolves a previously declared binding by name.
func (b *Backend) LookupState(name string) (*table.Binding, error) {
	return b.registry.Lookup(name)
}

// Get schedules a point read. The future completes with the deserialized
// value, or nil if the key is absent.
func (b *Backend) Get(binding *table.Binding, namespace []byte, key interface{}) *Future {
	future := NewFuture(b.mailbox)
	r := newRequest(KindGet, binding, future)

	ck, physical, err := b.encodeKey(binding, namespace, key)
	if err != nil {
		b.failFast(r, err)
		return future
	}
	r.contextKey = ck
	r.physicalKey = physical

	b.executor.Submit(r)
	return future
}

// Put schedules a write. The future completes with nil once the value is
// durable in the engine's batch write.
func (b *Backend) Put(binding *table.Binding, namespace []byte, key, value interface{}) *Future {
	future := NewFuture(b.mailbox)
	r := newRequest(KindPut, binding, future)

	ck, physical, err := b.encodeKey(binding, namespace, key)
	if err != nil {
		b.failFast(r, err)
		return future
	}
	raw, err := binding.ValueSerializer.Serialize(value)
	if err != nil {
		b.failFast(r, &keyenc.EncodingError{Reason: "value encode failed", Cause: err})
		return future
	}
	r.contextKey = ck
	r.physicalKey = physical
	r.value = raw

	b.executor.Submit(r)
	return future
}

// Delete schedules a tombstone for the key. Deleting an absent key is not
// an error.
func (b *Backend) Delete(binding *table.Binding, namespace []byte, key interface{}) *Future {
	future := NewFuture(b.mailbox)
	r := newRequest(KindDelete, binding, future)

	ck, physical, err := b.encodeKey(binding, namespace, key)
	if err != nil {
		b.failFast(r, err)
		return future
	}
	r.contextKey = ck
	r.physicalKey = physical

	b.executor.Submit(r)
	return future
}

// MultiGet schedules one request covering several keys in the same
// namespace. The future completes with a []interface{} positionally
// aligned with keys; absent keys yield nil entries.
func (b *Backend) MultiGet(binding *table.Binding, namespace []byte, keys []interface{}) *Future {
	future := NewFuture(b.mailbox)
	r := newRequest(KindMultiGet, binding, future)

	r.contextKeys = make([]keyenc.ContextKey, 0, len(keys))
	r.physicalKeys = make([][]byte, 0, len(keys))
	for _, key := range keys {
		ck, physical, err := b.encodeKey(binding, namespace, key)
		if err != nil {
			b.failFast(r, err)
			return future
		}
		r.contextKeys = append(r.contextKeys, ck)
		r.physicalKeys = append(r.physicalKeys, physical)
	}

	b.executor.Submit(r)
	return future
}

// Iterate schedules a range scan over every key of the binding within the
// namespace. The future completes with an *Iterator positioned at the
// first entry in key order.
func (b *Backend) Iterate(binding *table.Binding, namespace []byte) *Future {
	future := NewFuture(b.mailbox)
	r := newRequest(KindIterSeek, binding, future)

	prefix, err := keyenc.EncodeNamespacePrefix(namespace)
	if err != nil {
		b.failFast(r, err)
		return future
	}
	r.scanPrefix = binding.PhysicalKey(prefix)

	b.executor.Submit(r)
	return future
}

// Drain returns a future completing once every request submitted before
// the call has settled. See Executor.Drain.
func (b *Backend) Drain() *Future {
	return b.executor.Drain()
}

// Close drains the executor, closes the mailbox, and shuts down the task's
// view of state. The storage engine is owned by the caller and stays open.
func (b *Backend) Close() error {
	err := b.executor.Close()
	b.mailbox.Close()
	return err
}

func (b *Backend) encodeKey(binding *table.Binding, namespace []byte, key interface{}) (keyenc.ContextKey, []byte, error) {
	rawKey, err := binding.KeySerializer.Serialize(key)
	if err != nil {
		return keyenc.ContextKey{}, nil, &keyenc.EncodingError{Reason: "key encode failed", Cause: err}
	}
	ck := keyenc.ContextKey{Namespace: namespace, Key: rawKey}
	encoded, err := keyenc.Encode(ck)
	if err != nil {
		return keyenc.ContextKey{}, nil, err
	}
	return ck, binding.PhysicalKey(encoded), nil
}

// failFast settles a request that never made it into the queue. No
// sequence number was assigned, so drain barriers are unaffected.
func (b *Backend) failFast(r *Request, err error) {
	r.future.Fail(err)
	r.state.Store(int32(StateFailed))
}
