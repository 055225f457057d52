package asyncexec

import (
	"fmt"
	"sync/atomic"

	"statekv/internal/keyenc"
	"statekv/internal/storage"
	"statekv/internal/table"
)

// Kind tags the operation a request performs. A tagged variant instead of
// an interface hierarchy keeps dispatch a switch on the hot path and lets
// the compiler check exhaustiveness.
type Kind int

const (
	KindGet Kind = iota
	KindPut
	KindDelete
	KindMultiGet
	KindIterSeek
)

func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindPut:
		return "put"
	case KindDelete:
		return "delete"
	case KindMultiGet:
		return "multi_get"
	case KindIterSeek:
		return "iter_seek"
	default:
		return "unknown"
	}
}

// isWrite reports whether the kind mutates state, which is what per-key
// ordering hinges on.
func (k Kind) isWrite() bool {
	return k == KindPut || k == KindDelete
}

// RequestState tracks a request through its single-shot lifecycle.
type RequestState int32

const (
	StateCreated RequestState = iota
	StateQueued
	StateDispatched
	StateResultReceived
	StateCompleted
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateResultReceived:
		return "result_received"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes one pending state operation: its context key, the
// binding of the state it targets, the serialized input for writes, and the
// future handed to the caller. Keys are encoded to physical form at
// construction so the I/O side never touches serializers for keys.
type Request struct {
	kind    Kind
	binding *table.Binding

	contextKey  keyenc.ContextKey
	physicalKey []byte

	// MultiGet carries several keys; positions align with the completed
	// value slice.
	contextKeys  []keyenc.ContextKey
	physicalKeys [][]byte

	// IterSeek scans everything under this physical prefix.
	scanPrefix []byte

	// Serialized input value for Put.
	value []byte

	future *Future

	seq        uint64
	state      atomic.Int32
	cancelled  atomic.Bool
	dispatched atomic.Bool

	onSettled func(*Request)
}

func newRequest(kind Kind, binding *table.Binding, future *Future) *Request {
	r := &Request{
		kind:    kind,
		binding: binding,
		future:  future,
	}
	r.state.Store(int32(StateCreated))
	return r
}

// Kind returns the request's operation kind.
func (r *Request) Kind() Kind { return r.kind }

// Binding returns the state binding the request targets.
func (r *Request) Binding() *table.Binding { return r.binding }

// ContextKey returns the logical key the request addresses.
func (r *Request) ContextKey() keyenc.ContextKey { return r.contextKey }

// Future returns the caller-visible completion handle.
func (r *Request) Future() *Future { return r.future }

// State returns the request's current lifecycle state.
func (r *Request) State() RequestState {
	return RequestState(r.state.Load())
}

// Cancel marks the request cancelled. It succeeds only before dispatch;
// once the request is part of an engine call it runs to completion and the
// caller discards the result. A successfully cancelled request still
// settles its future (as Failed with ErrRequestCancelled) when the
// executor drops it.
func (r *Request) Cancel() bool {
	if RequestState(r.state.Load()) >= StateDispatched {
		return false
	}
	r.cancelled.Store(true)
	return true
}

// Cancelled reports whether Cancel succeeded before dispatch.
func (r *Request) Cancelled() bool { return r.cancelled.Load() }

// payloadSize estimates the bytes this request contributes to a batch, used
// for the byte-based flush trigger.
func (r *Request) payloadSize() int {
	size := len(r.physicalKey) + len(r.value) + len(r.scanPrefix)
	for _, k := range r.physicalKeys {
		size += len(k)
	}
	return size
}

// conflictKeys returns the physical keys the per-key ordering rules apply
// to. Iterator requests return none; they are ordered at binding
// granularity instead.
func (r *Request) conflictKeys() [][]byte {
	switch r.kind {
	case KindMultiGet:
		return r.physicalKeys
	case KindIterSeek:
		return nil
	default:
		return [][]byte{r.physicalKey}
	}
}

func (r *Request) markQueued(seq uint64, onSettled func(*Request)) {
	r.seq = seq
	r.onSettled = onSettled
	r.state.Store(int32(StateQueued))
}

func (r *Request) markDispatched() {
	r.dispatched.Store(true)
	r.state.Store(int32(StateDispatched))
}

// wasDispatched reports whether the request ever reached an engine call;
// the lifecycle state alone loses this once the request settles.
func (r *Request) wasDispatched() bool {
	return r.dispatched.Load()
}

// completeWithRaw demultiplexes one engine result back into this request:
// decode according to the operation kind, then settle the future exactly
// once.
func (r *Request) completeWithRaw(raw storage.KeyValue) {
	r.state.Store(int32(StateResultReceived))

	switch r.kind {
	case KindGet:
		if !raw.Found {
			// Engine "not found" is a value, not an error.
			r.complete(nil)
			return
		}
		value, err := r.binding.ValueSerializer.Deserialize(raw.Value)
		if err != nil {
			r.fail(&keyenc.EncodingError{Reason: "value decode failed", Cause: err})
			return
		}
		r.complete(value)

	case KindPut, KindDelete:
		r.complete(nil)

	default:
		r.fail(fmt.Errorf("raw completion is not valid for %s requests", r.kind))
	}
}

// completeMulti settles a MultiGet with its positional results.
func (r *Request) completeMulti(raws []storage.KeyValue) {
	r.state.Store(int32(StateResultReceived))

	values := make([]interface{}, len(raws))
	for i, raw := range raws {
		if !raw.Found {
			values[i] = nil
			continue
		}
		value, err := r.binding.ValueSerializer.Deserialize(raw.Value)
		if err != nil {
			r.fail(&keyenc.EncodingError{Reason: "value decode failed", Cause: err})
			return
		}
		values[i] = value
	}
	r.complete(values)
}

// completeScan settles an IterSeek with a lazily-decoded iterator over the
// scanned entries.
func (r *Request) completeScan(raws []storage.KeyValue) {
	r.state.Store(int32(StateResultReceived))
	r.complete(newIterator(r.binding, raws))
}

func (r *Request) complete(value interface{}) {
	if err := r.future.Complete(value); err != nil {
		// Single-shot invariant violated upstream; surface as failure.
		r.state.Store(int32(StateFailed))
		return
	}
	r.state.Store(int32(StateCompleted))
	if r.onSettled != nil {
		r.onSettled(r)
	}
}

func (r *Request) fail(err error) {
	r.future.Fail(err)
	r.state.Store(int32(StateFailed))
	if r.onSettled != nil {
		r.onSettled(r)
	}
}
