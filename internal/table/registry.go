package table

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Handle indexes a binding inside a registry. Handles are small integers
// assigned in declaration order and never reused.
type Handle uint16

// Binding maps one logical state declaration onto its physical storage
// region and the serializers for its key and value types. A binding is
// immutable after declaration and shared read-only by every request that
// references the state, so it may cross goroutine boundaries freely.
type Binding struct {
	Handle          Handle
	Name            string
	KeySerializer   Serializer
	ValueSerializer Serializer

	region []byte
}

// Region returns the physical key prefix that isolates this binding's
// records from every other binding in the same keyspace. The slice must not
// be mutated.
func (b *Binding) Region() []byte { return b.region }

// PhysicalKey prepends the binding's region to an encoded context key.
func (b *Binding) PhysicalKey(encodedKey []byte) []byte {
	out := make([]byte, 0, len(b.region)+len(encodedKey))
	out = append(out, b.region...)
	out = append(out, encodedKey...)
	return out
}

// BindingNotFoundError reports a reference to a state that was never
// declared. Fatal to the issuing call.
type BindingNotFoundError struct {
	Name string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("state %q was never declared", e.Name)
}

// Registry is an arena of immutable binding records. Declaration happens
// once per logical state at setup time; lookups afterwards are concurrent
// and lock-free on the binding itself.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Binding
	byHandle []*Binding
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Binding),
	}
}

// Declare registers a logical state and returns its binding. Declaring the
// same name twice returns the original binding; serializers from the second
// declaration are ignored so shared bindings stay immutable.
func (r *Registry) Declare(name string, keySer, valSer Serializer) (*Binding, error) {
	if name == "" {
		return nil, fmt.Errorf("state name cannot be empty")
	}
	if keySer == nil || valSer == nil {
		return nil, fmt.Errorf("state %q: serializers cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		return existing, nil
	}

	handle := Handle(len(r.byHandle))
	region := make([]byte, 2)
	binary.BigEndian.PutUint16(region, uint16(handle))

	binding := &Binding{
		Handle:          handle,
		Name:            name,
		KeySerializer:   keySer,
		ValueSerializer: valSer,
		region:          region,
	}

	r.byName[name] = binding
	r.byHandle = append(r.byHandle, binding)
	return binding, nil
}

// Lookup resolves a previously declared state by name.
func (r *Registry) Lookup(name string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.byName[name]
	if !ok {
		return nil, &BindingNotFoundError{Name: name}
	}
	return binding, nil
}

// Get resolves a binding by handle.
func (r *Registry) Get(h Handle) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(h) >= len(r.byHandle) {
		return nil, &BindingNotFoundError{Name: fmt.Sprintf("handle %d", h)}
	}
	return r.byHandle[h], nil
}

// Len reports the number of declared states.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}
