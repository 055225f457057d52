package keyenc

import (
	"bytes"
	"fmt"
)

// ContextKey identifies one logical state slot: the current record key plus
// the namespace (e.g. a window) it is scoped to. Both parts are already
// serialized bytes; the encoder only owns the physical layout.
type ContextKey struct {
	Namespace []byte
	Key       []byte
}

// Physical layout: escaped namespace, a terminator, then the raw key.
// Escaping 0x00 as 0x00 0xFF and terminating with 0x00 0x01 keeps the
// namespace segment prefix-free, so lexicographic order on encoded bytes
// equals ordering by (namespace, key). All keys of one namespace share the
// encoded-namespace prefix, which is what range scans seek on.
const (
	escByte  = 0x00
	escTail  = 0xFF
	termTail = 0x01
)

// Engine-imposed size limits. Badger rejects keys above 64KiB; stay under
// that with room for region prefixes.
const (
	MaxNamespaceLen = 16 * 1024
	MaxKeyLen       = 32 * 1024
)

// EncodingError reports a key or namespace the physical layout cannot
// represent. It is a caller bug and is never retried.
type EncodingError struct {
	Reason string
	Cause  error
}

func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("key encoding failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("key encoding failed: %s", e.Reason)
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// Encode serializes ck into a byte-comparable physical key. Deterministic
// and side-effect free; safe from any goroutine.
func Encode(ck ContextKey) ([]byte, error) {
	if len(ck.Namespace) > MaxNamespaceLen {
		return nil, &EncodingError{Reason: fmt.Sprintf("namespace exceeds %d bytes", MaxNamespaceLen)}
	}
	if len(ck.Key) > MaxKeyLen {
		return nil, &EncodingError{Reason: fmt.Sprintf("key exceeds %d bytes", MaxKeyLen)}
	}

	out := make([]byte, 0, len(ck.Namespace)+len(ck.Key)+2)
	out = appendEscaped(out, ck.Namespace)
	out = append(out, escByte, termTail)
	out = append(out, ck.Key...)
	return out, nil
}

// EncodeNamespacePrefix returns the encoded prefix shared by every key in
// the namespace, used to seed range scans.
func EncodeNamespacePrefix(namespace []byte) ([]byte, error) {
	if len(namespace) > MaxNamespaceLen {
		return nil, &EncodingError{Reason: fmt.Sprintf("namespace exceeds %d bytes", MaxNamespaceLen)}
	}
	out := make([]byte, 0, len(namespace)+2)
	out = appendEscaped(out, namespace)
	out = append(out, escByte, termTail)
	return out, nil
}

// Decode is the exact inverse of Encode for encodings it produced.
func Decode(encoded []byte) (ContextKey, error) {
	var ns []byte
	i := 0
	for {
		if i >= len(encoded) {
			return ContextKey{}, &EncodingError{Reason: "missing namespace terminator"}
		}
		b := encoded[i]
		if b != escByte {
			ns = append(ns, b)
			i++
			continue
		}
		if i+1 >= len(encoded) {
			return ContextKey{}, &EncodingError{Reason: "truncated escape sequence"}
		}
		switch encoded[i+1] {
		case escTail:
			ns = append(ns, escByte)
			i += 2
		case termTail:
			key := make([]byte, len(encoded)-i-2)
			copy(key, encoded[i+2:])
			return ContextKey{Namespace: ns, Key: key}, nil
		default:
			return ContextKey{}, &EncodingError{Reason: fmt.Sprintf("invalid escape byte 0x%02x", encoded[i+1])}
		}
	}
}

// Equal reports whether two context keys address the same state slot.
func (ck ContextKey) Equal(other ContextKey) bool {
	return bytes.Equal(ck.Namespace, other.Namespace) && bytes.Equal(ck.Key, other.Key)
}

func appendEscaped(dst, src []byte) []byte {
	for _, b := range src {
		if b == escByte {
			dst = append(dst, escByte, escTail)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}
