package table

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Serializer converts between a typed state value and its stable byte
// representation. Implementations must be deterministic and safe for
// concurrent use; bytes written by one version must stay decodable by
// compatible later versions.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte) (interface{}, error)
}

// BytesSerializer passes raw byte slices through unchanged.
type BytesSerializer struct{}

func (BytesSerializer) Serialize(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("bytes serializer: expected []byte, got %T", v)
	}
	return b, nil
}

func (BytesSerializer) Deserialize(data []byte) (interface{}, error) {
	return data, nil
}

// StringSerializer stores strings as their UTF-8 bytes.
type StringSerializer struct{}

func (StringSerializer) Serialize(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("string serializer: expected string, got %T", v)
	}
	return []byte(s), nil
}

func (StringSerializer) Deserialize(data []byte) (interface{}, error) {
	return string(data), nil
}

// Int64Serializer stores int64 values as fixed 8-byte big-endian, so the
// byte order of encoded non-negative values matches numeric order.
type Int64Serializer struct{}

func (Int64Serializer) Serialize(v interface{}) ([]byte, error) {
	n, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("int64 serializer: expected int64, got %T", v)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf, nil
}

func (Int64Serializer) Deserialize(data []byte) (interface{}, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("int64 serializer: expected 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// JSONSerializer stores arbitrary values as JSON. Deserialized values come
// back with JSON's generic types (map[string]interface{}, float64, ...).
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serializer: %w", err)
	}
	return data, nil
}

func (JSONSerializer) Deserialize(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json serializer: %w", err)
	}
	return v, nil
}
