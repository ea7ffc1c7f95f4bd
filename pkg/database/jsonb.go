package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB maps a jsonb column onto a typed Go value.
type JSONB[T any] struct {
	Data T
}

func (p *JSONB[T]) Scan(src any) error {
	if src == nil {
		var zero T
		p.Data = zero
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, &p.Data)
}

func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}

func (p *JSONB[T]) GetValue() T {
	return p.Data
}

// MarshalJSON serializes the wrapped value itself, so API payloads see the
// column content rather than the wrapper.
func (p JSONB[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Data)
}

func (p *JSONB[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &p.Data)
}
