package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID represents a JSON-RPC ID which must be either a string, a number, or null.
// The zero value is the null ID.
type ID struct {
	value interface{}
}

// NewID creates a JSON-RPC ID from a string or number. A nil value yields
// the null ID.
func NewID(id interface{}) (ID, error) {
	switch v := id.(type) {
	case ID:
		return v, nil
	case *ID:
		if v == nil {
			return ID{}, nil
		}
		return *v, nil
	case string:
		return ID{value: v}, nil
	case int, int32, int64, float32, float64:
		return ID{value: v}, nil
	case nil:
		return ID{}, nil
	default:
		return ID{}, fmt.Errorf("id must be string or number, got %T", id)
	}
}

func (id ID) Value() interface{} {
	return id.value
}

func (id ID) IsNil() bool {
	return id.value == nil
}

// Equal compares two IDs for equality
func (id ID) Equal(other interface{}) bool {
	// If comparing with raw value
	switch v := other.(type) {
	case string, int, int32, int64, float32, float64:
		return id.value == v
	case ID:
		return id.value == v.value
	default:
		return false
	}
}

var _ fmt.GoStringer = ID{}

// GoString implements fmt.GoStringer
func (id ID) GoString() string {
	switch v := id.value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case float64, float32:
		return fmt.Sprintf("%g", v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

var _ json.Marshaler = ID{}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

var _ json.Unmarshaler = &ID{}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers decode to
// int64, other numbers to float64.
func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		id.value = v
		return nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			id.value = i
			return nil
		}
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric id %q: %w", v, err)
		}
		id.value = f
		return nil
	case nil:
		id.value = nil
		return nil
	default:
		return fmt.Errorf("id must be string or number, got %T", raw)
	}
}
