package form

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Fields is an ordered field→value mapping. Response data keeps the order the
// fill-out surface submitted, and a plain map would lose it across a JSON
// round-trip, so both directions are implemented by hand.
type Fields struct {
	keys   []string
	values map[string]any
}

func NewFields() Fields {
	return Fields{values: make(map[string]any)}
}

// Set stores value under key, appending the key on first use.
func (f *Fields) Set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, seen := f.values[key]; !seen {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f Fields) Get(key string) (any, bool) {
	value, ok := f.values[key]
	return value, ok
}

// Keys returns the field names in insertion order.
func (f Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

func (f Fields) Len() int {
	return len(f.keys)
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("marshal field name %q: %w", key, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(f.values[key])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode fields: expected object, got %v", token)
	}

	f.keys = nil
	f.values = make(map[string]any)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode field name: %w", err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("decode field name: got %v", keyToken)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		f.Set(key, value)
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}
