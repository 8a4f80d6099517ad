package bib

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Records is a JSON object of id → record that remembers key order.
type Records struct {
	Keys []string
	Raw  map[string]json.RawMessage
}

// UnmarshalJSON decodes an object, keeping the order keys appear in. A
// repeated key keeps its first position and its last value.
func (r *Records) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("records: expected object, got %v", tok)
	}
	r.Keys = nil
	r.Raw = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("records: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("records: expected key, got %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("records: value for %q: %w", key, err)
		}
		if _, seen := r.Raw[key]; !seen {
			r.Keys = append(r.Keys, key)
		}
		r.Raw[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("records: %w", err)
	}
	return nil
}

// Len returns the number of distinct keys.
func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Keys)
}
