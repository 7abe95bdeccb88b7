package models

import (
	"encoding/json"
	"fmt"
)

// ToWire validates a record and converts it to JSON-compatible plain data.
// Timestamps become RFC 3339 strings and nested records become nested objects.
func ToWire(r Record) (map[string]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", r, err)
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", r, err)
	}
	return out, nil
}

// ToWireList converts a slice of records, preserving order.
func ToWireList[T Record](records []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		w, err := ToWire(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// FromWire parses the wire form back into a record and re-validates it.
func FromWire[T Record](m map[string]any) (T, error) {
	var out T

	b, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("marshal wire form: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, &ValidationError{Field: "", Message: err.Error(), Code: "DECODE"}
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}
