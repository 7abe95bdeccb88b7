package tools

import (
	"encoding/json"
	"fmt"
)

// Argument accessors. Arguments have already passed schema validation, so
// they only convert between the JSON and Go representations.

// String returns args[key] or def when absent.
func String(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

// Int returns args[key] as an int or def when absent.
func Int(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// Strings returns a string array argument.
func Strings(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// StringMap returns an object argument whose values are strings.
func StringMap(args map[string]any, key string) map[string]string {
	switch v := args[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = fmt.Sprint(item)
		}
		return out
	}
	return nil
}

// Decode unmarshals an object argument into out.
func Decode(args map[string]any, key string, out any) error {
	raw, ok := args[key]
	if !ok {
		return fmt.Errorf("%s is required", key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
