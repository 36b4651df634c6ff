package docstore

import (
	"encoding/json"
	"fmt"
)

// Fields holds the top-level fields of a document. Values are JSON-compatible:
// strings, float64, bool, nil, []any and map[string]any.
type Fields map[string]any

// Normalize converts arbitrary JSON-encodable values into the canonical value set so every
// backend returns identical Go types.
func Normalize(fields Fields) (Fields, error) {
	if fields == nil {
		return Fields{}, nil
	}
	raw, err := json.Marshal(map[string]any(fields))
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return Fields(out), nil
}

// Clone deep-copies normalized fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// MergeInto returns base with every key of patch overwritten.
func (f Fields) MergeInto(base Fields) Fields {
	out := base.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns a string field or "".
func (f Fields) String(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric field or 0.
func (f Fields) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Strings returns a string list field, skipping non-string entries.
func (f Fields) Strings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, typed...)
	default:
		return v
	}
}
