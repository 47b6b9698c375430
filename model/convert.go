package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/folio-db/folio/schema/field"
)

// toDriverValue converts a field value into a driver-bindable value.
// Objects and jsonb arrays are JSON-encoded; text[] arrays bind through
// pq.Array.
func toDriverValue(fd *field.Descriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch fd.Type {
	case field.TypeArray:
		if fd.TextArray {
			ss, err := stringSlice(v)
			if err != nil {
				return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
			}
			return pq.Array(ss), nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
		}
		return raw, nil
	case field.TypeObject:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
		}
		return raw, nil
	}
	return v, nil
}

// fromDriverValue converts a scanned driver value back into the field's
// value space.
func fromDriverValue(fd *field.Descriptor, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch fd.Type {
	case field.TypeString, field.TypeUUID:
		switch s := raw.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case field.TypeNumber:
		return raw, nil
	case field.TypeBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case field.TypeDate:
		if t, ok := raw.(time.Time); ok {
			return t, nil
		}
	case field.TypeArray:
		if fd.TextArray {
			var a pq.StringArray
			if err := a.Scan(raw); err != nil {
				return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
			}
			return []string(a), nil
		}
		if b, ok := raw.([]byte); ok {
			var out []any
			if err := json.Unmarshal(b, &out); err != nil {
				return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
			}
			return out, nil
		}
	case field.TypeObject:
		if b, ok := raw.([]byte); ok {
			var out map[string]any
			if err := json.Unmarshal(b, &out); err != nil {
				return nil, fmt.Errorf("folio/model: field %q: %w", fd.Name, err)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("folio/model: field %q: cannot decode %T", fd.Name, raw)
}

// normalizeCached repairs type degradation from the cache codec, which
// decodes string slices as []any.
func normalizeCached(fd *field.Descriptor, v any) any {
	if v == nil {
		return nil
	}
	if fd.Type == field.TypeArray && fd.TextArray {
		if vs, ok := v.([]any); ok {
			ss := make([]string, 0, len(vs))
			for _, e := range vs {
				if s, ok := e.(string); ok {
					ss = append(ss, s)
				}
			}
			return ss
		}
	}
	return v
}

func stringSlice(v any) ([]string, error) {
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, len(vs))
		for i, e := range vs {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string array, got %T", v)
}
