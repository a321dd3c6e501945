package model

import (
	"encoding/json"
	"time"
)

// FlattenProperties converts a property map into the scalar-only shape the
// graph store is assumed to accept: times become ISO 8601 strings, and
// slices/maps become JSON strings. Keys not present or nil are omitted.
func FlattenProperties(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		if fv := flattenValue(v); fv != nil {
			out[k] = fv
		}
	}
	return out
}

func flattenValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	case string, bool, int, int64, float64:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	}
}

// UnflattenKnownField reverses FlattenProperties for the fields spec §9 names
// as needing reconstruction on read: metadata, dependencies, size, lines,
// version, lastModified, created.
func UnflattenKnownField(field string, raw string, target interface{}) error {
	return json.Unmarshal([]byte(raw), target)
}
