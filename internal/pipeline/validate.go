package pipeline

import (
	"encoding/json"
	"strings"
)

// IsValid decides whether a remote agent response counts as usable content.
// The agents sometimes return syntactically valid but semantically empty JSON
// on soft failures; those must surface as retryable errors, never be
// persisted as success.
//
// Rejected: null, empty body, a string that trims to "" or "{}", a structure
// with zero keys, and a structure whose every value is itself empty.
func IsValid(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" || trimmed == "[]" {
		return false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Non-JSON bodies count as content if non-blank.
		return true
	}
	return nonEmpty(v)
}

// nonEmpty reports whether a decoded JSON value carries at least one
// non-empty field, recursively.
func nonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != "{}"
	case map[string]any:
		for _, val := range t {
			if nonEmpty(val) {
				return true
			}
		}
		return false
	case []any:
		for _, val := range t {
			if nonEmpty(val) {
				return true
			}
		}
		return false
	default:
		// Numbers and booleans are content.
		return true
	}
}
