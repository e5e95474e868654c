package poll

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Decode parses a raw JSON value. Text that is not valid JSON is returned
// unchanged as a string.
func Decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Truthy maps a decoded value to a boolean. Numbers are true when non-zero;
// strings follow the usual on/off spellings.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes", "enabled", "active", "running":
			return true
		}
		return false
	default:
		return false
	}
}

// FormatValue renders a decoded value as display text. Strings are shown
// verbatim, numbers in their shortest form, and lists or objects as JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Field walks a decoded object using dot notation ("axis.x.position").
// It reports false when a segment is missing or not an object.
func Field(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// BindValue substitutes value into a set-query. A "{}" placeholder is
// replaced; without one the value is appended as a call argument.
func BindValue(setQuery, value string) string {
	if strings.Contains(setQuery, "{}") {
		return strings.ReplaceAll(setQuery, "{}", value)
	}
	return setQuery + "(" + value + ")"
}
