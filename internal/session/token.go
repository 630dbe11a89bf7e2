package session

import (
	"encoding/json"
	"strings"
)

// tokenFields are probed in order when the stored value turns out to be a
// structured object instead of a plain bearer string.
var tokenFields = []string{"access_token", "accessToken", "token", "jwt"}

// ExtractToken recovers a bearer-token string from a value of unknown shape.
// Login responses get persisted in different forms across backend versions:
// a raw string, a serialized object, or the literal "[object Object]" left
// behind by a buggy writer. Rather than sending garbage verbatim, every read
// boundary runs the stored value through this one function.
//
// Resolution order: direct string use (unless it looks like JSON or is the
// known-bad literal), structured field lookup including one data.* level,
// JSON-parse-then-retry, else empty string (caller treats as no token).
func ExtractToken(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return extractFromString(t)
	case map[string]any:
		return extractFromMap(t)
	case []byte:
		return extractFromString(string(t))
	default:
		return ""
	}
}

func extractFromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[object Object]" {
		return ""
	}
	// A value that parses as JSON was a serialized object (or quoted
	// string) all along; re-extract instead of sending it verbatim.
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "\"") {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			switch p := parsed.(type) {
			case string:
				return extractFromString(p)
			case map[string]any:
				return extractFromMap(p)
			}
		}
		return ""
	}
	return s
}

func extractFromMap(m map[string]any) string {
	for _, field := range tokenFields {
		if raw, ok := m[field]; ok {
			if s, ok := raw.(string); ok && s != "" && s != "[object Object]" {
				return s
			}
		}
	}
	// One level of data.* nesting, nothing deeper.
	if data, ok := m["data"].(map[string]any); ok {
		for _, field := range tokenFields {
			if s, ok := data[field].(string); ok && s != "" && s != "[object Object]" {
				return s
			}
		}
	}
	return ""
}
