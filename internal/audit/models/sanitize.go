package models

import (
	"encoding/json"
	"html"
	"strings"
	"time"
)

// Sanitize normalizes a payload into a JSON-serializable property bag. A nil
// payload yields an empty bag. Strings are coerced to valid UTF-8 (replacement,
// not rejection) and HTML-escaped so markup never reaches storage raw. Values
// that cannot be represented as JSON are dropped. Sanitization never fails.
func Sanitize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		clean, ok := sanitizeValue(value)
		if !ok {
			continue
		}
		out[sanitizeString(key)] = clean
	}
	return out
}

func sanitizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		return sanitizeString(v), true
	case bool, int, int32, int64, float32, float64, json.Number:
		return v, true
	case time.Time:
		return v.Format(time.RFC3339Nano), true
	case map[string]any:
		return Sanitize(v), true
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			if clean, ok := sanitizeValue(item); ok {
				items = append(items, clean)
			}
		}
		return items, true
	default:
		// Anything else must survive a JSON round trip or it is dropped
		// (file handles, channels, funcs).
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, false
		}
		return sanitizeDecoded(decoded), true
	}
}

// sanitizeDecoded re-escapes strings inside values that arrived via the JSON
// round trip path.
func sanitizeDecoded(value any) any {
	switch v := value.(type) {
	case string:
		return sanitizeString(v)
	case map[string]any:
		return Sanitize(v)
	case []any:
		for i, item := range v {
			v[i] = sanitizeDecoded(item)
		}
		return v
	default:
		return v
	}
}

func sanitizeString(s string) string {
	return html.EscapeString(strings.ToValidUTF8(s, "�"))
}
