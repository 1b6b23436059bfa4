package logging

import "strings"

// RedactedValue replaces sensitive values in emitted logs.
const RedactedValue = "[REDACTED]"

// sensitive field keys, matched as substrings of the lowercased key.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"cookie",
	"authorization",
}

// Redact returns a copy of fields with values under sensitive keys replaced.
// Nested maps are redacted recursively. The input map is not modified.
func Redact(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
