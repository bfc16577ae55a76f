package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/use-agent/harvest/models"
)

// Input is the decoded inputData of a task. Values arrive from JSON, so
// numbers are usually float64 and lists []any.
type Input map[string]any

// String returns the trimmed string at key.
func (in Input) String(key string) string {
	switch v := in[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// Strings returns the non-empty strings at key. A single string is split on
// newlines so form inputs work.
func (in Input) Strings(key string) []string {
	var raw []string
	switch v := in[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(v, "\n")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Float returns the number at key, or def.
func (in Input) Float(key string, def float64) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the integer at key, or def when absent or not positive.
func (in Input) Int(key string, def int) int {
	n := int(in.Float(key, float64(def)))
	if n <= 0 {
		return def
	}
	return n
}

// Bool returns the boolean at key, or def.
func (in Input) Bool(key string, def bool) bool {
	switch v := in[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Records returns the objects at key.
func (in Input) Records(key string) []models.Record {
	var out []models.Record
	switch v := in[key].(type) {
	case []models.Record:
		return v
	case []map[string]any:
		for _, m := range v {
			out = append(out, models.Record(m))
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, models.Record(m))
			}
		}
	}
	return out
}

// present reports whether key holds a non-empty value.
func (in Input) present(key string) bool {
	switch v := in[key].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(in.Strings(key)) > 0
	case []models.Record:
		return len(v) > 0
	case []map[string]any:
		return len(v) > 0
	}
	return true
}

// Validate checks the required fields of info against in.
func Validate(info models.ActorInfo, in Input) error {
	for _, field := range info.Required {
		if !in.present(field) {
			return models.ConfigurationError(field, "is required")
		}
	}
	return nil
}
