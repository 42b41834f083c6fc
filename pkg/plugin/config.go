package plugin

import (
	"log/slog"
	"time"
)

// String returns cfg[key] if it is a non-empty string, otherwise def.
func String(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns cfg[key] as an int, accepting the numeric types produced by
// YAML and JSON decoding.
func Int(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return def
}

// Float returns cfg[key] as a float64.
func Float(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Duration returns cfg[key] as a time.Duration, accepting a duration or a
// string such as "30s".
func Duration(cfg map[string]any, key string, def time.Duration) time.Duration {
	switch v := cfg[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Strings returns cfg[key] as a string slice.
func Strings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Logger returns cfg["logger"] if it holds a *slog.Logger, otherwise the
// default logger.
func Logger(cfg map[string]any) *slog.Logger {
	if l, ok := cfg["logger"].(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
