package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Source looks up a raw configuration value by key.
// The boolean reports whether the key was present with a non-empty value.
type Source func(key string) (string, bool)

// EnvSource reads values from the process environment.
func EnvSource() Source {
	return func(key string) (string, bool) {
		value := os.Getenv(key)
		return value, value != ""
	}
}

// MapSource reads values from a fixed map. Used for YAML file values and tests.
func MapSource(values map[string]string) Source {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok && value != ""
	}
}

// Layered returns a Source that consults each source in order and returns
// the first value found. Earlier sources win.
func Layered(sources ...Source) Source {
	return func(key string) (string, bool) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			if value, ok := src(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

// String returns the value of key or defaultValue when unset.
func (s Source) String(key, defaultValue string) string {
	if value, ok := s(key); ok {
		return value
	}
	return defaultValue
}

// Int parses key as an integer.
// Returns the default value if the key is not set or cannot be parsed.
func (s Source) Int(key string, defaultValue int) int {
	if value, ok := s(key); ok {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Float parses key as a float64.
// Returns the default value if the key is not set or cannot be parsed.
func (s Source) Float(key string, defaultValue float64) float64 {
	if value, ok := s(key); ok {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// Bool parses key as a boolean.
// Accepts case-insensitive: "true", "1", "yes", "on" as true values.
// Accepts case-insensitive: "false", "0", "no", "off" as false values.
// Returns the default value if the key is not set or cannot be parsed.
func (s Source) Bool(key string, defaultValue bool) bool {
	value, ok := s(key)
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// Seconds parses key as a whole number of seconds.
func (s Source) Seconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(s.Int(key, defaultSeconds)) * time.Second
}

// List splits a comma-separated value, trimming whitespace and dropping
// empty entries. Returns defaultValue when the key is unset or yields nothing.
func (s Source) List(key string, defaultValue []string) []string {
	value, ok := s(key)
	if !ok {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
