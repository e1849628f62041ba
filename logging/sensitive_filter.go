package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credentials that may end up inside free-form
// strings: detector stderr, command lines, form dumps.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(--api[-_]key[=\s]+[^\s,;]+)`),
	regexp.MustCompile(`(?i)(x-api-key\s*[:=]\s*[^\s,;]+)`),
	regexp.MustCompile(`(?i)(api[-_]?key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(VITALLENS_API_KEY\s*=\s*[^\s,;]+)`),
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{4,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldNames are substrings of structured field keys whose values are never logged.
var sensitiveFieldNames = []string{
	"API_KEY",
	"APIKEY",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"COOKIE",
	"CREDENTIAL",
}

// RedactSensitiveData scans a string value and redacts any detected sensitive data.
//
// Example:
//
//	RedactSensitiveData("vitallens-detect --api-key abc123 --method VITALLENS")
//	// "vitallens-detect [REDACTED] --method VITALLENS"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField returns true if the field name indicates sensitive data.
// Only the name is checked, not the value.
//
//	IsSensitiveField("api_key")  // true
//	IsSensitiveField("method")   // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)

	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value matches any credential pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}

	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
