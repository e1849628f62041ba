package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig      = "MISSING_CONFIG"
	ErrCodeInvalidValue       = "INVALID_VALUE"
	ErrCodeConfigFile         = "CONFIG_FILE_UNREADABLE"
	ErrCodeToolMissing        = "TOOL_MISSING"
	ErrCodeDataDirUnwritable  = "DATA_DIR_UNWRITABLE"
	ErrCodeUnknownMethod      = "UNKNOWN_METHOD"
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
)

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file or config.yaml", varName),
	}
}

// ErrInvalidValue returns an error for a value outside its accepted range.
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Correct %s in your .env file or config.yaml", varName),
	}
}

// ErrConfigFileUnreadable returns an error for a config file that exists but cannot be used.
func ErrConfigFileUnreadable(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot read configuration file %s: %s", path, reason),
		Action:  "Fix the file or unset VITALS_CONFIG_FILE to run from environment variables only",
	}
}

// ErrToolMissing returns an error for an external executable that is not installed.
func ErrToolMissing(tool, envVar string) *ConfigError {
	action := fmt.Sprintf("Install %s and make sure it is on PATH", tool)
	if envVar != "" {
		action += fmt.Sprintf(", or point %s at the executable", envVar)
	}
	return &ConfigError{
		Code:    ErrCodeToolMissing,
		Message: fmt.Sprintf("Required tool not found: %s", tool),
		Action:  action,
	}
}

// ErrDataDirUnwritable returns an error for a data directory that cannot be created or written.
func ErrDataDirUnwritable(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeDataDirUnwritable,
		Message: fmt.Sprintf("Data directory %s is not writable: %s", path, reason),
		Action:  "Set DATA_DIR to a writable location",
	}
}

// ErrUnknownMethod returns an error for a DEFAULT_METHOD that names no detection method.
func ErrUnknownMethod(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownMethod,
		Message: fmt.Sprintf("Unknown detection method: %s", name),
		Action:  "Set DEFAULT_METHOD to one of VITALLENS, POS, CHROM or G",
	}
}

// ErrMissingCredentials returns an error for a default method that needs an API key.
func ErrMissingCredentials(method string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingCredentials,
		Message: fmt.Sprintf("Method %s requires an API key", method),
		Action:  "Set VITALLENS_API_KEY in your .env file or pick a free method",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
