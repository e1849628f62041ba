package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// redactingCore wraps a zapcore.Core and scrubs credentials from fields and
// messages before they reach any encoder. Because redaction lives in the
// core, every child logger produced by Named/With inherits it.
type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps inner so that sensitive data never reaches it.
func NewRedactingCore(inner zapcore.Core) zapcore.Core {
	return &redactingCore{Core: inner}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = RedactSensitiveData(entry.Message)
	return c.Core.Write(entry, redactFields(fields))
}

// redactFields returns a copy of fields with sensitive values replaced.
func redactFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zapcore.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zapcore.Field) zapcore.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}

	switch field.Type {
	case zapcore.StringType:
		if redacted := RedactSensitiveData(field.String); redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactSensitiveData(msg); redacted != msg {
				return zap.String(field.Key, redacted)
			}
		}
	}
	return field
}
