package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		fallback zapcore.Level
		want     zapcore.Level
	}{
		{"debug", zapcore.InfoLevel, zapcore.DebugLevel},
		{"DEBUG", zapcore.InfoLevel, zapcore.DebugLevel},
		{" info ", zapcore.DebugLevel, zapcore.InfoLevel},
		{"warn", zapcore.InfoLevel, zapcore.WarnLevel},
		{"warning", zapcore.InfoLevel, zapcore.WarnLevel},
		{"Error", zapcore.InfoLevel, zapcore.ErrorLevel},
		{"", zapcore.WarnLevel, zapcore.WarnLevel},
		{"verbose", zapcore.ErrorLevel, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input, tt.fallback); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
