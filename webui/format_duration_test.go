package webui

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"sub-second", 400 * time.Millisecond, "0s"},
		{"45 seconds", 45 * time.Second, "45s"},
		{"one minute", time.Minute, "1m 0s"},
		{"minute and a half", time.Minute + 30*time.Second, "1m 30s"},
		{"two hours 34 minutes", 2*time.Hour + 34*time.Minute, "2h 34m"},
		{"three days 12 hours", 3*24*time.Hour + 12*time.Hour, "3d 12h"},
		{"one week 3 days", 10 * 24 * time.Hour, "1w 3d"},
		{"negative", -5 * time.Minute, "-5m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}
