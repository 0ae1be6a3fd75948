package format

import (
	"testing"
	"time"
)

func TestFormatExecutionDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"microseconds", 250 * time.Microsecond, "250µs"},
		{"milliseconds", 42 * time.Millisecond, "42ms"},
		{"seconds", 3 * time.Second, "3s"},
		{"compound", 90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExecutionDuration(tt.d); got != tt.want {
				t.Errorf("FormatExecutionDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatWatchDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"sub-minute", 12300 * time.Millisecond, "12.3s"},
		{"zero", 0, "0.0s"},
		{"minutes", 5*time.Minute + 12*time.Second, "5.2m"},
		{"exactly one minute", time.Minute, "1.0m"},
		{"hours", 90 * time.Minute, "1.5h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatWatchDuration(tt.d); got != tt.want {
				t.Errorf("FormatWatchDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
