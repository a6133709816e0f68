package media

import (
	"testing"

	"media-ingest/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

func TestVipsSeverity(t *testing.T) {
	tests := []struct {
		level vips.LogLevel
		want  logging.LogLevel
	}{
		{vips.LogLevelError, logging.LevelError},
		{vips.LogLevelCritical, logging.LevelError},
		{vips.LogLevelWarning, logging.LevelWarn},
		{vips.LogLevelMessage, logging.LevelInfo},
		{vips.LogLevelInfo, logging.LevelInfo},
		{vips.LogLevelDebug, logging.LevelDebug},
	}

	for _, tt := range tests {
		if got := vipsSeverity(tt.level); got != tt.want {
			t.Errorf("vipsSeverity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestVipsLogSettings(t *testing.T) {
	tests := []struct {
		name     string
		appLevel logging.LogLevel
		want     vips.LogLevel
	}{
		{name: "Debug", appLevel: logging.LevelDebug, want: vips.LogLevelInfo},
		{name: "Info", appLevel: logging.LevelInfo, want: vips.LogLevelWarning},
		{name: "Warn", appLevel: logging.LevelWarn, want: vips.LogLevelError},
		{name: "Error", appLevel: logging.LevelError, want: vips.LogLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, handler := vipsLogSettings(tt.appLevel)
			if got != tt.want {
				t.Errorf("vipsLogSettings(%v) verbosity = %v, want %v", tt.appLevel, got, tt.want)
			}
			if handler == nil {
				t.Fatal("vipsLogSettings() returned nil handler")
			}
			// Must not panic for any level.
			handler("VIPS", vips.LogLevelDebug, "debug message")
			handler("VIPS", vips.LogLevelError, "error message")
		})
	}
}

func TestQualityOrDefault(t *testing.T) {
	tests := []struct {
		q, def, want int
	}{
		{0, 90, 90},
		{-5, 90, 90},
		{101, 90, 90},
		{75, 90, 75},
		{100, 90, 100},
	}

	for _, tt := range tests {
		if got := qualityOrDefault(tt.q, tt.def); got != tt.want {
			t.Errorf("qualityOrDefault(%d, %d) = %d, want %d", tt.q, tt.def, got, tt.want)
		}
	}
}
