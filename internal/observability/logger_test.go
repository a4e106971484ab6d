package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritymap/event-intel/internal/config"
)

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		wantDebug   bool
		wantWarning bool
	}{
		{name: "debug passes everything", level: "debug", wantDebug: true, wantWarning: true},
		{name: "info drops debug", level: "info", wantDebug: false, wantWarning: true},
		{name: "error drops warn", level: "error", wantDebug: false, wantWarning: false},
		{name: "unknown falls back to info", level: "loud", wantDebug: false, wantWarning: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tc.level, LogFormat: "text"})
			require.NotNil(t, logger)
			ctx := context.Background()
			assert.Equal(t, tc.wantDebug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.wantWarning, logger.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
