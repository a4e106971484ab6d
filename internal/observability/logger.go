// Package observability provides the process-wide logger and Prometheus
// metrics for the service.
package observability

import (
	"log/slog"
	"os"

	"github.com/veritymap/event-intel/internal/config"
)

// NewLogger builds the process-wide structured logger from config.
// LOG_FORMAT selects json (default) or text handlers; unknown LOG_LEVEL
// values fall back to info.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
