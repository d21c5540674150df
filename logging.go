package fisco

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the structured logger used throughout a run. Format is
// "json" or "text" (default text), level one of debug/info/warn/error
// (default info).
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
