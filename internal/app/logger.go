package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app's logger. An explicit level wins over the
// HERMIT_LOG fallback; an empty or unrecognized level means info. The
// global logger is never touched, so App instances stay isolated.
func newLogger(level, fallback, format string, outW io.Writer) *slog.Logger {
	if level == "" {
		level = fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
