package app

import (
	"io"
	"log/slog"
	"strings"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// parseLogLevel maps a level name onto slog. The empty string means info.
func parseLogLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// newLogger builds the logger of an App from its config. The global logger
// is left untouched so tests can run apps side by side.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	level, _ := parseLogLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == logFormatJSON {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
