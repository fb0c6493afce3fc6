package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger for the gatehouse binaries. JSON
// output suits aggregated environments; local runs get the text handler. The
// environment name rides along on every record so mixed log streams stay
// attributable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
