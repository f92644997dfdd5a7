// Package logger builds the structured logger used by the trainer.
package logger

import (
	"log/slog"
	"os"

	"github.com/HatiCode/millwright/cmd/trainer/config"
)

// New creates an slog.Logger from the configured level and format.
// Unknown levels fall back to info; unknown formats fall back to text.
func New(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
