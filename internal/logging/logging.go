// Package logging configures the service's structured logger.
//
// Grounded on libs/go/core/logging from the teacher repo: slog with a
// JSON/text switch driven by environment variables.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger. JSON output if TI_JSON_LOG is
// 1/true/json, otherwise human-readable text.
func Init(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("TI_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", mode == "1" || mode == "true" || mode == "json")
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("TI_LOG_LEVEL")) {
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
