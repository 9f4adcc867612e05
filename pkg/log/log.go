// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog handler. Level is one of
// debug, info, warn, error; anything else falls back to info.
func Setup(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}

// WithModule returns a logger tagged with the component name. Every
// long-lived component gets its own module logger.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
