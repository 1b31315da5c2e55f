// Package logging builds the process-wide slog logger. The engine writes
// JSON lines to stdout and leaves collection to the runtime.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger at the given level ("debug", "info", "warn",
// "error"). Unrecognized levels fall back to info.
func New(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Discard returns a logger whose output goes nowhere, for tests that need a
// logger but not its noise.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
