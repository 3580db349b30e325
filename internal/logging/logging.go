// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
)

// Level maps the verbose flag to a log level.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Setup installs a text logger writing to w as the slog default.
func Setup(w io.Writer, verbose bool) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level(verbose)}))
	slog.SetDefault(logger)
	return logger
}
