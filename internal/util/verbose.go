package util

import (
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger

// InitLogger initializes the global slog logger with appropriate level.
// Logs go to stderr so command output on stdout stays machine readable.
func InitLogger(verbose bool) {
	InitLoggerWithWriter(os.Stderr, verbose)
}

// InitLoggerWithWriter is InitLogger with an explicit destination.
func InitLoggerWithWriter(w io.Writer, verbose bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if verbose {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	if logger == nil {
		// Fallback initialization before the root command has parsed flags
		InitLogger(IsVerbose())
	}
	return logger
}

// ComponentLogger returns l (or the global logger when l is nil) tagged with a component name.
func ComponentLogger(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.With("component", component)
}

// IsVerbose checks if verbose mode is enabled by looking at command line arguments
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}
