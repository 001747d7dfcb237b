// Package logging builds the diagnostics logger. Diagnostics go to stderr;
// durable run records belong in the audit log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options configures New
type Options struct {
	Level slog.Level
	Color bool
}

// New returns a logger writing through a ConsoleHandler
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewConsoleHandler(w, opts.Color, &slog.HandlerOptions{Level: opts.Level}))
}

// ForTerminal returns a logger on f with colors when f is a terminal and
// NO_COLOR is unset. verbose lowers the level to DEBUG.
func ForTerminal(f *os.File, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return New(f, Options{Level: level, Color: ColorEnabled(f)})
}

// ColorEnabled reports whether ANSI colors should be written to f
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel parses debug, info, warn or error
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
