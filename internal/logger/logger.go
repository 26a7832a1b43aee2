// Package logger builds the zerolog logger shared by the CLI and engine:
// a human console writer on stderr plus an optional rotating log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Options selects the level and outputs of a logger
type Options struct {
	Level string
	// File enables a rotating log file when non-empty
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console is where human-readable output goes, stderr when nil
	Console io.Writer
	NoColor bool
}

// New creates a logger from opts. An unknown level falls back to warn so a
// typo in the config never floods the terminal.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}

	writers := []io.Writer{
		zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = time.Kitchen
			w.NoColor = opts.NoColor
		}),
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    withDefault(opts.MaxSizeMB, 10),
			MaxBackups: withDefault(opts.MaxBackups, 3),
			MaxAge:     withDefault(opts.MaxAgeDays, 28),
		})
	}

	return zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func withDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
