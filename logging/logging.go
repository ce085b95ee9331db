// Package logging configures the process-wide slog logger from a level
// and a format name, falling back to HASHIT_LOG_LEVEL and
// HASHIT_LOG_FORMAT when a value is empty.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables consulted for empty settings.
const (
	EnvLevel  = "HASHIT_LOG_LEVEL"
	EnvFormat = "HASHIT_LOG_FORMAT"
)

// Defaults.
const (
	DefaultLevel  = "warn"
	DefaultFormat = "text"
)

var (
	// ErrLevel is returned for an unknown level name.
	ErrLevel = errors.New("unknown log level")
	// ErrFormat is returned for an unknown format name.
	ErrFormat = errors.New("unknown log format")
)

// ParseLevel maps a level name to a slog.Level. An empty
// name selects DefaultLevel.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ParseLevel(DefaultLevel)
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrLevel, s)
	}
}

// ParseFormat normalises a format name. An empty name
// selects DefaultFormat.
func ParseFormat(s string) (string, error) {
	switch fo := strings.ToLower(strings.TrimSpace(s)); fo {
	case "":
		return DefaultFormat, nil
	case "text", "json":
		return fo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, s)
	}
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	const errCtx = "building logger"

	if level == "" {
		level = os.Getenv(EnvLevel)
	}

	if format == "" {
		format = os.Getenv(EnvFormat)
	}

	lv, err := ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	fo, err := ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	opts := &slog.HandlerOptions{Level: lv}

	if fo == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Setup installs a logger writing to w as the slog
// default.
func Setup(w io.Writer, level, format string) error {
	lg, err := New(w, level, format)
	if err != nil {
		return err
	}

	slog.SetDefault(lg)

	return nil
}
