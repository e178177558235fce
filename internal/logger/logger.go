// Package logger provides structured logging configuration for the application.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format (production default)
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in human-readable text format
	FormatText LogFormat = "text"
)

// Options controls a logger built by NewWithOptions
type Options struct {
	Level   slog.Level
	Format  LogFormat
	Service string
}

// New creates a logger for service from LOG_LEVEL and LOG_FORMAT, writing
// to stdout.
//
// LOG_LEVEL options: debug, info, warn, error (default: info)
// LOG_FORMAT options: json, text (default: json)
func New(service string) *slog.Logger {
	return NewWithOptions(os.Stdout, Options{
		Level:   ParseLevel(os.Getenv("LOG_LEVEL"), slog.LevelInfo),
		Format:  ParseFormat(os.Getenv("LOG_FORMAT"), FormatJSON),
		Service: service,
	})
}

// NewCLI creates a logger for interactive commands: text on stderr, quiet
// unless LOG_LEVEL asks for more.
func NewCLI() *slog.Logger {
	return NewWithOptions(os.Stderr, Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL"), slog.LevelWarn),
		Format: ParseFormat(os.Getenv("LOG_FORMAT"), FormatText),
	})
}

// NewWithOptions builds a logger writing to w
func NewWithOptions(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: opts.Level,
		// source locations only when the level lets warnings through
		AddSource: opts.Level <= slog.LevelWarn && opts.Format == FormatJSON,
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	return l
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog.Level, returning def for unknown names
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}

// ParseFormat maps a format name to a LogFormat, returning def for unknown names
func ParseFormat(s string, def LogFormat) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return def
	}
}

// SetDefault sets the given logger as the default slog logger
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
