package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config controls the process logger.
type Config struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

// New builds the root logger. Console mode uses the human-readable
// writer; otherwise events are emitted as JSON lines on stdout.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"

	var w io.Writer = os.Stdout
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	}

	return zerolog.New(w).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
}

// ParseLevel maps a config string to a zerolog level, falling back to
// def on unknown input.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return def
	default:
		return def
	}
}
