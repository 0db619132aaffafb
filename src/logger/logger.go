package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ticker-monitor/src/config"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger is the printf-style application logger backed by zerolog.
// Messages follow the "<component> : <message>" convention used across the service.
type Logger struct {
	zl zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger builds the application logger from the log section of the config.
func NewLogger(config *config.Config, name string) *Logger {
	var out io.Writer = os.Stderr
	if config.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return New(out, config.Log.Level, name)
}

// -----------------------------------------------------------------------------

// New creates a logger writing to out with the given level name.
// Unknown levels fall back to info.
func New(out io.Writer, level string, name string) *Logger {
	lvl, err := zerolog.ParseLevel(normalizeLevel(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(lvl).With().Timestamp().Str("app", name).Logger()
	return &Logger{zl: zl}
}

// -----------------------------------------------------------------------------

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warning(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Critical logs at fatal level without exiting; callers decide whether to stop.
func (l *Logger) Critical(format string, args ...any) {
	l.zl.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// normalizeLevel maps the config spelling onto zerolog level names.
func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return "warn"
	case "critical":
		return "fatal"
	case "":
		return "info"
	default:
		return strings.ToLower(strings.TrimSpace(level))
	}
}
