// Package logging provides the structured logger shared by every component
// of the batch pipeline. It wraps zerolog so call sites never import it
// directly, the same separation internal/logger draws over its own backend.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures a Logger at construction time.
type Options struct {
	Level  string // debug, info, warn, error; defaults to info
	Writer io.Writer
	Human  bool // pretty console output instead of JSON
}

// Logger is a thin, chainable wrapper around a zerolog.Logger.
type Logger struct {
	base zerolog.Logger
}

// New creates a Logger from Options.
func New(opts Options) *Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	if opts.Human {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	level := parseLevel(opts.Level)
	base := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return &Logger{base: base}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a derived logger that always carries the given key/value
// pair, mirroring a WithFields-returns-derived-logger pattern.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base.With().Interface(key, value).Logger()}
}

// Info writes an informational log entry with optional key/value pairs.
func (l *Logger) Info(msg string, kv ...any) {
	l.event(l.base.Info(), msg, kv...)
}

// Debug writes a debug-level log entry.
func (l *Logger) Debug(msg string, kv ...any) {
	l.event(l.base.Debug(), msg, kv...)
}

// Warn writes a warning-level log entry.
func (l *Logger) Warn(msg string, kv ...any) {
	l.event(l.base.Warn(), msg, kv...)
}

// Error writes an error-level log entry including the triggering error.
func (l *Logger) Error(err error, msg string, kv ...any) {
	evt := l.base.Error()
	if err != nil {
		evt = evt.Err(err)
	}
	l.event(evt, msg, kv...)
}

func (l *Logger) event(evt *zerolog.Event, msg string, kv ...any) {
	if l == nil || evt == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		evt = evt.Interface(key, kv[i+1])
	}
	evt.Msg(strings.TrimSpace(msg))
}
