// Package roomlog builds the structured, Loki-compatible logger used
// across the room server, and a handful of helpers for logging errors
// and recovered panics with consistent fields.
package roomlog

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the logger's minimum level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// New creates a structured logger: JSON by default (Loki-compatible),
// or a human-readable console writer when Format is "pretty".
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "roomsync").
		Logger()
}

// Init installs New's logger as the package-level global logger
// (github.com/rs/zerolog/log), for code that logs via the global.
func Init(cfg Config) {
	log.Logger = New(cfg)
}

// Error logs err with a message and arbitrary context fields.
func Error(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// ErrorWithStack logs err with a captured stack trace, for unexpected
// failures where the call path matters.
func ErrorWithStack(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err).Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Panic logs a recovered panic value with a stack trace. Call from a
// deferred recover() block before deciding whether to re-panic.
func Panic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
