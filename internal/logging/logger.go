// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal, disabled.
	// Default: info
	Level string

	// Format is the output format: json or console.
	// Default: json
	Format string

	// Caller includes caller file and line number in logs.
	Caller bool

	// Timestamp enables timestamps in log output.
	// Default: true
	Timestamp bool

	// Output is the writer for log output.
	// Default: os.Stderr
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

// levels maps every accepted level name, aliases included.
var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

var (
	global   zerolog.Logger
	globalMu sync.RWMutex
)

//nolint:gochecknoinits // logging must work before main calls Init
func init() {
	global = build(DefaultConfig())
}

// Init reconfigures the global logger and level. Safe to call more than once.
func Init(cfg Config) {
	logger := build(cfg)

	globalMu.Lock()
	global = logger
	globalMu.Unlock()
}

// build applies defaults to cfg and returns the logger it describes. It also
// sets the process-wide zerolog level and field names.
func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	logCtx := zerolog.New(out).With()
	if cfg.Timestamp {
		logCtx = logCtx.Timestamp()
	}
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}
	return logCtx.Logger()
}

// parseLevel returns the level named by level. Unknown and empty names mean
// info; configuration rejects them earlier through ValidLevel.
func parseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level names a known level.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// With creates a child logger context from the global logger.
//
//	channelLog := logging.With().Str("hub", url).Logger()
func With() zerolog.Context {
	l := Logger()
	return l.With()
}

func atLevel(level zerolog.Level) *zerolog.Event {
	l := Logger()
	return l.WithLevel(level)
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event { return atLevel(zerolog.DebugLevel) }

// Info starts a new message with info level.
func Info() *zerolog.Event { return atLevel(zerolog.InfoLevel) }

// Warn starts a new message with warning level.
func Warn() *zerolog.Event { return atLevel(zerolog.WarnLevel) }

// Error starts a new message with error level.
func Error() *zerolog.Event { return atLevel(zerolog.ErrorLevel) }

// Err starts an error level message carrying err.
//
//	logging.Err(err).Msg("status fetch failed")
func Err(err error) *zerolog.Event {
	l := Logger()
	return l.Err(err)
}
