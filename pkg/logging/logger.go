// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logging provides a slog-backed logger with a redaction policy for
// sensitive ceremony values.
package logging

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// Redacted replaces sensitive values in log output when redaction is enabled.
const Redacted = "[REDACTED]"

// Logger wraps slog with debug gating and environment-aware redaction.
// With redaction enabled (the production default), challenge values,
// usernames on error paths, and key material never reach the log stream.
type Logger struct {
	logger *slog.Logger
	debug  bool
	redact bool
}

// Options configures a Logger.
type Options struct {
	// Debug enables debug-level output.
	Debug bool

	// RedactSensitive controls whether Sensitive attributes are masked.
	RedactSensitive bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// NewLogger creates a new logger instance.
func NewLogger(opts Options) *Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return &Logger{
		logger: slog.New(handler),
		debug:  opts.Debug,
		redact: opts.RedactSensitive,
	}
}

// DefaultLogger returns a logger with redaction enabled and debug disabled.
func DefaultLogger() *Logger {
	return NewLogger(Options{RedactSensitive: true})
}

// Sensitive returns an attribute whose value is masked when redaction is on.
func (l *Logger) Sensitive(key string, value any) slog.Attr {
	if l.redact {
		return slog.String(key, Redacted)
	}
	return slog.Any(key, value)
}

// Redacting reports whether sensitive values are masked.
func (l *Logger) Redacting() bool {
	return l.redact
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	if l.debug {
		l.logger.Debug(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// FatalError logs a fatal error and exits.
func (l *Logger) FatalError(err error) {
	log.Fatal(err)
}

// Slog returns the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}
