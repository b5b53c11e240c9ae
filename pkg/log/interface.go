// Package log provides structured logging for the imputation engine.
//
// The package defines a minimal, slog-compatible logging interface backed by
// zerolog. Components obtain a named logger and attach standard attribute
// keys (see attributes.go) so that fit, impute and pooling phases can be
// traced across the factor rounds of an MI or MICE run.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("impute").With(
//	    log.ModelNameKey, "MICE",
//	)
//	logger.Info("Imputation round started",
//	    log.OperationKey, log.OperationImpute,
//	    log.RoundKey, 3,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's
// log/slog calling convention: a message followed by alternating key-value
// pairs.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If a field value is an error, it is rendered with its stack trace
	// when one is attached.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, value-compatible with slog.Level.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists for dependency
// injection and for swapping in the test provider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers from this provider.
	SetLevel(level Level)
}
