// Package log: zerolog-backed implementation of the Logger interface.

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	// ErrAttrKey is the attribute key under which error values are logged.
	ErrAttrKey = "error"
	// StacktraceAttrKey is the attribute key for extracted stack traces.
	StacktraceAttrKey = "stacktrace"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps a zerolog.Logger in the Logger interface.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (z *zerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.zl.Debug(), msg, fields)
}

func (z *zerologLogger) Info(msg string, fields ...any) {
	z.emit(z.zl.Info(), msg, fields)
}

func (z *zerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.zl.Warn(), msg, fields)
}

func (z *zerologLogger) Error(msg string, fields ...any) {
	z.emit(z.zl.Error(), msg, fields)
}

func (z *zerologLogger) With(fields ...any) Logger {
	zctx := z.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		zctx = zctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: zctx.Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.zl.GetLevel()
}

// emit appends the key-value pairs to a zerolog event. Error values are
// logged under their key, and a stack trace attribute is added when
// cockroachdb/errors carries one.
func (z *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
			if st := extractStacktrace(v); st != "" {
				e = e.Str(StacktraceAttrKey, st)
			}
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

// extractStacktrace pulls the first safe detail (the stack trace) off a
// cockroachdb/errors error chain.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// defaultProvider is the package-level zerolog provider.
type defaultProvider struct {
	mu    sync.RWMutex
	level Level
	out   io.Writer
}

func (p *defaultProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	zl := zerolog.New(p.out).Level(toZerologLevel(p.level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

func (p *defaultProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *defaultProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = &defaultProvider{level: LevelInfo, out: os.Stderr}
)

// SetProvider replaces the package-level logger provider. Pass a
// TestLoggerProvider in tests to capture output.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the minimum level of the package-level provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}
