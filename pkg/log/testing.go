// Package log provides testing utilities for structured logging.
//
// TestLogger captures log output in memory so tests can verify that the
// imputation pipeline logs the expected rounds, columns and operations.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TestLogger is a Logger implementation that captures all messages in an
// in-memory buffer for later inspection.
type TestLogger struct {
	buffer *bytes.Buffer
	level  Level
	fields map[string]interface{}
}

// NewTestLogger creates a TestLogger with the given minimum level and
// returns it together with the buffer holding the captured output.
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{
		buffer: buffer,
		level:  level,
		fields: make(map[string]interface{}),
	}, buffer
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) {
	if t.level <= LevelDebug {
		t.writeLog("DEBUG", msg, fields...)
	}
}

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) {
	if t.level <= LevelInfo {
		t.writeLog("INFO", msg, fields...)
	}
}

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) {
	if t.level <= LevelWarn {
		t.writeLog("WARN", msg, fields...)
	}
}

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) {
	if t.level <= LevelError {
		t.writeLog("ERROR", msg, fields...)
	}
}

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	newFields := make(map[string]interface{})
	for k, v := range t.fields {
		newFields[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		value := fields[i+1]
		if err, ok := value.(error); ok {
			newFields[key] = err.Error()
		} else {
			newFields[key] = value
		}
	}
	return &TestLogger{
		buffer: t.buffer,
		level:  t.level,
		fields: newFields,
	}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(ctx context.Context, level Level) bool {
	return t.level <= level
}

// writeLog writes a log entry to the buffer as a JSON line.
func (t *TestLogger) writeLog(level, msg string, fields ...any) {
	entry := map[string]interface{}{
		"level":   level,
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		value := fields[i+1]
		if err, ok := value.(error); ok {
			entry[key] = err.Error()
		} else {
			entry[key] = value
		}
	}
	jsonData, _ := json.Marshal(entry)
	t.buffer.WriteString(string(jsonData) + "\n")
}

// GetLogEntries parses the captured output into structured entries.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	lines := strings.Split(strings.TrimSpace(t.buffer.String()), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured entry contains the message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether any captured entry has the field set to value.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if fieldValue, exists := entry[key]; exists {
			if fieldValue == value {
				return true
			}
		}
	}
	return false
}

// Clear drops all captured log content.
func (t *TestLogger) Clear() {
	t.buffer.Reset()
}

// TestLoggerProvider implements LoggerProvider for tests.
type TestLoggerProvider struct {
	logger *TestLogger
	buffer *bytes.Buffer
}

// NewTestLoggerProvider creates a provider whose loggers all write into one
// shared capture buffer.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{
		logger: logger,
		buffer: buffer,
	}, buffer
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.level = level
}

// GetBuffer returns the shared capture buffer.
func (p *TestLoggerProvider) GetBuffer() *bytes.Buffer {
	return p.buffer
}
