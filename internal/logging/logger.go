// Package logging writes structured JSON log records for deliberations,
// suitable for post-hoc analysis of a session. Scoping helpers
// (WithConversation, WithSession, ...) derive child loggers so every record
// of one deliberation carries the same correlation fields.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Level names accepted in configuration.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger is a slog JSON logger bound to an optional log file. Deriving a
// child shares the file; Close belongs to the root logger.
type Logger struct {
	sl   *slog.Logger
	file *os.File
}

// NewLogger opens {dataDir}/synod.log for appending and logs JSON records
// at or above the given level. An empty dataDir logs to stderr instead.
func NewLogger(dataDir, level string) (*Logger, error) {
	var w io.Writer = os.Stderr
	var file *os.File

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dataDir, "synod.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, file = f, f
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{sl: slog.New(handler), file: file}, nil
}

// NopLogger returns a Logger that discards everything.
func NopLogger() *Logger {
	return &Logger{sl: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// parseLevel maps a configured level name to its slog level, defaulting to
// INFO for anything unrecognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// derive returns a child logger carrying extra attributes on every record.
func (l *Logger) derive(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...), file: l.file}
}

// WithConversation scopes records to one conversation.
func (l *Logger) WithConversation(conversationID string) *Logger {
	return l.derive("conversation_id", conversationID)
}

// WithSession scopes records to one deliberation session.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.derive("session_id", sessionID)
}

// WithModel scopes records to one participant model.
func (l *Logger) WithModel(model string) *Logger {
	return l.derive("model", model)
}

// WithStage scopes records to one pipeline stage.
func (l *Logger) WithStage(stage string) *Logger {
	return l.derive("stage", stage)
}

// With derives a child with arbitrary alternating key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return l.derive(args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sl.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sl.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sl.Error(msg, args...) }

// Close syncs and closes the log file. Stderr- and nop-backed loggers have
// nothing to close. Call it once, on the root logger.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	l.file = nil
	return nil
}
