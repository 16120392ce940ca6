package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug for detailed ingestion tracing.
	LevelDebug Level = iota
	// LevelInfo for general progress messages.
	LevelInfo
	// LevelWarn for recoverable problems such as dropped relations.
	LevelWarn
	// LevelError for failures that abort an operation.
	LevelError
	// LevelNone disables all logging.
	LevelNone
)

// String returns the string representation of Level.
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
	case LevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// Logger is the logging interface used across the inventory graph packages.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// StdLogger implements Logger using Go's standard log package.
type StdLogger struct {
	logger *stdlog.Logger
	level  Level
}

// NewStdLogger creates a logger writing to stderr at the given level.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{
		logger: stdlog.New(os.Stderr, "[invgraph] ", stdlog.LstdFlags),
		level:  level,
	}
}

// NewWriterLogger creates a logger with a custom output writer.
func NewWriterLogger(out io.Writer, level Level) *StdLogger {
	return &StdLogger{
		logger: stdlog.New(out, "[invgraph] ", stdlog.LstdFlags),
		level:  level,
	}
}

// Debug logs debug messages.
func (l *StdLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs informational messages.
func (l *StdLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs warning messages.
func (l *StdLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs error messages.
func (l *StdLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// NopLogger discards all messages.
type NopLogger struct{}

// Debug does nothing.
func (NopLogger) Debug(format string, v ...any) {}

// Info does nothing.
func (NopLogger) Info(format string, v ...any) {}

// Warn does nothing.
func (NopLogger) Warn(format string, v ...any) {}

// Error does nothing.
func (NopLogger) Error(format string, v ...any) {}

// Package-level logger, defaulting to info-level stderr output.
var defaultLogger Logger = NewStdLogger(LevelInfo)

// SetDefault replaces the package-level logger.
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// Default returns the current package-level logger.
func Default() Logger {
	return defaultLogger
}

// SetLevel installs a stderr logger at the given level as the default.
func SetLevel(level Level) {
	defaultLogger = NewStdLogger(level)
}
