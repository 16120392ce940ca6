package log

import (
	"fmt"

	"github.com/kataras/golog"
)

// GologLogger implements Logger on top of kataras/golog.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger. Level filtering is
// delegated to the wrapped logger.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger}
}

// Debug logs debug messages.
func (l *GologLogger) Debug(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

// Info logs informational messages.
func (l *GologLogger) Info(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Warn logs warning messages.
func (l *GologLogger) Warn(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

// Error logs error messages.
func (l *GologLogger) Error(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// SetLevel adjusts the wrapped logger's level.
func (l *GologLogger) SetLevel(level Level) {
	name := "info"
	switch level {
	case LevelDebug:
		name = "debug"
	case LevelInfo:
		name = "info"
	case LevelWarn:
		name = "warn"
	case LevelError:
		name = "error"
	case LevelNone:
		name = "disable"
	}
	l.logger.SetLevel(name)
}
