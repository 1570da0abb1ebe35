package logging

import (
	"fmt"
	"log"
	"strings"
)

// Level represents logging verbosity
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = map[string]Level{
	"ERROR": LevelError,
	"WARN":  LevelWarn,
	"INFO":  LevelInfo,
	"DEBUG": LevelDebug,
}

// ParseLevel maps ERROR, WARN, INFO or DEBUG (any case) to a Level
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	for name, v := range levelNames {
		if v == l {
			return name
		}
	}
	return "UNKNOWN"
}

// Logger writes leveled lines through the standard logger, tagged with a
// bracketed component name
type Logger struct {
	level     Level
	component string
	printf    func(format string, args ...interface{})
}

// New creates a logger for component at the given level
func New(level Level, component string) *Logger {
	return &Logger{level: level, component: component, printf: log.Printf}
}

// With returns a logger for another component at the same level
func (l *Logger) With(component string) *Logger {
	return &Logger{level: l.level, component: component, printf: l.printf}
}

// Level returns the current level
func (l *Logger) Level() Level {
	return l.level
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.level >= level
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.printf("["+l.component+"] "+level.String()+" "+format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) { l.logf(LevelWarn, format, args...) }

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) { l.logf(LevelInfo, format, args...) }

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
