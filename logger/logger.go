// Package logger provides the leveled logger used across otprobe.
//
// It wraps zerolog behind a small printf-style interface so that transport
// and probe code can log without depending on zerolog directly.
package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNilWriter indicates that no output writer was provided.
	ErrNilWriter = errors.New("otprobe/logger: writer cannot be nil")
)

// --------------------------------------------------------------------------------
// Types

// Interface is the logging contract consumed by the transport and the probe.
type Interface interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	// With returns a child logger that attaches key=value to every entry.
	With(key string, value any) Interface
}

// Logger is a zerolog-backed Interface.
type Logger struct {
	zl zerolog.Logger
}

var _ Interface = (*Logger)(nil)

// --------------------------------------------------------------------------------
// Constructors

// New creates a console logger writing to w at the given level.
//
// Accepted levels are the zerolog level names (trace, debug, info, warn,
// error, fatal, panic, disabled). An empty level means info.
func New(level string, w io.Writer) (*Logger, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: color.NoColor}
	zl := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("otprobe/logger: invalid level %q: %w", level, err)
	}

	if lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("otprobe/logger: invalid level %q", level)
	}

	return lvl, nil
}

// --------------------------------------------------------------------------------
// Methods

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key string, value any) Interface {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Level reports the minimum level that is written.
func (l *Logger) Level() zerolog.Level {
	return l.zl.GetLevel()
}
