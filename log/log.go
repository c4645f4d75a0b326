// Package log is the leveled logger shared by the strictpgs packages and the pgsctl command.
//
// It wraps log/slog with printf-style helpers taking a context, and allows
// redirecting every level to a custom handler (for instance the systemd journal).
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"
)

type (
	// Level is the log level for the logs.
	Level = slog.Level

	// Handler is the log handler function.
	Handler = func(_ context.Context, _ Level, format string, args ...any)
)

const (
	// ErrorLevel level. Used for errors that should definitely be noted.
	ErrorLevel = slog.LevelError
	// WarnLevel level. Non-critical entries that deserve eyes.
	WarnLevel = slog.LevelWarn
	// NoticeLevel level. Normal but significant conditions, such as a migrated
	// or repaired account database. slog doesn't have a Notice level, so we use
	// the average between Info and Warn.
	NoticeLevel = (slog.LevelInfo + slog.LevelWarn) / 2
	// InfoLevel level. General operational entries about what's going on inside the application.
	InfoLevel = slog.LevelInfo
	// DebugLevel level. Very verbose logging.
	DebugLevel = slog.LevelDebug
)

var allLevels = []Level{DebugLevel, InfoLevel, NoticeLevel, WarnLevel, ErrorLevel}

var (
	mu       sync.RWMutex
	level    = NoticeLevel
	output   io.Writer
	handlers = maps.Clone(defaultHandlers)
)

var defaultHandlers = map[Level]Handler{
	DebugLevel:  slogAdapter(slog.DebugContext),
	InfoLevel:   slogAdapter(slog.InfoContext),
	NoticeLevel: slogLevelAdapter(NoticeLevel),
	WarnLevel:   slogAdapter(slog.WarnContext),
	ErrorLevel:  slogAdapter(slog.ErrorContext),
}

func slogAdapter(f func(ctx context.Context, msg string, args ...any)) Handler {
	return func(ctx context.Context, _ Level, format string, args ...any) {
		f(ctx, fmt.Sprintf(format, args...))
	}
}

func slogLevelAdapter(l Level) Handler {
	return func(ctx context.Context, _ Level, format string, args ...any) {
		slog.Default().Log(ctx, l, fmt.Sprintf(format, args...))
	}
}

func init() {
	SetOutput(os.Stderr)
}

// GetLevel gets the standard logger level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetLevel sets the standard logger level and returns the previous one.
func SetLevel(l Level) (oldLevel Level) {
	mu.Lock()
	oldLevel = level
	level = l
	out := output
	mu.Unlock()

	slog.SetDefault(slog.New(NewSimpleHandler(out, l)))
	return oldLevel
}

// SetOutput sets the log output.
func SetOutput(out io.Writer) {
	mu.Lock()
	output = out
	l := level
	mu.Unlock()

	slog.SetDefault(slog.New(NewSimpleHandler(out, l)))
}

// IsLevelEnabled checks if the log level is greater than the level param.
func IsLevelEnabled(l Level) bool {
	return slog.Default().Enabled(context.Background(), l)
}

// SetHandler allows to define the handler function for all log levels.
// A nil handler restores the default slog handlers.
func SetHandler(handler Handler) {
	mu.Lock()
	defer mu.Unlock()

	if handler == nil {
		handlers = maps.Clone(defaultHandlers)
		return
	}
	for _, l := range allLevels {
		handlers[l] = handler
	}
}

func logf(ctx context.Context, l Level, format string, args ...any) {
	if !slog.Default().Enabled(ctx, l) {
		return
	}

	mu.RLock()
	handler := handlers[l]
	mu.RUnlock()

	handler(ctx, l, format, args...)
}

// Debug outputs messages with the level [DebugLevel].
func Debug(ctx context.Context, args ...any) {
	logf(ctx, DebugLevel, "%s", fmt.Sprint(args...))
}

// Debugf outputs messages with the level [DebugLevel].
func Debugf(ctx context.Context, format string, args ...any) {
	logf(ctx, DebugLevel, format, args...)
}

// Info outputs messages with the level [InfoLevel].
func Info(ctx context.Context, args ...any) {
	logf(ctx, InfoLevel, "%s", fmt.Sprint(args...))
}

// Infof outputs messages with the level [InfoLevel].
func Infof(ctx context.Context, format string, args ...any) {
	logf(ctx, InfoLevel, format, args...)
}

// Notice outputs messages with the level [NoticeLevel].
func Notice(ctx context.Context, args ...any) {
	logf(ctx, NoticeLevel, "%s", fmt.Sprint(args...))
}

// Noticef outputs messages with the level [NoticeLevel].
func Noticef(ctx context.Context, format string, args ...any) {
	logf(ctx, NoticeLevel, format, args...)
}

// Warning outputs messages with the level [WarnLevel].
func Warning(ctx context.Context, args ...any) {
	logf(ctx, WarnLevel, "%s", fmt.Sprint(args...))
}

// Warningf outputs messages with the level [WarnLevel].
func Warningf(ctx context.Context, format string, args ...any) {
	logf(ctx, WarnLevel, format, args...)
}

// Error outputs messages with the level [ErrorLevel].
func Error(ctx context.Context, args ...any) {
	logf(ctx, ErrorLevel, "%s", fmt.Sprint(args...))
}

// Errorf outputs messages with the level [ErrorLevel].
func Errorf(ctx context.Context, format string, args ...any) {
	logf(ctx, ErrorLevel, format, args...)
}
