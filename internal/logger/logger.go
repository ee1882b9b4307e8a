package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger and implements the tgbotapi.BotLogger interface.
type Logger struct {
	*slog.Logger
}

func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) *Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{Logger: slog.New(handler)}
}

// Nop discards everything. Used by tests and one-shot CLI commands.
func Nop() *Logger {
	return NewWithWriter(io.Discard, "error")
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// tgbotapi.BotLogger interface methods

func (l *Logger) Println(v ...interface{}) {
	l.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *Logger) Printf(format string, v ...interface{}) {
	l.Debug(fmt.Sprintf(format, v...))
}

// Cron adapts the logger to cron.Logger.
func (l *Logger) Cron() CronLogger {
	return CronLogger{l}
}

type CronLogger struct {
	l *Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
