// Package rclog is the read-cache's structured logger: a thin
// package-level wrapper over log/slog so every component logs through
// the same handler and level.
package rclog

import (
	"io"
	"log/slog"
	"os"
)

var log *slog.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init configures the package-level logger. level is one of
// debug/info/warn/error; logFile, if non-empty, duplicates output to a
// file alongside stdout.
func Init(level string, logFile string) error {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})
	log = slog.New(handler)
	slog.SetDefault(log)
	return nil
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { log.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { log.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { log.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { log.Error(msg, args...) }

// WithPath returns a logger scoped to a single pathKey, for the
// decision engine to tag every message with the file a read decision
// concerns.
func WithPath(pathKey string) *slog.Logger {
	return log.With("pathKey", pathKey)
}
