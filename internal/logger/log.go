package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"team-pulse/internal/config"

	"gopkg.in/lumberjack.v2"
)

type runKey struct{}

// Init installs the process-wide JSON logger. The returned func closes the
// rotating log file, if one was opened.
func Init(cfg config.LogConfig) func() {
	var writers []io.Writer
	var file *lumberjack.Logger
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	SetOutput(io.MultiWriter(writers...), cfg.Level)
	Info("logger initialized", "level", cfg.Level, "file", cfg.File)
	return func() {
		if file != nil {
			file.Close()
		}
	}
}

// SetOutput replaces the default logger; tests point it at a buffer.
func SetOutput(w io.Writer, level string) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
}

// WithRun tags ctx with a batch run id that Ctx adds to every record.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// Ctx returns the default logger carrying the run id from ctx, if any.
func Ctx(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(runKey{}).(string); ok && id != "" {
		return slog.Default().With("run_id", id)
	}
	return slog.Default()
}

func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }
func Debug(msg string, args ...any) { slog.Debug(msg, args...) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
