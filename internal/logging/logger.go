package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"statekv/internal/config"
)

type Logger struct {
	*slog.Logger
	config *config.LoggingConfig
}

type ContextKey string

const (
	CorrelationIDKey ContextKey = "correlation_id"
	TaskIDKey        ContextKey = "task_id"
)

// NewLogger creates a new structured logger using slog
func NewLogger(cfg *config.LoggingConfig) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if cfg.Output != "" {
			file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err == nil {
				writer = file
			} else {
				writer = os.Stdout
				slog.Warn("Failed to open log file, using stdout", "error", err, "file", cfg.Output)
			}
		} else {
			writer = os.Stdout
		}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text", "console":
		handler = slog.NewTextHandler(writer, opts)
	default:
		// Default to JSON for production
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
	}
}

// NewCorrelationID returns a fresh correlation id for tagging one logical
// unit of work across the task and I/O goroutines.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithContext creates a new logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if correlationID := ctx.Value(CorrelationIDKey); correlationID != nil {
		logger = logger.With("correlation_id", correlationID)
	}

	if taskID := ctx.Value(TaskIDKey); taskID != nil {
		logger = logger.With("task_id", taskID)
	}

	return &Logger{
		Logger: logger,
		config: l.config,
	}
}

// WithField creates a new logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(key, value),
		config: l.config,
	}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With("error", err.Error()),
		config: l.config,
	}
}

// StateOperation logs one batched state-access call against the engine.
// Successful calls are suppressed unless state logging is enabled, so the
// hot path stays quiet.
func (l *Logger) StateOperation(ctx context.Context, operation, state string, batchSize int, duration time.Duration, err error) {
	if err == nil && !l.config.EnableStateLogging {
		return
	}

	logger := l.WithContext(ctx).With(
		"operation", operation,
		"state", state,
		"batch_size", batchSize,
		"duration_ms", duration.Milliseconds(),
	)

	if err != nil {
		logger.Error("State operation failed", "error", err.Error())
	} else {
		logger.Debug("State operation completed")
	}
}

// DrainEvent logs checkpoint barrier activity.
func (l *Logger) DrainEvent(ctx context.Context, event string, inFlight int) {
	l.WithContext(ctx).Info("Drain barrier event",
		"event", event,
		"in_flight", inFlight,
	)
}
