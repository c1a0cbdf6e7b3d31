package ccx

import (
	"context"
	"log/slog"
	"time"
)

// Override operations reported to an OverrideLogger.
const (
	OpGet   = "get"
	OpLoad  = "load"
	OpSet   = "set"
	OpClear = "clear"
	OpEmit  = "emit"
)

// OverrideLogEvent describes one override operation for logging.
type OverrideLogEvent struct {
	Op       string
	CohortID string
	Location Location
	Field    string
	// Hit reports whether a get was served from the resolved-override cache.
	Hit      bool
	Duration time.Duration
	Err      error
}

// OverrideLogger records override events.
type OverrideLogger interface {
	LogOverride(OverrideLogEvent)
}

// OverrideLoggerFunc adapts a function to OverrideLogger.
type OverrideLoggerFunc func(OverrideLogEvent)

// LogOverride implements OverrideLogger.
func (f OverrideLoggerFunc) LogOverride(event OverrideLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopOverrideLogger struct{}

func (noopOverrideLogger) LogOverride(OverrideLogEvent) {}

// SlogLogger reports override events through a structured slog.Logger. Gets
// are logged at debug level, failures at error level and writes at info.
func SlogLogger(logger *slog.Logger) OverrideLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return OverrideLoggerFunc(func(event OverrideLogEvent) {
		attrs := []slog.Attr{
			slog.String("op", event.Op),
			slog.String("cohort_id", event.CohortID),
			slog.String("location", string(event.Location)),
			slog.Duration("duration", event.Duration),
		}
		if event.Field != "" {
			attrs = append(attrs, slog.String("field", event.Field))
		}
		level := slog.LevelInfo
		switch {
		case event.Err != nil:
			level = slog.LevelError
			attrs = append(attrs, slog.Any("error", event.Err))
		case event.Op == OpGet || event.Op == OpLoad:
			level = slog.LevelDebug
			attrs = append(attrs, slog.Bool("cache_hit", event.Hit))
		}
		logger.LogAttrs(context.Background(), level, "ccx override", attrs...)
	})
}
