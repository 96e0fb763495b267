package logging

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-persist"
)

// Slog writes events through a slog.Logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog returns a persist.Logger backed by logger, or slog.Default when nil.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger.With(slog.String("component", "persist"))}
}

// Log implements persist.Logger.
func (s *Slog) Log(event persist.LogEvent) {
	level := slogLevel(LevelOf(event))
	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs, slog.String("op", string(event.Op)), slog.String("store", event.StoreID))
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Version != "" {
		attrs = append(attrs, slog.String("version", event.Version))
	}
	switch event.Op {
	case persist.OpActivate:
		attrs = append(attrs, slog.Bool("enabled", event.Enabled))
	case persist.OpEvaluate:
		attrs = append(attrs, slog.String("engine", event.Engine), slog.String("expr", event.Expr), slog.Bool("skipped", event.Skipped))
	default:
		if event.Fields > 0 {
			attrs = append(attrs, slog.Int("fields", event.Fields))
		}
		if event.Op == persist.OpPersist && event.Err == nil && !event.Skipped {
			attrs = append(attrs, slog.Bool("merged", event.Merged))
		}
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	s.logger.LogAttrs(ctx, level, message(event), attrs...)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
