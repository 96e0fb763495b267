package logging

import (
	"github.com/goliatone/go-persist"
	"github.com/rs/zerolog"
)

// Zerolog writes events through a zerolog.Logger.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog returns a persist.Logger backed by logger.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger.With().Str("component", "persist").Logger()}
}

// Log implements persist.Logger.
func (z *Zerolog) Log(event persist.LogEvent) {
	var e *zerolog.Event
	switch LevelOf(event) {
	case LevelError:
		e = z.logger.Error()
	case LevelWarn:
		e = z.logger.Warn()
	case LevelDebug:
		e = z.logger.Debug()
	default:
		e = z.logger.Info()
	}
	if e == nil {
		return
	}

	e = e.Str("op", string(event.Op)).Str("store", event.StoreID)
	if event.Key != "" {
		e = e.Str("key", event.Key)
	}
	if event.Version != "" {
		e = e.Str("version", event.Version)
	}
	switch event.Op {
	case persist.OpActivate:
		e = e.Bool("enabled", event.Enabled)
	case persist.OpEvaluate:
		e = e.Str("engine", event.Engine).Str("expr", event.Expr).Bool("skipped", event.Skipped)
	default:
		if event.Fields > 0 {
			e = e.Int("fields", event.Fields)
		}
		if event.Op == persist.OpPersist && event.Err == nil && !event.Skipped {
			e = e.Bool("merged", event.Merged)
		}
	}
	if event.Duration > 0 {
		e = e.Dur("duration", event.Duration)
	}
	if event.Err != nil {
		e = e.Err(event.Err)
	}
	e.Msg(message(event))
}
