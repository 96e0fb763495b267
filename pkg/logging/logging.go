// Package logging adapts persist.Logger to zerolog and log/slog.
package logging

import (
	"github.com/goliatone/go-persist"
)

// Level is the severity an event is logged at.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LevelOf classifies event. Failures are errors; skipped stored records that
// could not be decoded are warnings; condition evaluations and skipped writes
// are debug; everything else is info.
func LevelOf(event persist.LogEvent) Level {
	switch {
	case event.Err != nil && event.Skipped:
		return LevelWarn
	case event.Err != nil:
		return LevelError
	case event.Skipped, event.Op == persist.OpEvaluate:
		return LevelDebug
	default:
		return LevelInfo
	}
}

func message(event persist.LogEvent) string {
	if event.Message != "" {
		return event.Message
	}
	switch event.Op {
	case persist.OpActivate:
		return "persist activated"
	case persist.OpRehydrate:
		if event.Err != nil {
			return "rehydrate failed"
		}
		return "store rehydrated"
	case persist.OpPersist:
		if event.Err != nil {
			return "persist failed"
		}
		if event.Skipped {
			return "persist skipped"
		}
		return "record written"
	case persist.OpEvaluate:
		return "condition evaluated"
	case persist.OpActivity:
		return "activity hook failed"
	default:
		return string(event.Op)
	}
}
