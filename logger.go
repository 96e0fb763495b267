package persist

import "time"

// Op names the plugin operation a log event belongs to.
type Op string

const (
	OpActivate  Op = "activate"
	OpRehydrate Op = "rehydrate"
	OpPersist   Op = "persist"
	OpEvaluate  Op = "evaluate"
	// OpActivity reports activity hook failures. The write itself succeeded.
	OpActivity Op = "activity"
)

// LogEvent describes one plugin operation.
type LogEvent struct {
	Op      Op
	StoreID string
	Key     string
	Version string
	Message string
	// Engine and Expr are set for OpEvaluate.
	Engine string
	Expr   string
	// Fields is the number of state fields written or rehydrated.
	Fields   int
	Enabled  bool
	Merged   bool
	Skipped  bool
	Duration time.Duration
	Err      error
}

// Logger records plugin events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

type multiLogger []Logger

func (m multiLogger) Log(event LogEvent) {
	for _, logger := range m {
		logger.Log(event)
	}
}

// WithLogger attaches loggers to the plugin. Repeated calls accumulate.
func WithLogger(loggers ...Logger) Option {
	return func(cfg *pluginConfig) {
		for _, logger := range loggers {
			if logger != nil {
				cfg.loggers = append(cfg.loggers, logger)
			}
		}
	}
}

func (cfg pluginConfig) logger() Logger {
	switch len(cfg.loggers) {
	case 0:
		return noopLogger{}
	case 1:
		return cfg.loggers[0]
	default:
		return multiLogger(append([]Logger(nil), cfg.loggers...))
	}
}
