package persist

import (
	"context"
	"time"

	"github.com/goliatone/go-persist/pkg/activity"
)

// Storage is the key-value capability records are written to. Implementations
// live under pkg/storage; Get reports ok=false when key has never been written.
type Storage interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Strategy selects which state fields are persisted and under which storage key.
type Strategy struct {
	// Key defaults to the store ID when empty.
	Key string `json:"key,omitempty"`
	// Paths lists the persisted fields in order. Empty persists the whole state.
	Paths []string `json:"paths,omitempty"`
	// When is an optional condition expression; the strategy is only written
	// while it evaluates to true.
	When string `json:"when,omitempty"`
}

// StorageKey resolves the key the strategy reads and writes for storeID.
func (s Strategy) StorageKey(storeID string) string {
	if s.Key != "" {
		return s.Key
	}
	return storeID
}

// PersistConfig is the `persist` section of the plugin configuration.
type PersistConfig struct {
	Enabled    bool       `json:"enabled"`
	Strategies []Strategy `json:"strategies,omitempty"`
}

// Config holds the options a store is created with.
type Config struct {
	Persist PersistConfig `json:"persist"`
}

// EffectiveStrategies returns the configured strategies or, when none are
// configured, a single strategy keyed by storeID.
func (c Config) EffectiveStrategies(storeID string) []Strategy {
	if len(c.Persist.Strategies) == 0 {
		return []Strategy{{Key: storeID}}
	}
	out := make([]Strategy, len(c.Persist.Strategies))
	for i, strategy := range c.Persist.Strategies {
		out[i] = strategy
		if len(strategy.Paths) > 0 {
			out[i].Paths = append([]string(nil), strategy.Paths...)
		}
	}
	return out
}

// RuleContext carries the inputs a strategy condition is evaluated against.
type RuleContext struct {
	State   map[string]any
	Key     string
	StoreID string
	Version string
	Now     *time.Time
	Args    map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.State == nil {
		ctx.State = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// label identifies the context in errors and log events.
func (ctx RuleContext) label() string {
	if ctx.Key != "" {
		return ctx.Key
	}
	if ctx.StoreID != "" {
		return ctx.StoreID
	}
	return "unknown"
}

// bindings are the reserved variables every evaluator exposes next to the
// state fields. State fields never shadow them.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"now":     ctx.timestamp(),
		"args":    ctx.Args,
		"key":     ctx.Key,
		"store":   ctx.StoreID,
		"version": ctx.Version,
	}
}

func isReservedBinding(name string) bool {
	switch name {
	case "now", "args", "key", "store", "version", "call":
		return true
	}
	return false
}

// Evaluator executes condition expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// Option configures a Plugin.
type Option func(*pluginConfig)

type pluginConfig struct {
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	loggers       []Logger
	activityHooks activity.Hooks
	now           func() time.Time
}

func applyOptions(opts []Option) pluginConfig {
	cfg := pluginConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

// WithEvaluator sets the engine used for strategy conditions. The default is
// the expr evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *pluginConfig) {
		cfg.evaluator = e
	}
}

// WithClock overrides the time source used for event timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(cfg *pluginConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}
