package persist

import "github.com/goliatone/go-persist/pkg/activity"

// WithActivityHooks forwards record writes and rehydrations to hooks. Nil
// hooks are dropped. Hook failures are logged and never fail a write.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *pluginConfig) {
		cfg.activityHooks = append(cfg.activityHooks, normalized...)
	}
}

// ActivityHooks returns a copy of the hooks the plugin notifies.
func (p *Plugin) ActivityHooks() activity.Hooks {
	if p == nil {
		return nil
	}
	return cloneActivityHooks(p.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make(activity.Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
