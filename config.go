package persist

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-persist/internal/hydrate"
)

var configDecoder = hydrate.NewDecoder[Config](
	hydrate.WithPreHook[Config](nestPersistSection),
	hydrate.WithDisallowUnknownFields[Config](),
	hydrate.WithPostHook[Config](func(_ hydrate.Context, cfg *Config) error {
		return cfg.Validate()
	}),
)

// DecodeConfig builds a Config from a generic payload, as handed over by a
// store definition. Both {"persist": {...}} and the bare persist section are
// accepted; sibling keys next to "persist" are ignored.
func DecodeConfig(payload map[string]any) (Config, error) {
	return configDecoder.Decode(hydrate.Context{Key: "persist"}, payload)
}

func nestPersistSection(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	if section, ok := payload["persist"]; ok {
		return map[string]any{"persist": section}, nil
	}
	return map[string]any{"persist": payload}, nil
}

// Validate rejects strategies with blank or repeated paths.
func (c Config) Validate() error {
	for i, strategy := range c.Persist.Strategies {
		seen := make(map[string]struct{}, len(strategy.Paths))
		for _, path := range strategy.Paths {
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("persist: strategy %d (%q): blank path", i, strategy.Key)
			}
			if path == VersionField {
				return fmt.Errorf("persist: strategy %d (%q): %w", i, strategy.Key, ErrReservedField)
			}
			if _, dup := seen[path]; dup {
				return fmt.Errorf("persist: strategy %d (%q): duplicate path %q", i, strategy.Key, path)
			}
			seen[path] = struct{}{}
		}
	}
	return nil
}
