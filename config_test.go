package persist

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeConfigCases(t *testing.T) {
	cases := []struct {
		name      string
		payload   map[string]any
		expect    Config
		expectErr string
	}{
		{
			name: "nested section with siblings",
			payload: map[string]any{
				"name": "cart",
				"persist": map[string]any{
					"enabled": true,
					"strategies": []any{
						map[string]any{"key": "cart-items", "paths": []any{"items"}},
						map[string]any{"paths": []any{"owner"}, "when": "loggedIn"},
					},
				},
			},
			expect: Config{Persist: PersistConfig{Enabled: true, Strategies: []Strategy{
				{Key: "cart-items", Paths: []string{"items"}},
				{Paths: []string{"owner"}, When: "loggedIn"},
			}}},
		},
		{
			name:    "bare section",
			payload: map[string]any{"enabled": true},
			expect:  Config{Persist: PersistConfig{Enabled: true}},
		},
		{
			name:    "empty payload is disabled",
			payload: map[string]any{},
			expect:  Config{},
		},
		{
			name:      "unknown field",
			payload:   map[string]any{"persist": map[string]any{"enabled": true, "strategy": []any{}}},
			expectErr: "unknown field",
		},
		{
			name: "duplicate path",
			payload: map[string]any{"persist": map[string]any{
				"enabled":    true,
				"strategies": []any{map[string]any{"key": "k", "paths": []any{"a", "a"}}},
			}},
			expectErr: `strategy 0 ("k"): duplicate path "a"`,
		},
		{
			name:      "wrong type",
			payload:   map[string]any{"persist": map[string]any{"enabled": "yes"}},
			expectErr: "decode key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeConfig(tc.payload)
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("config mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestValidateRejectsBlankPaths(t *testing.T) {
	err := enabled(Strategy{Key: "k", Paths: []string{"a", " "}}).Validate()
	if err == nil || !strings.Contains(err.Error(), "blank path") {
		t.Fatalf("expected blank path error, got %v", err)
	}
	if err := enabled(Strategy{Paths: []string{"a", "b"}}, Strategy{Paths: []string{"a"}}).Validate(); err != nil {
		t.Fatalf("paths may repeat across strategies: %v", err)
	}
}

func TestEffectiveStrategies(t *testing.T) {
	defaults := Config{}.EffectiveStrategies("cart")
	if len(defaults) != 1 || defaults[0].Key != "cart" || len(defaults[0].Paths) != 0 {
		t.Fatalf("expected single whole-state strategy, got %+v", defaults)
	}

	paths := []string{"a"}
	cfg := enabled(Strategy{Paths: paths}, Strategy{Key: "other"})
	got := cfg.EffectiveStrategies("cart")
	if len(got) != 2 || got[0].StorageKey("cart") != "cart" || got[1].StorageKey("cart") != "other" {
		t.Fatalf("unexpected strategies %+v", got)
	}
	got[0].Paths[0] = "changed"
	if paths[0] != "a" {
		t.Fatalf("expected paths copied")
	}
}

func TestValidateRejectsVersionFieldPath(t *testing.T) {
	err := enabled(Strategy{Key: "k", Paths: []string{"a", VersionField}}).Validate()
	if !errors.Is(err, ErrReservedField) {
		t.Fatalf("expected reserved field error, got %v", err)
	}
}
