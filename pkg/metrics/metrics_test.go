package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-persist"
	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/goliatone/go-persist/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	c := NewCollector("test")

	c.Log(persist.LogEvent{Op: persist.OpPersist, StoreID: "cart", Fields: 2, Merged: true, Duration: time.Millisecond})
	c.Log(persist.LogEvent{Op: persist.OpPersist, StoreID: "cart", Fields: 2})
	c.Log(persist.LogEvent{Op: persist.OpPersist, StoreID: "cart", Skipped: true})
	c.Log(persist.LogEvent{Op: persist.OpPersist, StoreID: "cart", Err: errors.New("disk full")})
	c.Log(persist.LogEvent{Op: persist.OpActivate, StoreID: "cart", Enabled: true})

	require.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeError)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("activate", "cart", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("cart", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("cart", "false")))
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollector("app")
	require.NoError(t, reg.Register(c))

	c.Log(persist.LogEvent{Op: persist.OpRehydrate, StoreID: "prefs", Duration: 2 * time.Millisecond})
	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names["app_persist_operations_total"])
	require.True(t, names["app_persist_operation_duration_seconds"])
}

func TestCollectorObservesPluginRun(t *testing.T) {
	c := NewCollector("")
	plugin := persist.New(memory.New(), persist.Release("1.0.0"), persist.WithLogger(c))
	store := persist.NewMapStore("cart", map[string]any{"items": []any{"a"}})

	cfg := persist.Config{Persist: persist.PersistConfig{Enabled: true}}
	require.NoError(t, plugin.Install(context.Background(), cfg, store))
	require.NoError(t, store.Set(context.Background(), "items", []any{"a", "b"}))

	// Install writes once, the mutation writes again and merges into the first.
	require.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("cart", "false")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("cart", "true")))
}

func TestCollectorSeparatesHookFailuresFromWrites(t *testing.T) {
	c := NewCollector("")
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("sink down")
	})
	plugin := persist.New(memory.New(), persist.Release("1.0.0"),
		persist.WithLogger(c),
		persist.WithActivityHooks(activity.Hooks{failing}),
	)

	store := persist.NewMapStore("cart", map[string]any{"items": []any{"a"}})
	require.NoError(t, plugin.PersistStrategy(context.Background(), persist.Strategy{}, store))

	require.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeOK)))
	require.Equal(t, 0.0, testutil.ToFloat64(c.operations.WithLabelValues("persist", "cart", OutcomeError)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("activity", "cart", OutcomeError)))
}
