package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-persist"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLevelOf(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name  string
		event persist.LogEvent
		want  Level
	}{
		{name: "write", event: persist.LogEvent{Op: persist.OpPersist}, want: LevelInfo},
		{name: "activation", event: persist.LogEvent{Op: persist.OpActivate}, want: LevelInfo},
		{name: "failure", event: persist.LogEvent{Op: persist.OpPersist, Err: boom}, want: LevelError},
		{name: "undecodable record", event: persist.LogEvent{Op: persist.OpRehydrate, Skipped: true, Err: boom}, want: LevelWarn},
		{name: "condition false", event: persist.LogEvent{Op: persist.OpPersist, Skipped: true}, want: LevelDebug},
		{name: "evaluation", event: persist.LogEvent{Op: persist.OpEvaluate}, want: LevelDebug},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, LevelOf(tc.event))
		})
	}
}

func TestZerologWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(zerolog.New(&buf))

	logger.Log(persist.LogEvent{
		Op:       persist.OpPersist,
		StoreID:  "cart",
		Key:      "cart-items",
		Version:  "1.0.0",
		Fields:   2,
		Merged:   true,
		Duration: 3 * time.Millisecond,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "info", line["level"])
	require.Equal(t, "persist", line["component"])
	require.Equal(t, "persist", line["op"])
	require.Equal(t, "cart", line["store"])
	require.Equal(t, "cart-items", line["key"])
	require.Equal(t, "1.0.0", line["version"])
	require.Equal(t, true, line["merged"])
	require.EqualValues(t, 2, line["fields"])
	require.Equal(t, "record written", line["message"])
}

func TestZerologErrorsAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Log(persist.LogEvent{Op: persist.OpEvaluate, Engine: "expr", Expr: "true"})
	require.Zero(t, buf.Len(), "debug events filtered at info level")

	logger.Log(persist.LogEvent{Op: persist.OpPersist, StoreID: "cart", Err: errors.New("disk full")})
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "error", line["level"])
	require.Equal(t, "disk full", line["error"])
	require.Equal(t, "persist failed", line["message"])
	_, hasMerged := line["merged"]
	require.False(t, hasMerged)
}

func TestSlogWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Log(persist.LogEvent{Op: persist.OpEvaluate, StoreID: "prefs", Key: "prefs", Engine: "cel", Expr: "theme == 'dark'", Skipped: true})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "DEBUG", line["level"])
	require.Equal(t, "condition evaluated", line["msg"])
	require.Equal(t, "cel", line["engine"])
	require.Equal(t, true, line["skipped"])
	require.Equal(t, "persist", line["component"])
}

func TestSlogRespectsHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	logger.Log(persist.LogEvent{Op: persist.OpActivate, StoreID: "cart", Enabled: true})
	require.Zero(t, buf.Len())

	logger.Log(persist.LogEvent{Op: persist.OpRehydrate, StoreID: "cart", Skipped: true, Err: errors.New("bad json"), Message: "stored record is not decodable, it will be replaced"})
	require.True(t, strings.Contains(buf.String(), "level=WARN"), buf.String())
	require.True(t, strings.Contains(buf.String(), "error=\"bad json\""), buf.String())
}

func TestNewSlogDefaultsLogger(t *testing.T) {
	require.NotNil(t, NewSlog(nil).logger)
}
