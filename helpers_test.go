package persist

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-persist/pkg/storage/memory"
)

// countingStorage wraps the in-memory backend and records every call.
type countingStorage struct {
	*memory.Store

	mu      sync.Mutex
	gets    int
	sets    int
	getErr  error
	setErr  error
	setKeys []string
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Store: memory.New()}
}

func (s *countingStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStorage) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	s.setKeys = append(s.setKeys, key)
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

func (s *countingStorage) counts() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.sets
}

func (s *countingStorage) seed(t *testing.T, key, value string) {
	t.Helper()
	if err := s.Store.Set(context.Background(), key, []byte(value)); err != nil {
		t.Fatalf("seed %q: %v", key, err)
	}
}

// stored decodes the record under key, failing the test when it is missing.
func (s *countingStorage) stored(t *testing.T, key string) Record {
	t.Helper()
	raw, ok, err := s.Store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %q: %v", key, err)
	}
	if !ok {
		t.Fatalf("expected record under %q", key)
	}
	record, err := DecodeRecord(key, raw)
	if err != nil {
		t.Fatalf("decode %q: %v", key, err)
	}
	return record
}

func (s *countingStorage) raw(t *testing.T, key string) string {
	t.Helper()
	raw, ok, err := s.Store.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected raw value under %q (ok=%v err=%v)", key, ok, err)
	}
	return string(raw)
}

func enabled(strategies ...Strategy) Config {
	return Config{Persist: PersistConfig{Enabled: true, Strategies: strategies}}
}

func recordingLogger() (Logger, func() []LogEvent) {
	var mu sync.Mutex
	var events []LogEvent
	logger := LoggerFunc(func(event LogEvent) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})
	return logger, func() []LogEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]LogEvent(nil), events...)
	}
}
