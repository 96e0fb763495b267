package persist

import (
	"context"
	"errors"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/goliatone/go-persist/layering"
)

// MapStore is an in-memory Store holding state as a map of fields. It is safe
// for concurrent use; listeners run on the mutating goroutine after the write
// lock is released, so they may read or mutate the store again.
type MapStore struct {
	id string

	mu    sync.RWMutex
	state map[string]any

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

var _ Store = (*MapStore)(nil)

// NewMapStore creates a store with a deep copy of initial as its state.
func NewMapStore(id string, initial map[string]any) *MapStore {
	return &MapStore{
		id:    id,
		state: layering.Clone(initial),
	}
}

func (s *MapStore) ID() string {
	return s.id
}

func (s *MapStore) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layering.Clone(s.state)
}

// Get returns a deep copy of one field.
func (s *MapStore) Get(field string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state[field]
	if !ok {
		return nil, false
	}
	return layering.CloneValue(value), true
}

// Set assigns one field.
func (s *MapStore) Set(ctx context.Context, field string, value any) error {
	s.mu.Lock()
	if s.state == nil {
		s.state = map[string]any{}
	}
	s.state[field] = layering.CloneValue(value)
	s.mu.Unlock()
	return s.notify(ctx, ChangeEvent{StoreID: s.id, Kind: ChangeSet, Fields: []string{field}})
}

// Patch runs fn against the live state under the write lock.
func (s *MapStore) Patch(ctx context.Context, fn func(state map[string]any)) error {
	if fn == nil {
		return errors.New("persist: patch function is nil")
	}
	fields := s.patchLocked(fn)
	return s.notify(ctx, ChangeEvent{StoreID: s.id, Kind: ChangePatch, Fields: fields})
}

// patchLocked releases the write lock even when fn panics.
func (s *MapStore) patchLocked(fn func(state map[string]any)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = map[string]any{}
	}
	before := layering.Clone(s.state)
	fn(s.state)
	return changedFields(before, s.state)
}

func (s *MapStore) MergePatch(ctx context.Context, patch map[string]any) error {
	s.mu.Lock()
	s.state = layering.Overlay(s.state, patch)
	s.mu.Unlock()
	fields := slices.Sorted(maps.Keys(patch))
	return s.notify(ctx, ChangeEvent{StoreID: s.id, Kind: ChangePatch, Fields: fields})
}

func (s *MapStore) OnChange(listener ChangeListener) {
	if listener == nil {
		return
	}
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, listener)
	s.listenersMu.Unlock()
}

func (s *MapStore) notify(ctx context.Context, event ChangeEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	var errs []error
	for _, listener := range listeners {
		if err := listener(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func changedFields(before, after map[string]any) []string {
	var fields []string
	for key, value := range after {
		previous, ok := before[key]
		if !ok || !reflect.DeepEqual(previous, value) {
			fields = append(fields, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			fields = append(fields, key)
		}
	}
	slices.Sort(fields)
	return fields
}
