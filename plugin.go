package persist

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/goliatone/go-persist/pkg/storage"
)

// Plugin mirrors store state into Storage and restores it on Install.
//
// Every write is tagged with the running version. A write whose version
// matches the stored record is merged into it field by field; any other write
// replaces the record.
type Plugin struct {
	storage Storage
	version VersionProvider
	cfg     pluginConfig
	logger  Logger
	emitter *activity.Emitter

	evaluatorOnce sync.Once
	evaluator     Evaluator
}

// New builds a plugin writing to storage. A nil version provider falls back
// to BuildInfoVersion.
func New(storage Storage, version VersionProvider, opts ...Option) *Plugin {
	cfg := applyOptions(opts)
	if version == nil {
		version = BuildInfoVersion{}
	}
	return &Plugin{
		storage: storage,
		version: version,
		cfg:     cfg,
		logger:  cfg.logger(),
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: len(cfg.activityHooks) > 0,
			Channel: activity.DefaultChannel,
		}),
	}
}

// Install activates persistence for store. When cfg.Persist.Enabled is false
// it only logs the activation and touches neither storage nor store.
//
// Otherwise every effective strategy is first rehydrated from storage, then
// written once, and a change listener is registered that writes all
// strategies, in order, after every mutation.
func (p *Plugin) Install(ctx context.Context, cfg Config, store Store) error {
	if store == nil {
		return ErrStoreRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.logger.Log(LogEvent{
		Op:      OpActivate,
		StoreID: store.ID(),
		Enabled: cfg.Persist.Enabled,
		Message: "persist plugin activated",
	})
	if !cfg.Persist.Enabled {
		return nil
	}
	if p.storage == nil {
		return ErrStorageRequired
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	strategies := cfg.EffectiveStrategies(store.ID())
	for _, strategy := range strategies {
		if err := p.rehydrate(ctx, strategy, store); err != nil {
			return err
		}
	}
	if err := p.persistAll(ctx, strategies, store); err != nil {
		return err
	}

	store.OnChange(func(ctx context.Context, _ ChangeEvent) error {
		return p.persistAll(ctx, strategies, store)
	})
	return nil
}

func (p *Plugin) persistAll(ctx context.Context, strategies []Strategy, store Store) error {
	for _, strategy := range strategies {
		if err := p.PersistStrategy(ctx, strategy, store); err != nil {
			return err
		}
	}
	return nil
}

// rehydrate patches the stored record for strategy into store and writes it
// back under the running version. Missing records are skipped; undecodable or
// corrupt ones are skipped here and replaced by the next write.
func (p *Plugin) rehydrate(ctx context.Context, strategy Strategy, store Store) error {
	start := p.cfg.now()
	storeID := store.ID()
	key := strategy.StorageKey(storeID)

	raw, ok, err := p.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrCorrupt) {
		p.logger.Log(LogEvent{
			Op:      OpRehydrate,
			StoreID: storeID,
			Key:     key,
			Skipped: true,
			Message: "stored record is not decodable, it will be replaced",
			Err:     err,
		})
		return nil
	}
	if err != nil {
		err = fmt.Errorf("persist: rehydrate %q: %w", key, err)
		p.logger.Log(LogEvent{Op: OpRehydrate, StoreID: storeID, Key: key, Err: err})
		return err
	}
	if !ok || len(raw) == 0 {
		return nil
	}

	record, err := DecodeRecord(key, raw)
	if err != nil {
		p.logger.Log(LogEvent{
			Op:      OpRehydrate,
			StoreID: storeID,
			Key:     key,
			Skipped: true,
			Message: "stored record is not decodable, it will be replaced",
			Err:     err,
		})
		return nil
	}

	patch := conformNumbers(store.State(), record.Fields)
	if err := store.MergePatch(ctx, patch); err != nil {
		err = fmt.Errorf("persist: rehydrate %q: patch store %q: %w", key, storeID, err)
		p.logger.Log(LogEvent{Op: OpRehydrate, StoreID: storeID, Key: key, Err: err})
		return err
	}
	p.logger.Log(LogEvent{
		Op:       OpRehydrate,
		StoreID:  storeID,
		Key:      key,
		Version:  record.Version,
		Fields:   len(record.Fields),
		Duration: p.cfg.now().Sub(start),
	})
	p.emit(ctx, storeID, activity.BuildStoreRehydratedEvent(activity.PersistEventInput{
		StoreID:    storeID,
		Key:        key,
		Version:    record.Version,
		Fields:     fieldNames(record.Fields),
		OccurredAt: p.cfg.now(),
	}))

	return p.PersistStrategy(ctx, strategy, store)
}

// PersistStrategy writes the state selected by strategy to storage. It makes
// exactly one read and one write, unless the strategy condition is false, in
// which case it makes none.
func (p *Plugin) PersistStrategy(ctx context.Context, strategy Strategy, store Store) error {
	if p.storage == nil {
		return ErrStorageRequired
	}
	if store == nil {
		return ErrStoreRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := p.cfg.now()

	info, err := p.version.RunningVersion()
	if err != nil {
		return fmt.Errorf("persist: resolve running version: %w", err)
	}
	version := info.Resolve()
	storeID := store.ID()
	key := strategy.StorageKey(storeID)
	state := store.State()

	now := start
	ok, err := p.shouldPersist(strategy, RuleContext{
		State:   state,
		Key:     key,
		StoreID: storeID,
		Version: version,
		Now:     &now,
	})
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Log(LogEvent{Op: OpPersist, StoreID: storeID, Key: key, Version: version, Skipped: true})
		return nil
	}

	payload := project(state, strategy.Paths)
	if _, ok := payload[VersionField]; ok {
		err := fmt.Errorf("persist: write %q: %w", key, ErrReservedField)
		p.logger.Log(LogEvent{Op: OpPersist, StoreID: storeID, Key: key, Version: version, Err: err})
		return err
	}

	raw, found, err := p.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrCorrupt) {
		raw, found, err = nil, false, nil
	}
	if err != nil {
		err = fmt.Errorf("persist: read %q: %w", key, err)
		p.logger.Log(LogEvent{Op: OpPersist, StoreID: storeID, Key: key, Version: version, Err: err})
		return err
	}
	current := existingRecord(key, raw, found)
	next, merged := current.apply(payload, version)

	encoded, err := encodeRecord(next)
	if err != nil {
		return fmt.Errorf("persist: encode %q: %w", key, err)
	}
	if err := p.storage.Set(ctx, key, encoded); err != nil {
		err = fmt.Errorf("persist: write %q: %w", key, err)
		p.logger.Log(LogEvent{Op: OpPersist, StoreID: storeID, Key: key, Version: version, Err: err})
		return err
	}

	p.logger.Log(LogEvent{
		Op:       OpPersist,
		StoreID:  storeID,
		Key:      key,
		Version:  version,
		Fields:   len(payload),
		Merged:   merged,
		Duration: p.cfg.now().Sub(start),
	})
	p.emit(ctx, storeID, activity.BuildRecordWrittenEvent(activity.PersistEventInput{
		StoreID:    storeID,
		Key:        key,
		Version:    version,
		Fields:     fieldNames(payload),
		Merged:     merged,
		OccurredAt: p.cfg.now(),
	}))
	return nil
}

// existingRecord decodes the stored value. Anything missing or undecodable is
// reported as an untagged record, which never matches the running version.
func existingRecord(key string, raw []byte, found bool) Record {
	if !found || len(raw) == 0 {
		return Record{}
	}
	record, err := DecodeRecord(key, raw)
	if err != nil {
		return Record{}
	}
	return record
}

// project selects paths from state. Paths that are not present in state are
// left out of the payload. No paths means the whole state.
func project(state map[string]any, paths []string) map[string]any {
	if len(paths) == 0 {
		return state
	}
	payload := make(map[string]any, len(paths))
	for _, path := range paths {
		if value, ok := state[path]; ok {
			payload[path] = value
		}
	}
	return payload
}

func (p *Plugin) emit(ctx context.Context, storeID string, event activity.Event) {
	if !p.emitter.Enabled() {
		return
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		p.logger.Log(LogEvent{
			Op:      OpActivity,
			StoreID: storeID,
			Key:     event.ObjectID,
			Message: "activity hook failed",
			Err:     err,
		})
	}
}

func fieldNames(fields map[string]any) []string {
	return slices.Sorted(maps.Keys(fields))
}
