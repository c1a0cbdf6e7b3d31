package ccx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-ccx/internal/clone"
	"github.com/goliatone/go-ccx/pkg/activity"
	"github.com/goliatone/go-ccx/pkg/state"
)

// Overrides reads and writes cohort field overrides and caches the resolved
// field->value mapping of every (block location, cohort) pair it has read.
//
// The cache is a side table owned by Overrides; blocks are never mutated. It
// has no size bound and no expiry. Entries are keyed by location, not by Block
// value: a mapping is decoded with the codecs of the Block that loaded it and
// is served to every Block at that location. Hosts that replace a block's
// codecs call Forget with its location. A write or delete through Overrides drops
// the mapping of the pair it touched before returning. Writes made to the
// store by other processes are not observed until Invalidate, Forget or Reset
// is called.
//
// Overrides is safe for concurrent use. Concurrent misses for the same pair
// share one store query, and a query that raced a write is returned to its
// callers but never cached. A caller whose context is cancelled stops waiting
// without failing the others sharing its query.
type Overrides struct {
	store state.Store
	cfg   overridesConfig

	mu     sync.RWMutex
	blocks map[Location]map[string]map[string]any
	epoch  uint64
	loads  singleflight.Group
}

// NewOverrides builds an Overrides backed by store.
func NewOverrides(store state.Store, opts ...Option) *Overrides {
	cfg := applyOptions(opts)
	return &Overrides{
		store:  store,
		cfg:    cfg,
		blocks: map[Location]map[string]map[string]any{},
	}
}

// Get returns the override of field name on block for cohort, or def when the
// cohort has none.
func (o *Overrides) Get(ctx context.Context, cohort Cohort, block Block, name string, def any) (any, error) {
	if err := o.validate(cohort, block); err != nil {
		return nil, err
	}
	start := time.Now()
	mapping, hit, err := o.resolved(ctx, cohort, block)
	o.cfg.logger.LogOverride(OverrideLogEvent{
		Op:       OpGet,
		CohortID: cohort.ID,
		Location: block.Location(),
		Field:    name,
		Hit:      hit,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	value, ok := mapping[name]
	if !ok {
		return def, nil
	}
	return clone.Value(value), nil
}

// Overrides returns a copy of every override cohort has on block.
func (o *Overrides) Overrides(ctx context.Context, cohort Cohort, block Block) (map[string]any, error) {
	if err := o.validate(cohort, block); err != nil {
		return nil, err
	}
	mapping, _, err := o.resolved(ctx, cohort, block)
	if err != nil {
		return nil, err
	}
	return clone.Map(mapping), nil
}

// Set persists value as the override of field name on block for cohort,
// creating the record or updating it in place.
func (o *Overrides) Set(ctx context.Context, cohort Cohort, block Block, name string, value any) error {
	if err := o.validate(cohort, block); err != nil {
		return err
	}
	start := time.Now()
	err := o.set(ctx, cohort, block, name, value)
	o.cfg.logger.LogOverride(OverrideLogEvent{
		Op:       OpSet,
		CohortID: cohort.ID,
		Location: block.Location(),
		Field:    name,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func (o *Overrides) set(ctx context.Context, cohort Cohort, block Block, name string, value any) error {
	location := block.Location()
	codec, ok := block.Field(name)
	if !ok {
		return wrapOverrideError(OpSet, cohort, location, name, ErrUnknownField)
	}
	allowed, err := o.cfg.policy.AllowOverride(ctx, PolicyInput{
		Cohort:   cohort,
		Location: location,
		Field:    name,
		Value:    value,
	})
	if err != nil {
		return wrapOverrideError(OpSet, cohort, location, name, fmt.Errorf("policy: %w", err))
	}
	if !allowed {
		return wrapOverrideError(OpSet, cohort, location, name, ErrFieldNotOverridable)
	}

	payload, err := encodeValue(codec, value)
	if err != nil {
		return wrapOverrideError(OpSet, cohort, location, name, fmt.Errorf("encode: %w", err))
	}

	key := state.Key{CohortID: cohort.ID, Location: string(location), Field: name}
	record, created, err := o.store.GetOrCreate(ctx, key)
	if err != nil {
		return wrapOverrideError(OpSet, cohort, location, name, err)
	}
	previous := record.Value
	record.Value = payload
	if err := o.store.Save(ctx, record); err != nil {
		return wrapOverrideError(OpSet, cohort, location, name, err)
	}
	o.Invalidate(cohort, block)

	event := o.event(ctx, cohort, location, name)
	event.NewValue = decodedOrRaw(codec, payload)
	if !created && previous != "" {
		event.OldValue = decodedOrRaw(codec, previous)
	}
	o.reportEmitFailure(event, o.cfg.emitter.Set(ctx, event))
	return nil
}

// Clear removes the override of field name on block for cohort. Clearing a
// field without an override is a no-op.
func (o *Overrides) Clear(ctx context.Context, cohort Cohort, block Block, name string) error {
	if err := o.validate(cohort, block); err != nil {
		return err
	}
	start := time.Now()
	err := o.clear(ctx, cohort, block, name)
	o.cfg.logger.LogOverride(OverrideLogEvent{
		Op:       OpClear,
		CohortID: cohort.ID,
		Location: block.Location(),
		Field:    name,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func (o *Overrides) clear(ctx context.Context, cohort Cohort, block Block, name string) error {
	location := block.Location()
	key := state.Key{CohortID: cohort.ID, Location: string(location), Field: name}

	record, err := o.store.Get(ctx, key)
	if errors.Is(err, state.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrapOverrideError(OpClear, cohort, location, name, err)
	}
	if err := o.store.Delete(ctx, key); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return wrapOverrideError(OpClear, cohort, location, name, err)
	}
	o.Invalidate(cohort, block)

	event := o.event(ctx, cohort, location, name)
	if codec, ok := block.Field(name); ok && record.Value != "" {
		event.OldValue = decodedOrRaw(codec, record.Value)
	}
	o.reportEmitFailure(event, o.cfg.emitter.Cleared(ctx, event))
	return nil
}

// Invalidate drops the cached mapping of cohort on block.
func (o *Overrides) Invalidate(cohort Cohort, block Block) {
	if block == nil {
		return
	}
	location := block.Location()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	container, ok := o.blocks[location]
	if !ok {
		return
	}
	delete(container, cohort.ID)
	if len(container) == 0 {
		delete(o.blocks, location)
	}
}

// Forget drops every cached mapping of location.
func (o *Overrides) Forget(location Location) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	delete(o.blocks, location)
}

// Reset drops the whole cache.
func (o *Overrides) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.blocks = map[Location]map[string]map[string]any{}
}

// Cached reports whether the mapping of cohort on block is cached.
func (o *Overrides) Cached(cohort Cohort, block Block) bool {
	if block == nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.blocks[block.Location()][cohort.ID]
	return ok
}

func (o *Overrides) resolved(ctx context.Context, cohort Cohort, block Block) (map[string]any, bool, error) {
	location := block.Location()

	o.mu.RLock()
	mapping, ok := o.blocks[location][cohort.ID]
	epoch := o.epoch
	o.mu.RUnlock()
	if ok {
		return mapping, true, nil
	}

	// The epoch is part of the flight key so a read that starts after a write
	// never joins a query that started before it. The shared query runs
	// detached from any one caller's cancellation; each caller stops waiting
	// when its own context ends.
	flight := string(location) + "\x00" + cohort.ID + "\x00" + strconv.FormatUint(epoch, 10)
	loadCtx := context.WithoutCancel(ctx)
	results := o.loads.DoChan(flight, func() (any, error) {
		loaded, err := o.load(loadCtx, cohort, block)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		if o.epoch == epoch {
			container := o.blocks[location]
			if container == nil {
				container = map[string]map[string]any{}
				o.blocks[location] = container
			}
			container[cohort.ID] = loaded
		}
		o.mu.Unlock()
		return loaded, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, wrapOverrideError(OpLoad, cohort, location, "", ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return nil, false, result.Err
		}
		return result.Val.(map[string]any), false, nil
	}
}

func (o *Overrides) load(ctx context.Context, cohort Cohort, block Block) (map[string]any, error) {
	location := block.Location()
	start := time.Now()
	records, err := o.store.Filter(ctx, cohort.ID, string(location))
	if err != nil {
		err = wrapOverrideError(OpLoad, cohort, location, "", err)
		o.cfg.logger.LogOverride(OverrideLogEvent{Op: OpLoad, CohortID: cohort.ID, Location: location, Duration: time.Since(start), Err: err})
		return nil, err
	}

	mapping := make(map[string]any, len(records))
	for _, record := range records {
		// An empty payload is a record whose first save never completed.
		if record.Value == "" {
			continue
		}
		codec, ok := block.Field(record.Field)
		if !ok {
			err = wrapOverrideError(OpLoad, cohort, location, record.Field, ErrUnknownField)
			break
		}
		value, decodeErr := decodeValue(codec, record.Value)
		if decodeErr != nil {
			err = wrapOverrideError(OpLoad, cohort, location, record.Field, fmt.Errorf("decode: %w", decodeErr))
			break
		}
		mapping[record.Field] = value
	}
	o.cfg.logger.LogOverride(OverrideLogEvent{Op: OpLoad, CohortID: cohort.ID, Location: location, Duration: time.Since(start), Err: err})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

func (o *Overrides) validate(cohort Cohort, block Block) error {
	if o == nil || o.store == nil {
		return ErrNoStore
	}
	if cohort.IsZero() {
		return ErrInvalidCohort
	}
	if block == nil {
		return ErrNilBlock
	}
	return nil
}

func (o *Overrides) event(ctx context.Context, cohort Cohort, location Location, name string) activity.Event {
	return activity.Event{
		ActorID:    activity.ActorFrom(ctx),
		CohortID:   cohort.ID,
		CourseID:   cohort.CourseID,
		Location:   string(location),
		Field:      name,
		OccurredAt: o.cfg.now(),
	}
}

// reportEmitFailure logs a hook failure. The write it describes has already
// been stored, so the failure is not returned to the caller.
func (o *Overrides) reportEmitFailure(event activity.Event, err error) {
	if err == nil {
		return
	}
	o.cfg.logger.LogOverride(OverrideLogEvent{
		Op:       OpEmit,
		CohortID: event.CohortID,
		Location: Location(event.Location),
		Field:    event.Field,
		Err:      err,
	})
}

func decodedOrRaw(codec FieldCodec, payload string) any {
	value, err := decodeValue(codec, payload)
	if err != nil {
		return payload
	}
	return value
}
