// Package state owns the mutable flag collections and wires them into the
// evaluation engine. The container exclusively owns flags, overrides,
// segments, experiments and the current evaluation context; the engine only
// reads through the container's lookups.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/engine"
	"github.com/TimurManjosov/flagdeck/internal/events"
	"github.com/TimurManjosov/flagdeck/internal/flags"
	"github.com/TimurManjosov/flagdeck/internal/storage"
)

// overridesKey is the storage key under which active overrides persist.
const overridesKey = "overrides"

// Container is the flag state container. All collection mutations are
// guarded by a RWMutex; evaluation holds no lock, reading through short
// per-lookup critical sections instead.
type Container struct {
	mu          sync.RWMutex
	flags       map[string]flags.Definition
	order       []string // flag registration order, drives EvaluateAll
	overrides   map[string]flags.Override
	segments    []flags.UserSegment
	experiments map[string]flags.Experiment
	context     flags.Context

	bus      *events.Bus
	eval     *engine.Evaluator
	evalOpts []engine.Option
	storage  storage.Storage
	log      zerolog.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for listener failures and persistence.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Container) { c.log = log }
}

// WithStorage enables override persistence through the given store.
func WithStorage(s storage.Storage) Option {
	return func(c *Container) { c.storage = s }
}

// WithSalt sets the bucketing salt.
func WithSalt(salt string) Option {
	return func(c *Container) { c.evalOpts = append(c.evalOpts, engine.WithSalt(salt)) }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.evalOpts = append(c.evalOpts, engine.WithClock(now)) }
}

// New creates an empty container wired to its own evaluator.
func New(opts ...Option) *Container {
	c := &Container{
		flags:       make(map[string]flags.Definition),
		overrides:   make(map[string]flags.Override),
		experiments: make(map[string]flags.Experiment),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bus = events.NewBus(c.log)
	c.eval = engine.New(
		c.lookupFlag,
		append(c.evalOpts,
			engine.WithOverrideLookup(c.lookupOverride),
			engine.WithSegmentLookup(c.lookupSegments),
		)...,
	)
	return c
}

// Subscribe registers an event listener; the returned func unsubscribes.
func (c *Container) Subscribe(fn events.Listener) func() {
	return c.bus.Subscribe(fn)
}

// ---- engine lookups ----

func (c *Container) lookupFlag(id string) *flags.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if f, ok := c.flags[id]; ok {
		return &f
	}
	return nil
}

func (c *Container) lookupOverride(flagID string) *flags.Override {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if o, ok := c.overrides[flagID]; ok {
		return &o
	}
	return nil
}

func (c *Container) lookupSegments() []flags.UserSegment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.segments
}

// ---- flags ----

// SetFlags replaces the whole flag collection, preserving the given order
// as the new registration order.
func (c *Container) SetFlags(defs []flags.Definition) {
	c.mu.Lock()
	c.flags = make(map[string]flags.Definition, len(defs))
	c.order = c.order[:0]
	now := time.Now().UTC()
	for _, d := range defs {
		d.UpdatedAt = now
		c.flags[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	c.mu.Unlock()

	c.bus.Emit(events.Event{Kind: events.KindFlagsReplaced})
}

// AddFlag inserts or replaces a flag by id.
func (c *Container) AddFlag(def flags.Definition) {
	c.upsertFlag(def, events.KindFlagAdded)
}

// UpdateFlag replaces the whole record for the flag's id; there is no
// partial merge.
func (c *Container) UpdateFlag(def flags.Definition) {
	c.upsertFlag(def, events.KindFlagUpdated)
}

func (c *Container) upsertFlag(def flags.Definition, kind events.Kind) {
	def.UpdatedAt = time.Now().UTC()

	c.mu.Lock()
	if _, exists := c.flags[def.ID]; !exists {
		c.order = append(c.order, def.ID)
	}
	c.flags[def.ID] = def
	c.mu.Unlock()

	c.bus.Emit(events.Event{Kind: kind, FlagID: def.ID})
}

// RemoveFlag deletes a flag by id. Removing a non-existent flag is a no-op
// and emits nothing.
func (c *Container) RemoveFlag(id string) {
	c.mu.Lock()
	_, exists := c.flags[id]
	if exists {
		delete(c.flags, id)
		for i, key := range c.order {
			if key == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if exists {
		c.bus.Emit(events.Event{Kind: events.KindFlagRemoved, FlagID: id})
	}
}

// GetFlag returns a copy of the flag definition, nil when unknown.
func (c *Container) GetFlag(id string) *flags.Definition {
	return c.lookupFlag(id)
}

// Flags returns all flag definitions in registration order.
func (c *Container) Flags() []flags.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]flags.Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.flags[id])
	}
	return out
}

// ---- overrides ----

// SetOverride activates an override for a flag. Only one override per flag
// is active at a time; last write wins.
func (c *Container) SetOverride(o flags.Override) {
	c.mu.Lock()
	c.overrides[o.FlagID] = o
	c.mu.Unlock()

	c.persistOverrides()
	c.bus.Emit(events.Event{Kind: events.KindOverrideSet, FlagID: o.FlagID})
}

// RemoveOverride deletes the override for a flag, if any.
func (c *Container) RemoveOverride(flagID string) {
	c.mu.Lock()
	_, exists := c.overrides[flagID]
	delete(c.overrides, flagID)
	c.mu.Unlock()

	if exists {
		c.persistOverrides()
		c.bus.Emit(events.Event{Kind: events.KindOverrideRemoved, FlagID: flagID})
	}
}

// ClearOverrides removes every active override.
func (c *Container) ClearOverrides() {
	c.mu.Lock()
	c.overrides = make(map[string]flags.Override)
	c.mu.Unlock()

	c.persistOverrides()
	c.bus.Emit(events.Event{Kind: events.KindOverridesCleared})
}

// GetOverride returns the stored override for a flag, expired or not.
// Expiry is a read-time filter applied by the engine, not an eviction.
func (c *Container) GetOverride(flagID string) *flags.Override {
	return c.lookupOverride(flagID)
}

// Overrides returns all stored overrides keyed by flag id.
func (c *Container) Overrides() map[string]flags.Override {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]flags.Override, len(c.overrides))
	for k, v := range c.overrides {
		out[k] = v
	}
	return out
}

// ---- segments / experiments ----

// SetSegments replaces the known user segments.
func (c *Container) SetSegments(segments []flags.UserSegment) {
	c.mu.Lock()
	c.segments = segments
	c.mu.Unlock()

	c.bus.Emit(events.Event{Kind: events.KindSegmentsUpdated})
}

// Segments returns the known user segments.
func (c *Container) Segments() []flags.UserSegment {
	return c.lookupSegments()
}

// SetExperiments replaces the experiment collection.
func (c *Container) SetExperiments(experiments []flags.Experiment) {
	c.mu.Lock()
	c.experiments = make(map[string]flags.Experiment, len(experiments))
	for _, e := range experiments {
		c.experiments[e.ID] = e
	}
	c.mu.Unlock()

	c.bus.Emit(events.Event{Kind: events.KindExperimentsUpdated})
}

// Experiments returns all experiments keyed by id.
func (c *Container) Experiments() map[string]flags.Experiment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]flags.Experiment, len(c.experiments))
	for k, v := range c.experiments {
		out[k] = v
	}
	return out
}

// ---- context ----

// SetContext shallow-merges the partial context into the current one.
// Attributes are replaced wholesale, never deep-merged.
func (c *Container) SetContext(partial flags.Context) {
	c.mu.Lock()
	c.context = c.context.Merge(partial)
	c.mu.Unlock()

	c.bus.Emit(events.Event{Kind: events.KindContextUpdated})
}

// Context returns the current evaluation context.
func (c *Container) Context() flags.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// ---- evaluation ----

// Evaluate resolves a flag using the supplied context, or the container's
// current context when nil. Emits a flag-evaluated event.
func (c *Container) Evaluate(flagID string, ctx *flags.Context) flags.Evaluation {
	ectx := c.Context()
	if ctx != nil {
		ectx = *ctx
	}

	ev := c.eval.Evaluate(flagID, ectx)
	c.bus.Emit(events.Event{Kind: events.KindFlagEvaluated, FlagID: flagID, Evaluation: &ev})
	return ev
}

// EvaluateAll evaluates every known flag sequentially, in registration
// order. Sequential evaluation is an ordering guarantee: results and
// flag-evaluated events are produced in a fixed order, one flag at a time.
func (c *Container) EvaluateAll(ctx *flags.Context) map[string]flags.Evaluation {
	c.mu.RLock()
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	c.mu.RUnlock()

	results := make(map[string]flags.Evaluation, len(ids))
	for _, id := range ids {
		results[id] = c.Evaluate(id, ctx)
	}
	return results
}

// ---- persistence ----

// LoadPersisted restores previously saved overrides from storage.
// Missing storage or a missing key are both no-ops.
func (c *Container) LoadPersisted(ctx context.Context) error {
	if c.storage == nil {
		return nil
	}
	saved, ok, err := storage.Get[map[string]flags.Override](ctx, c.storage, overridesKey)
	if err != nil || !ok {
		return err
	}

	c.mu.Lock()
	c.overrides = saved
	c.mu.Unlock()
	return nil
}

// persistOverrides mirrors the override map to storage, when configured.
// Persistence failures are logged, never surfaced to the mutating caller.
func (c *Container) persistOverrides() {
	if c.storage == nil {
		return
	}
	if err := c.storage.SetItem(context.Background(), overridesKey, c.Overrides()); err != nil {
		c.log.Error().Err(err).Msg("failed to persist overrides")
	}
}
