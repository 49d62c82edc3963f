// Package engine implements the flag evaluation pipeline. Evaluation is a
// pure function of the flag definition, the evaluation context and the
// injected lookups; the engine never mutates state it reads.
//
// Pipeline stages, in strict precedence order, short-circuiting on the first
// applicable one:
//
//	lookup → override → dependencies → targeting → rollout → variants → default
//
// Every failure mode resolves to a fallback value plus an explanatory reason;
// Evaluate never panics for data-shape problems. The one documented exception
// is variant selection on an empty variant list, which is a programming
// contract violation (the pipeline never reaches it for well-formed flags).
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/TimurManjosov/flagdeck/internal/bucket"
	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// FlagLookup resolves a flag definition by id, nil when unknown.
type FlagLookup func(id string) *flags.Definition

// OverrideLookup resolves the active override for a flag, nil when none.
type OverrideLookup func(flagID string) *flags.Override

// SegmentLookup returns all known user segments.
type SegmentLookup func() []flags.UserSegment

// Evaluator resolves flag values through the precedence pipeline.
type Evaluator struct {
	getFlag     FlagLookup
	getOverride OverrideLookup
	getSegments SegmentLookup
	salt        string
	now         func() time.Time
	randomID    func() string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithOverrideLookup wires the override collaborator.
func WithOverrideLookup(fn OverrideLookup) Option {
	return func(e *Evaluator) { e.getOverride = fn }
}

// WithSegmentLookup wires the segment collaborator.
func WithSegmentLookup(fn SegmentLookup) Option {
	return func(e *Evaluator) { e.getSegments = fn }
}

// WithSalt sets the salt mixed into every hash input.
func WithSalt(salt string) Option {
	return func(e *Evaluator) { e.salt = salt }
}

// WithClock overrides the time source (override expiry checks).
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithRandomSource overrides the generator used for "random" stickiness.
func WithRandomSource(fn func() string) Option {
	return func(e *Evaluator) { e.randomID = fn }
}

// New creates an Evaluator. The flag lookup is required; override and
// segment lookups are optional collaborators.
func New(getFlag FlagLookup, opts ...Option) *Evaluator {
	e := &Evaluator{
		getFlag:  getFlag,
		now:      func() time.Time { return time.Now().UTC() },
		randomID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves a flag for the given context. It never panics for
// malformed data: missing flags, missing dependencies and unmatched audiences
// all degrade to a default value with an explanatory reason.
func (e *Evaluator) Evaluate(flagID string, ctx flags.Context) flags.Evaluation {
	return e.evaluate(flagID, ctx, make(map[string]struct{}))
}

// evaluate carries the set of flag ids currently being resolved so that a
// cyclic dependency graph terminates with an error instead of recursing.
func (e *Evaluator) evaluate(flagID string, ctx flags.Context, resolving map[string]struct{}) flags.Evaluation {
	now := e.now()

	flag := e.getFlag(flagID)
	if flag == nil {
		return flags.Evaluation{
			FlagID:      flagID,
			Value:       nil,
			Reason:      flags.ReasonError,
			Metadata:    map[string]any{"error": "flag not found"},
			EvaluatedAt: now,
		}
	}

	if _, seen := resolving[flagID]; seen {
		return flags.Evaluation{
			FlagID:      flagID,
			Value:       flag.DefaultValue(),
			Reason:      flags.ReasonError,
			Metadata:    map[string]any{"error": "circular dependency"},
			EvaluatedAt: now,
		}
	}
	resolving[flagID] = struct{}{}
	defer delete(resolving, flagID)

	// Stage 2: an active override wins over everything else. The returned
	// value is always the override's literal value; the variant attach is
	// advisory, for display only.
	if e.getOverride != nil {
		if o := e.getOverride(flagID); o != nil && !o.Expired(now) {
			ev := flags.Evaluation{
				FlagID:      flagID,
				Value:       o.Value,
				Reason:      flags.ReasonOverride,
				EvaluatedAt: now,
			}
			if o.VariantID != "" {
				ev.Variant = flag.Variant(o.VariantID)
			}
			return ev
		}
	}

	// Stage 3: dependencies, declaration order, first unsatisfied aborts.
	for _, dep := range flag.Dependencies {
		target := e.getFlag(dep.FlagID)
		if target == nil {
			return flags.Evaluation{
				FlagID:      flagID,
				Value:       flag.DefaultValue(),
				Reason:      flags.ReasonDependency,
				Metadata:    map[string]any{"failedDependency": dep.FlagID},
				EvaluatedAt: now,
			}
		}

		depEval := e.evaluate(dep.FlagID, ctx, resolving)

		var satisfied bool
		switch dep.Condition {
		case flags.DependencyEnabled:
			// The raw enabled field of the definition, not the evaluated value.
			satisfied = target.Enabled
		case flags.DependencyDisabled:
			satisfied = !target.Enabled
		case flags.DependencyEquals:
			satisfied = valueEquals(depEval.Value, dep.ExpectedValue)
		}

		if !satisfied {
			return flags.Evaluation{
				FlagID:      flagID,
				Value:       flag.DefaultValue(),
				Reason:      flags.ReasonDependency,
				Metadata:    map[string]any{"failedDependency": dep.FlagID},
				EvaluatedAt: now,
			}
		}
	}

	// Stage 4: targeting.
	if !e.matchTargeting(flag, ctx) {
		return flags.Evaluation{
			FlagID:      flagID,
			Value:       flag.DefaultValue(),
			Reason:      flags.ReasonTargeting,
			EvaluatedAt: now,
		}
	}

	// Stage 5: percentage rollout. A percentage >= 100 means everyone.
	if flag.Rollout != nil && flag.Rollout.Percentage < 100 {
		b := bucket.Rollout(flag.ID, e.stickinessValue(flag.Rollout.Stickiness, ctx), e.salt)
		if b > flag.Rollout.Percentage {
			return flags.Evaluation{
				FlagID:      flagID,
				Value:       flag.DefaultValue(),
				Reason:      flags.ReasonRollout,
				Metadata:    map[string]any{"bucket": b},
				EvaluatedAt: now,
			}
		}
	}

	// Stage 6: multivariate selection, regardless of declared type.
	if len(flag.Variants) > 0 {
		variant, b := SelectVariant(flag, variantSubject(ctx), e.salt)
		return flags.Evaluation{
			FlagID:      flagID,
			Value:       variant.Value,
			Variant:     variant,
			Reason:      flags.ReasonVariant,
			Metadata:    map[string]any{"bucket": b},
			EvaluatedAt: now,
		}
	}

	// Stage 7: plain default.
	value := flag.DefaultValue()
	if flag.Enabled {
		value = flag.Value
	}
	return flags.Evaluation{
		FlagID:      flagID,
		Value:       value,
		Reason:      flags.ReasonDefault,
		EvaluatedAt: now,
	}
}

// SelectVariant assigns a variant by walking the declared variants in order,
// accumulating weights until one exceeds the subject's bucket. Weights
// summing below 100 fall back to the first variant.
//
// Calling SelectVariant on a flag without variants is a programming error
// and panics.
func SelectVariant(flag *flags.Definition, subject, salt string) (*flags.Variant, int) {
	if len(flag.Variants) == 0 {
		panic("engine: SelectVariant called on flag without variants: " + flag.ID)
	}
	b := bucket.Variant(flag.ID, subject, salt)
	cumulative := 0
	for i := range flag.Variants {
		cumulative += flag.Variants[i].Weight
		if b < cumulative {
			return &flag.Variants[i], b
		}
	}
	return &flag.Variants[0], b
}

func (e *Evaluator) stickinessValue(s flags.Stickiness, ctx flags.Context) string {
	switch s {
	case flags.StickinessUserID:
		return ctx.UserID
	case flags.StickinessSessionID:
		return ctx.SessionID
	default:
		// random or unset: a fresh value per call, deliberately unstable.
		return e.randomID()
	}
}

func variantSubject(ctx flags.Context) string {
	if ctx.UserID != "" {
		return ctx.UserID
	}
	if ctx.SessionID != "" {
		return ctx.SessionID
	}
	return "anonymous"
}
