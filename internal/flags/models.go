// Package flags defines the data model shared by the evaluation engine and
// the state container: flag definitions, targeting rules, segments, overrides,
// evaluation contexts and evaluation results.
package flags

import "time"

// Type is the declared value type of a flag.
type Type string

const (
	TypeBoolean      Type = "boolean"
	TypeString       Type = "string"
	TypeNumber       Type = "number"
	TypeJSON         Type = "json"
	TypeMultivariate Type = "multivariate"
)

// DependencyCondition describes how a dependency on another flag is checked.
type DependencyCondition string

const (
	// DependencyEnabled requires the target flag's raw enabled field to be true.
	DependencyEnabled DependencyCondition = "enabled"
	// DependencyDisabled requires the target flag's raw enabled field to be false.
	DependencyDisabled DependencyCondition = "disabled"
	// DependencyEquals requires the target flag's evaluated value to equal ExpectedValue.
	DependencyEquals DependencyCondition = "equals"
)

// Dependency declares that a flag only applies when another flag satisfies
// a condition. Dependencies are checked in declaration order.
type Dependency struct {
	FlagID        string              `json:"flagId"`
	Condition     DependencyCondition `json:"condition"`
	ExpectedValue any                 `json:"expectedValue,omitempty"`
}

// Operator represents a comparison operator used in targeting rules.
type Operator string

// Supported targeting operators (string values for clean JSON serialization).
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegex       Operator = "regex"
	OpSemVerGt    Operator = "semver_gt"
	OpSemVerLt    Operator = "semver_lt"
)

// TargetingRule is a single attribute predicate. The attribute is a dot path
// into the evaluation context. A rule whose Enabled field is explicitly false
// never matches; nil means enabled.
type TargetingRule struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Values    []any    `json:"values"`
	Enabled   *bool    `json:"enabled,omitempty"`
}

// IsEnabled reports whether the rule participates in matching.
func (r TargetingRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Targeting gates a flag on audience membership. SegmentIDs and Rules are
// independent checks: segments match when the context belongs to any listed
// segment, rules match when at least one enabled rule matches (OR semantics).
type Targeting struct {
	SegmentIDs []string        `json:"segmentIds,omitempty"`
	Rules      []TargetingRule `json:"rules,omitempty"`
}

// Stickiness selects the context field hashed for rollout bucketing.
type Stickiness string

const (
	StickinessUserID    Stickiness = "userId"
	StickinessSessionID Stickiness = "sessionId"
	StickinessRandom    Stickiness = "random"
)

// Rollout limits a flag to a deterministic percentage of contexts.
type Rollout struct {
	Percentage int        `json:"percentage"`
	Stickiness Stickiness `json:"stickiness,omitempty"`
}

// Variant is one weighted alternative value of a multivariate flag.
// Weights are cumulative buckets out of 100 and need not sum to 100.
type Variant struct {
	ID     string `json:"id"`
	Value  any    `json:"value"`
	Weight int    `json:"weight"`
}

// Definition is an immutable-per-evaluation flag record. A flag with a
// non-empty Variants list is multivariate-evaluated regardless of Type.
type Definition struct {
	ID           string       `json:"id"`
	Type         Type         `json:"type"`
	Value        any          `json:"value"`
	Enabled      bool         `json:"enabled"`
	Description  string       `json:"description,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Targeting    *Targeting   `json:"targeting,omitempty"`
	Rollout      *Rollout     `json:"rollout,omitempty"`
	Variants     []Variant    `json:"variants,omitempty"`
	Expression   *string      `json:"expression,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt,omitempty"`
}

// Variant returns the declared variant with the given id, or nil.
func (d *Definition) Variant(id string) *Variant {
	for i := range d.Variants {
		if d.Variants[i].ID == id {
			return &d.Variants[i]
		}
	}
	return nil
}

// UserSegment is a named audience. All rules must match (AND semantics) for
// the segment to apply to a context.
type UserSegment struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Rules []TargetingRule `json:"rules"`
}

// Experiment groups a flag's variants for A/B test bookkeeping.
type Experiment struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	FlagID     string   `json:"flagId"`
	VariantIDs []string `json:"variantIds,omitempty"`
	Active     bool     `json:"active"`
}

// Override is an operator-supplied value that bypasses all conditional logic
// for a flag. An override whose ExpiresAt is in the past is ignored at read
// time; expiry never deletes the record.
type Override struct {
	FlagID    string     `json:"flagId"`
	Value     any        `json:"value"`
	VariantID string     `json:"variantId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the override should be ignored at the given time.
func (o *Override) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// Reason names the pipeline stage that produced an evaluation's value.
type Reason string

const (
	ReasonDefault    Reason = "default"
	ReasonOverride   Reason = "override"
	ReasonTargeting  Reason = "targeting"
	ReasonRollout    Reason = "rollout"
	ReasonDependency Reason = "dependency"
	ReasonVariant    Reason = "variant"
	ReasonError      Reason = "error"
)

// Evaluation is the result of resolving a flag for a context.
type Evaluation struct {
	FlagID      string         `json:"flagId"`
	Value       any            `json:"value"`
	Variant     *Variant       `json:"variant,omitempty"`
	Reason      Reason         `json:"reason"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	EvaluatedAt time.Time      `json:"evaluatedAt"`
}
