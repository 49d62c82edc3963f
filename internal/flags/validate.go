package flags

import (
	"fmt"
	"regexp"
)

const (
	// MaxIDLength is the maximum length for flag and variant ids.
	MaxIDLength = 64
	// MaxDescriptionLength is the maximum length for flag descriptions.
	MaxDescriptionLength = 500
	// MinPercentage is the minimum rollout percentage.
	MinPercentage = 0
	// MaxPercentage is the maximum rollout percentage.
	MaxPercentage = 100
)

// idPattern matches alphanumeric characters, underscores, dots and hyphens.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidationResult holds field-level validation errors for a definition.
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Errors: make(map[string]string)}
}

// AddError records a field error and marks the result as invalid.
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

var validTypes = map[Type]bool{
	TypeBoolean:      true,
	TypeString:       true,
	TypeNumber:       true,
	TypeJSON:         true,
	TypeMultivariate: true,
}

// Validate checks a flag definition for structural problems: id shape,
// type tag, rollout range, variant weights and dependency conditions.
func (d *Definition) Validate() *ValidationResult {
	result := NewValidationResult()

	if d.ID == "" {
		result.AddError("id", "id is required")
	} else if len(d.ID) > MaxIDLength {
		result.AddError("id", fmt.Sprintf("id must be at most %d characters", MaxIDLength))
	} else if !idPattern.MatchString(d.ID) {
		result.AddError("id", "id may only contain letters, digits, '_', '.' and '-'")
	}

	if d.Type != "" && !validTypes[d.Type] {
		result.AddError("type", fmt.Sprintf("unknown flag type %q", d.Type))
	}

	if len(d.Description) > MaxDescriptionLength {
		result.AddError("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	if d.Rollout != nil {
		if d.Rollout.Percentage < MinPercentage || d.Rollout.Percentage > MaxPercentage {
			result.AddError("rollout.percentage", "percentage must be 0..100")
		}
		switch d.Rollout.Stickiness {
		case "", StickinessUserID, StickinessSessionID, StickinessRandom:
		default:
			result.AddError("rollout.stickiness", fmt.Sprintf("unknown stickiness %q", d.Rollout.Stickiness))
		}
	}

	seen := make(map[string]bool, len(d.Variants))
	for i, v := range d.Variants {
		field := fmt.Sprintf("variants[%d]", i)
		if v.ID == "" {
			result.AddError(field+".id", "variant id cannot be empty")
		} else if seen[v.ID] {
			result.AddError(field+".id", "duplicate variant id: "+v.ID)
		}
		seen[v.ID] = true
		if v.Weight < 0 || v.Weight > 100 {
			result.AddError(field+".weight", "weight must be 0..100")
		}
	}

	for i, dep := range d.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if dep.FlagID == "" {
			result.AddError(field+".flagId", "dependency flagId cannot be empty")
		}
		switch dep.Condition {
		case DependencyEnabled, DependencyDisabled, DependencyEquals:
		default:
			result.AddError(field+".condition", fmt.Sprintf("unknown condition %q", dep.Condition))
		}
	}

	return result
}
