package engine

import (
	"slices"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// matchTargeting applies the flag's audience gates. Segment ids, attribute
// rules and the optional expression are independent checks; all configured
// checks must pass.
func (e *Evaluator) matchTargeting(flag *flags.Definition, ctx flags.Context) bool {
	if t := flag.Targeting; t != nil {
		if len(t.SegmentIDs) > 0 && !e.matchSegments(t.SegmentIDs, ctx) {
			return false
		}
		if len(t.Rules) > 0 && !matchAnyRule(t.Rules, ctx) {
			return false
		}
	}
	if flag.Expression != nil && *flag.Expression != "" {
		match, err := EvaluateExpression(*flag.Expression, ctx.Flatten())
		if err != nil || !match {
			return false
		}
	}
	return true
}

// matchSegments reports whether the context belongs to any of the allowed
// segments: either its declared segment id is listed literally, or a known
// segment with a listed id has all of its rules matching.
func (e *Evaluator) matchSegments(allowed []string, ctx flags.Context) bool {
	if ctx.UserSegment != "" && slices.Contains(allowed, ctx.UserSegment) {
		return true
	}
	if e.getSegments == nil {
		return false
	}
	for _, seg := range e.getSegments() {
		if slices.Contains(allowed, seg.ID) && matchAllRules(seg.Rules, ctx) {
			return true
		}
	}
	return false
}

// matchAllRules is segment semantics: every rule must match.
func matchAllRules(rules []flags.TargetingRule, ctx flags.Context) bool {
	for _, rule := range rules {
		if !matchRule(rule, ctx) {
			return false
		}
	}
	return len(rules) > 0
}

// matchAnyRule is flag-level rule semantics: at least one enabled rule matches.
func matchAnyRule(rules []flags.TargetingRule, ctx flags.Context) bool {
	for _, rule := range rules {
		if matchRule(rule, ctx) {
			return true
		}
	}
	return false
}

func matchRule(rule flags.TargetingRule, ctx flags.Context) bool {
	if !rule.IsEnabled() {
		return false
	}
	value, ok := ctx.Attribute(rule.Attribute)
	if !ok {
		return false
	}
	handler, ok := getOperatorHandler(rule.Operator)
	if !ok {
		return false
	}
	return handler.Check(value, rule.Values)
}
