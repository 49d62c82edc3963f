package engine

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// OperatorHandler evaluates one rule operator against the context value and
// the rule's value list.
type OperatorHandler interface {
	Check(contextValue any, ruleValues []any) bool
}

var (
	operatorHandlers = map[flags.Operator]OperatorHandler{
		flags.OpEquals:      equalsHandler{},
		flags.OpNotEquals:   notEqualsHandler{},
		flags.OpIn:          inHandler{},
		flags.OpNotIn:       notInHandler{},
		flags.OpGreaterThan: numericCompareHandler{cmp: func(a, b float64) bool { return a > b }},
		flags.OpLessThan:    numericCompareHandler{cmp: func(a, b float64) bool { return a < b }},
		flags.OpContains:    containsHandler{},
		flags.OpStartsWith:  startsWithHandler{},
		flags.OpEndsWith:    endsWithHandler{},
		flags.OpRegex:       regexHandler{},
		flags.OpSemVerGt:    semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.GreaterThan(b) }},
		flags.OpSemVerLt:    semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.LessThan(b) }},
	}
	// regexCache keeps compiled regex by pattern for the hot evaluation path.
	// Expected value type is *regexp.Regexp.
	regexCache sync.Map
)

func getOperatorHandler(op flags.Operator) (OperatorHandler, bool) {
	h, ok := operatorHandlers[normalizeOperator(op)]
	return h, ok
}

func normalizeOperator(op flags.Operator) flags.Operator {
	switch strings.ToLower(string(op)) {
	case "==", "eq", "equals":
		return flags.OpEquals
	case "!=", "neq", "not_equals":
		return flags.OpNotEquals
	case "in", "in_list":
		return flags.OpIn
	case "not_in", "not_in_list", "nin":
		return flags.OpNotIn
	case ">", "gt", "greater_than":
		return flags.OpGreaterThan
	case "<", "lt", "less_than":
		return flags.OpLessThan
	case "contains":
		return flags.OpContains
	case "starts_with", "startswith":
		return flags.OpStartsWith
	case "ends_with", "endswith":
		return flags.OpEndsWith
	case "regex", "matches":
		return flags.OpRegex
	case "semver_gt", "version_gt":
		return flags.OpSemVerGt
	case "semver_lt", "version_lt":
		return flags.OpSemVerLt
	default:
		return op
	}
}

// firstValue returns the scalar operand for single-value operators.
func firstValue(ruleValues []any) (any, bool) {
	if len(ruleValues) == 0 {
		return nil, false
	}
	return ruleValues[0], true
}

type equalsHandler struct{}

func (equalsHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	return ok && valueEquals(contextValue, rule)
}

type notEqualsHandler struct{}

func (notEqualsHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	return ok && !valueEquals(contextValue, rule)
}

type inHandler struct{}

func (inHandler) Check(contextValue any, ruleValues []any) bool {
	for _, item := range ruleValues {
		if valueEquals(contextValue, item) {
			return true
		}
	}
	return false
}

type notInHandler struct{}

func (notInHandler) Check(contextValue any, ruleValues []any) bool {
	return len(ruleValues) > 0 && !(inHandler{}).Check(contextValue, ruleValues)
}

type numericCompareHandler struct {
	cmp func(a, b float64) bool
}

func (h numericCompareHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	user, ok := toFloat64(contextValue)
	if !ok {
		return false
	}
	threshold, ok := toFloat64(rule)
	if !ok {
		return false
	}
	return h.cmp(user, threshold)
}

type containsHandler struct{}

func (containsHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	user, ok := toString(contextValue)
	if !ok {
		return false
	}
	needle, ok := toString(rule)
	if !ok {
		return false
	}
	return strings.Contains(user, needle)
}

type startsWithHandler struct{}

func (startsWithHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	user, ok := toString(contextValue)
	if !ok {
		return false
	}
	prefix, ok := toString(rule)
	if !ok {
		return false
	}
	return strings.HasPrefix(user, prefix)
}

type endsWithHandler struct{}

func (endsWithHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	user, ok := toString(contextValue)
	if !ok {
		return false
	}
	suffix, ok := toString(rule)
	if !ok {
		return false
	}
	return strings.HasSuffix(user, suffix)
}

type regexHandler struct{}

func (regexHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	user, ok := toString(contextValue)
	if !ok {
		return false
	}
	pattern, ok := toString(rule)
	if !ok {
		return false
	}
	rx, ok := getCompiledRegex(pattern)
	if !ok {
		return false
	}
	return rx.MatchString(user)
}

type semverCompareHandler struct {
	cmp func(a, b *semver.Version) bool
}

func (h semverCompareHandler) Check(contextValue any, ruleValues []any) bool {
	rule, ok := firstValue(ruleValues)
	if !ok {
		return false
	}
	userStr, ok := toString(contextValue)
	if !ok {
		return false
	}
	ruleStr, ok := toString(rule)
	if !ok {
		return false
	}
	userVer, err := semver.NewVersion(userStr)
	if err != nil {
		return false
	}
	ruleVer, err := semver.NewVersion(ruleStr)
	if err != nil {
		return false
	}
	return h.cmp(userVer, ruleVer)
}

func getCompiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, ok := cached.(*regexp.Regexp)
		return rx, ok
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

// valueEquals compares two JSON-shaped values, normalizing numeric types so
// that int(5) equals float64(5) regardless of decode path.
func valueEquals(a, b any) bool {
	if af, ok := toFloat64(a); ok {
		bf, ok := toFloat64(b)
		return ok && af == bf
	}
	if as, ok := toString(a); ok {
		bs, ok := toString(b)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return reflect.DeepEqual(a, b)
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
