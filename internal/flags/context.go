package flags

import "strings"

// Context is the read-only input to an evaluation: who is asking.
type Context struct {
	UserID      string         `json:"userId,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	UserSegment string         `json:"userSegment,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Merge shallow-merges another context into this one and returns the result.
// Non-zero fields of other win; Attributes is replaced wholesale when set,
// never deep-merged.
func (c Context) Merge(other Context) Context {
	if other.UserID != "" {
		c.UserID = other.UserID
	}
	if other.SessionID != "" {
		c.SessionID = other.SessionID
	}
	if other.UserSegment != "" {
		c.UserSegment = other.UserSegment
	}
	if other.Attributes != nil {
		c.Attributes = other.Attributes
	}
	return c
}

// Attribute resolves a dot-path against the context. Well-known fields are
// addressable by name; everything else is looked up in Attributes, descending
// through nested maps. Any missing or non-map segment yields (nil, false).
func (c Context) Attribute(path string) (any, bool) {
	switch path {
	case "userId", "id":
		if c.UserID == "" {
			return nil, false
		}
		return c.UserID, true
	case "sessionId":
		if c.SessionID == "" {
			return nil, false
		}
		return c.SessionID, true
	case "userSegment":
		if c.UserSegment == "" {
			return nil, false
		}
		return c.UserSegment, true
	}
	trimmed := strings.TrimPrefix(path, "attributes.")
	return Get(c.Attributes, trimmed)
}

// Get traverses a dot path through nested string-keyed maps.
// Returns (nil, false) on any missing or non-map segment.
func Get(mapping map[string]any, dotPath string) (any, bool) {
	if mapping == nil || dotPath == "" {
		return nil, false
	}
	segments := strings.Split(dotPath, ".")
	var current any = mapping
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Flatten produces a flat map view of the context for expression evaluation.
func (c Context) Flatten() map[string]any {
	out := make(map[string]any, len(c.Attributes)+3)
	for k, v := range c.Attributes {
		out[k] = v
	}
	if c.UserID != "" {
		out["userId"] = c.UserID
	}
	if c.SessionID != "" {
		out["sessionId"] = c.SessionID
	}
	if c.UserSegment != "" {
		out["userSegment"] = c.UserSegment
	}
	return out
}
