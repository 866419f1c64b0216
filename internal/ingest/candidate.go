package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Candidate is a loosely-typed record produced by extraction. Field names
// vary per source; the normalizer reads them through ordered alias lists.
// Nested fields are addressed with dotted paths ("provider.name").
type Candidate map[string]any

// valueAt walks a dotted path through nested maps. Returns nil when any hop
// is missing or not a map.
func (c Candidate) valueAt(path string) any {
	var current any = map[string]any(c)
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			if cand, isCand := current.(Candidate); isCand {
				node = map[string]any(cand)
			} else {
				return nil
			}
		}
		current, ok = node[key]
		if !ok {
			return nil
		}
	}
	return current
}

// stringAt renders the value at path as a cleaned string. Numbers render in
// their shortest decimal form; lists and maps render empty.
func (c Candidate) stringAt(path string) string {
	return stringify(c.valueAt(path))
}

// firstString returns the first non-empty string among the given paths.
func (c Candidate) firstString(paths ...string) string {
	for _, path := range paths {
		if v := c.stringAt(path); v != "" {
			return v
		}
	}
	return ""
}

// firstValue returns the first non-nil raw value among the given paths.
func (c Candidate) firstValue(paths ...string) any {
	for _, path := range paths {
		if v := c.valueAt(path); v != nil {
			if s, ok := v.(string); ok && collapseSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// listAt gathers the value(s) at path into a flat, unique string list,
// splitting free-form strings on list separators.
func (c Candidate) listAt(paths ...string) []string {
	var out []string
	for _, path := range paths {
		v := c.valueAt(path)
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				out = append(out, splitList(stringify(item))...)
			}
		case []string:
			for _, item := range t {
				out = append(out, splitList(item)...)
			}
		default:
			out = append(out, splitList(stringify(v))...)
		}
		if len(out) > 0 {
			break
		}
	}
	return uniqueStrings(out)
}

// clone returns a shallow copy of the record map.
func (c Candidate) clone() Candidate {
	out := make(Candidate, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return collapseSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any, []string, map[string]any, Candidate:
		return ""
	default:
		return collapseSpace(fmt.Sprintf("%v", t))
	}
}
