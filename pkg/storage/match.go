package storage

import (
	"encoding/json"
	"sort"
	"strings"
)

// toDoc flattens an entity into a generic document so filters and sort keys
// can address fields by their wire names, dotted paths included.
func toDoc(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{}
	}
	return doc
}

// fieldAt resolves a dotted path inside a document.
func fieldAt(doc map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// matches evaluates a filter against a document. Clause values compare by
// equality, except a {"$ne": v} map which inverts the comparison.
func matches(doc map[string]any, spec Spec) bool {
	for field, want := range spec {
		got := fieldAt(doc, field)
		if ne, ok := neClause(want); ok {
			if equalValue(got, ne) {
				return false
			}
			continue
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}

func neClause(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	ne, ok := m["$ne"]
	return ne, ok
}

// equalValue compares two scalar values, normalizing numbers so that typed
// ints match the float64 values produced by JSON decoding.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := asFloat(a); ok {
		fb, okb := asFloat(b)
		return okb && fa == fb
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// compareValue orders two field values: nil first, then numbers, then strings.
func compareValue(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, okb := asFloat(b); okb {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
		return -1
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		return strings.Compare(sa, sb)
	}
	return 0
}

type queried[T any] struct {
	item *T
	doc  map[string]any
}

// applyQuery filters, sorts and paginates entities. docFn renders the
// document used for matching; it may patch wire names (environments store
// their name under _id).
func applyQuery[T any](items []*T, q Query, docFn func(*T) map[string]any) []*T {
	pairs := make([]queried[T], 0, len(items))
	for _, it := range items {
		doc := docFn(it)
		if q.Spec != nil && !matches(doc, q.Spec) {
			continue
		}
		pairs = append(pairs, queried[T]{item: it, doc: doc})
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(pairs, func(i, j int) bool {
			for _, key := range q.Sort {
				c := compareValue(fieldAt(pairs[i].doc, key.Field), fieldAt(pairs[j].doc, key.Field))
				if key.Desc {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(pairs) {
			pairs = nil
		} else {
			pairs = pairs[q.Skip:]
		}
	}
	if q.Limit > 0 && len(pairs) > q.Limit {
		pairs = pairs[:q.Limit]
	}

	out := make([]*T, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.item)
	}
	return out
}

// countMatching counts entities satisfying a filter.
func countMatching[T any](items []*T, spec Spec, docFn func(*T) map[string]any) int64 {
	var n int64
	for _, it := range items {
		if spec == nil || matches(docFn(it), spec) {
			n++
		}
	}
	return n
}
