package schema

import (
	"encoding/json"
	"math"
)

// Unit is one data unit: an open-ended field/value record as decoded from a
// shard. Nested records are map[string]any and sequences are []any.
type Unit map[string]any

// Clone returns a deep copy of u.
func (u Unit) Clone() Unit {
	if u == nil {
		return nil
	}
	return Unit(cloneRecord(u))
}

// Default returns the zero value of field in s, or nil when s does not
// declare it.
func Default(s Schema, field string) any {
	t, ok := s[field]
	if !ok {
		return nil
	}
	return t.Zero()
}

// Zero returns the canonical zero value for t.
func (t Type) Zero() any {
	switch {
	case t.Repeated:
		return []any{}
	case !t.IsPrimitive():
		return map[string]any{}
	}
	switch t.Primitive {
	case String:
		return ""
	case Number:
		return float64(0)
	case Boolean:
		return false
	default:
		return nil
	}
}

// Reconcile mutates u in place so that its field set is exactly the one of s.
//
// Fields unknown to s are deleted. Fields that are missing or hold a falsy
// value ("", 0, false, nil) are set to their default: a stored falsy value is
// indistinguishable from an absent one. For record fields, a sequence value
// has each of its record elements reconciled against the record schema, and a
// single record value is reconciled directly. Values of a mismatching kind are
// otherwise left untouched.
//
// Reconcile is idempotent.
func Reconcile(u Unit, s Schema) {
	reconcile(u, s)
}

func reconcile(m map[string]any, s Schema) {
	if m == nil {
		return
	}
	for k := range m {
		if _, ok := s[k]; !ok {
			delete(m, k)
		}
	}
	for name, t := range s {
		v, ok := m[name]
		if !ok || isFalsy(v) {
			v = t.Zero()
			m[name] = v
		}
		if t.IsPrimitive() {
			continue
		}
		switch val := v.(type) {
		case []any:
			for _, elem := range val {
				if rec, ok := asRecord(elem); ok {
					reconcile(rec, t.Nested)
				}
			}
		case []map[string]any:
			for _, rec := range val {
				reconcile(rec, t.Nested)
			}
		case []Unit:
			for _, rec := range val {
				reconcile(rec, t.Nested)
			}
		default:
			if rec, ok := asRecord(val); ok {
				reconcile(rec, t.Nested)
			}
		}
	}
}

func asRecord(v any) (map[string]any, bool) {
	switch r := v.(type) {
	case map[string]any:
		return r, r != nil
	case Unit:
		return r, r != nil
	default:
		return nil, false
	}
}

// isFalsy reports whether v is one of the values considered absent.
//
// Records and sequences are never falsy, even when empty.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0 || math.IsNaN(x)
	case float32:
		return x == 0 || math.IsNaN(float64(x))
	case int:
		return x == 0
	case int64:
		return x == 0
	case int32:
		return x == 0
	case uint64:
		return x == 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

func cloneRecord(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneRecord(x)
	case Unit:
		return Unit(cloneRecord(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
