// Package value provides a typed sum-type representation for event payloads.
// The hub itself treats payloads opaquely; Value exists so extensions get
// round-trip conversions at the boundary instead of raw interface{} juggling.
package value

import (
	"fmt"

	"github.com/golobby/cast"
)

// Kind identifies which alternative of the Value sum type is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindList
	KindMap
)

// Value is an immutable dynamic value carried in an event payload.
// Exactly one field is meaningful, selected by Kind.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Int64(i int64) Value          { return Value{kind: KindInt64, i: i} }
func Float64(f float64) Value      { return Value{kind: KindFloat64, f: f} }
func String(s string) Value        { return Value{kind: KindString, s: s} }
func List(items []Value) Value     { return Value{kind: KindList, list: items} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)             { return v.b, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)           { return v.i, v.kind == KindInt64 }
func (v Value) AsFloat64() (float64, bool)       { return v.f, v.kind == KindFloat64 }
func (v Value) AsString() (string, bool)         { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)          { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool)  { return v.m, v.kind == KindMap }
func (v Value) IsNull() bool                     { return v.kind == KindNull }

// ToAny converts a Value back to a plain Go value (map[string]interface{},
// []interface{}, or a scalar), the mirror of FromAny.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts a plain Go value (as decoded from JSON, or supplied
// directly by a caller) into the Value sum type. Scalar coercion for
// near-miss numeric/string types is delegated to golobby/cast so that,
// e.g., a json.Number or a float64 holding an integral value both land
// cleanly on the matching Value alternative.
func FromAny(in interface{}) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int64(int64(t)), nil
	case int32:
		return Int64(int64(t)), nil
	case int64:
		return Int64(t), nil
	case float32:
		return Float64(float64(t)), nil
	case float64:
		return Float64(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, raw := range t {
			conv, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("payload list index %d: %w", i, err)
			}
			items[i] = conv
		}
		return List(items), nil
	case []Value:
		return List(t), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, raw := range t {
			conv, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("payload key %q: %w", k, err)
			}
			m[k] = conv
		}
		return Map(m), nil
	case map[string]Value:
		return Map(t), nil
	default:
		return coerceScalar(in)
	}
}

// coerceScalar handles values that don't match a known Go type exactly
// (e.g. json.Number, uint variants) by asking golobby/cast to coerce them.
func coerceScalar(in interface{}) (Value, error) {
	if s, err := cast.ToString(in); err == nil {
		if i, err := cast.ToInt64(in); err == nil {
			return Int64(i), nil
		}
		if f, err := cast.ToFloat64(in); err == nil {
			return Float64(f), nil
		}
		return String(s), nil
	}
	return Value{}, fmt.Errorf("unsupported payload value type %T", in)
}

// MapFromAny converts a plain map[string]interface{} payload (e.g. freshly
// decoded JSON) into the map[string]Value representation used by Event.
func MapFromAny(in map[string]interface{}) (map[string]Value, error) {
	converted, err := FromAny(in)
	if err != nil {
		return nil, err
	}
	m, _ := converted.AsMap()
	return m, nil
}

// MapToAny converts a map[string]Value payload back into plain Go values,
// e.g. for JSON re-encoding at a transport boundary.
func MapToAny(in map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v.ToAny()
	}
	return out
}
