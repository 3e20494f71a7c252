// Package attrs provides the typed attribute values stored in an index.
//
// Attribute values read from tag lines and tables are schemaless: a value
// may be a string, an integer, an ordered list (replicate values) or a
// nested map. Value is a small tagged union over those shapes so the rest
// of the engine never type-switches on interface{}.
//
// Usage:
//
//	a := attrs.Attrs{
//	    "id":   attrs.String("1"),
//	    "age":  attrs.Parse("65"),                  // KindInt
//	    "sex":  attrs.List(attrs.String("M"), attrs.String("F")),
//	}
//	fmt.Println(a["age"].String()) // "65"
package attrs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindString represents a string value. The zero Value is an empty string.
	KindString Kind = iota
	// KindInt represents an integer value.
	KindInt
	// KindList represents an ordered list of scalar values.
	KindList
	// KindMap represents a nested attribute map.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a tagged attribute value.
type Value struct {
	kind Kind
	s    string
	i    int64
	list []Value
	m    map[string]Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// List returns a list Value.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Map returns a map Value.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Strings returns a list Value of parsed elements.
func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = Parse(s)
	}
	return List(vs...)
}

// Parse infers a scalar Value from raw text.
// Only canonical base-10 integers become KindInt: "007" and "+5" stay
// strings so that serializing the value reproduces the original text.
func Parse(s string) Value {
	if isCanonicalInt(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n)
		}
	}
	return String(s)
}

func isCanonicalInt(s string) bool {
	if s == "" {
		return false
	}
	digits := s
	if s[0] == '-' {
		digits = s[1:]
	}
	if digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return false
	}
	if s == "-0" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FromAny converts a decoded JSON/YAML value into a Value.
func FromAny(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return String("")
	case Value:
		return val
	case string:
		return String(val)
	case int:
		return Int(int64(val))
	case int64:
		return Int(val)
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val))
		}
		return String(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		return String(strconv.FormatBool(val))
	case []string:
		return Strings(val...)
	case []interface{}:
		vs := make([]Value, len(val))
		for i, item := range val {
			vs[i] = FromAny(item)
		}
		return List(vs...)
	case map[string]interface{}:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = FromAny(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprint(val))
	}
}

// Kind reports the concrete kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether v is a string or an integer.
func (v Value) IsScalar() bool { return v.kind == KindString || v.kind == KindInt }

// String renders v as text. Lists are joined with "," and maps render as
// sorted key=value pairs.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	case KindMap:
		keys := sortedKeys(v.m)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.m[k].String()
		}
		return strings.Join(parts, ",")
	default:
		return v.s
	}
}

// Join renders v with sep between list elements.
func (v Value) Join(sep string) string {
	if v.kind != KindList {
		return v.String()
	}
	parts := make([]string, len(v.list))
	for i, item := range v.list {
		parts[i] = item.String()
	}
	return strings.Join(parts, sep)
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsInt returns the integer value. Strings holding an integer convert too.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// AsList returns the list elements if Kind is KindList.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns the nested map if Kind is KindMap.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Elements returns the list elements, or v itself as a single element.
func (v Value) Elements() []Value {
	if v.kind == KindList {
		return v.list
	}
	return []Value{v}
}

// IsEmpty reports whether v carries no data: an empty string, list or map.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return v.s == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.m) == 0
	default:
		return false
	}
}

// IsMissing reports whether v is the missing-value sentinel.
func (v Value) IsMissing(sentinel string) bool {
	return v.kind == KindString && v.s == sentinel
}

// Equal reports deep equality, including kind.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return v.s == o.s
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		list := make([]Value, len(v.list))
		for i, item := range v.list {
			list[i] = item.Clone()
		}
		return List(list...)
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Map(m)
	default:
		return v
	}
}

// Interface returns v as a plain Go value: string, int64, []interface{} or
// map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return v.s
	}
}

// MarshalJSON implements json.Marshaler using the plain Go shape.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
