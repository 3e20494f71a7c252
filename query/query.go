// Package query evaluates attribute predicates.
//
// A predicate is built from an attribute name and a raw value:
//
//	age=>50    numeric comparison (operators < <= > >= = == !=)
//	age=50     numeric equality
//	sex=M      exact equality (exact mode) or regex partial match
//	sex=M:F    list membership, each element evaluated with the rules above
//
// Operators are dispatched through a table keyed by Op, so new operators
// only need a table entry.
package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
)

// Op identifies a comparison operator.
type Op string

const (
	OpEqual        Op = "eq"
	OpNotEqual     Op = "ne"
	OpLess         Op = "lt"
	OpLessEqual    Op = "le"
	OpGreater      Op = "gt"
	OpGreaterEqual Op = "ge"
	OpExact        Op = "exact"
	OpRegex        Op = "regex"
	OpIn           Op = "in"
)

// numericOps maps textual operators to numeric comparisons.
var numericOps = map[string]Op{
	"":   OpEqual,
	"=":  OpEqual,
	"==": OpEqual,
	"!=": OpNotEqual,
	"<":  OpLess,
	"<=": OpLessEqual,
	">":  OpGreater,
	">=": OpGreaterEqual,
}

var compareInt = map[Op]func(a, b int64) bool{
	OpEqual:        func(a, b int64) bool { return a == b },
	OpNotEqual:     func(a, b int64) bool { return a != b },
	OpLess:         func(a, b int64) bool { return a < b },
	OpLessEqual:    func(a, b int64) bool { return a <= b },
	OpGreater:      func(a, b int64) bool { return a > b },
	OpGreaterEqual: func(a, b int64) bool { return a >= b },
}

var (
	numericExpr  = regexp.MustCompile(`^([<>=!]*)(-?\d+)$`)
	operatorOnly = regexp.MustCompile(`^[<>=!]+$`)
)

// Predicate tests attribute values against a single condition.
type Predicate struct {
	Key string
	Op  Op
	Raw string

	num   int64
	re    *regexp.Regexp
	items []Predicate
}

// New compiles a predicate for key. List values become membership tests.
// A malformed comparison operator or an invalid regex is a validation error.
func New(key string, v attrs.Value, exact bool) (Predicate, error) {
	if items, ok := v.AsList(); ok {
		p := Predicate{Key: key, Op: OpIn, Raw: v.String()}
		for _, item := range items {
			sub, err := newScalar(key, item.String(), exact)
			if err != nil {
				return Predicate{}, err
			}
			p.items = append(p.items, sub)
		}
		return p, nil
	}
	return newScalar(key, v.String(), exact)
}

func newScalar(key, raw string, exact bool) (Predicate, error) {
	if m := numericExpr.FindStringSubmatch(raw); m != nil {
		op, ok := numericOps[m[1]]
		if !ok {
			return Predicate{}, errors.NewValidationError("invalid comparison %q for %q", raw, key)
		}
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Predicate{}, errors.NewValidationError("invalid number in %q for %q", raw, key)
		}
		return Predicate{Key: key, Op: op, Raw: raw, num: n}, nil
	}
	if raw != "" && operatorOnly.MatchString(raw) {
		return Predicate{}, errors.NewValidationError("comparison %q for %q has no operand", raw, key)
	}
	if exact {
		return Predicate{Key: key, Op: OpExact, Raw: raw}, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return Predicate{}, errors.NewValidationError("invalid pattern %q for %q: %v", raw, key, err)
	}
	return Predicate{Key: key, Op: OpRegex, Raw: raw, re: re}, nil
}

// Numeric reports whether p compares integers.
func (p Predicate) Numeric() bool {
	_, ok := compareInt[p.Op]
	return ok
}

// Match tests a single textual value.
func (p Predicate) Match(s string) bool {
	switch p.Op {
	case OpExact:
		return s == p.Raw
	case OpRegex:
		return p.re.MatchString(s)
	case OpIn:
		for _, item := range p.items {
			if item.Match(s) {
				return true
			}
		}
		return false
	}
	cmp, ok := compareInt[p.Op]
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return false
	}
	return cmp(n, p.num)
}

// MatchValue tests a typed value. A list matches when any element does.
func (p Predicate) MatchValue(v attrs.Value) bool {
	if v.Kind() == attrs.KindMap {
		return false
	}
	for _, el := range v.Elements() {
		if p.Match(el.String()) {
			return true
		}
	}
	return false
}

func (p Predicate) String() string {
	return p.Key + "=" + p.Raw
}

// Set is a conjunction of predicates, or a disjunction when Any is set.
type Set struct {
	Predicates []Predicate
	Any        bool
}

// Empty reports whether the set has no predicates.
func (s Set) Empty() bool { return len(s.Predicates) == 0 }

// Keys returns the attribute names the set refers to, in order.
func (s Set) Keys() []string {
	keys := make([]string, len(s.Predicates))
	for i, p := range s.Predicates {
		keys[i] = p.Key
	}
	return keys
}

// Get returns the predicate for key.
func (s Set) Get(key string) (Predicate, bool) {
	for _, p := range s.Predicates {
		if p.Key == key {
			return p, true
		}
	}
	return Predicate{}, false
}

// Partition splits the set into predicates on keys accepted by fn and the rest.
func (s Set) Partition(fn func(key string) bool) (in, out []Predicate) {
	for _, p := range s.Predicates {
		if fn(p.Key) {
			in = append(in, p)
		} else {
			out = append(out, p)
		}
	}
	return in, out
}

func (s Set) String() string {
	parts := make([]string, len(s.Predicates))
	for i, p := range s.Predicates {
		parts[i] = p.String()
	}
	sep := " AND "
	if s.Any {
		sep = " OR "
	}
	return strings.Join(parts, sep)
}

// FromAttrs compiles one predicate per attribute, in key order.
func FromAttrs(a attrs.Attrs, exact, anyOf bool) (Set, error) {
	s := Set{Any: anyOf}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, err := New(k, a[k], exact)
		if err != nil {
			return Set{}, err
		}
		s.Predicates = append(s.Predicates, p)
	}
	return s, nil
}
