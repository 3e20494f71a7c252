package query

import (
	"regexp"
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
)

// termExpr splits key=value; the key stops at the first operator character
// so that "age=>50" reads as key "age", value ">50".
var termExpr = regexp.MustCompile(`^([^=<>!]+)=(.*)$`)

var listSplit = regexp.MustCompile(`[:\s]+`)

// ParseTerm parses a command-line key=value term. Values holding ':' or
// whitespace become lists.
func ParseTerm(term string) (string, attrs.Value, error) {
	m := termExpr.FindStringSubmatch(term)
	if m == nil {
		return "", attrs.Value{}, errors.NewValidationError("invalid term %q: expected key=value", term)
	}
	key := strings.TrimSpace(m[1])
	raw := strings.TrimSpace(m[2])
	if key == "" {
		return "", attrs.Value{}, errors.NewValidationError("invalid term %q: empty key", term)
	}
	if listSplit.MatchString(raw) {
		parts := listSplit.Split(raw, -1)
		items := make([]attrs.Value, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				items = append(items, attrs.Parse(p))
			}
		}
		return key, attrs.List(items...), nil
	}
	return key, attrs.Parse(raw), nil
}

// ParseTerms parses key=value terms into a record. A repeated key keeps the
// last value.
func ParseTerms(terms []string) (attrs.Attrs, error) {
	out := make(attrs.Attrs, len(terms))
	for _, t := range terms {
		key, v, err := ParseTerm(t)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// IsTerm reports whether s looks like a key=value term.
func IsTerm(s string) bool {
	return termExpr.MatchString(s)
}
