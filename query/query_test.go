package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
)

func TestPredicateMatch(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		exact   bool
		op      Op
		matches []string
		misses  []string
	}{
		{"greater", ">50", false, OpGreater, []string{"51", "100"}, []string{"50", "10", "abc"}},
		{"greater equal", ">=50", false, OpGreaterEqual, []string{"50", "51"}, []string{"49"}},
		{"less", "<10", false, OpLess, []string{"9", "-1"}, []string{"10"}},
		{"less equal", "<=10", true, OpLessEqual, []string{"10"}, []string{"11"}},
		{"not equal", "!=3", false, OpNotEqual, []string{"2", "4"}, []string{"3", "x"}},
		{"bare integer", "50", false, OpEqual, []string{"50", " 50"}, []string{"150", "5"}},
		{"double equals", "==7", false, OpEqual, []string{"7"}, []string{"70"}},
		{"negative", ">-5", false, OpGreater, []string{"-4", "0"}, []string{"-5"}},
		{"exact", "M", true, OpExact, []string{"M"}, []string{"MF", "m"}},
		{"regex partial", "ab", false, OpRegex, []string{"ab", "xaby"}, []string{"a b"}},
		{"regex anchored", "^Fq", false, OpRegex, []string{"FqRd1"}, []string{"xFq"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("k", attrs.String(tt.raw), tt.exact)
			require.NoError(t, err)
			assert.Equal(t, tt.op, p.Op)
			for _, s := range tt.matches {
				assert.True(t, p.Match(s), "%q should match %q", tt.raw, s)
			}
			for _, s := range tt.misses {
				assert.False(t, p.Match(s), "%q should not match %q", tt.raw, s)
			}
		})
	}
}

func TestPredicateErrors(t *testing.T) {
	for _, raw := range []string{"!50", "=>5", "<<5", "!", "[unclosed"} {
		t.Run(raw, func(t *testing.T) {
			_, err := New("age", attrs.String(raw), false)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}

	_, err := New("age", attrs.Strings("1", "!5"), false)
	assert.True(t, errors.IsValidationError(err), "list elements are validated")
}

func TestPredicateIn(t *testing.T) {
	p, err := New("sex", attrs.Strings("M", "F"), true)
	require.NoError(t, err)
	assert.Equal(t, OpIn, p.Op)
	assert.True(t, p.Match("M"))
	assert.True(t, p.Match("F"))
	assert.False(t, p.Match("U"))

	num, err := New("age", attrs.Strings(">60", "<10"), false)
	require.NoError(t, err)
	assert.True(t, num.Match("65"))
	assert.True(t, num.Match("5"))
	assert.False(t, num.Match("30"))
}

func TestMatchValue(t *testing.T) {
	p, err := New("age", attrs.String(">60"), false)
	require.NoError(t, err)

	assert.True(t, p.MatchValue(attrs.Int(65)))
	assert.True(t, p.MatchValue(attrs.Strings("65", "61")))
	assert.True(t, p.MatchValue(attrs.Strings("10", "61")), "any list element")
	assert.False(t, p.MatchValue(attrs.Strings("10", "20")))
	assert.False(t, p.MatchValue(attrs.Map(map[string]attrs.Value{"a": attrs.Int(99)})))
	assert.True(t, p.Numeric())
}

func TestFromAttrs(t *testing.T) {
	s, err := FromAttrs(attrs.Attrs{"sex": attrs.String("M"), "age": attrs.String(">50")}, true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "sex"}, s.Keys())
	assert.False(t, s.Empty())
	assert.Equal(t, "age=>50 AND sex=M", s.String())

	p, ok := s.Get("sex")
	require.True(t, ok)
	assert.Equal(t, OpExact, p.Op)

	files, meta := s.Partition(func(k string) bool { return k == "sex" })
	assert.Len(t, files, 1)
	assert.Len(t, meta, 1)

	_, err = FromAttrs(attrs.Attrs{"age": attrs.String("!1")}, false, true)
	assert.True(t, errors.IsValidationError(err))
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		term string
		key  string
		want attrs.Value
	}{
		{"sex=M", "sex", attrs.String("M")},
		{"age=>50", "age", attrs.String(">50")},
		{"age=65", "age", attrs.Int(65)},
		{"sex=M:F", "sex", attrs.Strings("M", "F")},
		{"desc=a b", "desc", attrs.Strings("a", "b")},
		{"path=/data/x=y.bam", "path", attrs.String("/data/x=y.bam")},
		{"empty=", "empty", attrs.String("")},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			key, v, err := ParseTerm(tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.True(t, tt.want.Equal(v), "want %v, got %v", tt.want, v)
		})
	}

	for _, bad := range []string{"noequals", "=value", ">5=x"} {
		_, _, err := ParseTerm(bad)
		assert.True(t, errors.IsValidationError(err), bad)
	}
}

func TestParseTerms(t *testing.T) {
	rec, err := ParseTerms([]string{"id=1", "age=10", "id=2"})
	require.NoError(t, err)
	assert.Equal(t, "2", rec.GetString("id"))
	assert.Len(t, rec, 2)

	assert.True(t, IsTerm("a=b"))
	assert.False(t, IsTerm("a.bam"))
}
