// Package codec reads and writes index records.
//
// The native layout is one record per line:
//
//	<path-or-"."> <col_sep> key=value; key=value; ...
//
// Separators come from format.Format. Tabular sources (CSV/TSV) are read
// through encoding/csv and yield the same attrs.Attrs records, so the index
// never cares which layout a record came from.
package codec

import (
	"os"
	"sort"
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

// NoPath is written in the path column of records without a file.
const NoPath = "."

// fileExists backs the bare-path fallback in ParseLine.
var fileExists = func(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Serialize renders a as sorted key=value pairs.
// List values are joined with the replicate separator, each element quoted
// on its own. Map values flatten to dotted keys.
func Serialize(a attrs.Attrs, f *format.Format) string {
	type pair struct{ key, text string }
	var pairs []pair

	var add func(key string, v attrs.Value)
	add = func(key string, v attrs.Value) {
		switch v.Kind() {
		case attrs.KindMap:
			m, _ := v.AsMap()
			for sub, item := range m {
				add(key+"."+sub, item)
			}
		case attrs.KindList:
			items, _ := v.AsList()
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = quoteValue(item, f)
			}
			pairs = append(pairs, pair{key, strings.Join(parts, f.RepSep)})
		case attrs.KindString:
			if key == format.KeyID {
				pairs = append(pairs, pair{key, quote(v.String(), f, true)})
				return
			}
			pairs = append(pairs, pair{key, quoteValue(v, f)})
		default:
			pairs = append(pairs, pair{key, quote(v.String(), f, false)})
		}
	}
	for k, v := range a {
		add(k, v)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	tags := make([]string, len(pairs))
	for i, p := range pairs {
		tags[i] = quoteKey(p.key, f) + f.Sep + p.text + f.Trail
	}
	return strings.Join(tags, f.KwSep)
}

// FormatLine renders a full index line. The path attribute goes to the
// first column, everything else to the tag column.
func FormatLine(a attrs.Attrs, f *format.Format) string {
	path := NoPath
	if v, ok := a[format.KeyPath]; ok && v.String() != "" {
		path = v.String()
	}
	return path + f.ColSep + Serialize(a.Without(format.KeyPath), f)
}

// quoteValue quotes strings that would read back as integers, so that
// their kind survives a round trip.
func quoteValue(v attrs.Value, f *format.Format) string {
	s := v.String()
	if v.Kind() == attrs.KindString && attrs.Parse(s).Kind() == attrs.KindInt {
		return `"` + s + `"`
	}
	return quote(s, f, false)
}

// quoteKey also quotes keys holding the key/value separator.
func quoteKey(k string, f *format.Format) string {
	if strings.Contains(k, f.Sep) && !(len(k) >= 2 && k[0] == '"' && k[len(k)-1] == '"') {
		return `"` + strings.ReplaceAll(k, `"`, `""`) + `"`
	}
	return quote(k, f, false)
}

// quote wraps s in double quotes when it could not be read back unquoted.
// Already quoted text is returned untouched; embedded quotes are doubled.
// keepRepSep leaves replicate separators unquoted, which ids rely on.
func quote(s string, f *format.Format, keepRepSep bool) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s
	}
	needs := strings.ContainsAny(s, " \t\r\n") ||
		strings.Contains(s, f.Trail) ||
		strings.Contains(s, f.KwSep) ||
		strings.HasPrefix(s, `"`) ||
		(!keepRepSep && strings.Contains(s, f.RepSep))
	if !needs {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseLine parses one index line into a record. The path column, when
// present and not ".", is stored under the path attribute.
//
// A line whose tag part yields no pairs is accepted as a bare path when it
// names an existing file; otherwise it is a format error.
func ParseLine(line string, f *format.Format) (attrs.Attrs, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, errors.NewFormatError("empty line")
	}

	path, tags := "", line
	if i := strings.Index(line, f.ColSep); i >= 0 {
		path, tags = strings.TrimSpace(line[:i]), line[i+len(f.ColSep):]
	}

	pairs, err := scanTags(tags, f)
	if err != nil || len(pairs) == 0 {
		if bare := strings.TrimSpace(line); fileExists(bare) {
			return attrs.Attrs{format.KeyPath: attrs.String(bare)}, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, errors.NewFormatError("no tags found in %q", line)
	}

	rec := make(attrs.Attrs, len(pairs)+1)
	for _, p := range pairs {
		key := f.Canonical(p.key)
		rec[key] = p.value(key, f)
	}
	if path != "" && path != NoPath {
		rec[format.KeyPath] = attrs.String(path)
	}
	return rec, nil
}

// ParseTags parses a tag string without a path column.
func ParseTags(s string, f *format.Format) (attrs.Attrs, error) {
	pairs, err := scanTags(s, f)
	if err != nil {
		return nil, err
	}
	rec := make(attrs.Attrs, len(pairs))
	for _, p := range pairs {
		key := f.Canonical(p.key)
		rec[key] = p.value(key, f)
	}
	return rec, nil
}
