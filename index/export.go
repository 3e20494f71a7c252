package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/codec"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

// ExportOptions controls Rows, Export and ExportTo.
type ExportOptions struct {
	Output format.Output
	// Tags restricts and orders the exported attributes. Tags may be
	// templates such as "{basename}" or "{id}_{view}".
	Tags  []string
	Types []string
	// Header writes a header line before tagged index or table output.
	Header bool
	// HideMissing drops rows whose first tag is missing and, for untagged
	// index output, drops pairs holding the missing value.
	HideMissing bool
	// Absolute resolves relative file paths against the index directory.
	Absolute bool
	// MapKeys renames attributes through the format's key map.
	MapKeys bool
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

func isTemplate(tag string) bool {
	return placeholder.MatchString(tag)
}

// render expands the placeholders of tag for rec. {dirname}, {basename},
// {ext} and {name} derive from the path; any other name is an attribute.
func render(tag string, rec attrs.Attrs, missing string) string {
	path := rec.GetString(format.KeyPath)
	base := filepath.Base(path)
	return placeholder.ReplaceAllStringFunc(tag, func(m string) string {
		switch key := m[1 : len(m)-1]; key {
		case "dirname":
			return filepath.Dir(path)
		case "basename":
			return base
		case "ext":
			return strings.TrimPrefix(filepath.Ext(path), ".")
		case "name":
			if i := strings.Index(base, "."); i > 0 {
				return base[:i]
			}
			return base
		default:
			if v, ok := rec[key]; ok {
				return v.String()
			}
			return missing
		}
	})
}

// Rows flattens the index into export records: one per file, or one per
// dataset without files. Rows are sorted by the tag values, or by path
// when no tags are given.
func (ix *Index) Rows(opts ExportOptions) ([]attrs.Attrs, error) {
	missing := ix.format.MissingValue
	base := ""
	if opts.Absolute {
		base = ix.baseDir()
	}

	var rows []attrs.Attrs
	for _, ds := range ix.Datasets() {
		if len(opts.Types) > 0 && ds.Len() == 0 {
			continue
		}
		for _, rec := range ds.Export(opts.Types, nil) {
			if p := rec.GetString(format.KeyPath); base != "" && p != "" && !filepath.IsAbs(p) {
				rec[format.KeyPath] = attrs.String(filepath.Join(base, p))
			}
			for _, tag := range opts.Tags {
				if isTemplate(tag) {
					rec[tag] = attrs.String(render(tag, rec, missing))
				}
			}
			if len(opts.Tags) > 0 {
				rec = rec.Select(opts.Tags)
				if opts.HideMissing {
					if v, ok := rec[opts.Tags[0]]; !ok || v.IsMissing(missing) {
						continue
					}
				}
			}
			rows = append(rows, rec)
		}
	}

	sortKeys := opts.Tags
	if len(sortKeys) == 0 {
		sortKeys = []string{format.KeyPath, format.KeyID}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range sortKeys {
			a, b := rows[i].GetString(k), rows[j].GetString(k)
			if a != b {
				return a < b
			}
		}
		return false
	})

	if opts.MapKeys {
		for i, rec := range rows {
			rows[i] = ix.mapKeys(rec)
		}
	}
	return rows, nil
}

func (ix *Index) mapKeys(rec attrs.Attrs) attrs.Attrs {
	out := make(attrs.Attrs, len(rec))
	for k, v := range rec {
		out[ix.format.MapKey(k)] = v
	}
	return out
}

// columns returns the header for rows: the tags in order, or the sorted
// union of the row keys.
func (ix *Index) columns(rows []attrs.Attrs, opts ExportOptions) []string {
	if len(opts.Tags) > 0 {
		cols := make([]string, len(opts.Tags))
		for i, tag := range opts.Tags {
			cols[i] = tag
			if opts.MapKeys {
				cols[i] = ix.format.MapKey(tag)
			}
		}
		return cols
	}
	seen := map[string]bool{}
	var cols []string
	for _, rec := range rows {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Table returns the export as a header and rows of plain cell text, with
// lists joined by the replicate separator and absent attributes holding the
// missing value. Nothing is quoted.
func (ix *Index) Table(opts ExportOptions) ([]string, [][]string, error) {
	rows, err := ix.Rows(opts)
	if err != nil {
		return nil, nil, err
	}
	cols := ix.columns(rows, opts)
	return cols, ix.cells(rows, cols), nil
}

func (ix *Index) cells(rows []attrs.Attrs, cols []string) [][]string {
	out := make([][]string, len(rows))
	for r, rec := range rows {
		line := make([]string, len(cols))
		for i, col := range cols {
			line[i] = ix.format.MissingValue
			if v, ok := rec[col]; ok {
				line[i] = v.Join(ix.format.RepSep)
			}
		}
		out[r] = line
	}
	return out
}

// ExportTo serializes the index to w in opts.Output.
func (ix *Index) ExportTo(w io.Writer, opts ExportOptions) error {
	rows, err := ix.Rows(opts)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	switch opts.Output {
	case format.OutputIndex, "":
		err = ix.writeIndex(bw, rows, opts)
	case format.OutputJSON:
		enc := json.NewEncoder(bw)
		enc.SetIndent("", "  ")
		err = enc.Encode(plain(rows))
	case format.OutputYAML:
		enc := yaml.NewEncoder(bw)
		enc.SetIndent(2)
		if err = enc.Encode(plain(rows)); err == nil {
			err = enc.Close()
		}
	case format.OutputTSV, format.OutputCSV:
		cols := ix.columns(rows, opts)
		if len(opts.Tags) == 0 || opts.Header {
			err = codec.WriteTable(bw, opts.Output.Delimiter(), cols, rows, ix.format, ix.format.MissingValue)
		} else {
			err = codec.WriteRows(bw, opts.Output.Delimiter(), cols, rows, ix.format, ix.format.MissingValue)
		}
	default:
		return errors.NewValidationError("unknown output format %q", opts.Output)
	}
	if err != nil {
		return errors.WrapIOf(err, "export %s", opts.Output)
	}
	return errors.WrapIO(bw.Flush(), "flush export")
}

func (ix *Index) writeIndex(w *bufio.Writer, rows []attrs.Attrs, opts ExportOptions) error {
	f := ix.format
	missing := f.MissingValue

	if len(opts.Tags) > 0 {
		cols := ix.columns(rows, opts)
		if opts.Header {
			if _, err := w.WriteString(strings.Join(cols, f.ColSep) + "\n"); err != nil {
				return err
			}
		}
		for _, cells := range ix.cells(rows, cols) {
			if _, err := w.WriteString(strings.Join(cells, f.ColSep) + "\n"); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rec := range rows {
		if opts.HideMissing {
			for k, v := range rec {
				if v.IsMissing(missing) {
					delete(rec, k)
				}
			}
		}
		if _, err := w.WriteString(codec.FormatLine(rec, f) + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Export renders the index and returns the output lines.
func (ix *Index) Export(opts ExportOptions) ([]string, error) {
	var buf bytes.Buffer
	if err := ix.ExportTo(&buf, opts); err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(buf.String(), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func plain(rows []attrs.Attrs) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, rec := range rows {
		out[i] = rec.Interface()
	}
	return out
}
