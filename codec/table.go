package codec

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

// RecordFunc receives one parsed record and its 1-based source line.
type RecordFunc func(line int, rec attrs.Attrs) error

// ReadTable reads a delimited table and calls fn for every data row.
//
// With a nil header the first row is the header. Header cells naming the
// configured id, path or type descriptors are renamed to id, path and type.
// Rows with a different number of cells than the header are format errors.
func ReadTable(r io.Reader, delim rune, header []string, f *format.Format, fn RecordFunc) error {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var columns []string
	if header != nil {
		columns = canonicalHeader(header, f)
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return errors.NewFormatError("line %d: %v", pe.Line, pe.Err)
			}
			return errors.WrapIO(err, "read table")
		}
		line, _ := cr.FieldPos(0)
		if isBlankRow(row) {
			continue
		}
		if columns == nil {
			columns = canonicalHeader(row, f)
			continue
		}
		if len(row) != len(columns) {
			return errors.NewFormatError("line %d: expected %d columns, found %d", line, len(columns), len(row))
		}

		rec := make(attrs.Attrs, len(columns))
		for i, col := range columns {
			cell := strings.TrimSpace(row[i])
			if col == format.KeyID || col == format.KeyPath {
				rec[col] = attrs.String(cell)
				continue
			}
			rec[col] = attrs.Parse(cell)
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

func canonicalHeader(cells []string, f *format.Format) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = f.Canonical(strings.TrimSpace(c))
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteTable writes a header and rows as a delimited table.
// Multi-valued cells are joined with the replicate separator; absent cells
// are written as missing.
func WriteTable(w io.Writer, delim rune, header []string, rows []attrs.Attrs, f *format.Format, missing string) error {
	return writeTable(w, delim, header, true, rows, f, missing)
}

// WriteRows is WriteTable without the header line.
func WriteRows(w io.Writer, delim rune, columns []string, rows []attrs.Attrs, f *format.Format, missing string) error {
	return writeTable(w, delim, columns, false, rows, f, missing)
}

func writeTable(w io.Writer, delim rune, columns []string, header bool, rows []attrs.Attrs, f *format.Format, missing string) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if header && len(columns) > 0 {
		if err := cw.Write(columns); err != nil {
			return errors.WrapIO(err, "write table header")
		}
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			v, ok := row[col]
			if !ok {
				record[i] = missing
				continue
			}
			record[i] = v.Join(f.RepSep)
		}
		if err := cw.Write(record); err != nil {
			return errors.WrapIO(err, "write table row")
		}
	}
	cw.Flush()
	return errors.WrapIO(cw.Error(), "flush table")
}
