package codec

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

// Layout identifies how a source is laid out.
type Layout int

const (
	// LayoutIndex is the native path + tags line format.
	LayoutIndex Layout = iota
	// LayoutCSV is a delimited table with a header row.
	LayoutCSV
	// LayoutTSV is a tab-delimited table with a header row.
	LayoutTSV
)

func (l Layout) String() string {
	switch l {
	case LayoutCSV:
		return "csv"
	case LayoutTSV:
		return "tsv"
	default:
		return "index"
	}
}

// Dialect is the result of format detection.
type Dialect struct {
	Layout    Layout
	Delimiter rune     // tabular layouts only
	Header    []string // header cells as written, tabular layouts only
}

// Tabular reports whether the dialect is a table.
func (d Dialect) Tabular() bool { return d.Layout != LayoutIndex }

// delimiter candidates in preference order
var sniffDelimiters = []rune{',', '\t', ';', '|'}

const detectLines = 2

// Detect inspects the first two lines of r and rewinds it.
//
// The data line (the second line, or the first when there is only one) is
// checked first: a tag column holding the trail character means the native
// index layout. Otherwise a delimiter is sniffed and the first line must be
// a header of at least two named columns.
func Detect(r io.ReadSeeker, f *format.Format) (Dialect, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return Dialect{}, errors.WrapIO(err, "detect: seek")
	}

	lines, err := headLines(r, detectLines)
	if err != nil {
		return Dialect{}, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return Dialect{}, errors.WrapIO(err, "detect: rewind")
	}

	if len(lines) == 0 {
		return Dialect{Layout: LayoutIndex}, nil
	}

	data := lines[len(lines)-1]
	if isTagLine(data, f) {
		return Dialect{Layout: LayoutIndex}, nil
	}

	delim, ok := sniff(lines)
	if !ok {
		return Dialect{}, errors.NewFormatError("cannot detect format: fewer than 2 columns in %q", lines[0])
	}

	header, err := headerCells(lines[0], delim)
	if err != nil {
		return Dialect{}, err
	}
	if len(header) < 2 {
		return Dialect{}, errors.NewFormatError("cannot detect format: fewer than 2 columns")
	}
	if !looksLikeHeader(header) {
		return Dialect{}, errors.NewFormatError("tabular source has no header row: %q", lines[0])
	}

	layout := LayoutCSV
	if delim == '\t' {
		layout = LayoutTSV
	}
	return Dialect{Layout: layout, Delimiter: delim, Header: header}, nil
}

// headLines returns up to n non-blank, non-comment lines.
func headLines(r io.Reader, n int) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for len(lines) < n && sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapIO(err, "detect: read")
	}
	return lines, nil
}

func isTagLine(line string, f *format.Format) bool {
	cols := strings.SplitN(line, f.ColSep, 2)
	if len(cols) == 2 {
		return strings.Contains(cols[1], f.Trail) && strings.Contains(cols[1], f.Sep)
	}
	// tags without a path column
	trimmed := strings.TrimSpace(line)
	return strings.HasSuffix(trimmed, f.Trail) && strings.Contains(trimmed, f.Sep)
}

// sniff picks the delimiter that splits every inspected line into the same
// number of columns, preferring more columns, then candidate order.
func sniff(lines []string) (rune, bool) {
	best, bestCount := rune(0), 0
	for _, d := range sniffDelimiters {
		count := strings.Count(lines[0], string(d))
		if count == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if strings.Count(l, string(d)) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best, bestCount = d, count
		}
	}
	return best, bestCount > 0
}

func headerCells(line string, delim rune) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = delim
	cr.LazyQuotes = true
	cells, err := cr.Read()
	if err != nil {
		return nil, errors.NewFormatError("cannot parse header %q: %v", line, err)
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells, nil
}

// looksLikeHeader rejects rows with an empty cell or made only of numbers.
func looksLikeHeader(cells []string) bool {
	numeric := 0
	for _, c := range cells {
		if c == "" {
			return false
		}
		if isNumber(c) {
			numeric++
		}
	}
	return numeric < len(cells)
}

func isNumber(s string) bool {
	seenDigit, seenDot := false, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return seenDigit
}
