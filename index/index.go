// Package index owns a collection of datasets backed by an index file.
//
// An Index is loaded from a tag-line file or a CSV/TSV table, queried
// through a reverse lookup table, mutated with Insert and Remove, and
// written back with Save. Mutations are guarded across processes by the
// lock file in package lockfile; within a process an Index is not safe for
// concurrent use.
package index

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/codec"
	"github.com/teranos/idxtools/dataset"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/lockfile"
	"github.com/teranos/idxtools/logger"
)

// maxLineSize bounds a single index line.
const maxLineSize = 4 << 20

// Index is a set of datasets keyed by id.
type Index struct {
	format   *format.Format
	log      *zap.SugaredLogger
	path     string
	datasets map[string]*dataset.Dataset

	// checksum of the backing file when it was loaded, empty if it did not exist
	checksum string
	lock     *lockfile.Lock
	lookup   *lookupTable
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger for the index and its datasets.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(ix *Index) { ix.log = l }
}

// WithPath binds the index to a backing file without reading it.
func WithPath(path string) Option {
	return func(ix *Index) { ix.path = path }
}

// New returns an empty index.
func New(f *format.Format, opts ...Option) *Index {
	ix := &Index{
		format:   f,
		datasets: map[string]*dataset.Dataset{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.log = logger.OrDefault(ix.log)
	return ix
}

// Open loads the index file at path. A missing file yields an empty index
// bound to path so that it can be created by Save.
func Open(path string, f *format.Format, opts ...Option) (*Index, error) {
	ix := New(f, append(opts, WithPath(path))...)

	src, err := codec.ReadSource(path)
	if err != nil {
		if os.IsNotExist(errors.UnwrapAll(err)) {
			ix.log.Debugw("index file not found, starting empty", logger.FieldIndex, path)
			return ix, nil
		}
		return nil, err
	}
	ix.checksum = checksum(src.Raw, f.HashAlgorithm)

	if err := ix.Load(src); err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	ix.log.Debugw("index loaded",
		logger.FieldIndex, path,
		logger.FieldCount, len(ix.datasets),
		"compressed", src.Compressed)
	return ix, nil
}

// Load adds the records read from r. The layout is detected first: tag
// lines are parsed one by one, tables are read through their header.
func (ix *Index) Load(r io.ReadSeeker) error {
	d, err := codec.Detect(r, ix.format)
	if err != nil {
		return err
	}
	if d.Tabular() {
		ix.log.Debugw("loading table", logger.FieldFormat, d.Layout.String())
		return ix.loadTable(r, d.Delimiter, nil)
	}
	return ix.loadLines(r)
}

// LoadTable adds the rows of a delimited table. A nil header means the
// first row is the header.
func (ix *Index) LoadTable(r io.Reader, delim rune, header []string) error {
	return ix.loadTable(r, delim, header)
}

func (ix *Index) loadTable(r io.Reader, delim rune, header []string) error {
	return codec.ReadTable(r, delim, header, ix.format, func(line int, rec attrs.Attrs) error {
		if _, err := ix.Insert(rec); err != nil {
			return ix.lineError(line, err)
		}
		return nil
	})
}

func (ix *Index) lineError(no int, err error) error {
	ix.log.Debugw("rejected index line", logger.FieldLine, no, logger.FieldError, err)
	return ix.lineError(no, err)
}

type pendingLine struct {
	no  int
	rec attrs.Attrs
}

// loadLines parses tag lines. Lines whose id names a replicate group are
// inserted last so that their parts are already present to merge.
func (ix *Index) loadLines(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var postponed []pendingLine
	no := 0
	for sc.Scan() {
		no++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rec, err := codec.ParseLine(line, ix.format)
		if err != nil {
			return ix.lineError(no, err)
		}
		if dataset.ReplicateIDs(rec.GetString(format.KeyID), ix.format) != nil {
			postponed = append(postponed, pendingLine{no: no, rec: rec})
			continue
		}
		if _, err := ix.Insert(rec); err != nil {
			return ix.lineError(no, err)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.WrapIO(err, "read index lines")
	}

	for _, p := range postponed {
		if _, err := ix.Insert(p.rec); err != nil {
			return ix.lineError(p.no, err)
		}
	}
	if len(postponed) > 0 {
		ix.log.Debugw("loaded replicate lines", logger.FieldCount, len(postponed))
	}
	return nil
}

// Len returns the number of datasets.
func (ix *Index) Len() int {
	return len(ix.datasets)
}

// FileCount returns the number of file records across all datasets.
func (ix *Index) FileCount() int {
	n := 0
	for _, ds := range ix.datasets {
		n += ds.Len()
	}
	return n
}

// Get returns the dataset with id.
func (ix *Index) Get(id string) (*dataset.Dataset, bool) {
	ds, ok := ix.datasets[id]
	return ds, ok
}

// IDs returns the dataset ids, sorted.
func (ix *Index) IDs() []string {
	ids := make([]string, 0, len(ix.datasets))
	for id := range ix.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Datasets returns the datasets ordered by id.
func (ix *Index) Datasets() []*dataset.Dataset {
	ids := ix.IDs()
	out := make([]*dataset.Dataset, len(ids))
	for i, id := range ids {
		out[i] = ix.datasets[id]
	}
	return out
}

// AllTags returns every attribute name used by a dataset or a file, sorted.
func (ix *Index) AllTags() []string {
	seen := map[string]bool{}
	for _, ds := range ix.datasets {
		for _, k := range ds.MetaKeys() {
			seen[k] = true
		}
		for _, p := range ds.Paths() {
			seen[format.KeyPath] = true
			info, _ := ds.File(p)
			for k := range info {
				seen[k] = true
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for k := range seen {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags
}

// FindReplicates returns the datasets that make up the replicate group id,
// in the order the parts are listed. Parts that are not loaded are skipped.
func (ix *Index) FindReplicates(id string) []*dataset.Dataset {
	var out []*dataset.Dataset
	for _, part := range dataset.ReplicateIDs(id, ix.format) {
		if ds, ok := ix.datasets[part]; ok {
			out = append(out, ds)
		}
	}
	return out
}

// Path returns the backing file path, empty for in-memory indexes.
func (ix *Index) Path() string {
	return ix.path
}

// Format returns the index format.
func (ix *Index) Format() *format.Format {
	return ix.format
}

// baseDir is the directory relative file paths are resolved against.
func (ix *Index) baseDir() string {
	if ix.path == "" {
		wd, _ := os.Getwd()
		return wd
	}
	abs, err := filepath.Abs(ix.path)
	if err != nil {
		return filepath.Dir(ix.path)
	}
	return filepath.Dir(abs)
}

// derived returns an empty index sharing the format, logger and path of ix.
func (ix *Index) derived() *Index {
	return &Index{
		format:   ix.format,
		log:      ix.log,
		path:     ix.path,
		datasets: map[string]*dataset.Dataset{},
	}
}

func (ix *Index) invalidate() {
	ix.lookup = nil
}
