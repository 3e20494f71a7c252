// Package dataset models one logical dataset of an index: its metadata
// attributes and the files that belong to it.
//
// Metadata is any attribute not listed in the format's fileinfo set; file
// records hold only fileinfo attributes and are keyed by path. Empty values
// are replaced with the format's missing-value sentinel when written.
package dataset

import (
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/codec"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/logger"
)

// compressionExts are stripped before deriving a file type from its extension.
var compressionExts = []string{".gz", ".bz2", ".xz", ".zip", ".zst"}

// Dataset holds metadata plus file records keyed by path.
type Dataset struct {
	ID string

	format   *format.Format
	log      *zap.SugaredLogger
	metadata attrs.Attrs
	files    map[string]attrs.Attrs
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger sets the logger used for skipped or normalized records.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dataset) { d.log = l }
}

// New creates a dataset from a flat record. Non-fileinfo attributes become
// metadata; if any fileinfo attribute is present the record also adds a file.
func New(f *format.Format, rec attrs.Attrs, opts ...Option) (*Dataset, error) {
	d := &Dataset{
		format:   f,
		metadata: attrs.Attrs{},
		files:    map[string]attrs.Attrs{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrDefault(d.log)

	isFile := false
	for k, v := range rec {
		if f.IsFileInfo(k) {
			isFile = true
			continue
		}
		d.metadata[k] = d.normalize(k, v)
	}
	d.ID = d.metadata.GetString(format.KeyID)

	if isFile {
		if _, err := d.AddFile(rec.GetString(format.KeyPath), rec, false); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dataset) normalize(key string, v attrs.Value) attrs.Value {
	if v.IsEmpty() {
		d.log.Debugw("replacing missing value", logger.FieldDataset, d.ID, "key", key, "value", d.format.MissingValue)
		return attrs.String(d.format.MissingValue)
	}
	if items, ok := v.AsList(); ok {
		out := make([]attrs.Value, len(items))
		for i, item := range items {
			if item.IsEmpty() {
				item = attrs.String(d.format.MissingValue)
			}
			out[i] = item
		}
		return attrs.List(out...)
	}
	return v.Clone()
}

// TypeFromPath derives a file type from the extension of path, ignoring
// compression extensions: reads.fastq.gz has type fastq.
func TypeFromPath(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		stripped := false
		for _, c := range compressionExts {
			if strings.EqualFold(ext, c) {
				base = strings.TrimSuffix(base, ext)
				stripped = true
				break
			}
		}
		if !stripped {
			return strings.TrimPrefix(ext, ".")
		}
	}
}

// AddFile adds or, with update, overwrites the file record at path. Only
// fileinfo attributes of rec are kept. An empty path is a no-op; an existing
// path without update is skipped and reported as not added. A file whose
// type cannot be derived is a validation error.
func (d *Dataset) AddFile(path string, rec attrs.Attrs, update bool) (bool, error) {
	if path == "" {
		d.log.Debugw("no path specified, skipping file", logger.FieldDataset, d.ID)
		return false, nil
	}

	fileType := rec.GetString(format.KeyType)
	if fileType == "" {
		fileType = TypeFromPath(path)
		d.log.Debugw("file type from extension", logger.FieldPath, path, logger.FieldType, fileType)
	}
	if fileType == "" {
		return false, errors.NewValidationError("cannot add %q to dataset %q: no type given and none derivable from the extension", path, d.ID)
	}

	existing, exists := d.files[path]
	if exists && !update {
		d.log.Debugw("skipping existing file", logger.FieldDataset, d.ID, logger.FieldPath, path)
		return false, nil
	}
	if !exists {
		existing = attrs.Attrs{}
		d.files[path] = existing
	}

	for k, v := range rec {
		if k == format.KeyPath || !d.format.IsFileInfo(k) {
			continue
		}
		existing[k] = d.normalize(k, v)
	}
	existing[format.KeyType] = attrs.String(fileType)
	return true, nil
}

// RmFile removes the file at path, or every file of typ when path is empty.
// It returns the number of removed records. Metadata is never touched.
func (d *Dataset) RmFile(path, typ string) int {
	if path == "" && typ == "" {
		d.log.Debugw("no file path or type specified", logger.FieldDataset, d.ID)
		return 0
	}
	if path != "" {
		if _, ok := d.files[path]; !ok {
			return 0
		}
		delete(d.files, path)
		d.log.Debugw("removed file", logger.FieldDataset, d.ID, logger.FieldPath, path)
		return 1
	}
	removed := 0
	for p, info := range d.files {
		if info.GetString(format.KeyType) == typ {
			delete(d.files, p)
			removed++
		}
	}
	d.log.Debugw("removed files by type", logger.FieldDataset, d.ID, logger.FieldType, typ, logger.FieldCount, removed)
	return removed
}

// Export flattens the dataset to one record per file, sorted by path.
// File attributes override metadata. A dataset without files exports a
// single metadata record. types filters by file type and tags restricts
// the attributes; empty slices mean no filter.
func (d *Dataset) Export(types, tags []string) []attrs.Attrs {
	if len(d.files) == 0 {
		return []attrs.Attrs{d.metadata.Select(tags)}
	}

	var allowed map[string]bool
	if len(types) > 0 {
		allowed = make(map[string]bool, len(types))
		for _, t := range types {
			allowed[t] = true
		}
	}

	var out []attrs.Attrs
	for _, path := range d.Paths() {
		info := d.files[path]
		if allowed != nil && !allowed[info.GetString(format.KeyType)] {
			continue
		}
		rec := d.metadata.Merge(info)
		rec[format.KeyPath] = attrs.String(path)
		out = append(out, rec.Select(tags))
	}
	return out
}

// Tags returns the metadata in tag format, restricted to include (all when
// empty) and without exclude.
func (d *Dataset) Tags(include, exclude []string) string {
	return codec.Serialize(d.metadata.Select(include).Without(exclude...), d.format)
}

func (d *Dataset) String() string {
	return d.Tags(nil, nil)
}

// Get returns a metadata value.
func (d *Dataset) Get(key string) (attrs.Value, bool) {
	v, ok := d.metadata[key]
	return v, ok
}

// Set writes a metadata value, normalizing empty values.
func (d *Dataset) Set(key string, v attrs.Value) {
	d.metadata[key] = d.normalize(key, v)
	if key == format.KeyID {
		d.ID = d.metadata.GetString(format.KeyID)
	}
}

// Metadata returns a copy of the metadata.
func (d *Dataset) Metadata() attrs.Attrs {
	return d.metadata.Clone()
}

// MetaKeys returns the metadata attribute names, sorted.
func (d *Dataset) MetaKeys() []string {
	return d.metadata.Keys()
}

// HasMeta reports whether key is a metadata attribute.
func (d *Dataset) HasMeta(key string) bool {
	return d.metadata.Has(key)
}

// File returns a copy of the file record at path.
func (d *Dataset) File(path string) (attrs.Attrs, bool) {
	info, ok := d.files[path]
	if !ok {
		return nil, false
	}
	return info.Clone(), true
}

// HasFile reports whether path is a file of the dataset.
func (d *Dataset) HasFile(path string) bool {
	_, ok := d.files[path]
	return ok
}

// Paths returns the file paths, sorted.
func (d *Dataset) Paths() []string {
	paths := make([]string, 0, len(d.files))
	for p := range d.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Types returns the distinct file types, sorted.
func (d *Dataset) Types() []string {
	seen := map[string]bool{}
	var types []string
	for _, info := range d.files {
		t := info.GetString(format.KeyType)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Len returns the number of files.
func (d *Dataset) Len() int {
	return len(d.files)
}

// Format returns the format the dataset was built with.
func (d *Dataset) Format() *format.Format {
	return d.format
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	return d.clonePaths(nil)
}

// clonePaths copies the dataset keeping only the files in keep. A nil keep
// copies every file.
func (d *Dataset) clonePaths(keep map[string]bool) *Dataset {
	out := &Dataset{
		ID:       d.ID,
		format:   d.format,
		log:      d.log,
		metadata: d.metadata.Clone(),
		files:    make(map[string]attrs.Attrs, len(d.files)),
	}
	for p, info := range d.files {
		if keep != nil && !keep[p] {
			continue
		}
		out.files[p] = info.Clone()
	}
	return out
}

// WithPaths returns a copy holding only the given files.
func (d *Dataset) WithPaths(paths []string) *Dataset {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	return d.clonePaths(keep)
}
