package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/dataset"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/logger"
	"github.com/teranos/idxtools/query"
)

// postings maps an attribute value to the ordinals holding it.
type postings map[string]*roaring.Bitmap

type fileRef struct {
	owner uint32
	path  string
}

// lookupTable is the reverse index over an Index. Datasets and files are
// numbered by ordinal; metadata values post dataset ordinals and file
// attribute values (path included) post file ordinals.
type lookupTable struct {
	datasets []*dataset.Dataset
	files    []fileRef
	meta     map[string]postings
	file     map[string]postings

	// records maps a file path to its metadata merged with its file attributes.
	records map[string]attrs.Attrs
}

func (t *lookupTable) post(table map[string]postings, key string, v attrs.Value, ord uint32) {
	p, ok := table[key]
	if !ok {
		p = postings{}
		table[key] = p
	}
	for _, el := range v.Elements() {
		s := el.String()
		bm, ok := p[s]
		if !ok {
			bm = roaring.New()
			p[s] = bm
		}
		bm.Add(ord)
	}
}

func buildLookup(datasets []*dataset.Dataset) *lookupTable {
	t := &lookupTable{
		datasets: datasets,
		meta:     map[string]postings{},
		file:     map[string]postings{},
		records:  map[string]attrs.Attrs{},
	}
	for i, ds := range datasets {
		owner := uint32(i)
		meta := ds.Metadata()
		for k, v := range meta {
			t.post(t.meta, k, v, owner)
		}
		for _, path := range ds.Paths() {
			ord := uint32(len(t.files))
			t.files = append(t.files, fileRef{owner: owner, path: path})

			info, _ := ds.File(path)
			for k, v := range info {
				t.post(t.file, k, v, ord)
			}
			t.post(t.file, format.KeyPath, attrs.String(path), ord)

			rec := meta.Merge(info)
			rec[format.KeyPath] = attrs.String(path)
			t.records[path] = rec
		}
	}
	return t
}

// match unions the postings of every value of the predicate's attribute
// that satisfies it.
func match(p postings, pred query.Predicate) *roaring.Bitmap {
	out := roaring.New()
	for value, bm := range p {
		if pred.Match(value) {
			out.Or(bm)
		}
	}
	return out
}

// table returns the reverse index, rebuilding it after a mutation.
func (ix *Index) table() *lookupTable {
	if ix.lookup == nil {
		ix.lookup = buildLookup(ix.Datasets())
		ix.log.Debugw("lookup table built",
			logger.FieldCount, len(ix.lookup.datasets),
			"files", len(ix.lookup.files))
	}
	return ix.lookup
}

// Record returns the merged metadata and file attributes of path.
func (ix *Index) Record(path string) (attrs.Attrs, bool) {
	rec, ok := ix.table().records[path]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Lookup returns a new index holding what q selects.
//
// Each predicate is evaluated once per distinct value of its attribute.
// Metadata predicates select whole datasets, file predicates select files;
// predicates are intersected, or unioned when q.Any is set. Datasets
// selected through file predicates are reduced to the selected files. An
// attribute that no dataset or file carries is a lookup error.
func (ix *Index) Lookup(q query.Set) (*Index, error) {
	out := ix.derived()
	if q.Empty() {
		for id, ds := range ix.datasets {
			out.datasets[id] = ds.Clone()
		}
		return out, nil
	}

	t := ix.table()
	var metaHits, fileHits []*roaring.Bitmap
	for _, pred := range q.Predicates {
		if p, ok := t.meta[pred.Key]; ok {
			metaHits = append(metaHits, match(p, pred))
			continue
		}
		if p, ok := t.file[pred.Key]; ok {
			fileHits = append(fileHits, match(p, pred))
			continue
		}
		return nil, errors.NewLookupError("no dataset or file has attribute %q", pred.Key)
	}

	whole, files := t.combine(metaHits, fileHits, q.Any)

	keep := map[uint32][]string{}
	it := files.Iterator()
	for it.HasNext() {
		ref := t.files[it.Next()]
		keep[ref.owner] = append(keep[ref.owner], ref.path)
	}

	it = whole.Iterator()
	for it.HasNext() {
		ds := t.datasets[it.Next()]
		out.datasets[ds.ID] = ds.Clone()
	}
	owners := make([]uint32, 0, len(keep))
	for owner := range keep {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	for _, owner := range owners {
		ds := t.datasets[owner]
		if _, ok := out.datasets[ds.ID]; ok {
			continue
		}
		out.datasets[ds.ID] = ds.WithPaths(keep[owner])
	}

	ix.log.Debugw("lookup",
		logger.FieldQuery, q.String(),
		logger.FieldCount, len(out.datasets))
	return out, nil
}

// combine folds the per-predicate hits into the datasets to keep whole and
// the files to keep individually.
func (t *lookupTable) combine(metaHits, fileHits []*roaring.Bitmap, anyOf bool) (whole, files *roaring.Bitmap) {
	if anyOf {
		return roaring.FastOr(metaHits...), roaring.FastOr(fileHits...)
	}

	var owners *roaring.Bitmap
	if len(metaHits) > 0 {
		owners = roaring.FastAnd(metaHits...)
	}
	if len(fileHits) == 0 {
		return owners, roaring.New()
	}

	files = roaring.FastAnd(fileHits...)
	if owners != nil {
		filtered := roaring.New()
		it := files.Iterator()
		for it.HasNext() {
			ord := it.Next()
			if owners.Contains(t.files[ord].owner) {
				filtered.Add(ord)
			}
		}
		files = filtered
	}
	return roaring.New(), files
}
