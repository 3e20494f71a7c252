package dataset

import (
	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/query"
)

// Dice returns a copy restricted to the files that satisfy the file-level
// predicates of q. Predicates on keys this dataset holds as metadata are
// skipped; with no file-level predicate left the whole dataset is copied.
// When no file matches, the copy has no files.
func (d *Dataset) Dice(q query.Set) *Dataset {
	var sets []map[string]bool
	for _, p := range q.Predicates {
		if d.HasMeta(p.Key) {
			continue
		}
		sets = append(sets, d.matchingFiles(p))
	}
	if len(sets) == 0 {
		return d.Clone()
	}

	keep := sets[0]
	for _, s := range sets[1:] {
		if q.Any {
			for p := range s {
				keep[p] = true
			}
			continue
		}
		for p := range keep {
			if !s[p] {
				delete(keep, p)
			}
		}
	}
	return d.clonePaths(keep)
}

// Query compiles rec into predicates and dices the dataset with them.
// A malformed comparison or pattern is a validation error.
func (d *Dataset) Query(rec attrs.Attrs, exact bool) (*Dataset, error) {
	q, err := query.FromAttrs(rec, exact, false)
	if err != nil {
		return nil, err
	}
	return d.Dice(q), nil
}

func (d *Dataset) matchingFiles(p query.Predicate) map[string]bool {
	out := map[string]bool{}
	for path, info := range d.files {
		if fileMatches(p, path, info) {
			out[path] = true
		}
	}
	return out
}

func fileMatches(p query.Predicate, path string, info attrs.Attrs) bool {
	if p.Key == format.KeyPath {
		return p.Match(path)
	}
	v, ok := info[p.Key]
	return ok && p.MatchValue(v)
}

// Contains reports whether the dataset satisfies q. Metadata predicates are
// tested against the metadata; the remaining ones must all be satisfied by
// a single file. With q.Any a single satisfied predicate is enough.
func (d *Dataset) Contains(q query.Set) bool {
	if q.Empty() {
		return true
	}

	if q.Any {
		for _, p := range q.Predicates {
			if v, ok := d.metadata[p.Key]; ok {
				if p.MatchValue(v) {
					return true
				}
				continue
			}
			if len(d.matchingFiles(p)) > 0 {
				return true
			}
		}
		return false
	}

	var fileLevel []query.Predicate
	for _, p := range q.Predicates {
		v, ok := d.metadata[p.Key]
		if !ok {
			fileLevel = append(fileLevel, p)
			continue
		}
		if !p.MatchValue(v) {
			return false
		}
	}
	if len(fileLevel) == 0 {
		return true
	}

	for path, info := range d.files {
		all := true
		for _, p := range fileLevel {
			if !fileMatches(p, path, info) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
