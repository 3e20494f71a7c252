package dataset

import (
	"sort"
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/format"
)

// Merge combines the metadata of d and others into a new dataset that
// represents them as technical replicates.
//
// For every metadata key of any input, values are collected in input order,
// with absent keys contributing the missing-value sentinel. Equal values
// collapse to one; otherwise the key holds the ordered list. The merged id
// joins the input ids with the replicate separator. Files are not merged.
func (d *Dataset) Merge(others []*Dataset) *Dataset {
	all := append([]*Dataset{d}, others...)

	keySet := map[string]bool{}
	for _, ds := range all {
		for k := range ds.metadata {
			if k != format.KeyID {
				keySet[k] = true
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := &Dataset{
		format:   d.format,
		log:      d.log,
		metadata: make(attrs.Attrs, len(keys)+1),
		files:    map[string]attrs.Attrs{},
	}

	missing := attrs.String(d.format.MissingValue)
	for _, k := range keys {
		vals := make([]attrs.Value, len(all))
		same := true
		for i, ds := range all {
			v, ok := ds.metadata[k]
			if !ok {
				v = missing
			}
			vals[i] = v.Clone()
			if i > 0 && !vals[i].Equal(vals[0]) {
				same = false
			}
		}
		if same {
			merged.metadata[k] = vals[0]
			continue
		}
		merged.metadata[k] = attrs.List(vals...)
	}

	ids := make([]string, len(all))
	for i, ds := range all {
		ids[i] = ds.ID
	}
	merged.ID = strings.Join(ids, d.format.RepSep)
	merged.metadata[format.KeyID] = attrs.String(merged.ID)

	d.log.Debugw("merged replicates", "id", merged.ID, "count", len(all))
	return merged
}

// ReplicateIDs splits a merged id into its parts. A plain id returns nil.
func ReplicateIDs(id string, f *format.Format) []string {
	if f.RepSep == "" || !strings.Contains(id, f.RepSep) {
		return nil
	}
	parts := strings.Split(id, f.RepSep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
