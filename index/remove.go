package index

import (
	"github.com/teranos/idxtools/logger"
	"github.com/teranos/idxtools/query"
)

// Remove deletes what q selects and returns the number of removed records.
//
// When q refers to a file attribute only the selected file records go; a
// dataset left without files is deleted too when clear is set. Otherwise
// the selected datasets are deleted whole.
func (ix *Index) Remove(q query.Set, clear bool) (int, error) {
	if q.Empty() {
		return 0, nil
	}
	matches, err := ix.Lookup(q)
	if err != nil {
		return 0, err
	}

	fileLevel, _ := q.Partition(ix.format.IsFileInfo)
	removed := 0
	for _, hit := range matches.Datasets() {
		ds, ok := ix.datasets[hit.ID]
		if !ok {
			continue
		}
		if len(fileLevel) == 0 {
			delete(ix.datasets, hit.ID)
			removed++
			ix.log.Debugw("dataset removed", logger.FieldDataset, hit.ID)
			continue
		}

		for _, path := range hit.Paths() {
			removed += ds.RmFile(path, "")
		}
		if clear && ds.Len() == 0 {
			delete(ix.datasets, hit.ID)
			ix.log.Debugw("empty dataset cleared", logger.FieldDataset, hit.ID)
		}
	}

	ix.invalidate()
	ix.log.Debugw("remove", logger.FieldQuery, q.String(), logger.FieldCount, removed)
	return removed, nil
}
