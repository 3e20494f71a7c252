package index

import (
	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/dataset"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/logger"
)

type insertConfig struct {
	update  bool
	addKeys bool
}

// InsertOption tunes Insert.
type InsertOption func(*insertConfig)

// Update overwrites metadata and file attributes of an existing dataset.
func Update() InsertOption {
	return func(c *insertConfig) { c.update = true }
}

// AddKeys allows an update to introduce metadata keys the dataset does not
// have yet.
func AddKeys() InsertOption {
	return func(c *insertConfig) { c.addKeys = true }
}

// Insert adds rec to the index and returns the dataset it landed in.
//
// The dataset is looked up by id; a record without id uses its path as the
// id. A new id naming a replicate group whose parts are all present is
// resolved by merging them. An existing dataset keeps its metadata unless
// Update is given; updating a key the dataset lacks needs AddKeys. A path
// in rec is added as a file, overwriting an existing record only on Update.
func (ix *Index) Insert(rec attrs.Attrs, opts ...InsertOption) (*dataset.Dataset, error) {
	var cfg insertConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	id := rec.GetString(format.KeyID)
	path := rec.GetString(format.KeyPath)
	if id == "" {
		if path == "" {
			return nil, errors.NewValidationError("record has neither %s nor %s", ix.format.IDDesc, ix.format.PathDesc)
		}
		id = path
		rec = rec.Clone()
		rec[format.KeyID] = attrs.String(id)
	}

	ds, exists := ix.datasets[id]
	switch {
	case !exists:
		created, err := ix.create(id, rec)
		if err != nil {
			return nil, err
		}
		ds = created
		ix.datasets[id] = ds
		ix.log.Debugw("dataset created", logger.FieldDataset, id)

	case cfg.update:
		if err := ix.updateMeta(ds, rec, cfg.addKeys); err != nil {
			return nil, err
		}
		fallthrough

	default:
		if path != "" {
			if _, err := ds.AddFile(path, rec, cfg.update); err != nil {
				return nil, err
			}
		}
	}

	ix.invalidate()
	return ds, nil
}

// create builds the dataset for a new id, merging replicates when the id
// names a group whose parts are loaded.
func (ix *Index) create(id string, rec attrs.Attrs) (*dataset.Dataset, error) {
	parts := dataset.ReplicateIDs(id, ix.format)
	if len(parts) == 0 {
		return dataset.New(ix.format, rec, dataset.WithLogger(ix.log))
	}

	reps := ix.FindReplicates(id)
	if len(reps) != len(parts) {
		ix.log.Debugw("replicate parts missing, creating dataset",
			logger.FieldDataset, id,
			"found", len(reps),
			"expected", len(parts))
		return dataset.New(ix.format, rec, dataset.WithLogger(ix.log))
	}

	merged := reps[0].Merge(reps[1:])
	for k, v := range rec {
		if ix.format.IsFileInfo(k) {
			continue
		}
		merged.Set(k, v)
	}
	merged.Set(format.KeyID, attrs.String(id))

	if path := rec.GetString(format.KeyPath); path != "" {
		if _, err := merged.AddFile(path, rec, false); err != nil {
			return nil, err
		}
	}
	ix.log.Debugw("replicates merged", logger.FieldDataset, id, logger.FieldCount, len(reps))
	return merged, nil
}

// updateMeta checks every key before changing any, so a rejected update
// leaves the dataset as it was.
func (ix *Index) updateMeta(ds *dataset.Dataset, rec attrs.Attrs, addKeys bool) error {
	var keys []string
	for _, k := range rec.Keys() {
		if k == format.KeyID || ix.format.IsFileInfo(k) {
			continue
		}
		if !ds.HasMeta(k) && !addKeys {
			return errors.WithHint(
				errors.NewValidationError("dataset %q has no attribute %q", ds.ID, k),
				"insert with AddKeys (idxtools add --force) to introduce new attributes")
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		ds.Set(k, rec[k])
	}
	return nil
}
