package index

import (
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/lockfile"
	"github.com/teranos/idxtools/logger"
)

// Lock takes the lock file of the index. It returns false without blocking
// when this index already holds it; a lock held by another process is a
// lock error.
func (ix *Index) Lock() (bool, error) {
	if ix.lock != nil {
		return false, nil
	}
	if ix.path == "" {
		return false, errors.NewLockError("index is not backed by a file")
	}
	l, err := lockfile.Acquire(ix.path)
	if err != nil {
		return false, err
	}
	ix.lock = l
	ix.log.Debugw("index locked", logger.FieldIndex, ix.path, logger.FieldHolder, l.Holder().Token)
	return true, nil
}

// Release drops the lock. It returns false when no lock is held.
func (ix *Index) Release() (bool, error) {
	if ix.lock == nil {
		return false, nil
	}
	l := ix.lock
	ix.lock = nil
	if err := l.Release(); err != nil {
		return false, err
	}
	ix.log.Debugw("index released", logger.FieldIndex, ix.path)
	return true, nil
}

// Locked reports whether this index holds its lock.
func (ix *Index) Locked() bool {
	return ix.lock != nil
}

// WithLock runs fn under the lock and saves the index when fn succeeds.
// The lock is released whether or not fn or the save fail.
func (ix *Index) WithLock(fn func(*Index) error) (err error) {
	acquired, err := ix.Lock()
	if err != nil {
		return err
	}
	if acquired {
		defer func() {
			if _, rerr := ix.Release(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	if err := fn(ix); err != nil {
		return err
	}
	return ix.Save()
}
