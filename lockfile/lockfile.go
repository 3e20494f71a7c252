// Package lockfile implements the cooperative lock that guards an index
// file while it is being mutated.
//
// A lock is a sibling file "<target>.lock" created with O_EXCL. Its body is
// a small YAML document naming the holder, so a stale lock left by a
// crashed process can be inspected and broken by hand. The lock is purely
// advisory: readers that do not take it can still observe a file that is
// being rewritten.
package lockfile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/teranos/idxtools/errors"
)

// Suffix is appended to the target path to name its lock file.
const Suffix = ".lock"

// Holder describes the process owning a lock.
type Holder struct {
	PID      int       `yaml:"pid"`
	Host     string    `yaml:"host"`
	Token    string    `yaml:"token"`
	Acquired time.Time `yaml:"acquired"`
}

// Lock is a held lock file.
type Lock struct {
	path   string
	holder Holder
}

// PathFor returns the lock file path guarding target.
func PathFor(target string) string {
	return target + Suffix
}

// Acquire creates the lock file for target. The parent directory is
// created when missing. A lock held by someone else is a lock error; it
// never blocks.
func Acquire(target string) (*Lock, error) {
	path := PathFor(target)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Mark(
			errors.Wrapf(err, "create lock directory for %s", target), errors.ErrLock)
	}

	host, _ := os.Hostname()
	h := Holder{
		PID:      os.Getpid(),
		Host:     host,
		Token:    uuid.New().String(),
		Acquired: time.Now().UTC().Truncate(time.Second),
	}
	body, err := yaml.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "encode lock holder")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			lockErr := errors.NewLockError("%s is locked", target)
			if cur, ierr := Inspect(target); ierr == nil && cur != nil {
				lockErr = errors.WithHintf(lockErr, "held by pid %d on %s since %s", cur.PID, cur.Host, cur.Acquired.Format(time.RFC3339))
			}
			return nil, lockErr
		}
		return nil, errors.Mark(errors.Wrapf(err, "create lock %s", path), errors.ErrLock)
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		_ = os.Remove(path)
		return nil, errors.WrapIOf(err, "write lock %s", path)
	}
	return &Lock{path: path, holder: h}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Holder returns the holder record written at acquisition.
func (l *Lock) Holder() Holder { return l.holder }

// Release removes the lock file after checking it still carries this
// lock's token. A lock that was broken and re-taken by another process is
// left alone and reported as a lock error.
func (l *Lock) Release() error {
	cur, err := readHolder(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewLockError("lock %s vanished before release", l.path)
		}
		return err
	}
	if cur.Token != l.holder.Token {
		return errors.NewLockError("lock %s is now held by pid %d on %s", l.path, cur.PID, cur.Host)
	}
	if err := os.Remove(l.path); err != nil {
		return errors.WrapIOf(err, "remove lock %s", l.path)
	}
	return nil
}

// Inspect returns the holder of target's lock, or nil when it is not locked.
func Inspect(target string) (*Holder, error) {
	h, err := readHolder(PathFor(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// Break removes target's lock regardless of its holder. It reports whether
// a lock file was present.
func Break(target string) (bool, error) {
	err := os.Remove(PathFor(target))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapIOf(err, "remove lock for %s", target)
}

func readHolder(path string) (*Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h Holder
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.NewLockError("unreadable lock %s: %v", path, err)
	}
	return &h, nil
}
