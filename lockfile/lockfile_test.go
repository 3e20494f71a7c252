package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/idxtools/errors"
)

func TestAcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "index.txt")

	l, err := Acquire(target)
	require.NoError(t, err)
	assert.Equal(t, target+".lock", l.Path())
	assert.FileExists(t, l.Path())
	assert.Equal(t, os.Getpid(), l.Holder().PID)
	assert.NotEmpty(t, l.Holder().Token)

	h, err := Inspect(target)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, l.Holder().Token, h.Token)

	require.NoError(t, l.Release())
	assert.NoFileExists(t, l.Path())

	h, err = Inspect(target)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestAcquireHeld(t *testing.T) {
	target := filepath.Join(t.TempDir(), "index.txt")

	l, err := Acquire(target)
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(target)
	require.Error(t, err)
	assert.True(t, errors.IsLockError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestAcquireCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dir", "index.txt")

	l, err := Acquire(target)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(target))
	require.NoError(t, l.Release())
}

func TestAcquireUncreatableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Acquire(filepath.Join(blocker, "index.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsLockError(err))
}

func TestReleaseTokenMismatch(t *testing.T) {
	target := filepath.Join(t.TempDir(), "index.txt")

	l, err := Acquire(target)
	require.NoError(t, err)

	broken, err := Break(target)
	require.NoError(t, err)
	assert.True(t, broken)

	other, err := Acquire(target)
	require.NoError(t, err)

	err = l.Release()
	require.Error(t, err)
	assert.True(t, errors.IsLockError(err))
	assert.FileExists(t, other.Path(), "another holder's lock survives")

	require.NoError(t, other.Release())
}

func TestReleaseVanished(t *testing.T) {
	target := filepath.Join(t.TempDir(), "index.txt")
	l, err := Acquire(target)
	require.NoError(t, err)
	require.NoError(t, os.Remove(l.Path()))

	err = l.Release()
	assert.True(t, errors.IsLockError(err))
}

func TestBreakUnlocked(t *testing.T) {
	broken, err := Break(filepath.Join(t.TempDir(), "index.txt"))
	require.NoError(t, err)
	assert.False(t, broken)
}
