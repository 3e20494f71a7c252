package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/lockfile"
)

func startWatcher(t *testing.T, path string, reload ReloadFunc) *Watcher {
	t.Helper()
	w, err := New(path, reload, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\tid=1;\n"), 0o644))

	var calls atomic.Int32
	startWatcher(t, path, func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("a\tid=1;\nb\tid=2;\n"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestBurstIsDebounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls atomic.Int32
	w, err := New(path, func() error {
		calls.Add(1)
		return nil
	}, WithDebounce(300*time.Millisecond))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls atomic.Int32
	startWatcher(t, path, func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(lockfile.PathFor(path), []byte("pid: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestReloadErrorKeepsWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls atomic.Int32
	startWatcher(t, path, func() error {
		if calls.Add(1) == 1 {
			return errors.New("bad line")
		}
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("y"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "index.txt"), func() error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestRateLimitDefersReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls atomic.Int32
	w, err := New(path, func() error {
		calls.Add(1)
		return nil
	}, WithRateLimit(1))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	w.fire()
	w.fire()
	assert.Equal(t, int32(1), calls.Load(), "second reload within the window is deferred")

	w.mu.Lock()
	pending := w.timer != nil
	w.mu.Unlock()
	assert.True(t, pending, "deferred reload is scheduled")
}

func TestStopCancelsDeferredReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New(path, func() error { return nil })
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Stop())

	w.schedule()
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Nil(t, w.timer, "no reload is scheduled after Stop")
}

func TestStopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New(path, func() error { return nil })
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a watcher that was never started")
	}

	require.NoError(t, w.Stop(), "second Stop is a no-op")
	w.Start()
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.False(t, w.started, "Start after Stop does nothing")
}
