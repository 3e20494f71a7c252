// Package watch reloads an index when its file changes on disk.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/lockfile"
	"github.com/teranos/idxtools/logger"
)

// DefaultDebounce collapses bursts of writes into one reload.
const DefaultDebounce = 200 * time.Millisecond

// DefaultMaxReloadsPerMinute caps reloads of a file that keeps changing.
const DefaultMaxReloadsPerMinute = 60

// ReloadFunc is called after the watched file settles
type ReloadFunc func() error

// Watcher watches one index file and calls a reload function on change
type Watcher struct {
	path     string
	reload   ReloadFunc
	log      *zap.SugaredLogger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	limiter  *rate.Limiter

	mu       sync.Mutex
	timer    *time.Timer
	started  bool
	stopped  bool
	reloadMu sync.Mutex
	done     chan struct{}
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithRateLimit allows at most perMinute reloads per minute. Changes
// arriving faster are folded into a deferred reload, never dropped.
func WithRateLimit(perMinute int) Option {
	return func(w *Watcher) {
		if perMinute <= 0 {
			w.limiter = nil
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a watcher for path. The containing directory is watched so
// that editors replacing the file by rename are still seen.
func New(path string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapIOf(err, "resolve %s", path)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO(err, "failed to create fsnotify watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, errors.WrapIOf(err, "failed to watch %s", filepath.Dir(abs))
	}

	w := &Watcher{
		path:     abs,
		reload:   reload,
		watcher:  fw,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logger.ChildLogger(logger.OrDefault(w.log), logger.FieldComponent, "watch", logger.FieldIndex, abs)
	return w, nil
}

// Start begins watching in a background goroutine. Calls after the first,
// or after Stop, do nothing.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.loop()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debugw("index change detected", "op", event.Op.String())
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watcher error", logger.FieldError, err)
		}
	}
}

// relevant keeps write and create events on the index itself. The lock
// file next to it changes on every locked write and is ignored.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Name == lockfile.PathFor(w.path) {
		return false
	}
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) schedule() {
	w.scheduleAfter(w.debounce)
}

func (w *Watcher) scheduleAfter(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, w.fire)
}

// fire runs reload; reloads never overlap.
func (w *Watcher) fire() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if w.limiter != nil && !w.limiter.Allow() {
		wait := time.Duration(float64(time.Second) / float64(w.limiter.Limit()))
		w.log.Debugw("reload rate limited", "retry_in_ms", wait.Milliseconds())
		w.scheduleAfter(wait)
		return
	}

	start := time.Now()
	if err := w.reload(); err != nil {
		w.log.Errorw("index reload failed", logger.FieldError, err)
		return
	}
	w.log.Infow("index reloaded", logger.FieldDuration, time.Since(start).Milliseconds())
}

// Stop stops watching and waits for the event loop to exit, if it was
// started. A pending reload is cancelled. Stopping twice is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	if started {
		<-w.done
	}
	return errors.WrapIO(err, "close watcher")
}
