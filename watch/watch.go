// Package watch detects file changes under a directory by periodic polling.
//
// A Watcher snapshots every regular file's relative path and modification
// time when started (the baseline), then re-snapshots on a fixed interval and
// diffs against the baseline. Changes are reported according to the debounce
// setting:
//
//   - debounce == 0: changes are tracked (see [Watcher.Changed]) but never
//     pushed; only [Watcher.Trigger] delivers them.
//   - debounce > 0: every poll that sees the tree differ from the previous
//     poll (re)arms a timer; when it elapses the full set of changes since
//     the baseline is delivered.
//
// Snapshot failures on the poll loop go to the error callback, never to a
// caller.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

const (
	// DefaultInterval is the polling period.
	DefaultInterval = 2 * time.Second
)

// ErrNotStarted is returned by Trigger before the first Start.
var ErrNotStarted = errors.New("watcher has no baseline")

// State is the lifecycle state of a Watcher.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Diff holds the changes between the baseline and one snapshot. The three
// sets are disjoint and sorted.
type Diff struct {
	Modified []string
	Added    []string
	Removed  []string
}

// Paths returns the sorted union of all changes.
func (d Diff) Paths() []string {
	all := make([]string, 0, len(d.Modified)+len(d.Added)+len(d.Removed))
	all = append(all, d.Modified...)
	all = append(all, d.Added...)
	all = append(all, d.Removed...)
	slices.Sort(all)
	return all
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Modified) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}

// Watcher polls a directory tree for changes. It is safe for concurrent use.
type Watcher struct {
	root     string
	interval time.Duration
	debounce time.Duration
	clock    Clock
	onChange func([]string)
	onError  func(error)
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	baseline  map[string]time.Time
	previous  map[string]time.Time
	changed   []string
	lastPoll  time.Time
	stopTimer func() bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling period. Defaults to DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithDebounce sets the quiet period before changes are pushed.
// Zero (the default) disables pushing.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = max(d, 0)
	}
}

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(w *Watcher) {
		w.clock = c
	}
}

// WithOnChange sets the callback receiving changed relative paths.
func WithOnChange(f func(paths []string)) Option {
	return func(w *Watcher) {
		w.onChange = f
	}
}

// WithOnError sets the callback receiving snapshot failures.
func WithOnError(f func(error)) Option {
	return func(w *Watcher) {
		w.onError = f
	}
}

// WithLogger sets the logger.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New returns an idle Watcher for the tree at root.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		interval: DefaultInterval,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start records the baseline and begins polling until Stop or ctx ends.
// Starting a watching Watcher is a no-op. Baseline failures are returned.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Watching {
		return nil
	}

	snap, err := snapshot(w.root)
	if err != nil {
		return err
	}
	w.baseline = snap
	w.previous = snap
	w.changed = nil
	w.lastPoll = w.clock.Now()
	w.state = Watching

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	ticks, stopTicker := w.clock.NewTicker(w.interval)
	go w.loop(loopCtx, ticks, stopTicker, w.done)

	w.logger.Debug("watching", "root", w.root, "files", len(snap), "interval", w.interval, "debounce", w.debounce)
	return nil
}

func (w *Watcher) loop(ctx context.Context, ticks <-chan time.Time, stopTicker func(), done chan struct{}) {
	defer close(done)
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			_, _ = w.Poll() //nolint:errcheck // reported through the error callback
		}
	}
}

// Poll takes one snapshot and updates the changed set. It is a no-op while
// idle. Failures are also sent to the error callback.
func (w *Watcher) Poll() (Diff, error) {
	w.mu.Lock()
	if w.state != Watching {
		w.mu.Unlock()
		return Diff{}, nil
	}
	w.mu.Unlock()

	snap, err := snapshot(w.root)
	if err != nil {
		w.reportError(err)
		return Diff{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Watching {
		return Diff{}, nil
	}
	d := diff(w.baseline, snap)
	paths := d.Paths()
	moved := !maps.EqualFunc(w.previous, snap, time.Time.Equal)
	w.previous = snap
	w.changed = paths
	w.lastPoll = w.clock.Now()

	if w.debounce > 0 && moved {
		w.disarmLocked()
		if len(paths) > 0 {
			w.stopTimer = w.clock.AfterFunc(w.debounce, w.fire)
		}
	}
	return d, nil
}

// fire delivers the changed set when the debounce timer elapses.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.state != Watching {
		w.mu.Unlock()
		return
	}
	w.stopTimer = nil
	paths := slices.Clone(w.changed)
	w.mu.Unlock()

	if len(paths) > 0 {
		w.deliver(paths)
	}
}

// Trigger re-polls immediately and delivers the changed set regardless of
// debounce, even when it is empty. It works after Stop as long as the
// watcher was started once.
func (w *Watcher) Trigger() ([]string, error) {
	w.mu.Lock()
	baseline := w.baseline
	w.mu.Unlock()
	if baseline == nil {
		return nil, ErrNotStarted
	}

	snap, err := snapshot(w.root)
	if err != nil {
		w.reportError(err)
		return nil, err
	}
	paths := diff(baseline, snap).Paths()

	w.mu.Lock()
	w.disarmLocked()
	w.previous = snap
	w.changed = paths
	w.lastPoll = w.clock.Now()
	w.mu.Unlock()

	w.deliver(paths)
	return paths, nil
}

// Changed returns the paths changed since the baseline as of the last poll.
func (w *Watcher) Changed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.changed)
}

// LastPoll returns the time of the most recent snapshot.
func (w *Watcher) LastPoll() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPoll
}

// Stop cancels polling and any pending debounce timer, and waits for the
// poll loop to exit. It is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state != Watching {
		w.mu.Unlock()
		return
	}
	w.state = Idle
	w.disarmLocked()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Debug("stopped watching", "root", w.root)
}

func (w *Watcher) disarmLocked() {
	if w.stopTimer != nil {
		w.stopTimer()
		w.stopTimer = nil
	}
}

func (w *Watcher) deliver(paths []string) {
	w.logger.Debug("changes detected", "root", w.root, "count", len(paths))
	if w.onChange != nil {
		w.onChange(paths)
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Warn("snapshot failed", "root", w.root, "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// snapshot maps every regular file under root to its modification time.
func snapshot(root string) (map[string]time.Time, error) {
	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	snap := make(map[string]time.Time)
	err = fs.WalkDir(r.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		snap[path] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func diff(baseline, current map[string]time.Time) Diff {
	var d Diff
	for p, mod := range current {
		prev, ok := baseline[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case !prev.Equal(mod):
			d.Modified = append(d.Modified, p)
		}
	}
	for p := range baseline {
		if _, ok := current[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	slices.Sort(d.Modified)
	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	return d
}
