package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/host"
	"github.com/meigma/zipper/internal/tempdir"
	"github.com/meigma/zipper/watch"
	"github.com/meigma/zipper/ziptree"
)

// DefaultNamespace is the directory under the host temp root holding
// session trees.
const DefaultNamespace = "zipper.u"

var (
	// ErrEditingUnsupported is returned by Edit for archive kinds that
	// cannot be rebuilt.
	ErrEditingUnsupported = errors.New("format unsupported for editing")

	// ErrNoSession is returned when no session exists for an archive.
	ErrNoSession = errors.New("no editing session for archive")

	// ErrInvalidState is returned when an operation does not apply to the
	// session's current state.
	ErrInvalidState = errors.New("editing session is in the wrong state")
)

// Request identifies the archive an edit applies to.
type Request struct {
	ArchivePath string

	// Kind is the archive kind. KindNone resolves it from ArchivePath.
	Kind format.Kind

	// ItemID is the host identity used to replace the archive on Finish.
	ItemID string

	// Password the archive was opened with, if any.
	Password string
}

// Result reports the outcome of Finish.
type Result struct {
	// Replaced is true when the host replaced the original archive.
	Replaced bool

	// Kept is the path of the rebuilt archive when it could not replace the
	// original and was left on disk instead.
	Kept string

	// Changed lists the relative paths modified during the session.
	Changed []string

	// Stats describes the rebuilt archive.
	Stats ziptree.Stats
}

// Manager owns the editing sessions of one application instance. It is safe
// for concurrent use.
type Manager struct {
	host      host.Host
	layout    tempdir.Layout
	namespace string
	interval  time.Duration
	debounce  time.Duration
	clock     watch.Clock
	workers   int
	onChange  func(*Session, []string)
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	group    singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the directory under the host temp root holding session
// trees. Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		m.namespace = ns
	}
}

// WithPollInterval sets the watcher polling period.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithDebounce sets the watcher debounce. The default 0 never pushes changes
// on its own; callers flush them with Trigger or Finish.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = d
	}
}

// WithClock sets the watcher time source.
func WithClock(c watch.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithWorkers sets the number of files written concurrently on extraction.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		m.workers = n
	}
}

// WithOnChange sets the callback receiving changes delivered by a session's
// watcher.
func WithOnChange(f func(s *Session, paths []string)) Option {
	return func(m *Manager) {
		m.onChange = f
	}
}

// WithLogger sets the logger.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager returns a Manager placing session trees under h.TempDir().
func NewManager(h host.Host, opts ...Option) (*Manager, error) {
	m := &Manager{
		host:      h,
		namespace: DefaultNamespace,
		interval:  watch.DefaultInterval,
		clock:     watch.SystemClock{},
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	layout, err := tempdir.New(h.TempDir(), m.namespace)
	if err != nil {
		return nil, err
	}
	m.layout = layout
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// Edit opens e for editing, beginning a session for the archive or reusing
// the active one.
//
// A new session extracts the whole archive, starts watching the extracted
// tree and registers itself before the host is asked to open the entry. When
// the entry cannot be found on disk after extraction, the host opens the
// temp directory instead.
func (m *Manager) Edit(ctx context.Context, req Request, e entry.Entry) (*Session, error) {
	kind := req.Kind
	if kind == format.KindNone {
		kind = format.Resolve(req.ArchivePath)
	}
	if kind != format.KindZip {
		return nil, fmt.Errorf("%w: %s", ErrEditingUnsupported, kind)
	}

	key := tempdir.ArchiveKey(req.ArchivePath)
	s := m.active(key)
	if s != nil {
		m.logger.Debug("reusing editing session", "session", s.ID, "archive", key)
	} else {
		v, err, _ := m.group.Do(key, func() (any, error) {
			if s := m.active(key); s != nil {
				return s, nil
			}
			return m.begin(ctx, key, req)
		})
		if err != nil {
			return nil, err
		}
		s, _ = v.(*Session) //nolint:errcheck // type assertion always succeeds when err is nil
	}

	return s, m.open(ctx, s, e)
}

// begin creates, populates and registers a session for key.
func (m *Manager) begin(ctx context.Context, key string, req Request) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		ArchivePath: key,
		ItemID:      req.ItemID,
		TempDir:     m.layout.ArchiveDir(key),
		Created:     m.clock.Now(),
		state:       Extracting,
		active:      true,
	}
	log := m.logger.With("session", s.ID, "archive", key)

	if err := m.layout.Ensure(m.layout.Base()); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	stats, err := ziptree.ExtractAll(ctx, key, s.TempDir,
		ziptree.WithWorkers(m.workers),
		ziptree.WithPassword(req.Password),
		ziptree.WithLogger(log),
	)
	if err != nil {
		m.removeTree(log, s.TempDir)
		return nil, fmt.Errorf("extract %s for editing: %w", key, err)
	}

	s.watcher = watch.New(s.TempDir,
		watch.WithInterval(m.interval),
		watch.WithDebounce(m.debounce),
		watch.WithClock(m.clock),
		watch.WithLogger(log),
		watch.WithOnChange(func(paths []string) {
			if m.onChange != nil {
				m.onChange(s, paths)
			}
		}),
		watch.WithOnError(func(err error) {
			log.Warn("watching session tree failed", "error", err)
		}),
	)
	// The watcher outlives the request that started it.
	if err := s.watcher.Start(context.WithoutCancel(ctx)); err != nil {
		m.removeTree(log, s.TempDir)
		return nil, fmt.Errorf("watch %s: %w", s.TempDir, err)
	}
	s.transition(Extracting, Watching)

	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()

	log.Info("editing session started", "dir", s.TempDir, "files", stats.Files, "size", humanize.Bytes(uint64(stats.Bytes))) //nolint:gosec // byte counts are never negative
	return s, nil
}

// open asks the host to open e inside the session tree.
func (m *Manager) open(ctx context.Context, s *Session, e entry.Entry) error {
	rel := entry.Clean(e.Path)
	target := filepath.Join(s.TempDir, filepath.FromSlash(rel))
	if rel != "" && strings.HasPrefix(target, s.TempDir) {
		if info, err := os.Stat(target); err == nil {
			if info.IsDir() {
				return m.host.OpenPath(ctx, target)
			}
			return m.host.OpenExternal(ctx, target)
		}
	}
	m.logger.Warn("entry not found in session tree, opening directory",
		"session", s.ID, "entry", e.Path, "dir", s.TempDir)
	return m.host.OpenPath(ctx, s.TempDir)
}

// Finish repackages the session tree and asks the host to replace the
// original archive, then cleans up.
//
// If the host cannot resolve the archive's identity, the rebuilt archive is
// kept on disk, its path is reported in Result.Kept and the user is warned.
// Any other replacement failure is returned and the session stays active.
func (m *Manager) Finish(ctx context.Context, archivePath string) (Result, error) {
	key := tempdir.ArchiveKey(archivePath)
	s := m.active(key)
	if s == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSession, archivePath)
	}
	if !s.transition(Watching, Repackaging) {
		return Result{}, fmt.Errorf("%w: %s is %s", ErrInvalidState, archivePath, s.State())
	}
	log := m.logger.With("session", s.ID, "archive", key)

	if _, err := s.watcher.Poll(); err != nil {
		log.Warn("final change scan failed", "error", err)
	}
	changed := s.watcher.Changed()

	// Kept archives outlive the session, so each one gets its own name.
	rebuilt := s.TempDir + "-" + s.ID + ".zip"
	stats, err := ziptree.Repackage(ctx, s.TempDir, rebuilt, ziptree.WithLogger(log))
	if err != nil {
		s.transition(Repackaging, Watching)
		return Result{}, fmt.Errorf("repackage %s: %w", key, err)
	}
	res := Result{Changed: changed, Stats: stats}
	name := filepath.Base(key)

	err = host.ErrNoIdentity
	if s.ItemID != "" {
		err = m.host.ReplaceFile(ctx, s.ItemID, rebuilt)
	}
	switch {
	case err == nil:
		res.Replaced = true
		m.host.Notify(ctx, host.Notification{
			Level:   host.LevelInfo,
			Title:   "Archive updated",
			Message: fmt.Sprintf("%s updated (%d files, %s)", name, stats.Files, humanize.Bytes(uint64(stats.Bytes))), //nolint:gosec // byte counts are never negative
		})
		log.Info("archive replaced", "changed", len(changed))
	case errors.Is(err, host.ErrNoIdentity):
		res.Kept = rebuilt
		m.host.Notify(ctx, host.Notification{
			Level:   host.LevelWarning,
			Title:   "Archive not replaced",
			Message: fmt.Sprintf("%s could not be replaced; the rebuilt archive was kept at %s", name, rebuilt),
		})
		log.Warn("archive identity missing, rebuilt archive kept", "kept", rebuilt)
	default:
		_ = os.Remove(rebuilt) //nolint:errcheck // best-effort cleanup
		s.transition(Repackaging, Watching)
		return Result{}, fmt.Errorf("replace %s: %w", key, err)
	}

	m.cleanup(s)
	return res, nil
}

// Cancel ends the session for archivePath without repackaging.
func (m *Manager) Cancel(_ context.Context, archivePath string) error {
	key := tempdir.ArchiveKey(archivePath)
	s := m.active(key)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNoSession, archivePath)
	}
	if !s.transition(Watching, NoSession) {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, archivePath, s.State())
	}
	m.cleanup(s)
	m.logger.Info("editing session canceled", "session", s.ID, "archive", key)
	return nil
}

// Trigger flushes the session's changes to the change callback immediately,
// regardless of debounce, and returns them.
func (m *Manager) Trigger(archivePath string) ([]string, error) {
	s := m.active(tempdir.ArchiveKey(archivePath))
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, archivePath)
	}
	return s.watcher.Trigger()
}

// Get returns the active session for archivePath.
func (m *Manager) Get(archivePath string) (*Session, bool) {
	s := m.active(tempdir.ArchiveKey(archivePath))
	return s, s != nil
}

// State returns the state of archivePath's session, NoSession when none.
func (m *Manager) State(archivePath string) State {
	if s, ok := m.Get(archivePath); ok {
		return s.State()
	}
	return NoSession
}

// Sessions returns the active sessions ordered by archive path.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	slices.SortFunc(out, func(a, b *Session) int { return strings.Compare(a.ArchivePath, b.ArchivePath) })
	return out
}

// Close cleans up every session without repackaging.
func (m *Manager) Close(_ context.Context) error {
	for _, s := range m.Sessions() {
		m.cleanup(s)
	}
	return nil
}

func (m *Manager) active(key string) *Session {
	m.mu.Lock()
	s := m.sessions[key]
	m.mu.Unlock()
	if s == nil || !s.Active() {
		return nil
	}
	return s
}

// cleanup stops the watcher, removes the tree and unregisters s. Removal
// failures only leak disk space and are logged.
func (m *Manager) cleanup(s *Session) {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	m.removeTree(m.logger.With("session", s.ID), s.TempDir)

	m.mu.Lock()
	if m.sessions[s.ArchivePath] == s {
		delete(m.sessions, s.ArchivePath)
	}
	m.mu.Unlock()
	s.deactivate()
}

func (m *Manager) removeTree(log *slog.Logger, dir string) {
	if err := tempdir.Remove(dir); err != nil {
		log.Warn("removing session tree failed", "dir", dir, "error", err)
	}
}
