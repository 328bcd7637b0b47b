package zipper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meigma/zipper/extract"
	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/host"
	"github.com/meigma/zipper/internal/tempdir"
	"github.com/meigma/zipper/session"
	"github.com/meigma/zipper/watch"
)

// DefaultNamespace prefixes the temp directories owned by a Viewer: entry
// caches live under "<ns>.e" and editing sessions under "<ns>.u".
const DefaultNamespace = "zipper"

// Viewer loads archives and owns the extraction cache and editing sessions
// shared by every archive it loads.
type Viewer struct {
	host      host.Host
	registry  *format.Registry
	namespace string
	tolerance time.Duration
	interval  time.Duration
	debounce  time.Duration
	workers   int
	clock     watch.Clock
	onChange  func(*session.Session, []string)
	logger    *slog.Logger

	extractor *extract.Extractor
	sessions  *session.Manager
}

// New creates a Viewer backed by h.
func New(h host.Host, opts ...Option) (*Viewer, error) {
	v := &Viewer{
		host:      h,
		registry:  format.Default(),
		namespace: DefaultNamespace,
		tolerance: extract.DefaultTolerance,
		interval:  watch.DefaultInterval,
		clock:     watch.SystemClock{},
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	if v.logger == nil {
		v.logger = slog.New(slog.DiscardHandler)
	}

	x, err := extract.New(h.TempDir(),
		extract.WithNamespace(v.namespace+".e"),
		extract.WithTolerance(v.tolerance),
		extract.WithLogger(v.logger),
	)
	if err != nil {
		return nil, err
	}
	v.extractor = x

	sessionOpts := []session.Option{
		session.WithNamespace(v.namespace + ".u"),
		session.WithPollInterval(v.interval),
		session.WithDebounce(v.debounce),
		session.WithClock(v.clock),
		session.WithWorkers(v.workers),
		session.WithLogger(v.logger),
	}
	if v.onChange != nil {
		sessionOpts = append(sessionOpts, session.WithOnChange(v.onChange))
	}
	m, err := session.NewManager(h, sessionOpts...)
	if err != nil {
		return nil, err
	}
	v.sessions = m
	return v, nil
}

// Load lists the archive at path.
//
// Password problems are reported as errors matching ErrPassword; callers
// typically prompt and call Load again. Any other codec failure matches
// ErrFormat.
func (v *Viewer) Load(ctx context.Context, path, password string) (*Archive, error) {
	f, err := v.registry.ForPath(path)
	if err != nil {
		return nil, err
	}
	entries, err := f.List(ctx, path, password)
	if err != nil {
		return nil, err
	}

	abs := tempdir.ArchiveKey(path)
	v.logger.Debug("archive loaded", "archive", abs, "format", f.Kind(), "entries", len(entries))
	return &Archive{
		Path:     abs,
		ItemID:   abs,
		Kind:     f.Kind(),
		Entries:  entries,
		viewer:   v,
		format:   f,
		password: password,
	}, nil
}

// Sessions returns the manager of editing sessions.
func (v *Viewer) Sessions() *session.Manager { return v.sessions }

// Close ends every editing session without repackaging.
func (v *Viewer) Close(ctx context.Context) error {
	if err := v.sessions.Close(ctx); err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}
	return nil
}
