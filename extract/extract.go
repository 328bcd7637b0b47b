// Package extract materializes single archive entries into a deterministic
// on-disk cache.
//
// Each entry lands at
//
//	<root>/<namespace>/<sha256(abs archive path)>/<sha256(entry path)><ext>
//
// so repeated requests for the same entry of the same archive hit the same
// file. A cached file is reused while its size matches the entry and its
// modification time matches the archive's within a tolerance; otherwise it is
// rewritten. After every write the cached file takes the archive's
// modification time.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/internal/filesink"
	"github.com/meigma/zipper/internal/tempdir"
)

const (
	// DefaultNamespace is the directory under the temp root holding cached entries.
	DefaultNamespace = "zipper.e"

	// DefaultTolerance is the allowed drift between cache and archive mtimes.
	DefaultTolerance = time.Second
)

// ErrIsDirectory is returned when a directory entry is passed to Extract.
var ErrIsDirectory = errors.New("cannot extract a directory entry")

// ExtractError reports a failed extraction of Entry from an archive of Kind.
type ExtractError struct {
	Kind  format.Kind
	Entry string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %q from %s archive: %v", e.Entry, e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extractor writes entries into the cache layout.
// It is safe for concurrent use.
type Extractor struct {
	layout    tempdir.Layout
	tolerance time.Duration
	logger    *slog.Logger
	group     singleflight.Group
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithNamespace sets the directory name under the temp root.
// Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(x *Extractor) {
		x.layout.Namespace = ns
	}
}

// WithTolerance sets the allowed mtime drift for the skip rule.
// Negative values are treated as zero.
func WithTolerance(d time.Duration) Option {
	return func(x *Extractor) {
		x.tolerance = max(d, 0)
	}
}

// WithLogger sets the logger for cache decisions.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) {
		x.logger = logger
	}
}

// New creates an Extractor caching beneath root.
func New(root string, opts ...Option) (*Extractor, error) {
	x := &Extractor{
		layout:    tempdir.Layout{Root: root, Namespace: DefaultNamespace},
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(x)
	}
	layout, err := tempdir.New(x.layout.Root, x.layout.Namespace)
	if err != nil {
		return nil, err
	}
	x.layout = layout
	if x.logger == nil {
		x.logger = slog.New(slog.DiscardHandler)
	}
	return x, nil
}

// Target returns the cache path for e of archivePath without touching disk.
func (x *Extractor) Target(archivePath string, e entry.Entry) string {
	return x.layout.EntryFile(archivePath, e.Path)
}

// Extract returns the path of a file holding the content of e, extracting it
// with f unless a fresh copy is already cached.
//
// Freshness is judged against the archive's mtime, not the entry's own
// timestamp. An archive rewritten in place with its mtime preserved and the
// entry size unchanged keeps serving the old copy.
//
// Concurrent calls for the same target share one extraction.
func (x *Extractor) Extract(ctx context.Context, f format.Format, archivePath string, e entry.Entry, password string) (string, error) {
	kind := f.Kind()
	if e.IsDir {
		return "", &ExtractError{Kind: kind, Entry: e.Path, Err: ErrIsDirectory}
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return "", &ExtractError{Kind: kind, Entry: e.Path, Err: err}
	}
	archiveTime := info.ModTime()
	target := x.Target(archivePath, e)

	if x.fresh(target, e.Size, archiveTime) {
		x.logger.Debug("entry cache hit", "archive", archivePath, "entry", e.Path, "target", target)
		return target, nil
	}

	_, err, shared := x.group.Do(target, func() (any, error) {
		// Another caller may have finished the write while we waited.
		if x.fresh(target, e.Size, archiveTime) {
			return nil, nil
		}
		return nil, x.write(ctx, f, archivePath, e, password, target, archiveTime)
	})
	if err != nil {
		return "", &ExtractError{Kind: kind, Entry: e.Path, Err: err}
	}

	x.logger.Debug("entry extracted", "archive", archivePath, "entry", e.Path, "target", target, "shared", shared)
	return target, nil
}

func (x *Extractor) write(ctx context.Context, f format.Format, archivePath string, e entry.Entry, password, target string, archiveTime time.Time) error {
	sink := filesink.New("",
		filesink.WithPreserveTimes(true),
		filesink.WithDirPerm(x.layout.DirPerm),
	)
	w, err := sink.Writer(filesink.Item{Path: target, ModTime: archiveTime})
	if err != nil {
		return err
	}
	if err := f.Extract(ctx, archivePath, e, password, w); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	return w.Commit()
}

// fresh reports whether target can be reused: it exists, has the expected
// size, and its mtime is within tolerance of the archive's.
func (x *Extractor) fresh(target string, size int64, archiveTime time.Time) bool {
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Size() != size {
		return false
	}
	drift := info.ModTime().Sub(archiveTime)
	if drift < 0 {
		drift = -drift
	}
	return drift <= x.tolerance
}

// IsCached reports whether e of archivePath has a fresh cached copy.
func (x *Extractor) IsCached(archivePath string, e entry.Entry) bool {
	info, err := os.Stat(archivePath)
	if err != nil || e.IsDir {
		return false
	}
	return x.fresh(x.Target(archivePath, e), e.Size, info.ModTime())
}
