package zipper

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/session"
	"github.com/meigma/zipper/watch"
)

// Option configures a Viewer.
type Option func(*Viewer) error

// WithRegistry replaces the default format registry.
func WithRegistry(r *format.Registry) Option {
	return func(v *Viewer) error {
		if r == nil {
			return errors.New("format registry is nil")
		}
		v.registry = r
		return nil
	}
}

// WithNamespace sets the prefix of the temp directories owned by the Viewer.
// Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(v *Viewer) error {
		if ns == "" || strings.ContainsAny(ns, `/\`) {
			return fmt.Errorf("namespace %q must be a single path element", ns)
		}
		v.namespace = ns
		return nil
	}
}

// WithTolerance sets the allowed mtime drift for reusing cached entries.
func WithTolerance(d time.Duration) Option {
	return func(v *Viewer) error {
		v.tolerance = d
		return nil
	}
}

// WithPollInterval sets how often editing sessions scan for changes.
func WithPollInterval(d time.Duration) Option {
	return func(v *Viewer) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", d)
		}
		v.interval = d
		return nil
	}
}

// WithDebounce sets the quiet period after which session changes are pushed
// to the change callback. Zero (the default) never pushes.
func WithDebounce(d time.Duration) Option {
	return func(v *Viewer) error {
		v.debounce = d
		return nil
	}
}

// WithWorkers bounds concurrent writes when a session extracts an archive.
func WithWorkers(n int) Option {
	return func(v *Viewer) error {
		v.workers = n
		return nil
	}
}

// WithClock sets the time source of session watchers.
func WithClock(c watch.Clock) Option {
	return func(v *Viewer) error {
		v.clock = c
		return nil
	}
}

// WithOnChange sets the callback receiving changes from editing sessions.
func WithOnChange(f func(s *session.Session, paths []string)) Option {
	return func(v *Viewer) error {
		v.onChange = f
		return nil
	}
}

// WithLogger sets the logger for the Viewer and everything it creates.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Viewer) error {
		v.logger = logger
		return nil
	}
}
