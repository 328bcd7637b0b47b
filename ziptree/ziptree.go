// Package ziptree converts between a ZIP archive and a directory tree.
//
// [ExtractAll] expands every entry of an archive beneath a directory,
// preserving relative structure, modes and modification times. [Repackage]
// performs the inverse, rebuilding a deflate ZIP from a directory. Together
// they back editing sessions: extract, let the user edit, repackage.
package ziptree

import (
	"errors"
	"log/slog"
	"runtime"
)

var (
	// ErrEncrypted is returned when an archive holds encrypted entries.
	// ZIP encryption is not supported; extracting such entries would produce
	// garbage rather than an error.
	ErrEncrypted = errors.New("zip archive contains encrypted entries")

	// ErrUnsafePath is returned for entries whose names would escape the
	// destination directory.
	ErrUnsafePath = errors.New("zip entry path escapes destination")
)

// zipFlagEncrypted is general purpose bit 0 of a zip file header.
const zipFlagEncrypted = 0x1

// Stats summarizes one extraction or repackaging run.
type Stats struct {
	Files int
	Dirs  int
	Bytes int64
}

type config struct {
	workers  int
	password string
	logger   *slog.Logger
}

// Option configures ExtractAll and Repackage.
type Option func(*config)

// WithWorkers sets the number of files written concurrently by ExtractAll.
// Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithPassword records the password the archive was opened with.
// ZIP decryption is unsupported, so a non-empty password only logs a warning.
func WithPassword(password string) Option {
	return func(c *config) {
		c.password = password
	}
}

// WithLogger sets the logger for progress and warnings.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.workers < 1 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}
