// Package filesink writes extracted archive content to disk atomically.
package filesink

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const defaultDirPerm = 0o750

// Item describes one file to be written.
type Item struct {
	// Path is the destination, relative to the sink root (slash-separated)
	// or absolute when the sink has no root.
	Path    string
	Mode    fs.FileMode
	ModTime time.Time
}

// Sink writes items beneath a destination directory.
//
// Files are written to a temporary file in the same directory, then renamed
// to the final path on Commit. Partially written files are never visible at
// the final path.
type Sink struct {
	destDir       string
	preserveMode  bool
	preserveTimes bool
	dirPerm       fs.FileMode
}

// Option configures a Sink.
type Option func(*Sink)

// WithPreserveMode applies Item.Mode to written files.
// By default, modes are not preserved (files use umask defaults).
func WithPreserveMode(preserve bool) Option {
	return func(s *Sink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes applies Item.ModTime to written files.
// By default, files carry the time they were written.
func WithPreserveTimes(preserve bool) Option {
	return func(s *Sink) {
		s.preserveTimes = preserve
	}
}

// WithDirPerm sets the permissions of directories created by the sink.
func WithDirPerm(perm fs.FileMode) Option {
	return func(s *Sink) {
		s.dirPerm = perm
	}
}

// New creates a Sink writing beneath destDir. An empty destDir means item
// paths are used as given.
func New(destDir string, opts ...Option) *Sink {
	s := &Sink{
		destDir: destDir,
		dirPerm: defaultDirPerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dest returns the final filesystem path for item.
func (s *Sink) Dest(item Item) string {
	if s.destDir == "" {
		return filepath.FromSlash(item.Path)
	}
	return filepath.Join(s.destDir, filepath.FromSlash(item.Path))
}

// Mkdir creates the directory for a directory item.
func (s *Sink) Mkdir(item Item) error {
	dir := s.Dest(item)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *Sink) Writer(item Item) (*Committer, error) {
	destPath := s.Dest(item)

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".zipper-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &Committer{
		item:     item,
		destPath: destPath,
		tempFile: tempFile,
		sink:     s,
	}, nil
}

// Committer writes to a temp file and renames on Commit.
type Committer struct {
	item     Item
	destPath string
	tempFile *os.File
	sink     *Sink
}

// Write implements io.Writer.
func (c *Committer) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Path returns the final destination of the committer.
func (c *Committer) Path() string {
	return c.destPath
}

// Commit closes the temp file, applies metadata, and renames to final path.
func (c *Committer) Commit() error {
	tempPath := c.tempFile.Name()

	if err := c.tempFile.Close(); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	if c.sink.preserveMode && c.item.Mode.Perm() != 0 {
		if err := os.Chmod(tempPath, c.item.Mode.Perm()); err != nil {
			_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
			return fmt.Errorf("chmod: %w", err)
		}
	}

	if c.sink.preserveTimes && !c.item.ModTime.IsZero() {
		if err := os.Chtimes(tempPath, c.item.ModTime, c.item.ModTime); err != nil {
			_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
			return fmt.Errorf("chtimes: %w", err)
		}
	}

	if err := os.Rename(tempPath, c.destPath); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}

	return nil
}

// Discard closes and removes the temp file.
func (c *Committer) Discard() error {
	tempPath := c.tempFile.Name()
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return os.Remove(tempPath)
}
