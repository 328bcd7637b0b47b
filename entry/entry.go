// Package entry holds the canonical archive entry model shared by every
// format adapter, plus the directory projection used to browse a flat
// entry list one level at a time.
package entry

import (
	"strings"
	"time"
)

// UnknownName is the display name used when none can be derived from a path.
const UnknownName = "Unknown"

// Entry is one record (file or directory) inside an archive.
type Entry struct {
	// Name is the final path segment used for display. Never empty.
	Name string

	// Path is the full slash-separated path inside the archive, without a
	// trailing slash.
	Path string

	// Size is the uncompressed length in bytes (0 for directories).
	Size int64

	// CompressedSize is the stored size, or 0 when the format does not expose it.
	CompressedSize int64

	// IsDir reports whether the entry is a directory.
	IsDir bool

	// Modified is the modification time. Formats without one report the
	// time the listing was produced.
	Modified time.Time

	// Encrypted reports whether the format marks the entry as encrypted.
	Encrypted bool
}

// Header carries the raw fields a format adapter read from its codec library.
type Header struct {
	Name           string
	Size           int64
	CompressedSize int64
	IsDir          bool
	Modified       time.Time
	Encrypted      bool
}

// New builds an Entry from a raw header, normalizing the path and deriving the
// display name. It returns false for records that must never reach a listing:
// empty names and root markers such as "/" or "./".
func New(h Header) (Entry, bool) {
	raw := NormalizePath(h.Name)
	if strings.TrimSpace(raw) == "" {
		return Entry{}, false
	}
	isDir := h.IsDir || strings.HasSuffix(raw, "/")
	p := Clean(raw)
	if strings.TrimSpace(p) == "" {
		return Entry{}, false
	}

	name := Base(p)
	if strings.TrimSpace(name) == "" {
		if segs := Segments(p); len(segs) > 0 {
			name = segs[len(segs)-1]
		} else {
			name = UnknownName
		}
	}

	modified := h.Modified
	if modified.IsZero() {
		modified = time.Now()
	}
	size := h.Size
	if isDir || size < 0 {
		size = 0
	}
	compressed := h.CompressedSize
	if compressed < 0 {
		compressed = 0
	}

	return Entry{
		Name:           name,
		Path:           p,
		Size:           size,
		CompressedSize: compressed,
		IsDir:          isDir,
		Modified:       modified,
		Encrypted:      h.Encrypted,
	}, true
}

// Synthetic returns a placeholder directory entry for a path that only
// exists implicitly, as the parent of deeper entries.
func Synthetic(p string) Entry {
	p = Clean(p)
	return Entry{
		Name:     Base(p),
		Path:     p,
		IsDir:    true,
		Modified: time.Now(),
	}
}

// Find returns the entry whose path matches p, comparing normalized paths
// exactly first and case-insensitively second.
func Find(entries []Entry, p string) (Entry, bool) {
	p = Clean(p)
	for _, e := range entries {
		if e.Path == p {
			return e, true
		}
	}
	key := Key(p)
	for _, e := range entries {
		if Key(e.Path) == key {
			return e, true
		}
	}
	return Entry{}, false
}
