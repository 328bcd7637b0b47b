// Package format adapts third-party archive codecs to the canonical entry
// model.
//
// Each supported archive family implements [Format]. A [Registry] maps kinds
// to implementations so callers dispatch through the registry instead of
// branching on the kind; adding a family means registering one more Format.
//
// Codec libraries:
//   - zip: github.com/klauspost/compress/zip
//   - rar: github.com/nwaples/rardecode
//   - 7z:  github.com/bodgit/sevenzip
//   - tar: archive/tar, with klauspost gzip and zstd (or compress/bzip2) layers
package format

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/meigma/zipper/entry"
)

// Format lists and extracts entries of one archive family.
type Format interface {
	// Kind returns the archive family handled by the format.
	Kind() Kind

	// List returns every entry of the archive at path. Order carries no
	// meaning. Failures are *PasswordError or *FormatError.
	List(ctx context.Context, path, password string) ([]entry.Entry, error)

	// Extract streams the content of e to w. It returns ErrEntryNotFound
	// when the archive has no file at e.Path.
	Extract(ctx context.Context, path string, e entry.Entry, password string, w io.Writer) error

	// SupportsEditing reports whether archives of this family can be rebuilt
	// by an editing session.
	SupportsEditing() bool
}

// Registry maps archive kinds to formats. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats map[Kind]Format
}

// NewRegistry returns a registry holding formats.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{formats: make(map[Kind]Format, len(formats))}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// Default returns a registry with the zip, rar, 7z and tar formats.
func Default() *Registry {
	return NewRegistry(Zip{}, Rar{}, SevenZip{}, Tar{})
}

// Register adds f, replacing any format previously registered for its kind.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[f.Kind()] = f
}

// Lookup returns the format for kind.
func (r *Registry) Lookup(kind Kind) (Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
	return f, nil
}

// ForPath resolves path to a kind and returns its format.
func (r *Registry) ForPath(path string) (Format, error) {
	kind := Resolve(path)
	if kind == KindNone {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return r.Lookup(kind)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.formats))
	for k := range r.formats {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// copyContext copies src to dst, checking ctx between chunks.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// notFound returns the error for a missing entry.
func notFound(kind Kind, e entry.Entry) error {
	return fmt.Errorf("%s archive: %s: %w", kind, e.Path, ErrEntryNotFound)
}

// sameEntry reports whether a raw codec name refers to e.
func sameEntry(name string, e entry.Entry) bool {
	return entry.Clean(name) == e.Path
}
