// Package tempdir derives the deterministic temporary locations used for
// extraction caches and editing sessions.
//
// Locations are addressed by the sha256 of identity strings (absolute archive
// path, entry path), never by file content:
//
//	<root>/<namespace>/<sha256(archive)>/                       (session tree)
//	<root>/<namespace>/<sha256(archive)>/<sha256(entry)><ext>    (single entry)
package tempdir

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
)

const defaultDirPerm = 0o700

// Layout maps archive and entry identities to paths under Root/Namespace.
type Layout struct {
	Root      string
	Namespace string
	DirPerm   os.FileMode
}

// New returns a Layout rooted at root. It does not touch the filesystem.
func New(root, namespace string) (Layout, error) {
	if root == "" {
		return Layout{}, errors.New("temp root is empty")
	}
	if namespace == "" || strings.ContainsAny(namespace, `/\`) {
		return Layout{}, errors.New("temp namespace must be a single path element")
	}
	return Layout{Root: root, Namespace: namespace, DirPerm: defaultDirPerm}, nil
}

// Identity returns the sha256 hex identity of s.
func Identity(s string) string {
	return digest.FromString(s).Encoded()
}

// ArchiveKey returns the identity string used for an archive: its absolute,
// cleaned path when that can be determined, otherwise the path as given.
func ArchiveKey(archivePath string) string {
	if abs, err := filepath.Abs(archivePath); err == nil {
		return abs
	}
	return filepath.Clean(archivePath)
}

// Base returns the namespace directory holding every archive directory.
func (l Layout) Base() string {
	return filepath.Join(l.Root, l.Namespace)
}

// ArchiveDir returns the directory owned by archivePath.
func (l Layout) ArchiveDir(archivePath string) string {
	return filepath.Join(l.Base(), Identity(ArchiveKey(archivePath)))
}

// EntryFile returns the cache file for entryPath inside archivePath. The
// entry's extension is kept so the host can pick an application to open it.
func (l Layout) EntryFile(archivePath, entryPath string) string {
	return filepath.Join(l.ArchiveDir(archivePath), Identity(entryPath)+Ext(entryPath))
}

// Ext returns the extension of the last element of a slash path, including
// the dot. Dotfiles such as ".bashrc" have no extension.
func Ext(p string) string {
	base := path.Base(strings.TrimRight(p, "/"))
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return base[i:]
}

// Ensure creates dir and its parents with the layout permissions.
func (l Layout) Ensure(dir string) error {
	perm := l.DirPerm
	if perm == 0 {
		perm = defaultDirPerm
	}
	return os.MkdirAll(dir, perm)
}

// Remove deletes dir recursively. A missing directory is not an error.
func Remove(dir string) error {
	if dir == "" {
		return errors.New("refusing to remove empty path")
	}
	return os.RemoveAll(dir)
}
