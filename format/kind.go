package format

import (
	"path/filepath"
	"strings"
)

// Kind identifies a supported archive family.
type Kind string

const (
	KindNone Kind = ""
	KindZip  Kind = "zip"
	KindRar  Kind = "rar"
	Kind7z   Kind = "7z"
	KindTar  Kind = "tar"
)

// String returns the kind name, or "none" for KindNone.
func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// tarSuffixes lists the tarball spellings handled by the TAR adapter, longest first.
var tarSuffixes = []string{".tar.gz", ".tar.zst", ".tar.bz2", ".tgz", ".tzst", ".tbz2", ".tbz", ".tar"}

// Resolve maps a file path to an archive kind by its lowercased extension.
// The content is never inspected. Unknown extensions return KindNone.
func Resolve(path string) Kind {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range tarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return KindTar
		}
	}
	switch filepath.Ext(name) {
	case ".zip":
		return KindZip
	case ".rar":
		return KindRar
	case ".7z":
		return Kind7z
	default:
		return KindNone
	}
}
