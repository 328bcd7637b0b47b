package format

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zipper/entry"
)

var errEmptyTar = errors.New("archive appears to be empty")

// Tar reads tarballs, plain or wrapped in gzip, zstd or bzip2 as named by
// the file suffix.
//
// Tarballs carry no encryption, so an empty listing is a format error rather
// than a password error. CompressedSize equals Size for plain tarballs and is
// 0 for compressed ones, where per-entry stored sizes do not exist.
type Tar struct{}

func (Tar) Kind() Kind { return KindTar }

func (Tar) SupportsEditing() bool { return false }

// List returns the regular files and directories of the tarball at path.
func (Tar) List(ctx context.Context, path, password string) ([]entry.Entry, error) {
	tr, closer, plain, err := openTar(path)
	if err != nil {
		return nil, Classify(KindTar, err, password)
	}
	defer closer.Close()

	var entries []entry.Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Classify(KindTar, err, password)
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeDir {
			continue
		}
		h := entry.Header{
			Name:     hdr.Name,
			Size:     hdr.Size,
			IsDir:    hdr.Typeflag == tar.TypeDir,
			Modified: hdr.ModTime,
		}
		if plain {
			h.CompressedSize = hdr.Size
		}
		if e, ok := entry.New(h); ok {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 {
		return nil, &FormatError{Kind: KindTar, Err: errEmptyTar}
	}
	return entries, nil
}

// Extract streams the tar entry e to w.
func (Tar) Extract(ctx context.Context, path string, e entry.Entry, password string, w io.Writer) error {
	tr, closer, _, err := openTar(path)
	if err != nil {
		return Classify(KindTar, err, password)
	}
	defer closer.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return notFound(KindTar, e)
		}
		if err != nil {
			return Classify(KindTar, err, password)
		}
		if hdr.Typeflag != tar.TypeReg || !sameEntry(hdr.Name, e) {
			continue
		}
		if _, err := copyContext(ctx, w, tr); err != nil {
			return Classify(KindTar, err, password)
		}
		return nil
	}
}

// openTar opens path and layers the decompressor implied by its suffix.
// plain reports whether the tarball is uncompressed.
func openTar(path string) (tr *tar.Reader, closer io.Closer, plain bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, false, err
	}

	name := strings.ToLower(filepath.Base(path))
	switch {
	case hasAnySuffix(name, ".tar.gz", ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, false, err
		}
		return tar.NewReader(gz), multiCloser{gz, f}, false, nil
	case hasAnySuffix(name, ".tar.zst", ".tzst"):
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, nil, false, err
		}
		rc := dec.IOReadCloser()
		return tar.NewReader(rc), multiCloser{rc, f}, false, nil
	case hasAnySuffix(name, ".tar.bz2", ".tbz2", ".tbz"):
		return tar.NewReader(bzip2.NewReader(f)), f, false, nil
	default:
		return tar.NewReader(f), f, true, nil
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
