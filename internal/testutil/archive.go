// Package testutil builds archive fixtures and fakes shared by package tests.
package testutil

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// zipFlagEncrypted marks a zip entry as encrypted. Fixtures only set the bit;
// the payload itself is stored in the clear.
const zipFlagEncrypted = 0x1

// File describes one fixture entry. Names ending in "/" are directories.
type File struct {
	Name      string
	Body      string
	Mode      fs.FileMode
	Modified  time.Time
	Encrypted bool
}

// Stamp is a fixed modification time used by fixtures that do not set one.
var Stamp = time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

// WriteZip writes a deflate zip archive holding files, in order, to path.
func WriteZip(tb testing.TB, path string, files []File) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, file := range files {
		hdr := &zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: modified(file),
		}
		if strings.HasSuffix(file.Name, "/") {
			hdr.Method = zip.Store
		}
		if file.Mode != 0 {
			hdr.SetMode(file.Mode)
		}
		if file.Encrypted {
			hdr.Flags |= zipFlagEncrypted
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatalf("zip header %s: %v", file.Name, err)
		}
		if _, err := io.WriteString(w, file.Body); err != nil {
			tb.Fatalf("zip write %s: %v", file.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
}

// WriteTar writes a tarball holding files to path. The suffix of path picks
// the compression: .tar.gz/.tgz use gzip, .tar.zst/.tzst use zstd, anything
// else is written uncompressed.
func WriteTar(tb testing.TB, path string, files []File) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	var w io.WriteCloser = nopCloser{f}
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		w = gzip.NewWriter(f)
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		enc, err := zstd.NewWriter(f)
		if err != nil {
			tb.Fatalf("zstd writer: %v", err)
		}
		w = enc
	}

	tw := tar.NewWriter(w)
	for _, file := range files {
		hdr := &tar.Header{
			Name:    file.Name,
			ModTime: modified(file),
			Mode:    0o644,
		}
		if strings.HasSuffix(file.Name, "/") {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(file.Body))
		}
		if file.Mode != 0 {
			hdr.Mode = int64(file.Mode.Perm())
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatalf("tar header %s: %v", file.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, file.Body); err != nil {
				tb.Fatalf("tar write %s: %v", file.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("tar close: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("compressor close: %v", err)
	}
}

// ReadZip returns the body of every regular file in the zip at path, keyed by
// entry name, plus the names of directory markers.
func ReadZip(tb testing.TB, path string) (files map[string]string, dirs []string) {
	tb.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		tb.Fatalf("open zip %s: %v", path, err)
	}
	defer r.Close()

	files = make(map[string]string)
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			dirs = append(dirs, f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			tb.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files, dirs
}

// WriteFile writes body to dir/rel, creating parents.
func WriteFile(tb testing.TB, dir, rel, body string) string {
	tb.Helper()

	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		tb.Fatalf("write %s: %v", p, err)
	}
	return p
}

func modified(f File) time.Time {
	if f.Modified.IsZero() {
		return Stamp
	}
	return f.Modified
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
