package format

import (
	"context"
	"errors"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/zipper/entry"
)

// zipFlagEncrypted is general purpose bit 0 of a zip file header.
const zipFlagEncrypted = 0x1

var errZipEncrypted = errors.New("archive contains encrypted entries")

// Zip reads zip archives. It is the only format that supports editing.
//
// The codec has no decryption support: encrypted entries are listed (the
// central directory is not encrypted) but cannot be extracted.
type Zip struct{}

func (Zip) Kind() Kind { return KindZip }

func (Zip) SupportsEditing() bool { return true }

// List returns the entries of the zip archive at path. Without a password, an
// archive with encrypted entries or with no entries at all is reported as a
// password error.
func (Zip) List(ctx context.Context, path, password string) ([]entry.Entry, error) {
	r, err := openZip(path)
	if err != nil {
		return nil, Classify(KindZip, err, password)
	}
	defer r.Close()

	entries := make([]entry.Entry, 0, len(r.File))
	encrypted := false
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, ok := entry.New(zipHeader(f))
		if !ok {
			continue
		}
		encrypted = encrypted || e.Encrypted
		entries = append(entries, e)
	}

	if password == "" {
		if encrypted {
			return nil, &PasswordError{Kind: KindZip, Err: errZipEncrypted}
		}
		if len(entries) == 0 {
			return nil, &PasswordError{Kind: KindZip, Err: errEmptyListing}
		}
	}
	return entries, nil
}

// Extract streams the zip entry e to w.
func (Zip) Extract(ctx context.Context, path string, e entry.Entry, password string, w io.Writer) error {
	r, err := openZip(path)
	if err != nil {
		return Classify(KindZip, err, password)
	}
	defer r.Close()

	f := findZipFile(r.File, e)
	if f == nil {
		return notFound(KindZip, e)
	}
	if f.Flags&zipFlagEncrypted != 0 {
		return &FormatError{Kind: KindZip, Err: ErrEncryptedEntry}
	}

	rc, err := f.Open()
	if err != nil {
		return Classify(KindZip, err, password)
	}
	defer rc.Close()

	if _, err := copyContext(ctx, w, rc); err != nil {
		return Classify(KindZip, err, password)
	}
	return nil
}

func zipHeader(f *zip.File) entry.Header {
	return entry.Header{
		Name:           f.Name,
		Size:           int64(f.UncompressedSize64), //nolint:gosec // sizes beyond int64 are not representable anyway
		CompressedSize: int64(f.CompressedSize64),   //nolint:gosec // as above
		IsDir:          f.FileInfo().IsDir(),
		Modified:       f.Modified,
		Encrypted:      f.Flags&zipFlagEncrypted != 0,
	}
}

// findZipFile returns the file for e, preferring an exact path match over a
// case-insensitive one.
func findZipFile(files []*zip.File, e entry.Entry) *zip.File {
	var folded *zip.File
	key := entry.Key(e.Path)
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if sameEntry(f.Name, e) {
			return f
		}
		if folded == nil && entry.Key(entry.Clean(f.Name)) == key {
			folded = f
		}
	}
	return folded
}

// openZip opens the zip at path. Archives whose names are merely flagged as
// insecure are still returned; listing them is harmless and extraction
// matches names exactly.
func openZip(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if r != nil {
		return r, nil
	}
	return nil, err
}
